// Package backend defines the interface every execution backend implements,
// the read-only backend configuration, workload validation and the Registry
// (provider) that resolves backend names.
package backend
