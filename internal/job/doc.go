// Package job defines the caller-facing handle to one asynchronous execution
// attempt. Every backend returns the same Handle type, so status derivation
// lives in exactly one place.
package job
