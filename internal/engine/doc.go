// Package engine provides the job execution engine. It resolves backends via
// the registry, submits workloads, tracks live job handles, journals every
// observed status transition to the store and publishes status events to
// subscribers in real time.
package engine
