package backend

import (
	"context"
	"maps"
	"slices"

	"github.com/seantiz/qexec/internal/job"
	"github.com/seantiz/qexec/internal/model"
)

// Backend is the interface that all execution backends must implement.
// Each backend (dummy simulator, local executor) provides its own
// implementation of these methods.
type Backend interface {
	// Name returns the canonical backend name.
	Name() string

	// Configuration returns a copy of the backend's descriptor.
	Configuration() Configuration

	// Status reports whether the backend accepts work and how many jobs it
	// has not finished yet.
	Status() Status

	// Calibration returns a copy of the latest device calibration.
	// Simulators report an empty set.
	Calibration() Properties

	// Parameters returns a copy of the device operating parameters.
	// Simulators report an empty set.
	Parameters() Properties

	// Run validates the workload, schedules it and returns a handle without
	// waiting for the work to start. Invalid workloads return a
	// *SubmissionError and no handle.
	Run(ctx context.Context, w model.Workload) (*job.Handle, error)
}

// Configuration describes a backend. It is fixed when the backend is
// constructed.
type Configuration struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Simulator   bool     `json:"simulator"`
	Local       bool     `json:"local"`
	BasisGates  []string `json:"basis_gates"`
	CouplingMap string   `json:"coupling_map"`

	// MaxShots bounds Workload.Shots. Zero means unbounded.
	MaxShots int `json:"max_shots,omitempty"`
}

// Clone returns a copy that shares no memory with c.
func (c Configuration) Clone() Configuration {
	c.BasisGates = slices.Clone(c.BasisGates)
	return c
}

// Properties are device characteristics such as gate error rates or qubit
// frequencies. Values are opaque to the core.
type Properties map[string]any

// Clone returns a shallow copy of p. A nil p yields an empty set.
func (p Properties) Clone() Properties {
	if p == nil {
		return Properties{}
	}
	return maps.Clone(p)
}

// Status is a point-in-time view of a backend.
type Status struct {
	Name        string `json:"name"`
	Operational bool   `json:"operational"`
	PendingJobs int64  `json:"pending_jobs"`
}
