package model

import "time"

// Status is the lifecycle state of a submitted job.
type Status string

// Job status constants.
const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusCancelled Status = "CANCELLED"
	StatusDone      Status = "DONE"
	StatusError     Status = "ERROR"
)

// validTransitions maps each status to the set of statuses it may transition to.
// Terminal statuses have no entry.
var validTransitions = map[Status]map[Status]bool{
	StatusQueued: {
		StatusRunning:   true,
		StatusCancelled: true,
		StatusError:     true, // rejected by the pool before it started
	},
	StatusRunning: {
		StatusDone:      true,
		StatusError:     true,
		StatusCancelled: true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to Status) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusDone, StatusError:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusCancelled, StatusDone, StatusError:
		return true
	default:
		return false
	}
}

func (s Status) String() string { return string(s) }

// StatusEvent is published each time a job is observed entering a new status.
type StatusEvent struct {
	JobID  string    `json:"job_id"`
	Status Status    `json:"status"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}
