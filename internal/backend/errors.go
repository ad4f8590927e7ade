package backend

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no backend is registered under a name.
var ErrNotFound = errors.New("backend not found")

// SubmissionError is returned synchronously by Run when a workload is
// rejected. No job is created.
type SubmissionError struct {
	Backend string
	Reason  string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit to %s: %s", e.Backend, e.Reason)
}
