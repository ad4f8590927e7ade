package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/qexec/internal/model"
)

var (
	// ErrCancelled is returned by Result for jobs cancelled before producing a result.
	ErrCancelled = errors.New("job cancelled")

	// ErrInvariantViolation signals task facts that match no defined status.
	// It indicates a logic defect, never a user-facing condition.
	ErrInvariantViolation = errors.New("job status invariant violated")
)

// ExecutionTimeoutError is raised by a backend when a task exceeds its own
// execution budget. The job ends in ERROR.
type ExecutionTimeoutError struct {
	Backend string
	Budget  time.Duration
	Elapsed time.Duration
}

func (e *ExecutionTimeoutError) Error() string {
	return fmt.Sprintf("%s: execution timed out after %v (budget %v)", e.Backend, e.Elapsed, e.Budget)
}

// WaitTimeoutError is returned by Result when the caller's wait expired while
// the job was still running. The job itself is unaffected.
type WaitTimeoutError struct {
	JobID  string
	Status model.Status
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for job %s (status %s)", e.JobID, e.Status)
}

func (e *WaitTimeoutError) Unwrap() error { return context.DeadlineExceeded }
