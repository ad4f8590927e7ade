package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/qexec/internal/model"
	"github.com/seantiz/qexec/internal/pool"
)

// Job is the contract every job handle satisfies.
type Job interface {
	// ID returns the identifier assigned at submission.
	ID() string

	// Status derives the current status. It never blocks.
	Status() model.Status

	// Result blocks until the job is terminal or ctx is done.
	Result(ctx context.Context) (model.Result, error)

	// Cancel requests cancellation and reports whether the job is (or will
	// be) cancelled before producing a result.
	Cancel() bool

	Running() bool
	Done() bool
	Cancelled() bool
}

// Compile-time interface satisfaction check.
var _ Job = (*Handle)(nil)

// Handle is the shared Job implementation. It exclusively owns one pool task.
type Handle struct {
	id          string
	backend     string
	workload    model.Workload
	submittedAt time.Time
	future      *pool.Future
}

// Submit assigns a new job id, schedules task on p and returns the handle
// without waiting for the task to start.
func Submit(p *pool.Pool, backend string, w model.Workload, task pool.Task, opts ...pool.SubmitOption) *Handle {
	return &Handle{
		id:          model.NewID(),
		backend:     backend,
		workload:    w.Clone(),
		submittedAt: time.Now().UTC(),
		future:      p.Submit(task, opts...),
	}
}

// ID returns the job identifier.
func (h *Handle) ID() string { return h.id }

// Backend returns the name of the backend that spawned the job.
func (h *Handle) Backend() string { return h.backend }

// Workload returns a copy of the submitted workload.
func (h *Handle) Workload() model.Workload { return h.workload.Clone() }

// SubmittedAt returns the submission time.
func (h *Handle) SubmittedAt() time.Time { return h.submittedAt }

// Status derives the job status from the task's current facts. It panics
// with ErrInvariantViolation if the facts match no status.
func (h *Handle) Status() model.Status {
	s, err := DeriveStatus(h.future.Facts())
	if err != nil {
		panic(fmt.Errorf("job %s: %w", h.id, err))
	}
	return s
}

// Running reports whether the job is executing.
func (h *Handle) Running() bool { return h.future.Running() }

// Done reports whether the job is terminal (done, failed or cancelled).
func (h *Handle) Done() bool { return h.future.Done() }

// Cancelled reports whether the job was cancelled.
func (h *Handle) Cancelled() bool { return h.future.Cancelled() }

// Cancel requests cancellation. Repeated calls return the same value.
func (h *Handle) Cancel() bool { return h.future.Cancel() }

// Err returns the job's failure without blocking, or nil.
func (h *Handle) Err() error { return h.future.Err() }

// Started is closed when the job starts running.
func (h *Handle) Started() <-chan struct{} { return h.future.Started() }

// Finished is closed when the job reaches a terminal status.
func (h *Handle) Finished() <-chan struct{} { return h.future.Finished() }

// Result waits for the job. A failed job returns its original error wrapped
// with the job id; a cancelled job returns ErrCancelled; an expired wait
// returns *WaitTimeoutError and leaves the job running.
func (h *Handle) Result(ctx context.Context) (model.Result, error) {
	res, err := h.future.Wait(ctx)
	switch {
	case err == nil:
		return res.Clone(), nil
	case errors.Is(err, pool.ErrCancelled):
		return model.Result{}, fmt.Errorf("job %s: %w", h.id, ErrCancelled)
	case errors.Is(err, pool.ErrWaitExpired):
		if errors.Is(err, context.DeadlineExceeded) {
			return model.Result{}, &WaitTimeoutError{JobID: h.id, Status: h.Status()}
		}
		return model.Result{}, fmt.Errorf("wait for job %s: %w", h.id, ctx.Err())
	default:
		return model.Result{}, fmt.Errorf("job %s: %w", h.id, err)
	}
}

// Await is Result bounded by timeout. A non-positive timeout waits until the
// job is terminal.
func Await(j Job, timeout time.Duration) (model.Result, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return j.Result(ctx)
}
