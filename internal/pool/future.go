package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/seantiz/qexec/internal/model"
)

type state uint8

const (
	stateQueued state = iota
	stateRunning
	stateCancelled
	stateFinished
	stateFailed
)

// Facts is a consistent snapshot of a task's disposition. All four fields are
// read under the same lock, so they never disagree with each other.
type Facts struct {
	Running   bool
	Done      bool
	Cancelled bool
	Failed    bool
}

func factsFor(s state) Facts {
	switch s {
	case stateRunning:
		return Facts{Running: true}
	case stateCancelled:
		return Facts{Done: true, Cancelled: true}
	case stateFinished:
		return Facts{Done: true}
	case stateFailed:
		return Facts{Done: true, Failed: true}
	default:
		return Facts{}
	}
}

// Future is the pool-side handle of one submitted task. It is safe for
// concurrent use.
type Future struct {
	interruptible bool

	mu     sync.Mutex
	state  state
	result model.Result
	err    error
	cancel context.CancelFunc

	started  chan struct{}
	finished chan struct{}
}

func newFuture(interruptible bool, cancel context.CancelFunc) *Future {
	return &Future{
		interruptible: interruptible,
		cancel:        cancel,
		started:       make(chan struct{}),
		finished:      make(chan struct{}),
	}
}

// Facts returns the current disposition of the task.
func (f *Future) Facts() Facts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return factsFor(f.state)
}

// Running reports whether the task is executing on a worker.
func (f *Future) Running() bool { return f.Facts().Running }

// Done reports whether the task reached a terminal disposition (finished,
// failed or cancelled).
func (f *Future) Done() bool { return f.Facts().Done }

// Cancelled reports whether the task was cancelled before producing a result.
func (f *Future) Cancelled() bool { return f.Facts().Cancelled }

// Err returns the failure raised by the task, or nil if the task has not
// failed (yet). It never blocks.
func (f *Future) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == stateFailed {
		return f.err
	}
	return nil
}

// Started is closed when a worker begins executing the task. It is never
// closed for tasks cancelled or rejected while queued.
func (f *Future) Started() <-chan struct{} { return f.started }

// Finished is closed once the task reaches a terminal disposition.
func (f *Future) Finished() <-chan struct{} { return f.finished }

// Cancel requests cancellation and reports whether the task is (or will be)
// cancelled before producing a result. Queued tasks are always cancelled.
// Running tasks are cancelled only when submitted as Interruptible; their
// context is cancelled and any late result is discarded. Cancelling an
// already cancelled task returns true again; finished or failed tasks return
// false.
func (f *Future) Cancel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case stateQueued:
	case stateRunning:
		if !f.interruptible {
			return false
		}
	case stateCancelled:
		return true
	default:
		return false
	}

	f.state = stateCancelled
	if f.cancel != nil {
		f.cancel()
	}
	close(f.finished)
	return true
}

// Wait blocks until the task is terminal or ctx is done. It returns the task's
// result, the task's own error, ErrCancelled, or an error wrapping both
// ErrWaitExpired and ctx.Err() when the wait expired first. An expired wait
// does not affect the task.
func (f *Future) Wait(ctx context.Context) (model.Result, error) {
	select {
	case <-f.finished:
	case <-ctx.Done():
		select {
		case <-f.finished:
		default:
			return model.Result{}, fmt.Errorf("%w: %w", ErrWaitExpired, ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case stateFinished:
		return f.result, nil
	case stateFailed:
		return model.Result{}, f.err
	case stateCancelled:
		return model.Result{}, ErrCancelled
	default:
		return model.Result{}, fmt.Errorf("future closed in non-terminal state %d", f.state)
	}
}

// start moves a queued task to running. It reports false if the task was
// cancelled while waiting for a worker.
func (f *Future) start() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != stateQueued {
		return false
	}
	f.state = stateRunning
	close(f.started)
	return true
}

// finish records the task outcome unless the task was cancelled meanwhile.
func (f *Future) finish(res model.Result, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != stateRunning {
		return
	}
	if err != nil {
		f.state = stateFailed
		f.err = err
	} else {
		f.state = stateFinished
		f.result = res
	}
	close(f.finished)
}

// reject fails a task that never started. No-op once the task left the queue.
func (f *Future) reject(err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != stateQueued {
		return false
	}
	f.state = stateFailed
	f.err = err
	close(f.finished)
	return true
}
