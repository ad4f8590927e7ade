package backend

import (
	"sync/atomic"

	"github.com/seantiz/qexec/internal/job"
)

// Tracker counts a backend's unfinished jobs.
type Tracker struct {
	pending atomic.Int64
}

// Track counts h until it reaches a terminal status.
func (t *Tracker) Track(h *job.Handle) {
	t.pending.Add(1)
	go func() {
		<-h.Finished()
		t.pending.Add(-1)
	}()
}

// Pending returns the number of tracked jobs that have not finished.
func (t *Tracker) Pending() int64 { return t.pending.Load() }
