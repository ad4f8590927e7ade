package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seantiz/qexec/internal/backend"
	"github.com/seantiz/qexec/internal/job"
	"github.com/seantiz/qexec/internal/model"
	"github.com/seantiz/qexec/internal/store"
)

// ErrJobNotFound is returned for ids that have no live handle in the engine.
var ErrJobNotFound = errors.New("job not found")

// Engine submits workloads to backends and follows each job until it is
// terminal. Live jobs are held in memory; once a job is terminal and
// journaled it is evicted and only the store knows about it.
type Engine struct {
	store    store.Store
	registry *backend.Registry
	logger   *slog.Logger
	broker   *StatusBroker
	wg       sync.WaitGroup

	mu   sync.RWMutex
	jobs map[string]*job.Handle
}

// NewEngine creates a new execution engine.
func NewEngine(s store.Store, reg *backend.Registry, logger *slog.Logger) *Engine {
	return &Engine{
		store:    s,
		registry: reg,
		logger:   logger,
		broker:   NewStatusBroker(),
		jobs:     make(map[string]*job.Handle),
	}
}

// Broker returns the engine's status broker for SSE subscription.
func (e *Engine) Broker() *StatusBroker {
	return e.broker
}

// Submit resolves the backend, runs the workload on it and journals the new
// job as QUEUED. It returns as soon as the backend accepted the workload.
// Unknown backends return an error wrapping backend.ErrNotFound; rejected
// workloads return the backend's *backend.SubmissionError.
func (e *Engine) Submit(ctx context.Context, backendName string, w model.Workload) (*job.Handle, error) {
	b, err := e.registry.GetBackend(backendName)
	if err != nil {
		return nil, err
	}

	h, err := b.Run(ctx, w)
	if err != nil {
		jobsRejected.WithLabelValues(b.Name()).Inc()
		return nil, err
	}
	jobsSubmitted.WithLabelValues(h.Backend()).Inc()

	rec := &model.JobRecord{
		ID:        h.ID(),
		Backend:   h.Backend(),
		Name:      w.Name,
		Status:    model.StatusQueued,
		Shots:     w.Shots,
		TimeoutMS: w.Timeout.Milliseconds(),
		WaitMS:    w.Wait.Milliseconds(),
		CreatedAt: h.SubmittedAt(),
	}
	// The job is already scheduled; a journal failure must not orphan it.
	if err := e.store.CreateJob(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.Error("failed to journal job", "job_id", h.ID(), "backend", h.Backend(), "error", err)
	}

	e.mu.Lock()
	e.jobs[h.ID()] = h
	e.mu.Unlock()

	e.publish(h.ID(), model.StatusQueued, "")
	e.logger.Info("job submitted", "job_id", h.ID(), "backend", h.Backend(), "shots", w.Shots)

	e.wg.Go(func() {
		e.watch(h)
	})
	return h, nil
}

// Job returns the live handle for id. Jobs that already finished are only
// available from the store.
func (e *Engine) Job(id string) (*job.Handle, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	h, ok := e.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return h, nil
}

// Cancel requests cancellation of a live job and reports whether it is (or
// will be) cancelled.
func (e *Engine) Cancel(id string) (bool, error) {
	h, err := e.Job(id)
	if err != nil {
		return false, err
	}
	ok := h.Cancel()
	e.logger.Info("job cancel requested", "job_id", id, "backend", h.Backend(), "cancelled", ok)
	return ok, nil
}

// Live returns the number of jobs that have not been evicted yet.
func (e *Engine) Live() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.jobs)
}

// Wait blocks until every submitted job has finished and been journaled.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// watch follows one job: it journals RUNNING if the job started, then the
// terminal outcome, and publishes each status. Jobs that finish without
// starting (cancelled or rejected while queued) go straight to their terminal
// status.
func (e *Engine) watch(h *job.Handle) {
	id := h.ID()

	select {
	case <-h.Started():
	case <-h.Finished():
	}

	var startedAt *time.Time
	select {
	case <-h.Started():
		now := time.Now().UTC()
		startedAt = &now
		if err := e.store.UpdateJobStatus(context.Background(), id, model.StatusRunning); err != nil {
			e.logger.Error("failed to journal running job", "job_id", id, "error", err)
		}
		e.publish(id, model.StatusRunning, "")
	default:
	}

	<-h.Finished()
	finishedAt := time.Now().UTC()
	status := h.Status()

	rec := &model.JobRecord{
		ID:         id,
		Status:     status,
		StartedAt:  startedAt,
		FinishedAt: &finishedAt,
	}
	if startedAt != nil {
		d := finishedAt.Sub(*startedAt)
		ms := d.Milliseconds()
		rec.DurationMS = &ms
		jobDuration.WithLabelValues(h.Backend()).Observe(d.Seconds())
	}

	switch status {
	case model.StatusDone:
		res, err := h.Result(context.Background())
		if err != nil {
			e.logger.Error("done job returned an error", "job_id", id, "error", err)
		}
		rec.Result = &res
	case model.StatusError:
		if err := h.Err(); err != nil {
			rec.Error = err.Error()
		}
	}

	if err := e.store.FinishJob(context.Background(), rec); err != nil {
		e.logger.Error("failed to journal finished job", "job_id", id, "status", status, "error", err)
	}

	jobsFinished.WithLabelValues(h.Backend(), string(status)).Inc()
	e.publish(id, status, rec.Error)

	level := slog.LevelInfo
	if status == model.StatusError {
		level = slog.LevelWarn
	}
	e.logger.Log(context.Background(), level, "job finished",
		"job_id", id,
		"backend", h.Backend(),
		"status", status,
		"error", rec.Error,
	)

	e.broker.Close(id)
	e.mu.Lock()
	delete(e.jobs, id)
	e.mu.Unlock()
	e.broker.Forget(id)
}

func (e *Engine) publish(id string, status model.Status, errMsg string) {
	e.broker.Publish(model.StatusEvent{
		JobID:  id,
		Status: status,
		Error:  errMsg,
		At:     time.Now().UTC(),
	})
}
