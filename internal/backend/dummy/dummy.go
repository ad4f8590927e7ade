// Package dummy provides a deterministic simulator backend for exercising the
// job lifecycle: it sleeps in fixed increments for a configurable lifetime
// and fails once the workload's own timeout is used up.
package dummy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/seantiz/qexec/internal/backend"
	"github.com/seantiz/qexec/internal/job"
	"github.com/seantiz/qexec/internal/model"
	"github.com/seantiz/qexec/internal/pool"
)

const (
	// Name is the canonical name of the dummy backend.
	Name = "local_dummy_simulator"

	// DefaultTimeAlive is how long a job runs when no lifetime is configured.
	DefaultTimeAlive = 10 * time.Second
)

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option configures a Backend.
type Option func(*Backend)

// WithTimeAlive sets how long each job runs before completing.
func WithTimeAlive(d time.Duration) Option {
	return func(b *Backend) { b.timeAlive = d }
}

// WithConfiguration replaces the default configuration.
func WithConfiguration(cfg backend.Configuration) Option {
	return func(b *Backend) { b.cfg = cfg.Clone() }
}

// WithSleeper replaces the wall-clock sleeper, e.g. to run lifetimes
// instantly in tests.
func WithSleeper(s Sleeper) Option {
	return func(b *Backend) { b.sleep = s }
}

// DefaultConfiguration returns the descriptor used when none is supplied.
func DefaultConfiguration() backend.Configuration {
	return backend.Configuration{
		Name:        Name,
		Description: "A dummy simulator for testing purposes",
		URL:         "https://github.com/seantiz/qexec",
		Simulator:   true,
		Local:       true,
		BasisGates:  []string{"u1", "u2", "u3", "cx", "id"},
		CouplingMap: "all-to-all",
	}
}

// Backend is the dummy simulator. Its jobs do not watch for cancellation, so
// only queued jobs can be cancelled.
type Backend struct {
	cfg       backend.Configuration
	timeAlive time.Duration
	sleep     Sleeper
	pool      *pool.Pool
	logger    *slog.Logger
	tracker   backend.Tracker
}

// Compile-time interface satisfaction check.
var _ backend.Backend = (*Backend)(nil)

// New creates a dummy backend that runs its jobs on p.
func New(p *pool.Pool, logger *slog.Logger, opts ...Option) *Backend {
	b := &Backend{
		cfg:       DefaultConfiguration(),
		timeAlive: DefaultTimeAlive,
		sleep:     sleepContext,
		pool:      p,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Name() string { return b.cfg.Name }

func (b *Backend) Configuration() backend.Configuration { return b.cfg.Clone() }

func (b *Backend) Status() backend.Status {
	return backend.Status{
		Name:        b.cfg.Name,
		Operational: true,
		PendingJobs: b.tracker.Pending(),
	}
}

// Calibration is always empty for the simulator.
func (b *Backend) Calibration() backend.Properties { return backend.Properties{} }

// Parameters is always empty for the simulator.
func (b *Backend) Parameters() backend.Properties { return backend.Properties{} }

// Run validates w and schedules it. The returned handle is QUEUED or RUNNING.
func (b *Backend) Run(ctx context.Context, w model.Workload) (*job.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run on %s: %w", b.cfg.Name, err)
	}
	if err := backend.Validate(b.cfg, w); err != nil {
		return nil, err
	}

	h := job.Submit(b.pool, b.cfg.Name, w, b.task(w))
	b.tracker.Track(h)
	b.logger.Debug("job submitted",
		"job_id", h.ID(),
		"backend", b.cfg.Name,
		"shots", w.Shots,
		"timeout", w.Timeout,
		"time_alive", b.timeAlive,
	)
	return h, nil
}

// task sleeps in steps of w.Wait until the backend lifetime has passed. Each
// step counts against w.Timeout; reaching it fails the job.
func (b *Backend) task(w model.Workload) pool.Task {
	return func(ctx context.Context) (model.Result, error) {
		var elapsed time.Duration
		for elapsed <= b.timeAlive {
			if err := b.sleep(ctx, w.Wait); err != nil {
				return model.Result{}, err
			}
			elapsed += w.Wait
			if elapsed >= w.Timeout {
				return model.Result{}, &job.ExecutionTimeoutError{
					Backend: b.cfg.Name,
					Budget:  w.Timeout,
					Elapsed: elapsed,
				}
			}
		}
		return model.Result{
			JobID:  uuid.NewString(),
			Data:   []model.Outcome{},
			Status: model.ResultCompleted,
		}, nil
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
