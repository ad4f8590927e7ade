// Package local provides a backend that runs workloads in-process through a
// pluggable Executor, bounded by each workload's timeout.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/seantiz/qexec/internal/backend"
	"github.com/seantiz/qexec/internal/job"
	"github.com/seantiz/qexec/internal/model"
	"github.com/seantiz/qexec/internal/pool"
)

// DefaultName is the canonical name of a local backend built with the
// NullExecutor.
const DefaultName = "local_null_simulator"

// Executor runs one workload. Implementations must return promptly once ctx
// is done.
type Executor interface {
	Execute(ctx context.Context, w model.Workload) ([]model.Outcome, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, w model.Workload) ([]model.Outcome, error)

func (f ExecutorFunc) Execute(ctx context.Context, w model.Workload) ([]model.Outcome, error) {
	return f(ctx, w)
}

// NullExecutor produces a single empty outcome per run.
type NullExecutor struct{}

func (NullExecutor) Execute(ctx context.Context, w model.Workload) ([]model.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []model.Outcome{{Name: w.Name, Shots: w.Shots, Counts: map[string]int{}}}, nil
}

// Option configures a Backend.
type Option func(*Backend)

// WithConfiguration replaces the default configuration.
func WithConfiguration(cfg backend.Configuration) Option {
	return func(b *Backend) { b.cfg = cfg.Clone() }
}

// WithProperties sets the calibration and parameters reported by a backend
// standing in for a device. Simulators leave both empty.
func WithProperties(calibration, parameters backend.Properties) Option {
	return func(b *Backend) {
		b.calibration = calibration.Clone()
		b.parameters = parameters.Clone()
	}
}

// DefaultConfiguration returns the descriptor used when none is supplied.
func DefaultConfiguration() backend.Configuration {
	return backend.Configuration{
		Name:        DefaultName,
		Description: "In-process executor that returns empty outcomes",
		URL:         "https://github.com/seantiz/qexec",
		Simulator:   true,
		Local:       true,
		BasisGates:  []string{"u1", "u2", "u3", "cx", "id"},
		CouplingMap: "all-to-all",
		MaxShots:    65536,
	}
}

// Backend runs workloads through an Executor. Its jobs are interruptible:
// cancelling a running job cancels the executor's context.
type Backend struct {
	cfg         backend.Configuration
	calibration backend.Properties
	parameters  backend.Properties
	exec        Executor
	pool        *pool.Pool
	logger      *slog.Logger
	tracker     backend.Tracker
}

// Compile-time interface satisfaction check.
var _ backend.Backend = (*Backend)(nil)

// New creates a local backend that runs exec on p.
func New(p *pool.Pool, exec Executor, logger *slog.Logger, opts ...Option) *Backend {
	b := &Backend{
		cfg:    DefaultConfiguration(),
		exec:   exec,
		pool:   p,
		logger: logger,
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
		Operational: b.exec != nil,
		PendingJobs: b.tracker.Pending(),
	}
}

func (b *Backend) Calibration() backend.Properties { return b.calibration.Clone() }

func (b *Backend) Parameters() backend.Properties { return b.parameters.Clone() }

// Run validates w and schedules it on the pool.
func (b *Backend) Run(ctx context.Context, w model.Workload) (*job.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run on %s: %w", b.cfg.Name, err)
	}
	if b.exec == nil {
		return nil, &backend.SubmissionError{Backend: b.cfg.Name, Reason: "no executor configured"}
	}
	if err := backend.Validate(b.cfg, w); err != nil {
		return nil, err
	}

	h := job.Submit(b.pool, b.cfg.Name, w, b.task(w), pool.Interruptible())
	b.tracker.Track(h)
	b.logger.Debug("job submitted",
		"job_id", h.ID(),
		"backend", b.cfg.Name,
		"shots", w.Shots,
		"timeout", w.Timeout,
	)
	return h, nil
}

func (b *Backend) task(w model.Workload) pool.Task {
	return func(ctx context.Context) (model.Result, error) {
		ctx, cancel := context.WithTimeout(ctx, w.Timeout)
		defer cancel()

		start := time.Now()
		data, err := b.exec.Execute(ctx, w)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return model.Result{}, &job.ExecutionTimeoutError{
				Backend: b.cfg.Name,
				Budget:  w.Timeout,
				Elapsed: time.Since(start),
			}
		}
		if err != nil {
			return model.Result{}, fmt.Errorf("execute on %s: %w", b.cfg.Name, err)
		}
		if data == nil {
			data = []model.Outcome{}
		}
		return model.Result{
			JobID:  uuid.NewString(),
			Data:   data,
			Status: model.ResultCompleted,
		}, nil
	}
}
