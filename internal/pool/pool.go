package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/seantiz/qexec/internal/model"
)

var (
	// ErrPoolClosed is the failure of tasks submitted after Shutdown, or still
	// queued when a Shutdown deadline expired.
	ErrPoolClosed = errors.New("execution pool is closed")

	// ErrCancelled is returned by Future.Wait for cancelled tasks.
	ErrCancelled = errors.New("task cancelled")

	// ErrWaitExpired is returned by Future.Wait when its context ended before
	// the task was terminal.
	ErrWaitExpired = errors.New("wait expired")

	// ErrTaskPanicked wraps a panic recovered from a task.
	ErrTaskPanicked = errors.New("task panicked")
)

// Task is a unit of work run by the pool. The context is cancelled when an
// interruptible task is cancelled or the pool is stopped.
type Task func(ctx context.Context) (model.Result, error)

// Stats is a point-in-time view of the pool's load.
type Stats struct {
	Workers int   `json:"workers"`
	Queued  int64 `json:"queued"`
	Running int64 `json:"running"`
}

// SubmitOption configures a single submission.
type SubmitOption func(*submitConfig)

type submitConfig struct {
	interruptible bool
}

// Interruptible marks the task as cooperating with cancellation: it watches
// its context, so a running task may be cancelled.
func Interruptible() SubmitOption {
	return func(c *submitConfig) { c.interruptible = true }
}

// Pool runs tasks concurrently, at most Workers() at a time. Tasks wait for a
// worker in submission order: a single dispatcher takes them off the queue
// and blocks on the semaphore for each in turn.
type Pool struct {
	workers int
	sem     *semaphore.Weighted
	logger  *slog.Logger

	ctx  context.Context
	stop context.CancelFunc

	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
	queue  []pending
	wg     sync.WaitGroup

	queued  atomic.Int64
	running atomic.Int64
}

// pending is a submitted task waiting for a worker.
type pending struct {
	ctx    context.Context
	cancel context.CancelFunc
	future *Future
	task   Task
}

// New creates a pool with the given worker capacity. A non-positive capacity
// defaults to the number of CPUs.
func New(workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, stop := context.WithCancel(context.Background())
	p := &Pool{
		workers: workers,
		sem:     semaphore.NewWeighted(int64(workers)),
		logger:  logger,
		ctx:     ctx,
		stop:    stop,
	}
	p.cond = sync.NewCond(&p.mu)
	go p.dispatch()
	return p
}

// Workers returns the pool's capacity.
func (p *Pool) Workers() int { return p.workers }

// Stats returns the current queue depth and number of running tasks.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers: p.workers,
		Queued:  p.queued.Load(),
		Running: p.running.Load(),
	}
}

// Submit schedules task and returns its Future immediately. After Shutdown,
// the returned Future is already failed with ErrPoolClosed.
func (p *Pool) Submit(task Task, opts ...SubmitOption) *Future {
	var cfg submitConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		f := newFuture(cfg.interruptible, nil)
		f.reject(ErrPoolClosed)
		tasksRejected.Inc()
		return f
	}

	ctx, cancel := context.WithCancel(p.ctx)
	f := newFuture(cfg.interruptible, cancel)

	p.wg.Add(1)
	p.queue = append(p.queue, pending{ctx: ctx, cancel: cancel, future: f, task: task})
	p.queued.Add(1)
	queuedTasks.Inc()
	p.cond.Signal()
	return f
}

// dispatch admits queued tasks in order. It returns once the pool is closed
// and the queue is empty.
func (p *Pool) dispatch() {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		next := p.queue[0]
		p.queue[0] = pending{}
		p.queue = p.queue[1:]
		p.mu.Unlock()

		// A task cancelled while queued has a done context and never takes
		// a slot.
		err := next.ctx.Err()
		if err == nil {
			err = p.sem.Acquire(next.ctx, 1)
		}
		p.queued.Add(-1)
		queuedTasks.Dec()
		if err != nil {
			// Either the queued task was cancelled (reject is then a no-op) or
			// the pool was stopped underneath it.
			if next.future.reject(ErrPoolClosed) {
				tasksRejected.Inc()
			}
			next.cancel()
			p.wg.Done()
			continue
		}

		go p.run(next)
	}
}

func (p *Pool) run(t pending) {
	defer p.wg.Done()
	defer t.cancel()
	defer p.sem.Release(1)

	if !t.future.start() {
		return
	}

	p.running.Add(1)
	runningTasks.Inc()
	defer func() {
		p.running.Add(-1)
		runningTasks.Dec()
	}()

	res, err := runTask(t.ctx, t.task)
	if err != nil {
		p.logger.Debug("task failed", "error", err)
	}
	t.future.finish(res, err)
}

func runTask(ctx context.Context, task Task) (res model.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return task(ctx)
}

// Shutdown stops accepting submissions and waits for outstanding tasks. If ctx
// ends first, queued tasks fail with ErrPoolClosed, running tasks see their
// context cancelled, and the context error is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		p.cond.Broadcast()
		p.logger.Info("execution pool shutting down", "workers", p.workers)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.stop()
		p.logger.Info("execution pool drained")
		return nil
	case <-ctx.Done():
		p.logger.Warn("execution pool drain timed out, stopping outstanding tasks")
		p.stop()
		return fmt.Errorf("drain execution pool: %w", ctx.Err())
	}
}
