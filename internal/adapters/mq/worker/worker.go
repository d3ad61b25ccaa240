// Package worker runs queued jobs on a fixed pool of goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Handler processes one job.
type Handler[T any] func(ctx context.Context, job T) error

// Queue defines how workers receive jobs.
type Queue[T any] interface {
	Dequeue(ctx context.Context) <-chan T
}

// Worker pulls jobs off a queue and hands them to a Handler.
type Worker[T any] struct {
	queue  Queue[T]
	handle Handler[T]
	name   string
	metric string

	shutdown chan struct{}
	done     chan struct{}

	processed *atomic.Int64
	logger    logger.Logger
}

// NewWorker creates a worker with configuration options.
func NewWorker[T any](q Queue[T], h Handler[T], opts ...Option) *Worker[T] {
	s := apply("worker", opts)
	return &Worker[T]{
		queue:     q,
		handle:    h,
		name:      s.name,
		metric:    s.name,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		processed: new(atomic.Int64),
		logger:    s.logger,
	}
}

// Run processes jobs until the queue is drained and closed, Shutdown is
// called, or ctx is done.
func (w *Worker[T]) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

func (w *Worker[T]) signal() {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
}

// Shutdown stops the worker after its current job.
func (w *Worker[T]) Shutdown(ctx context.Context) error {
	w.signal()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *Worker[T]) process(ctx context.Context, job T) {
	start := time.Now()
	err := w.handle(ctx, job)
	ms := float64(time.Since(start).Milliseconds())
	w.processed.Add(1)
	if err != nil {
		metrics.RecordJob(w.metric, "error", ms)
		metrics.RecordErrorByComponent(w.metric, "job_failed")
		w.logger.Error(ctx, "job failed", logger.Error(err))
		return
	}
	metrics.RecordJob(w.metric, "ok", ms)
}

// Pool manages multiple workers sharing one queue.
type Pool[T any] struct {
	workers   []*Worker[T]
	queue     Queue[T]
	processed *atomic.Int64
	started   atomic.Bool
	logger    logger.Logger
}

// NewPool creates a pool of workerCount workers; non-positive means a
// multiple of the CPU count.
func NewPool[T any](workerCount int, q Queue[T], h Handler[T], opts ...Option) *Pool[T] {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	s := apply("worker-pool", opts)

	p := &Pool[T]{
		workers:   make([]*Worker[T], workerCount),
		queue:     q,
		processed: new(atomic.Int64),
		logger:    s.logger,
	}
	for i := range workerCount {
		w := NewWorker(q, h, WithName(s.name+"-"+strconv.Itoa(i)), WithLogger(s.logger))
		w.metric = s.name
		w.processed = p.processed
		p.workers[i] = w
	}
	return p
}

// Size returns the number of workers.
func (p *Pool[T]) Size() int { return len(p.workers) }

// Processed returns the number of jobs handled so far, failed ones included.
func (p *Pool[T]) Processed() int64 { return p.processed.Load() }

// Start starts all workers.
func (p *Pool[T]) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, lets the workers drain it, and forces them to
// stop if ctx or the pool timeout expires first.
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	if !p.started.Load() {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			w.signal()
		}
	}
	if timedOut {
		return fmt.Errorf("pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
