// Package worker drains the prefetch queue, loading each key into the
// registry cache.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/crimemap/internal/adapters/mq/queue"
	"github.com/okian/crimemap/internal/domain/model"
	"github.com/okian/crimemap/internal/domain/registry"
	"github.com/okian/crimemap/pkg/logger"
	"github.com/okian/crimemap/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount  = 2
	poolShutdownTimeout = 30 * time.Second
)

// Loader loads keys through the registry cache.
type Loader interface {
	Load(ctx context.Context, key registry.Key) (*model.Dataset, error)
	Constabularies(ctx context.Context) ([]registry.ConstabularyOption, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// InMemoryWorker warms one job at a time.
type InMemoryWorker struct {
	queue  Queue
	loader Loader
	name   string

	done chan struct{}

	processed *atomic.Int64
	failed    *atomic.Int64

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, loader Loader, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		loader:    loader,
		name:      "worker",
		done:      make(chan struct{}),
		processed: new(atomic.Int64),
		failed:    new(atomic.Int64),
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run processes jobs until the queue closes or ctx is canceled.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Warn(ctx, "prefetch failed", logger.String("key", job.String()), logger.Error(err))
			}
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	var err error
	switch job.Kind {
	case registry.KindIndex:
		_, err = w.loader.Constabularies(ctx)
	default:
		_, err = w.loader.Load(ctx, job)
	}
	if err != nil {
		w.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "prefetch_error")
		return fmt.Errorf("prefetch %s: %w", job.Slug, err)
	}
	w.processed.Add(1)
	w.logger.Debug(ctx, "prefetched", logger.String("key", job.String()))
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	processed atomic.Int64
	failed    atomic.Int64

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers.
func NewPool(workerCount int, q Queue, loader Loader, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Discard(),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("prefetch-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(q, loader, wopts...)
		w.processed = &p.processed
		w.failed = &p.failed
		p.workers[i] = w
	}
	if len(p.workers) > 0 {
		p.logger = p.workers[0].logger
	}
	metrics.UpdateWorkerActiveCount(workerCount)
	return p
}

// Start runs every worker in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Wait blocks until every worker has stopped or ctx ends.
func (p *Pool) Wait(ctx context.Context) error {
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			return fmt.Errorf("worker %d: %w", i, ctx.Err())
		}
	}
	return nil
}

// Stats returns the number of processed and failed jobs.
func (p *Pool) Stats() (processed, failed int64) {
	return p.processed.Load(), p.failed.Load()
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	return p.Wait(shutdownCtx)
}
