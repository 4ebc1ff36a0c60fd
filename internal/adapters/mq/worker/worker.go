// Package worker runs remote analyses on a fixed pool of goroutines so the
// number of concurrent calls to the vision service stays bounded.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/framerank/internal/adapters/mq/queue"
	"github.com/okian/framerank/internal/adapters/remote"
	"github.com/okian/framerank/internal/domain/model"
	"github.com/okian/framerank/pkg/logger"
	"github.com/okian/framerank/pkg/metrics"
)

// Default worker configuration constants.
const (
	DefaultWorkers      = 4
	poolShutdownTimeout = 30 * time.Second
)

// Sentinel errors.
var (
	ErrBusy    = errors.New("remote queue full")
	ErrStopped = errors.New("worker pool stopped")
)

// Analyzer is the remote call the workers run.
type Analyzer interface {
	Analyze(ctx context.Context, img remote.Image) (remote.Analysis, error)
}

// InMemoryWorker takes jobs off the queue one at a time.
type InMemoryWorker struct {
	queue    queue.Queue
	analyzer Analyzer
	name     string
	done     chan struct{}
	logger   logger.Logger
}

func newWorker(q queue.Queue, a Analyzer, name string, l logger.Logger) *InMemoryWorker {
	return &InMemoryWorker{
		queue:    q,
		analyzer: a,
		name:     name,
		done:     make(chan struct{}),
		logger:   l.Named(name),
	}
}

// Run processes jobs until the queue is closed and drained, or ctx ends.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.process(j)
		}
	}
}

func (w *InMemoryWorker) process(j queue.Job) {
	metrics.RecordQueueWait(time.Since(j.Enqueued))
	metrics.UpdateQueueSize(w.queue.Len(j.Ctx))

	if err := j.Ctx.Err(); err != nil {
		w.logger.Debug(j.Ctx, "caller gone before job started", logger.Error(err))
		j.Reply <- queue.Reply{Err: model.WrapError(model.CodeAIError, "AI analysis timed out", err)}
		return
	}

	metrics.AddWorkersBusy(1)
	defer metrics.AddWorkersBusy(-1)

	a, err := w.analyzer.Analyze(j.Ctx, j.Image)
	j.Reply <- queue.Reply{Analysis: a, Err: err}
}

// Pool manages multiple workers and exposes them as a single Analyzer.
type Pool struct {
	workers  []*InMemoryWorker
	queue    queue.Queue
	analyzer Analyzer

	mu      sync.Mutex
	started bool
	stopped bool

	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, q queue.Queue, a Analyzer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = DefaultWorkers
	}
	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		analyzer: a,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("worker-pool")
	for i := range p.workers {
		p.workers[i] = newWorker(q, a, "worker-"+strconv.Itoa(i), p.logger)
	}
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Analyze queues img for the next free worker and waits for its reply. A
// full queue is reported as RATE_LIMIT so clients back off.
func (p *Pool) Analyze(ctx context.Context, img remote.Image) (remote.Analysis, error) {
	reply := make(chan queue.Reply, 1)
	if !p.queue.Enqueue(ctx, queue.Job{Ctx: ctx, Image: img, Enqueued: time.Now(), Reply: reply}) {
		switch {
		case ctx.Err() != nil:
			return remote.Analysis{}, model.WrapError(model.CodeAIError, "AI analysis timed out", ctx.Err())
		case p.queue.IsClosed():
			return remote.Analysis{}, model.WrapError(model.CodeAIError, "Remote analysis is shutting down", ErrStopped)
		default:
			p.logger.Warn(ctx, "remote queue full", logger.Int("queued", p.queue.Len(ctx)))
			return remote.Analysis{}, model.WrapError(model.CodeRateLimit, "Analysis service is busy. Please try again in a moment.", ErrBusy)
		}
	}

	select {
	case r := <-reply:
		return r.Analysis, r.Err
	case <-ctx.Done():
		return remote.Analysis{}, model.WrapError(model.CodeAIError, "AI analysis timed out", ctx.Err())
	}
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}
	if !started {
		return nil
	}

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("shutdown timed out: %w", ctx.Err())
		}
	}
	p.logger.Info(ctx, "worker pool stopped")
	return nil
}

// Close shuts the pool down with the default timeout.
func (p *Pool) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), poolShutdownTimeout)
	defer cancel()
	return p.Shutdown(ctx)
}
