// Package pipeline runs pages through the reflow transform: a bounded worker
// pool shared by batch and watch mode, the per-page processor that ties
// ingest, transform, chunking, and output together, and the two entry points
// that drive it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/jackzampolin/reflow/internal/ingest"
)

// ErrQueueFull is returned by Submit when the page queue has no room.
var ErrQueueFull = errors.New("page queue full")

// PageTask is one page's worth of work.
type PageTask struct {
	ID    string // correlates log lines across the task's lifetime
	Files ingest.PageFiles
}

// NewPageTask wraps a discovered page with a fresh task id.
func NewPageTask(files ingest.PageFiles) PageTask {
	return PageTask{ID: uuid.New().String(), Files: files}
}

// Handler processes one page task. Implementations must be safe for
// concurrent use.
type Handler func(ctx context.Context, task PageTask) PageOutcome

// Pool fans page tasks out to a fixed set of workers. All workers pull from
// a single shared queue; load balancing falls out of channel semantics.
type Pool struct {
	logger      *slog.Logger
	workerCount int
	queueSize   int

	queue   chan PageTask
	results chan PageOutcome

	handler Handler

	inFlight atomic.Int32
}

// PoolConfig configures a new page pool.
type PoolConfig struct {
	Logger      *slog.Logger
	WorkerCount int // worker goroutines (default 1)
	QueueSize   int // pending page buffer (default 64)
	Handler     Handler
}

// NewPool creates a page worker pool.
func NewPool(cfg PoolConfig) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	return &Pool{
		logger:      logger.With("pool", "pages", "workers", workerCount),
		workerCount: workerCount,
		queueSize:   queueSize,
		queue:       make(chan PageTask, queueSize),
		results:     make(chan PageOutcome, queueSize),
		handler:     cfg.Handler,
	}
}

// Start launches the workers and blocks until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(ctx, i)
	}
	<-ctx.Done()
	p.logger.Debug("pool stopping")
}

// worker processes tasks from the shared queue.
func (p *Pool) worker(ctx context.Context, id int) {
	p.logger.Debug("worker started", "worker_id", id)
	for {
		select {
		case <-ctx.Done():
			return

		case task := <-p.queue:
			p.inFlight.Add(1)
			outcome := p.handler(ctx, task)
			p.inFlight.Add(-1)
			select {
			case p.results <- outcome:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Submit queues a page without blocking.
func (p *Pool) Submit(task PageTask) error {
	select {
	case p.queue <- task:
		p.logger.Debug("queued page", "task_id", task.ID, "page_id", task.Files.PageID, "queue_len", len(p.queue))
		return nil
	default:
		p.logger.Warn("page queue full", "page_id", task.Files.PageID)
		return fmt.Errorf("%w: %s", ErrQueueFull, task.Files.PageID)
	}
}

// Results returns the channel completed pages arrive on.
func (p *Pool) Results() <-chan PageOutcome { return p.results }

// PoolStatus is a snapshot of pool load.
type PoolStatus struct {
	Workers    int `json:"workers"`
	InFlight   int `json:"in_flight"`
	QueueDepth int `json:"queue_depth"`
}

// Status returns current pool load.
func (p *Pool) Status() PoolStatus {
	return PoolStatus{
		Workers:    p.workerCount,
		InFlight:   int(p.inFlight.Load()),
		QueueDepth: len(p.queue),
	}
}
