package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dandantas/vigil/internal/service"
	"github.com/dandantas/vigil/pkg/middleware"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrPoolStopped is returned by Submit after Stop
var ErrPoolStopped = errors.New("completion pool stopped")

// CompleteFunc completes one lease
type CompleteFunc func(ctx context.Context, taskID, workerID primitive.ObjectID) (bool, error)

// CompletionPool runs lease completions on a fixed set of goroutines so check
// submissions return as soon as the result is stored
type CompletionPool struct {
	workers    int
	jobs       chan Job
	completeFn CompleteFunc
	jobTimeout time.Duration
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	mu      sync.RWMutex
	stopped bool
}

// NewCompletionPool creates a new completion pool
func NewCompletionPool(workers, queueSize int, fn CompleteFunc) *CompletionPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &CompletionPool{
		workers:    workers,
		jobs:       make(chan Job, queueSize),
		completeFn: fn,
		jobTimeout: 10 * time.Second,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the worker goroutines
func (p *CompletionPool) Start() {
	slog.Info("Starting completion pool", "workers", p.workers, "queue_size", cap(p.jobs))

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop rejects new jobs and waits for queued ones to finish
func (p *CompletionPool) Stop() {
	slog.Info("Stopping completion pool", "queued", len(p.jobs))

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()

	slog.Info("Completion pool stopped")
}

// Submit queues a job, blocking while the queue is full until ctx is done
func (p *CompletionPool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.jobs <- job:
		slog.Debug("Completion job queued",
			"task_id", job.TaskID.Hex(),
			"worker_id", job.WorkerID.Hex(),
			"correlation_id", job.CorrelationID,
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify implements service.CompletionNotifier. A job that cannot be queued
// is dropped with a warning; the lease then expires and is purged.
func (p *CompletionPool) Notify(ctx context.Context, taskID, workerID primitive.ObjectID) {
	job := Job{
		TaskID:        taskID,
		WorkerID:      workerID,
		CorrelationID: middleware.GetCorrelationID(ctx),
	}

	if err := p.Submit(ctx, job); err != nil {
		slog.Warn("Dropped lease completion",
			"task_id", taskID.Hex(),
			"worker_id", workerID.Hex(),
			"correlation_id", job.CorrelationID,
			"error", err,
		)
	}
}

// QueueLength returns the number of jobs waiting for a worker
func (p *CompletionPool) QueueLength() int {
	return len(p.jobs)
}

func (p *CompletionPool) worker(id int) {
	defer p.wg.Done()

	slog.Debug("Completion worker started", "worker", id)

	// Jobs outlive the request that queued them, so they run on the pool's
	// context rather than the submitter's.
	for job := range p.jobs {
		ctx, cancel := context.WithTimeout(p.ctx, p.jobTimeout)
		completed, err := p.completeFn(ctx, job.TaskID, job.WorkerID)
		cancel()

		service.LogCompletion(job.TaskID, job.WorkerID, completed, err)
	}

	slog.Debug("Completion worker stopped", "worker", id)
}
