package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of background work, typically a receipt generation request.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler executes a single job. A non-nil error triggers a retry.
type Handler func(context.Context, Job) error

// QueueConfig tunes the worker pool. Zero values get sensible defaults.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue dispatches jobs to a fixed pool of goroutine workers over a buffered
// channel. Failed jobs are re-enqueued with linear backoff until MaxRetries
// is exhausted, then dropped with an error log.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	log        *zap.SugaredLogger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewQueue constructs a queue that feeds jobs to handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		log:        cfg.Logger.Sugar(),
		jobs:       make(chan Job, cfg.BufferSize),
	}
}

// Start spins up the worker pool. Subsequent calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.started = true
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.runWorker()
	}
	q.log.Infow("job queue started", "queue", q.name, "workers", q.workers)
}

// Stop signals workers to exit and blocks until they have drained.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.log.Infow("job queue stopped", "queue", q.name)
}

// Enqueue submits a job. It fails if the queue has not been started or has
// already been stopped; it blocks while the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	started := q.started
	ctx := q.ctx
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	}
}

func (q *Queue) runWorker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.handler(q.ctx, job); err != nil {
				q.retry(job, err)
			}
		}
	}
}

// retry re-enqueues a failed job after a delay that grows with the attempt
// count. The wait happens in its own goroutine so workers stay free.
func (q *Queue) retry(job Job, cause error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.log.Errorw("job dropped after max retries",
			"queue", q.name, "job_id", job.ID, "type", job.Type, "attempts", job.Attempt, "error", cause)
		return
	}
	q.log.Warnw("job failed, scheduling retry",
		"queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", cause)

	delay := time.Duration(job.Attempt) * q.retryDelay
	go func(j Job) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.log.Errorw("requeue failed", "queue", q.name, "job_id", j.ID, "error", err)
			}
		}
	}(job)
}
