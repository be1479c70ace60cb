package notify

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryQueue is an in-process Queue with the same one-outstanding-job-per-key rule as
// RedisQueue. Jobs are lost on restart; it backs tests and NOTIFY_QUEUE_DRIVER=memory.
type MemoryQueue struct {
	jobs chan Job

	mu          sync.Mutex
	outstanding map[string]struct{}
	sent        map[string]struct{}
}

// NewMemoryQueue creates a queue buffering up to size jobs.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 100
	}
	return &MemoryQueue{
		jobs:        make(chan Job, size),
		outstanding: make(map[string]struct{}),
		sent:        make(map[string]struct{}),
	}
}

// Push queues job unless its key is outstanding or already delivered.
func (q *MemoryQueue) Push(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.outstanding[job.Key]; ok {
		return ErrDuplicateJob
	}
	if _, ok := q.sent[job.Key]; ok {
		return ErrDuplicateJob
	}

	select {
	case q.jobs <- job:
		q.outstanding[job.Key] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

// Len returns the number of buffered jobs.
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

// Result records one processed job.
type Result struct {
	Job    Job
	Status Status
	Err    error
}

// Drain processes every job buffered at call time and returns the outcomes.
func (q *MemoryQueue) Drain(ctx context.Context, p JobProcessor) []Result {
	var results []Result
	for {
		select {
		case job := <-q.jobs:
			results = append(results, q.run(ctx, p, job))
		default:
			return results
		}
	}
}

// Run consumes jobs until ctx is cancelled. A job already started runs to completion.
// Failed jobs are logged and their key is released so the credit can be enqueued again.
func (q *MemoryQueue) Run(ctx context.Context, p JobProcessor, logger *slog.Logger) {
	logger = logger.With("component", "notify.memory")
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			res := q.run(context.WithoutCancel(ctx), p, job)
			if res.Err != nil {
				logger.Warn("notification failed", "credit_id", job.CreditID, "error", res.Err)
				continue
			}
			logger.Info("notification job finished", "credit_id", job.CreditID, "status", res.Status)
		}
	}
}

func (q *MemoryQueue) run(ctx context.Context, p JobProcessor, job Job) Result {
	status, err := p.Process(ctx, job.CreditID)

	q.mu.Lock()
	delete(q.outstanding, job.Key)
	if err == nil && status == StatusSent {
		q.sent[job.Key] = struct{}{}
	}
	q.mu.Unlock()

	return Result{Job: job, Status: status, Err: err}
}
