package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/credittrack/credittrack/internal/metrics"
)

// DefaultEnqueueTimeout bounds how long a request may wait on the queue.
const DefaultEnqueueTimeout = 2 * time.Second

// Dispatcher is the producer side: it turns a credit ID into a queued Job.
type Dispatcher struct {
	queue   Queue
	logger  *slog.Logger
	metrics metrics.Recorder
	timeout time.Duration
	now     func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(queue Queue, logger *slog.Logger, recorder metrics.Recorder) *Dispatcher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Dispatcher{
		queue:   queue,
		logger:  logger.With("component", "notify.dispatcher"),
		metrics: recorder,
		timeout: DefaultEnqueueTimeout,
		now:     time.Now,
	}
}

// SetTimeout overrides the enqueue timeout.
func (d *Dispatcher) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.timeout = timeout
	}
}

// Enqueue queues the notification for creditID. A job already outstanding or delivered
// for the same credit is not an error: it is counted as a duplicate and nothing is queued.
func (d *Dispatcher) Enqueue(ctx context.Context, creditID int64) error {
	job := NewJob(creditID, d.now())

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.queue.Push(ctx, job)
	switch {
	case err == nil:
		d.metrics.IncNotificationEnqueued(metrics.EnqueueQueued)
		d.logger.Debug("notification queued", "job_id", job.ID, "job_key", job.Key)
		return nil
	case errors.Is(err, ErrDuplicateJob):
		d.metrics.IncNotificationEnqueued(metrics.EnqueueDuplicate)
		d.logger.Debug("notification already queued", "job_key", job.Key)
		return nil
	default:
		d.metrics.IncNotificationEnqueued(metrics.EnqueueFailed)
		return fmt.Errorf("enqueue %s: %w", job.Key, err)
	}
}
