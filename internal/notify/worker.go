package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/credittrack/credittrack/internal/metrics"
)

const (
	// DefaultBatchSize is the max jobs read per XREADGROUP call.
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for messages.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMaxDeliveries is how many deliveries a job gets before it is dead-lettered.
	DefaultMaxDeliveries = 5

	// DefaultClaimIdle is the idle time before a pending job is reclaimed.
	DefaultClaimIdle = time.Minute

	// reclaimBatch caps how many pending entries one sweep inspects.
	reclaimBatch = 100
)

// Worker consumes notification jobs from a RedisQueue.
//
// A job is acknowledged whenever processing returns a nil error. On error it stays in the
// group's pending list; Reclaim redelivers it after it has been idle long enough and
// dead-letters it once it has been delivered maxDeliveries times.
type Worker struct {
	redis         *redis.Client
	queue         *RedisQueue
	processor     JobProcessor
	logger        *slog.Logger
	metrics       metrics.Recorder
	consumerID    string
	batchSize     int
	blockTimeout  time.Duration
	maxDeliveries int64
	claimIdle     time.Duration

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewWorker creates a new notification worker.
func NewWorker(client *redis.Client, queue *RedisQueue, processor JobProcessor, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		redis:         client,
		queue:         queue,
		processor:     processor,
		logger:        logger.With("component", "notify.worker", "consumer_id", consumerID),
		metrics:       recorder,
		consumerID:    consumerID,
		batchSize:     DefaultBatchSize,
		blockTimeout:  DefaultBlockTimeout,
		maxDeliveries: DefaultMaxDeliveries,
		claimIdle:     DefaultClaimIdle,
	}
}

// SetBatchSize overrides the default batch size.
func (w *Worker) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// SetBlockTimeout overrides the default blocking timeout.
func (w *Worker) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.blockTimeout = timeout
	}
}

// SetMaxDeliveries overrides how many deliveries a job gets before dead-lettering.
func (w *Worker) SetMaxDeliveries(n int64) {
	if n > 0 {
		w.maxDeliveries = n
	}
}

// SetClaimIdle overrides the pending idle threshold used by Reclaim.
func (w *Worker) SetClaimIdle(idle time.Duration) {
	if idle > 0 {
		w.claimIdle = idle
	}
}

// Run starts the worker loop. Blocks until context is cancelled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	if err := w.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("notification worker started", "stream", w.queue.Stream(), "group", w.queue.Group())

	for {
		w.mu.Lock()
		draining := w.draining
		w.mu.Unlock()

		if draining {
			w.logger.Info("notification worker draining, stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Info("notification worker stopping")
			return nil
		default:
			if err := w.processOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

// Shutdown gracefully stops the worker, completing the in-flight job.
// It implements server.ShutdownFunc for integration with graceful shutdown.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.draining = true
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	w.logger.Info("notification worker shutdown initiated")

	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
			w.logger.Info("notification worker shutdown complete")
			return nil
		case <-ctx.Done():
			w.logger.Warn("notification worker shutdown timed out")
			return ctx.Err()
		}
	}
	return nil
}

// EnsureGroup creates the consumer group (and stream) if it doesn't exist.
func (w *Worker) EnsureGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, w.queue.Stream(), w.queue.Group(), "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return err
	}
	return nil
}

// processOnce reads one batch of new jobs and handles them in order.
func (w *Worker) processOnce(ctx context.Context) error {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    w.queue.Group(),
		Consumer: w.consumerID,
		Streams:  []string{w.queue.Stream(), ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(streams) == 0) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("xreadgroup: %w", err)
	}

	for _, msg := range streams[0].Messages {
		// A job started before shutdown runs to completion on a detached context.
		w.handle(context.WithoutCancel(ctx), msg)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// handle executes one stream message. It never returns an error: failures leave the
// message pending for Reclaim.
func (w *Worker) handle(ctx context.Context, msg redis.XMessage) {
	job, err := decodeJob(msg.Values)
	if err != nil {
		w.deadLetter(ctx, msg, "invalid_format", err.Error())
		w.ack(ctx, msg.ID)
		return
	}
	logger := w.logger.With("message_id", msg.ID, "job_id", job.ID, "credit_id", job.CreditID)

	sent, err := w.queue.isSent(ctx, job.Key)
	if err != nil {
		logger.Warn("could not read job state, leaving pending", "error", err)
		return
	}
	if sent {
		logger.Info("notification already delivered, skipping", "status", StatusAlreadyComplete)
		w.metrics.IncNotificationProcessed(metrics.ProcessSkipped)
		w.ack(ctx, msg.ID)
		return
	}

	status, err := w.processor.Process(ctx, job.CreditID)
	if err != nil {
		logger.Warn("notification failed, will be retried", "error", err)
		return
	}

	if status == StatusSent {
		if err := w.queue.markSent(ctx, job.Key); err != nil {
			logger.Warn("failed to mark job as sent", "error", err)
		}
	}
	logger.Info("notification job finished", "status", status)
	w.ack(ctx, msg.ID)
}

// Reclaim redelivers jobs that have been pending longer than the claim idle time and
// dead-letters those that exhausted their deliveries.
func (w *Worker) Reclaim(ctx context.Context) error {
	pending, err := w.redis.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: w.queue.Stream(),
		Group:  w.queue.Group(),
		Idle:   w.claimIdle,
		Start:  "-",
		End:    "+",
		Count:  reclaimBatch,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("xpending: %w", err)
	}

	for _, p := range pending {
		if p.RetryCount >= w.maxDeliveries {
			w.exhaust(ctx, p.ID, p.RetryCount)
			continue
		}

		claimed, err := w.redis.XClaim(ctx, &redis.XClaimArgs{
			Stream:   w.queue.Stream(),
			Group:    w.queue.Group(),
			Consumer: w.consumerID,
			MinIdle:  w.claimIdle,
			Messages: []string{p.ID},
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("xclaim %s: %w", p.ID, err)
		}
		for _, msg := range claimed {
			w.logger.Info("retrying notification job", "message_id", msg.ID, "delivery", p.RetryCount+1)
			w.handle(ctx, msg)
		}
	}
	return nil
}

// exhaust moves a job that failed too often to the dead-letter stream and frees its key.
func (w *Worker) exhaust(ctx context.Context, id string, deliveries int64) {
	msgs, err := w.redis.XRangeN(ctx, w.queue.Stream(), id, id, 1).Result()
	if err != nil {
		w.logger.Error("failed to load exhausted job", "message_id", id, "error", err)
		return
	}
	if len(msgs) == 0 {
		// Trimmed from the stream; only the pending entry remains.
		w.ack(ctx, id)
		return
	}

	msg := msgs[0]
	w.deadLetter(ctx, msg, "max_deliveries", fmt.Sprintf("delivered %d times", deliveries))
	if key, ok := msg.Values["key"].(string); ok && key != "" {
		if err := w.queue.release(ctx, key); err != nil {
			w.logger.Warn("failed to release job key", "job_key", key, "error", err)
		}
	}
	w.ack(ctx, id)
}

// RefreshQueueDepth publishes pending plus unread entries of the group as queue depth.
func (w *Worker) RefreshQueueDepth(ctx context.Context) {
	groups, err := w.redis.XInfoGroups(ctx, w.queue.Stream()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		w.logger.Warn("failed to read stream group info", "error", err)
		return
	}
	for _, group := range groups {
		if group.Name == w.queue.Group() {
			w.metrics.SetNotificationQueueDepth(group.Pending + group.Lag)
			return
		}
	}
}

// deadLetter copies a message to the dead-letter stream.
func (w *Worker) deadLetter(ctx context.Context, msg redis.XMessage, reason, detail string) {
	w.logger.Warn("dead-lettering notification job",
		"message_id", msg.ID,
		"reason", reason,
		"detail", detail,
	)

	values := map[string]any{
		"original_id":      msg.ID,
		"original_stream":  w.queue.Stream(),
		"reason":           reason,
		"detail":           detail,
		"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range msg.Values {
		values["job_"+k] = v
	}

	_, err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: w.queue.DeadLetterStream(),
		MaxLen: 10000,
		Approx: true,
		ID:     "*",
		Values: values,
	}).Result()
	if err != nil {
		w.logger.Error("failed to write to dead-letter stream", "message_id", msg.ID, "error", err)
	}

	w.metrics.IncNotificationProcessed(metrics.ProcessDeadLettered)
}

func (w *Worker) ack(ctx context.Context, ids ...string) {
	if err := w.redis.XAck(ctx, w.queue.Stream(), w.queue.Group(), ids...).Err(); err != nil {
		w.logger.Error("xack failed", "message_ids", ids, "error", err)
	}
}

// isConsumerGroupExistsError checks if the error is "BUSYGROUP" (group exists).
func isConsumerGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
