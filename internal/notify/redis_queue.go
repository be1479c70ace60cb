package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultStream is the Redis stream holding notification jobs.
	DefaultStream = "notify:credit-email"
	// DefaultGroup is the consumer group reading DefaultStream.
	DefaultGroup = "notify-workers"
	// DefaultDedupTTL bounds how long a job key blocks re-enqueueing.
	DefaultDedupTTL = 24 * time.Hour
	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	dedupSentValue = "sent"
)

// RedisQueueConfig configures a RedisQueue.
type RedisQueueConfig struct {
	Stream   string
	Group    string
	DedupTTL time.Duration
}

func (c RedisQueueConfig) withDefaults() RedisQueueConfig {
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.Group == "" {
		c.Group = DefaultGroup
	}
	if c.DedupTTL <= 0 {
		c.DedupTTL = DefaultDedupTTL
	}
	return c
}

// RedisQueue stores jobs in a Redis stream and guards each job key with SET NX.
type RedisQueue struct {
	redis *redis.Client
	cfg   RedisQueueConfig
}

// NewRedisQueue creates a RedisQueue.
func NewRedisQueue(client *redis.Client, cfg RedisQueueConfig) *RedisQueue {
	return &RedisQueue{redis: client, cfg: cfg.withDefaults()}
}

// Stream returns the stream name.
func (q *RedisQueue) Stream() string { return q.cfg.Stream }

// Group returns the consumer group name.
func (q *RedisQueue) Group() string { return q.cfg.Group }

// DeadLetterStream returns the stream receiving jobs that cannot be processed.
func (q *RedisQueue) DeadLetterStream() string { return q.cfg.Stream + ":dlq" }

func (q *RedisQueue) dedupKey(jobKey string) string {
	return "notify:job:" + jobKey
}

// Push claims the job key and appends the job to the stream.
func (q *RedisQueue) Push(ctx context.Context, job Job) error {
	claimed, err := q.redis.SetNX(ctx, q.dedupKey(job.Key), job.ID, q.cfg.DedupTTL).Result()
	if err != nil {
		return fmt.Errorf("claim job key: %w", err)
	}
	if !claimed {
		return ErrDuplicateJob
	}

	_, err = q.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.Stream,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: encodeJob(job),
	}).Result()
	if err != nil {
		// Free the key so a later enqueue is not rejected for a job that never existed.
		if delErr := q.redis.Del(context.WithoutCancel(ctx), q.dedupKey(job.Key)).Err(); delErr != nil {
			err = errors.Join(err, fmt.Errorf("release job key: %w", delErr))
		}
		return fmt.Errorf("xadd: %w", err)
	}

	return nil
}

// markSent records that the email for jobKey was delivered, keeping the key's TTL.
func (q *RedisQueue) markSent(ctx context.Context, jobKey string) error {
	return q.redis.Set(ctx, q.dedupKey(jobKey), dedupSentValue, redis.KeepTTL).Err()
}

// isSent reports whether jobKey was already delivered.
func (q *RedisQueue) isSent(ctx context.Context, jobKey string) (bool, error) {
	val, err := q.redis.Get(ctx, q.dedupKey(jobKey)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == dedupSentValue, nil
}

// Delivered reports whether the notification for creditID has been sent.
func (q *RedisQueue) Delivered(ctx context.Context, creditID int64) (bool, error) {
	return q.isSent(ctx, JobKey(creditID))
}

// release frees jobKey so the credit can be notified again.
func (q *RedisQueue) release(ctx context.Context, jobKey string) error {
	return q.redis.Del(ctx, q.dedupKey(jobKey)).Err()
}

func encodeJob(job Job) map[string]any {
	return map[string]any{
		"job_id":      job.ID,
		"key":         job.Key,
		"credit_id":   strconv.FormatInt(job.CreditID, 10),
		"enqueued_at": job.EnqueuedAt.Format(time.RFC3339Nano),
	}
}

func decodeJob(values map[string]any) (Job, error) {
	str := func(name string) (string, error) {
		v, ok := values[name].(string)
		if !ok || v == "" {
			return "", fmt.Errorf("field %q missing or not a string", name)
		}
		return v, nil
	}

	var job Job
	var err error
	if job.ID, err = str("job_id"); err != nil {
		return Job{}, err
	}
	if job.Key, err = str("key"); err != nil {
		return Job{}, err
	}

	rawID, err := str("credit_id")
	if err != nil {
		return Job{}, err
	}
	if job.CreditID, err = strconv.ParseInt(rawID, 10, 64); err != nil {
		return Job{}, fmt.Errorf("credit_id: %w", err)
	}
	keyID, err := creditIDFromKey(job.Key)
	if err != nil {
		return Job{}, err
	}
	if keyID != job.CreditID {
		return Job{}, fmt.Errorf("key %q does not match credit_id %d", job.Key, job.CreditID)
	}

	if rawTime, ok := values["enqueued_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, rawTime); err == nil {
			job.EnqueuedAt = t
		}
	}
	return job, nil
}
