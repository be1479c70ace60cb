// Package notify delivers the "credit created" email out of band from the request that created the credit.
//
// Producers hand a Job to a Queue; consumers (Worker for Redis, MemoryQueue.Run in-process)
// execute it through a Processor.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrDuplicateJob is returned by Queue.Push when a job with the same key is already outstanding.
	ErrDuplicateJob = errors.New("notification job already queued")
	// ErrQueueFull is returned by bounded in-memory queues.
	ErrQueueFull = errors.New("notification queue full")
)

// Job describes one deferred credit email.
type Job struct {
	ID         string
	Key        string
	CreditID   int64
	EnqueuedAt time.Time
}

// NewJob builds the job for creditID.
func NewJob(creditID int64, now time.Time) Job {
	return Job{
		ID:         ulid.Make().String(),
		Key:        JobKey(creditID),
		CreditID:   creditID,
		EnqueuedAt: now.UTC(),
	}
}

// JobKey is the deterministic deduplication key for a credit's notification.
func JobKey(creditID int64) string {
	return "email-" + strconv.FormatInt(creditID, 10)
}

// creditIDFromKey parses a key produced by JobKey.
func creditIDFromKey(key string) (int64, error) {
	raw, ok := strings.CutPrefix(key, "email-")
	if !ok {
		return 0, fmt.Errorf("unexpected job key %q", key)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("unexpected job key %q", key)
	}
	return id, nil
}

// Queue accepts jobs. At most one job per key is outstanding at a time.
type Queue interface {
	Push(ctx context.Context, job Job) error
}

// JobProcessor executes a job for a credit.
type JobProcessor interface {
	Process(ctx context.Context, creditID int64) (Status, error)
}
