package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/credittrack/credittrack/internal/metrics"
	"github.com/credittrack/credittrack/internal/notify"
	"github.com/credittrack/credittrack/internal/testutil"
)

func TestMemoryQueue_EnqueueTwiceSendsOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := testutil.NewMemoryStore()
	sender := &testutil.RecordingSender{}
	recorder := metrics.NewInMemory()
	creditID, _ := seedCredit(t, store)

	queue := notify.NewMemoryQueue(10)
	dispatcher := notify.NewDispatcher(queue, discardLogger(), recorder)

	if err := dispatcher.Enqueue(ctx, creditID); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	if err := dispatcher.Enqueue(ctx, creditID); err != nil {
		t.Fatalf("second Enqueue: %v", err)
	}
	if queue.Len() != 1 {
		t.Fatalf("queue length = %d, want 1", queue.Len())
	}

	p := notify.NewProcessor(store, store, sender, "", discardLogger(), nil)
	results := queue.Drain(ctx, p)
	if len(results) != 1 {
		t.Fatalf("processed %d jobs, want 1", len(results))
	}

	// Once delivered, the key stays closed.
	if err := dispatcher.Enqueue(ctx, creditID); err != nil {
		t.Fatalf("Enqueue after delivery: %v", err)
	}
	if queue.Len() != 0 {
		t.Fatalf("queue length after delivery = %d, want 0", queue.Len())
	}
	queue.Drain(ctx, p)

	if sender.Count() != 1 {
		t.Errorf("sent %d emails, want 1", sender.Count())
	}

	snap := recorder.Snapshot()
	if snap.NotificationsEnqueued[metrics.EnqueueQueued] != 1 {
		t.Errorf("enqueued[queued] = %d, want 1", snap.NotificationsEnqueued[metrics.EnqueueQueued])
	}
	if snap.NotificationsEnqueued[metrics.EnqueueDuplicate] != 2 {
		t.Errorf("enqueued[duplicate] = %d, want 2", snap.NotificationsEnqueued[metrics.EnqueueDuplicate])
	}
}

func TestMemoryQueue_DeleteBeforeProcessing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := testutil.NewMemoryStore()
	sender := &testutil.RecordingSender{}
	creditID, _ := seedCredit(t, store)

	queue := notify.NewMemoryQueue(10)
	if err := notify.NewDispatcher(queue, discardLogger(), nil).Enqueue(ctx, creditID); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.DeleteCredit(ctx, creditID); err != nil {
		t.Fatalf("DeleteCredit: %v", err)
	}

	results := queue.Drain(ctx, notify.NewProcessor(store, store, sender, "", discardLogger(), nil))
	if len(results) != 1 {
		t.Fatalf("processed %d jobs, want 1", len(results))
	}
	if results[0].Status != notify.StatusCreditNotFound || results[0].Err != nil {
		t.Errorf("result = (%q, %v), want (%q, nil)", results[0].Status, results[0].Err, notify.StatusCreditNotFound)
	}
	if sender.Count() != 0 {
		t.Errorf("sent %d emails, want 0", sender.Count())
	}
}

func TestMemoryQueue_FailedJobCanBeRequeued(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := testutil.NewMemoryStore()
	sender := &testutil.RecordingSender{Err: errors.New("smtp down")}
	creditID, _ := seedCredit(t, store)

	queue := notify.NewMemoryQueue(10)
	p := notify.NewProcessor(store, store, sender, "", discardLogger(), nil)

	if err := queue.Push(ctx, notify.NewJob(creditID, time.Now())); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if results := queue.Drain(ctx, p); results[0].Err == nil {
		t.Fatal("expected delivery error")
	}

	sender.Err = nil
	if err := queue.Push(ctx, notify.NewJob(creditID, time.Now())); err != nil {
		t.Fatalf("Push after failure: %v", err)
	}
	queue.Drain(ctx, p)
	if sender.Count() != 1 {
		t.Errorf("sent %d emails, want 1", sender.Count())
	}
}

func TestMemoryQueue_Full(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	queue := notify.NewMemoryQueue(1)

	if err := queue.Push(ctx, notify.NewJob(1, time.Now())); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := queue.Push(ctx, notify.NewJob(2, time.Now())); !errors.Is(err, notify.ErrQueueFull) {
		t.Errorf("Push error = %v, want ErrQueueFull", err)
	}
	if queue.Len() != 1 {
		t.Errorf("Len = %d, want 1", queue.Len())
	}
}

func TestMemoryQueue_Run(t *testing.T) {
	t.Parallel()

	store := testutil.NewMemoryStore()
	sender := &testutil.RecordingSender{}
	creditID, _ := seedCredit(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := notify.NewMemoryQueue(10)
	done := make(chan struct{})
	go func() {
		queue.Run(ctx, notify.NewProcessor(store, store, sender, "", discardLogger(), nil), discardLogger())
		close(done)
	}()

	if err := queue.Push(ctx, notify.NewJob(creditID, time.Now())); err != nil {
		t.Fatalf("Push: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for sender.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sender.Count() != 1 {
		t.Fatalf("sent %d emails, want 1", sender.Count())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
