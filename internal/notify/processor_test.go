package notify_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/credittrack/credittrack/internal/metrics"
	"github.com/credittrack/credittrack/internal/notify"
	"github.com/credittrack/credittrack/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedCredit stores a user and one credit and returns the credit ID.
func seedCredit(t *testing.T, store *testutil.MemoryStore) (int64, int64) {
	t.Helper()
	ctx := context.Background()

	user := testutil.NewTestUser(t)
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	credit := testutil.NewTestCredit(t, user.ID)
	if err := store.CreateCredit(ctx, credit); err != nil {
		t.Fatalf("CreateCredit: %v", err)
	}
	return credit.ID, user.ID
}

func TestProcessor_SendsToOwnerAndAdmin(t *testing.T) {
	t.Parallel()

	store := testutil.NewMemoryStore()
	sender := &testutil.RecordingSender{}
	recorder := metrics.NewInMemory()
	creditID, userID := seedCredit(t, store)
	owner, _ := store.GetUserByID(context.Background(), userID)

	p := notify.NewProcessor(store, store, sender, "admin@example.com", discardLogger(), recorder)
	status, err := p.Process(context.Background(), creditID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if status != notify.StatusSent {
		t.Fatalf("status = %q, want %q", status, notify.StatusSent)
	}

	msgs := sender.Messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	msg := msgs[0]
	if msg.Subject != "New credit #1" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if len(msg.To) != 2 || msg.To[0] != owner.Email || msg.To[1] != "admin@example.com" {
		t.Errorf("To = %v", msg.To)
	}
	if !strings.Contains(msg.HTML, "1,000.50") {
		t.Errorf("HTML missing formatted amount: %s", msg.HTML)
	}

	snap := recorder.Snapshot()
	if snap.NotificationsProcessed[metrics.ProcessSent] != 1 {
		t.Errorf("processed[sent] = %d, want 1", snap.NotificationsProcessed[metrics.ProcessSent])
	}
	if snap.NotificationDurationCount != 1 {
		t.Errorf("duration count = %d, want 1", snap.NotificationDurationCount)
	}
}

func TestProcessor_NoAdminAddress(t *testing.T) {
	t.Parallel()

	store := testutil.NewMemoryStore()
	sender := &testutil.RecordingSender{}
	creditID, _ := seedCredit(t, store)

	p := notify.NewProcessor(store, store, sender, "", discardLogger(), nil)
	if _, err := p.Process(context.Background(), creditID); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := sender.Messages()[0].To; len(got) != 1 {
		t.Errorf("To = %v, want only the owner", got)
	}
}

func TestProcessor_DeletedCredit(t *testing.T) {
	t.Parallel()

	store := testutil.NewMemoryStore()
	sender := &testutil.RecordingSender{}
	creditID, _ := seedCredit(t, store)
	if err := store.DeleteCredit(context.Background(), creditID); err != nil {
		t.Fatalf("DeleteCredit: %v", err)
	}

	p := notify.NewProcessor(store, store, sender, "admin@example.com", discardLogger(), nil)
	status, err := p.Process(context.Background(), creditID)
	if err != nil {
		t.Fatalf("Process should not fail for a deleted credit: %v", err)
	}
	if status != notify.StatusCreditNotFound {
		t.Errorf("status = %q, want %q", status, notify.StatusCreditNotFound)
	}
	if sender.Count() != 0 {
		t.Errorf("no email should be sent, got %d", sender.Count())
	}
}

func TestProcessor_DeletedOwner(t *testing.T) {
	t.Parallel()

	store := testutil.NewMemoryStore()
	sender := &testutil.RecordingSender{}
	creditID, userID := seedCredit(t, store)
	store.DeleteUser(userID)

	p := notify.NewProcessor(store, store, sender, "admin@example.com", discardLogger(), nil)
	status, err := p.Process(context.Background(), creditID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if status != notify.StatusUserNotFound {
		t.Errorf("status = %q, want %q", status, notify.StatusUserNotFound)
	}
	if sender.Count() != 0 {
		t.Errorf("no email should be sent, got %d", sender.Count())
	}
}

func TestProcessor_DeliveryErrorPropagates(t *testing.T) {
	t.Parallel()

	smtpDown := errors.New("dial tcp: connection refused")
	store := testutil.NewMemoryStore()
	sender := &testutil.RecordingSender{Err: smtpDown}
	recorder := metrics.NewInMemory()
	creditID, _ := seedCredit(t, store)

	p := notify.NewProcessor(store, store, sender, "admin@example.com", discardLogger(), recorder)
	_, err := p.Process(context.Background(), creditID)
	if !errors.Is(err, smtpDown) {
		t.Fatalf("Process error = %v, want wrapped %v", err, smtpDown)
	}
	if got := recorder.Snapshot().NotificationsProcessed[metrics.ProcessFailed]; got != 1 {
		t.Errorf("processed[failed] = %d, want 1", got)
	}
}

func TestProcessor_StoreErrorPropagates(t *testing.T) {
	t.Parallel()

	dbDown := errors.New("connection reset")
	store := testutil.NewMemoryStore()
	creditID, _ := seedCredit(t, store)
	store.FailWith = dbDown

	p := notify.NewProcessor(store, store, &testutil.RecordingSender{}, "", discardLogger(), nil)
	if _, err := p.Process(context.Background(), creditID); !errors.Is(err, dbDown) {
		t.Errorf("Process error = %v, want wrapped %v", err, dbDown)
	}
}
