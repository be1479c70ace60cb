// Package testutil holds fakes and integration helpers shared by the test suites.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/credittrack/credittrack/internal/model"
	"github.com/credittrack/credittrack/internal/repository"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// dbLockID serializes integration tests from different packages, which share one database.
const dbLockID int64 = 0x637265646974

func acquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", dbLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", dbLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema rolls every migration back and applies them again.
func ResetSchema(databaseURL string) error {
	if err := repository.MigrateDown(databaseURL); err != nil {
		return fmt.Errorf("reset schema: %w", err)
	}
	if err := repository.Migrate(databaseURL); err != nil {
		return fmt.Errorf("reset schema: %w", err)
	}
	return nil
}

// NewDBRepository connects to DATABASE_URL, resets the schema under the advisory lock
// and registers cleanup. The test is skipped when DATABASE_URL is unset.
func NewDBRepository(t *testing.T) (context.Context, *repository.Repository) {
	t.Helper()

	databaseURL := RequireEnv(t, "DATABASE_URL")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("connect database: %v", err)
	}
	t.Cleanup(pool.Close)

	unlock, err := acquireDBLock(ctx, pool)
	if err != nil {
		t.Fatalf("lock database: %v", err)
	}
	t.Cleanup(func() {
		if err := unlock(); err != nil {
			t.Errorf("unlock database: %v", err)
		}
	})

	if err := ResetSchema(databaseURL); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, repository.NewFromPool(pool)
}

// NewRedisClient connects to REDIS_URL and flushes it. The test is skipped when REDIS_URL is unset.
func NewRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	redisURL := RequireEnv(t, "REDIS_URL")
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return client
}

// NewTestUser creates an unsaved user with a unique email.
func NewTestUser(t testing.TB) *model.User {
	t.Helper()
	return &model.User{
		Email:        UniqueEmail("user"),
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g",
	}
}

// NewTestCredit creates an unsaved credit owned by userID.
func NewTestCredit(t testing.TB, userID int64) *model.Credit {
	t.Helper()
	return &model.Credit{
		ClientName: "ACME Corp",
		ClientID:   "900123456",
		Amount:     decimal.RequireFromString("1000.50"),
		Rate:       1.75,
		Term:       12,
		Commercial: "Ana Perez",
		UserID:     userID,
	}
}

// UniqueEmail generates a unique lower-case email for tests.
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@example.com", prefix, strings.ToLower(ulid.Make().String()))
}
