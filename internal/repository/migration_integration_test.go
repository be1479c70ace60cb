//go:build integration

package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/credittrack/credittrack/internal/repository"
	"github.com/credittrack/credittrack/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestIntegrationMigration_ApplyAllTables(t *testing.T) {
	ctx, repo := testutil.NewDBRepository(t)

	for _, table := range []string{"users", "credits"} {
		t.Run(table, func(t *testing.T) {
			exists, err := tableExists(ctx, repo.Pool(), table)
			if err != nil {
				t.Fatalf("tableExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Table %q should exist after migrations", table)
			}
		})
	}
}

func TestIntegrationMigration_CreditsAmountIsNumeric(t *testing.T) {
	ctx, repo := testutil.NewDBRepository(t)

	var dataType string
	var precision, scale int
	err := repo.Pool().QueryRow(ctx, `
		SELECT data_type, numeric_precision, numeric_scale
		FROM information_schema.columns
		WHERE table_name = 'credits' AND column_name = 'amount'
	`).Scan(&dataType, &precision, &scale)
	if err != nil {
		t.Fatalf("query column: %v", err)
	}
	if dataType != "numeric" || precision != 12 || scale != 2 {
		t.Errorf("amount column = %s(%d,%d), want numeric(12,2)", dataType, precision, scale)
	}
}

func TestIntegrationMigration_VersionAndIdempotency(t *testing.T) {
	testutil.NewDBRepository(t)
	databaseURL := os.Getenv("DATABASE_URL")

	if err := repository.Migrate(databaseURL); err != nil {
		t.Fatalf("second Migrate should be a no-op: %v", err)
	}

	version, dirty, err := repository.SchemaVersion(databaseURL)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("schema version = %d dirty=%v, want 2 clean", version, dirty)
	}
}

func tableExists(ctx context.Context, pool *pgxpool.Pool, tableName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`, tableName).Scan(&exists)
	return exists, err
}
