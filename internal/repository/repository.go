// Package repository provides the Postgres-backed user and credit stores.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE codes the stores translate into domain errors.
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateCheckViolation      = "23514"
	sqlStateStringTooLong       = "22001"
)

// Repository holds the connection pool. Store methods live in user.go and credit.go.
type Repository struct {
	pool *pgxpool.Pool
}

// New opens a pool for databaseURL and verifies it with a ping.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	cfg, err := poolConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// poolConfig parses databaseURL and sizes the pool. Settings given in the URL
// (pool_max_conns and friends) win over the defaults here.
func poolConfig(databaseURL string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if !hasParam(cfg, "pool_max_conns") {
		cfg.MaxConns = 10
	}
	if !hasParam(cfg, "pool_min_conns") {
		cfg.MinConns = 2
	}
	if !hasParam(cfg, "pool_max_conn_lifetime") {
		cfg.MaxConnLifetime = time.Hour
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = "credittrack"
	}
	return cfg, nil
}

func hasParam(cfg *pgxpool.Config, name string) bool {
	return strings.Contains(cfg.ConnString(), name+"=")
}

// NewFromPool wraps an existing pool. Used by tests that manage their own pool.
func NewFromPool(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ping implements the readiness check.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying pool for tests that inspect the schema.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

func hasSQLState(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func isUniqueViolation(err error) bool {
	return hasSQLState(err, sqlStateUniqueViolation)
}

func isForeignKeyViolation(err error) bool {
	return hasSQLState(err, sqlStateForeignKeyViolation)
}

// isRejectedValue reports a value the schema refuses: a CHECK constraint or a
// varchar length limit.
func isRejectedValue(err error) bool {
	return hasSQLState(err, sqlStateCheckViolation) || hasSQLState(err, sqlStateStringTooLong)
}
