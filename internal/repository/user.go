package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/credittrack/credittrack/internal/model"
)

// Errors returned by the user store.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
	ErrInvalidEmail = errors.New("email rejected by schema")
)

const userColumns = `id, email, password_hash, created_at`

// CreateUser inserts user and fills in the generated ID and creation time.
// The unique index on email turns a concurrent duplicate into ErrEmailExists; an
// address over the column length or not lower-case by Postgres rules is ErrInvalidEmail.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id, created_at`,
		user.Email, user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt)
	switch {
	case isUniqueViolation(err):
		return ErrEmailExists
	case isRejectedValue(err):
		return ErrInvalidEmail
	case err != nil:
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByID loads the account behind a session token.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserByEmail loads an account by its normalized email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *Repository) getUser(ctx context.Context, query string, arg any) (*model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

// UpdateUserPassword replaces the stored password hash.
func (r *Repository) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
