package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/credittrack/credittrack/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Common errors for credit repository operations.
var (
	ErrCreditNotFound = errors.New("credit not found")
	ErrOwnerNotFound  = errors.New("credit owner not found")
)

// creditColumns selects amount as text so it never passes through a binary float.
const creditColumns = `id, client_name, client_id, amount::text, rate, term, commercial, created_at, user_id`

// CreateCredit inserts a credit and fills in the generated ID and creation time.
func (r *Repository) CreateCredit(ctx context.Context, credit *model.Credit) error {
	query := `
		INSERT INTO credits (client_name, client_id, amount, rate, term, commercial, user_id)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		credit.ClientName,
		credit.ClientID,
		credit.Amount.String(),
		credit.Rate,
		credit.Term,
		credit.Commercial,
		credit.UserID,
	).Scan(&credit.ID, &credit.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrOwnerNotFound
		}
		return fmt.Errorf("failed to create credit: %w", err)
	}

	return nil
}

// GetCreditByID retrieves a credit by its ID.
func (r *Repository) GetCreditByID(ctx context.Context, id int64) (*model.Credit, error) {
	query := `SELECT ` + creditColumns + ` FROM credits WHERE id = $1`

	credit, err := scanCredit(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCreditNotFound
		}
		return nil, fmt.Errorf("failed to get credit by ID: %w", err)
	}

	return credit, nil
}

// ListCredits returns one page of credits matching filter, newest first, plus the total match count.
func (r *Repository) ListCredits(ctx context.Context, filter model.CreditFilter, limit, offset int) ([]*model.Credit, int64, error) {
	where, args := creditWhere(filter)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM credits`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count credits: %w", err)
	}
	if total == 0 || int64(offset) >= total {
		return []*model.Credit{}, total, nil
	}

	argIndex := len(args) + 1
	query := `SELECT ` + creditColumns + ` FROM credits` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list credits: %w", err)
	}
	defer rows.Close()

	credits := make([]*model.Credit, 0, limit)
	for rows.Next() {
		credit, err := scanCredit(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan credit: %w", err)
		}
		credits = append(credits, credit)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating credits: %w", err)
	}

	return credits, total, nil
}

// UpdateCredit writes every mutable field of credit.
func (r *Repository) UpdateCredit(ctx context.Context, credit *model.Credit) error {
	query := `
		UPDATE credits
		SET client_name = $2, client_id = $3, amount = $4::numeric, rate = $5, term = $6, commercial = $7
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		credit.ID,
		credit.ClientName,
		credit.ClientID,
		credit.Amount.String(),
		credit.Rate,
		credit.Term,
		credit.Commercial,
	)
	if err != nil {
		return fmt.Errorf("failed to update credit: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrCreditNotFound
	}

	return nil
}

// DeleteCredit removes a credit.
func (r *Repository) DeleteCredit(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM credits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete credit: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrCreditNotFound
	}

	return nil
}

// DistinctCreditValues returns the sorted distinct non-empty client names, client IDs and commercials.
func (r *Repository) DistinctCreditValues(ctx context.Context) (*model.CreditDistinct, error) {
	columns := []string{"client_name", "client_id", "commercial"}

	batch := &pgx.Batch{}
	for _, col := range columns {
		batch.Queue(fmt.Sprintf(
			`SELECT DISTINCT %[1]s FROM credits WHERE %[1]s IS NOT NULL AND %[1]s <> '' ORDER BY %[1]s`, col,
		))
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	values := make([][]string, len(columns))
	for i, col := range columns {
		rows, err := results.Query()
		if err != nil {
			return nil, fmt.Errorf("query distinct %s: %w", col, err)
		}
		vals, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return nil, fmt.Errorf("collect distinct %s: %w", col, err)
		}
		if vals == nil {
			vals = []string{}
		}
		values[i] = vals
	}

	return &model.CreditDistinct{
		ClientNames: values[0],
		ClientIDs:   values[1],
		Commercials: values[2],
	}, nil
}

// creditWhere builds the WHERE clause for a listing filter.
func creditWhere(filter model.CreditFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		clauses = append(clauses, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if filter.Commercial != "" {
		args = append(args, "%"+escapeLike(filter.Commercial)+"%")
		clauses = append(clauses, fmt.Sprintf("commercial ILIKE $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanCredit(row pgx.Row) (*model.Credit, error) {
	var (
		credit model.Credit
		amount string
	)
	err := row.Scan(
		&credit.ID,
		&credit.ClientName,
		&credit.ClientID,
		&amount,
		&credit.Rate,
		&credit.Term,
		&credit.Commercial,
		&credit.CreatedAt,
		&credit.UserID,
	)
	if err != nil {
		return nil, err
	}

	credit.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return &credit, nil
}
