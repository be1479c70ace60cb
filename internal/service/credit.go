package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/credittrack/credittrack/internal/metrics"
	"github.com/credittrack/credittrack/internal/model"
	"github.com/credittrack/credittrack/internal/repository"
)

// Pagination defaults for credit listings.
const (
	DefaultPage    = 1
	DefaultPerPage = 20
	MaxPerPage     = 100

	maxOffset = math.MaxInt32
)

// CreditStore is the credit store used by CreditService.
type CreditStore interface {
	CreateCredit(ctx context.Context, credit *model.Credit) error
	GetCreditByID(ctx context.Context, id int64) (*model.Credit, error)
	ListCredits(ctx context.Context, filter model.CreditFilter, limit, offset int) ([]*model.Credit, int64, error)
	UpdateCredit(ctx context.Context, credit *model.Credit) error
	DeleteCredit(ctx context.Context, id int64) error
	DistinctCreditValues(ctx context.Context) (*model.CreditDistinct, error)
}

// Notifier schedules the "credit created" email.
type Notifier interface {
	Enqueue(ctx context.Context, creditID int64) error
}

// CreditService handles credit business logic.
type CreditService struct {
	credits  CreditStore
	notifier Notifier
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewCreditService creates a CreditService. notifier may be nil to disable emails.
func NewCreditService(credits CreditStore, notifier Notifier, logger *slog.Logger, recorder metrics.Recorder) *CreditService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &CreditService{
		credits:  credits,
		notifier: notifier,
		logger:   logger.With("component", "service.credit"),
		metrics:  recorder,
	}
}

// CreateCredit stores a new credit for ownerID and then schedules its notification.
// in must carry every field (see ParseCreditInput).
func (s *CreditService) CreateCredit(ctx context.Context, in *model.CreditUpdate, ownerID int64) (*model.Credit, error) {
	if in.ClientName == nil || in.ClientID == nil || in.Amount == nil ||
		in.Rate == nil || in.Term == nil || in.Commercial == nil {
		return nil, errors.New("create credit: incomplete input")
	}

	credit := &model.Credit{UserID: ownerID}
	in.Apply(credit)

	if err := s.credits.CreateCredit(ctx, credit); err != nil {
		if errors.Is(err, repository.ErrOwnerNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("create credit: %w", err)
	}

	s.metrics.IncCreditCreated()
	s.logger.Info("credit created", "credit_id", credit.ID, "user_id", ownerID)

	// The row is committed at this point, so the consumer can always load it.
	if s.notifier != nil {
		if err := s.notifier.Enqueue(ctx, credit.ID); err != nil {
			s.logger.Warn("credit notification not queued", "credit_id", credit.ID, "error", err)
		}
	}

	return credit, nil
}

// GetCredit retrieves a credit by ID.
func (s *CreditService) GetCredit(ctx context.Context, id int64) (*model.Credit, error) {
	credit, err := s.credits.GetCreditByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCreditNotFound) {
			return nil, ErrCreditNotFound
		}
		return nil, err
	}
	return credit, nil
}

// ListCreditsInput defines input for listing credits.
type ListCreditsInput struct {
	Filter  model.CreditFilter
	Page    int
	PerPage int
}

// NormalizePage applies the listing defaults: page < 1 becomes 1, per_page < 1 becomes 20,
// and per_page is capped at 100.
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// ListCredits returns one page of credits, newest first. A page past the end is empty.
func (s *CreditService) ListCredits(ctx context.Context, input ListCreditsInput) (*model.CreditPage, error) {
	page, perPage := NormalizePage(input.Page, input.PerPage)

	// Clamp absurd page numbers so the offset cannot overflow; the page is empty either way.
	offset := maxOffset
	if page-1 <= maxOffset/perPage {
		offset = (page - 1) * perPage
	}

	items, total, err := s.credits.ListCredits(ctx, input.Filter, perPage, offset)
	if err != nil {
		return nil, err
	}

	return &model.CreditPage{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Pages:   int((total + int64(perPage) - 1) / int64(perPage)),
	}, nil
}

// UpdateCredit applies a partial update and returns the stored result.
func (s *CreditService) UpdateCredit(ctx context.Context, id int64, upd *model.CreditUpdate) (*model.Credit, error) {
	credit, err := s.GetCredit(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.IsEmpty() {
		return credit, nil
	}
	upd.Apply(credit)

	if err := s.credits.UpdateCredit(ctx, credit); err != nil {
		if errors.Is(err, repository.ErrCreditNotFound) {
			return nil, ErrCreditNotFound
		}
		return nil, fmt.Errorf("update credit: %w", err)
	}

	s.metrics.IncCreditUpdated()
	return credit, nil
}

// DeleteCredit removes a credit. A pending notification for it resolves to "credit not found".
func (s *CreditService) DeleteCredit(ctx context.Context, id int64) error {
	if err := s.credits.DeleteCredit(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCreditNotFound) {
			return ErrCreditNotFound
		}
		return fmt.Errorf("delete credit: %w", err)
	}

	s.metrics.IncCreditDeleted()
	s.logger.Info("credit deleted", "credit_id", id)
	return nil
}

// DistinctValues returns the sorted distinct client names, client IDs and commercials.
func (s *CreditService) DistinctValues(ctx context.Context) (*model.CreditDistinct, error) {
	return s.credits.DistinctCreditValues(ctx)
}
