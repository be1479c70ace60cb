package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/credittrack/credittrack/internal/mail"
	"github.com/credittrack/credittrack/internal/metrics"
	"github.com/credittrack/credittrack/internal/model"
	"github.com/credittrack/credittrack/internal/repository"
)

// Status is the outcome of processing a job.
type Status string

// Processing outcomes. Only StatusSent means an email left the system.
const (
	StatusSent            Status = "sent"
	StatusCreditNotFound  Status = "credit not found"
	StatusUserNotFound    Status = "user not found"
	StatusAlreadyComplete Status = "already sent"
)

// CreditReader loads credits.
type CreditReader interface {
	GetCreditByID(ctx context.Context, id int64) (*model.Credit, error)
}

// UserReader loads users.
type UserReader interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

// Processor is the consumer side: it loads fresh state and sends the email.
type Processor struct {
	credits    CreditReader
	users      UserReader
	sender     mail.Sender
	adminEmail string
	logger     *slog.Logger
	metrics    metrics.Recorder
}

// NewProcessor creates a Processor. adminEmail may be empty.
func NewProcessor(credits CreditReader, users UserReader, sender mail.Sender, adminEmail string, logger *slog.Logger, recorder metrics.Recorder) *Processor {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Processor{
		credits:    credits,
		users:      users,
		sender:     sender,
		adminEmail: adminEmail,
		logger:     logger.With("component", "notify.processor"),
		metrics:    recorder,
	}
}

// Process sends the notification for creditID.
//
// A credit or owner that no longer exists is a normal outcome reported through the
// returned Status with a nil error. Delivery failures are returned so the queue can retry.
func (p *Processor) Process(ctx context.Context, creditID int64) (Status, error) {
	start := time.Now()

	credit, err := p.credits.GetCreditByID(ctx, creditID)
	if errors.Is(err, repository.ErrCreditNotFound) {
		p.logger.Info("credit gone before notification", "credit_id", creditID)
		p.metrics.IncNotificationProcessed(metrics.ProcessSkipped)
		return StatusCreditNotFound, nil
	}
	if err != nil {
		p.metrics.IncNotificationProcessed(metrics.ProcessFailed)
		return "", fmt.Errorf("load credit %d: %w", creditID, err)
	}

	user, err := p.users.GetUserByID(ctx, credit.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		p.logger.Info("credit owner gone before notification", "credit_id", creditID, "user_id", credit.UserID)
		p.metrics.IncNotificationProcessed(metrics.ProcessSkipped)
		return StatusUserNotFound, nil
	}
	if err != nil {
		p.metrics.IncNotificationProcessed(metrics.ProcessFailed)
		return "", fmt.Errorf("load user %d: %w", credit.UserID, err)
	}

	msg, err := CreditCreatedMessage(credit, user, p.adminEmail)
	if err != nil {
		p.metrics.IncNotificationProcessed(metrics.ProcessFailed)
		return "", fmt.Errorf("compose credit %d: %w", creditID, err)
	}

	if err := p.sender.Send(ctx, msg); err != nil {
		p.metrics.IncNotificationProcessed(metrics.ProcessFailed)
		return "", fmt.Errorf("send credit %d notification: %w", creditID, err)
	}

	p.metrics.IncNotificationProcessed(metrics.ProcessSent)
	p.metrics.ObserveNotificationDuration(time.Since(start))
	p.logger.Info("credit notification sent", "credit_id", creditID, "recipients", len(msg.To))
	return StatusSent, nil
}
