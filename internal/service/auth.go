package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/credittrack/credittrack/internal/auth"
	"github.com/credittrack/credittrack/internal/mail"
	"github.com/credittrack/credittrack/internal/metrics"
	"github.com/credittrack/credittrack/internal/model"
	"github.com/credittrack/credittrack/internal/repository"
)

const (
	// MinPasswordLength is the minimum number of characters of a password.
	MinPasswordLength = 6
	// MaxEmailLength matches the users.email column.
	MaxEmailLength = 255
)

var emailRegex = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// UserStore is the credential store used by AuthService.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
}

// AuthOptions configures the password reset flow.
type AuthOptions struct {
	// ResetMaxAge is how long a reset link stays valid.
	ResetMaxAge time.Duration
	// ResetLinkBase is prefixed to the token, e.g. "https://app.example.com/reset/".
	ResetLinkBase string
	// HideUnknownEmail makes ForgotPassword succeed for unknown addresses.
	HideUnknownEmail bool
}

// AuthService implements registration, login and password reset.
type AuthService struct {
	users    UserStore
	sessions *auth.SessionManager
	resets   *auth.TimedSigner
	mailer   mail.Sender
	opts     AuthOptions
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewAuthService creates an AuthService.
func NewAuthService(users UserStore, sessions *auth.SessionManager, resets *auth.TimedSigner, mailer mail.Sender, opts AuthOptions, logger *slog.Logger, recorder metrics.Recorder) *AuthService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		resets:   resets,
		mailer:   mailer,
		opts:     opts,
		logger:   logger.With("component", "service.auth"),
		metrics:  recorder,
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkPassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// Register creates a user and returns a session token for it.
func (s *AuthService) Register(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)
	password = strings.TrimSpace(password)

	if utf8.RuneCountInString(email) > MaxEmailLength || !emailRegex.MatchString(email) {
		return "", ErrInvalidEmail
	}
	if err := checkPassword(password); err != nil {
		return "", err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return "", ErrEmailExists
		case errors.Is(err, repository.ErrInvalidEmail):
			return "", ErrInvalidEmail
		}
		return "", fmt.Errorf("create user: %w", err)
	}

	s.metrics.IncUserRegistered()
	s.logger.Info("user registered", "user_id", user.ID)

	return s.sessions.Issue(user.ID)
}

// Login checks credentials and returns a session token. Every failure is ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)
	password = strings.TrimSpace(password)

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		auth.VerifyDummy(password)
		s.metrics.IncLoginFailed()
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}

	match, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash unreadable", "user_id", user.ID, "error", err)
	}
	if !match {
		s.metrics.IncLoginFailed()
		return "", ErrInvalidCredentials
	}

	if auth.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user.ID, password)
	}

	return s.sessions.Issue(user.ID)
}

// rehash upgrades a legacy hash. Failure leaves the old hash in place.
func (s *AuthService) rehash(ctx context.Context, userID int64, password string) {
	hash, err := auth.HashPassword(password)
	if err == nil {
		err = s.users.UpdateUserPassword(ctx, userID, hash)
	}
	if err != nil {
		s.logger.Warn("password rehash failed", "user_id", userID, "error", err)
		return
	}
	s.logger.Info("password hash upgraded", "user_id", userID)
}

// Profile returns the user behind a session.
func (s *AuthService) Profile(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ForgotPassword mails a reset link to email. The mail is sent before returning;
// a transport failure is reported as ErrMailDeliveryFailed.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		if s.opts.HideUnknownEmail {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	s.metrics.IncPasswordResetRequested()

	link := s.opts.ResetLinkBase + s.resets.Issue(user.Email)
	msg := &mail.Message{
		To:      []string{user.Email},
		Subject: "Reset your password",
		Text: fmt.Sprintf("To reset your password open the following link:\n\n%s\n\nThis link expires in %s.\n",
			link, humanDuration(s.opts.ResetMaxAge)),
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("password reset email failed", "user_id", user.ID, "error", err)
		return fmt.Errorf("%w: %v", ErrMailDeliveryFailed, err)
	}

	s.logger.Info("password reset email sent", "user_id", user.ID)
	return nil
}

// ResetPassword sets a new password for the address embedded in token.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	password = strings.TrimSpace(password)
	if err := checkPassword(password); err != nil {
		return err
	}

	email, err := s.resets.Verify(token, s.opts.ResetMaxAge)
	switch {
	case errors.Is(err, auth.ErrExpired):
		return ErrTokenExpired
	case err != nil:
		return ErrInvalidToken
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("get user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdateUserPassword(ctx, user.ID, hash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.Info("password reset", "user_id", user.ID)
	return nil
}

// humanDuration renders whole minutes as "10 minutes" and falls back to Duration.String.
func humanDuration(d time.Duration) string {
	if d <= 0 || d%time.Minute != 0 {
		return d.String()
	}
	if m := int(d / time.Minute); m != 1 {
		return fmt.Sprintf("%d minutes", m)
	}
	return "1 minute"
}
