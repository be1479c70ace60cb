package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/credittrack/credittrack/internal/auth"
	"github.com/credittrack/credittrack/internal/metrics"
	"github.com/credittrack/credittrack/internal/model"
	"github.com/credittrack/credittrack/internal/repository"
	"github.com/credittrack/credittrack/internal/service"
	"github.com/credittrack/credittrack/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type authFixture struct {
	svc      *service.AuthService
	store    *testutil.MemoryStore
	mailer   *testutil.RecordingSender
	sessions *auth.SessionManager
	resets   *auth.TimedSigner
	recorder *metrics.InMemoryRecorder
	now      time.Time
}

func newAuthFixture(t *testing.T, opts service.AuthOptions) *authFixture {
	t.Helper()

	f := &authFixture{
		store:    testutil.NewMemoryStore(),
		mailer:   &testutil.RecordingSender{},
		sessions: auth.NewSessionManager("jwt-secret", 15*time.Minute),
		resets:   auth.NewTimedSigner("app-secret", auth.PasswordResetSalt),
		recorder: metrics.NewInMemory(),
		now:      time.Now(),
	}
	f.resets.SetClock(func() time.Time { return f.now })

	if opts.ResetMaxAge == 0 {
		opts.ResetMaxAge = 600 * time.Second
	}
	if opts.ResetLinkBase == "" {
		opts.ResetLinkBase = "http://frontend.test/reset/"
	}
	f.svc = service.NewAuthService(f.store, f.sessions, f.resets, f.mailer, opts, discardLogger(), f.recorder)
	return f
}

func TestRegister_TokenResolvesToProfile(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t, service.AuthOptions{})
	ctx := context.Background()

	token, err := f.svc.Register(ctx, "  Alice@Example.COM ", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	session, err := f.sessions.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	user, err := f.svc.Profile(ctx, session.UserID)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("Email = %q, want normalized alice@example.com", user.Email)
	}
	if f.recorder.Snapshot().UsersRegistered != 1 {
		t.Error("registration should be counted")
	}
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"no at sign", "alice.example.com", "secret1", service.ErrInvalidEmail},
		{"no dot", "alice@example", "secret1", service.ErrInvalidEmail},
		{"space inside", "al ice@example.com", "secret1", service.ErrInvalidEmail},
		{"empty", "", "secret1", service.ErrInvalidEmail},
		{"longer than column", strings.Repeat("a", 244) + "@example.com", "secret1", service.ErrInvalidEmail},
		{"column length", strings.Repeat("a", 243) + "@example.com", "secret1", nil},
		{"short password", "alice@example.com", "12345", service.ErrWeakPassword},
		{"password padded to six", "alice@example.com", "  1234  ", service.ErrWeakPassword},
		{"six characters", "alice@example.com", "123456", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newAuthFixture(t, service.AuthOptions{})
			_, err := f.svc.Register(context.Background(), tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// schemaRejectingStore answers CreateUser the way Postgres does for a CHECK or length violation.
type schemaRejectingStore struct {
	*testutil.MemoryStore
}

func (schemaRejectingStore) CreateUser(context.Context, *model.User) error {
	return repository.ErrInvalidEmail
}

func TestRegister_SchemaRejectionIsInvalidEmail(t *testing.T) {
	t.Parallel()

	store := schemaRejectingStore{testutil.NewMemoryStore()}
	svc := service.NewAuthService(store, auth.NewSessionManager("jwt-secret", time.Minute),
		auth.NewTimedSigner("app-secret", auth.PasswordResetSalt), &testutil.RecordingSender{},
		service.AuthOptions{}, discardLogger(), nil)

	_, err := svc.Register(context.Background(), "straße@example.com", "secret1")
	if !errors.Is(err, service.ErrInvalidEmail) {
		t.Errorf("Register error = %v, want ErrInvalidEmail", err)
	}
}

func TestRegister_DuplicateIsConflict(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t, service.AuthOptions{})
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, "bob@example.com", "secret1"); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := f.svc.Register(ctx, "BOB@example.com", "other-secret")
	if !errors.Is(err, service.ErrEmailExists) {
		t.Errorf("second Register error = %v, want ErrEmailExists", err)
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t, service.AuthOptions{})
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, "carol@example.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := f.svc.Login(ctx, " CAROL@example.com", "secret1 "); err != nil {
		t.Errorf("Login with valid credentials: %v", err)
	}

	_, wrongPassword := f.svc.Login(ctx, "carol@example.com", "secret2")
	_, unknownUser := f.svc.Login(ctx, "nobody@example.com", "secret1")
	if !errors.Is(wrongPassword, service.ErrInvalidCredentials) || !errors.Is(unknownUser, service.ErrInvalidCredentials) {
		t.Errorf("failures should collapse to ErrInvalidCredentials, got %v and %v", wrongPassword, unknownUser)
	}
	if wrongPassword.Error() != unknownUser.Error() {
		t.Error("wrong password and unknown user must be indistinguishable")
	}
	if got := f.recorder.Snapshot().LoginsFailed; got != 2 {
		t.Errorf("LoginsFailed = %d, want 2", got)
	}
}

func TestLogin_UnknownEmailCostsAHashVerification(t *testing.T) {
	f := newAuthFixture(t, service.AuthOptions{})
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, "erin@example.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	// Warm up the dummy hash so both timings below cover a single verification.
	_, _ = f.svc.Login(ctx, "warmup@example.com", "secret1")

	start := time.Now()
	_, _ = f.svc.Login(ctx, "erin@example.com", "wrong-secret")
	known := time.Since(start)

	start = time.Now()
	_, err := f.svc.Login(ctx, "nobody@example.com", "wrong-secret")
	unknown := time.Since(start)

	if !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("Login error = %v, want ErrInvalidCredentials", err)
	}
	if unknown < known/4 {
		t.Errorf("unknown email took %v, wrong password took %v", unknown, known)
	}
}

func TestLogin_UpgradesLegacyHash(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t, service.AuthOptions{})
	ctx := context.Background()

	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	user := &model.User{Email: "dave@example.com", PasswordHash: string(legacy)}
	if err := f.store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if _, err := f.svc.Login(ctx, "dave@example.com", "legacy-pass"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	stored, _ := f.store.GetUserByID(ctx, user.ID)
	if !strings.HasPrefix(stored.PasswordHash, "$argon2id$") {
		t.Errorf("hash not upgraded: %s", stored.PasswordHash)
	}
	if _, err := f.svc.Login(ctx, "dave@example.com", "legacy-pass"); err != nil {
		t.Errorf("Login after upgrade: %v", err)
	}
}

func TestProfile_DeletedUser(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t, service.AuthOptions{})
	if _, err := f.svc.Profile(context.Background(), 99); !errors.Is(err, service.ErrUserNotFound) {
		t.Errorf("Profile error = %v, want ErrUserNotFound", err)
	}
}

func TestForgotPassword_SendsLink(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t, service.AuthOptions{ResetLinkBase: "https://app.test/reset/"})
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, "erin@example.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := f.svc.ForgotPassword(ctx, "Erin@Example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}

	msgs := f.mailer.Messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	if msgs[0].To[0] != "erin@example.com" {
		t.Errorf("To = %v", msgs[0].To)
	}
	if !strings.Contains(msgs[0].Text, "https://app.test/reset/") {
		t.Errorf("body has no reset link:\n%s", msgs[0].Text)
	}
	if !strings.Contains(msgs[0].Text, "10 minutes") {
		t.Errorf("body should state the validity:\n%s", msgs[0].Text)
	}
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t, service.AuthOptions{})
	if err := f.svc.ForgotPassword(context.Background(), "ghost@example.com"); !errors.Is(err, service.ErrUserNotFound) {
		t.Errorf("error = %v, want ErrUserNotFound", err)
	}

	hidden := newAuthFixture(t, service.AuthOptions{HideUnknownEmail: true})
	if err := hidden.svc.ForgotPassword(context.Background(), "ghost@example.com"); err != nil {
		t.Errorf("hidden mode error = %v, want nil", err)
	}
	if hidden.mailer.Count() != 0 {
		t.Error("no mail should be sent for unknown addresses")
	}
}

func TestForgotPassword_MailFailure(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t, service.AuthOptions{})
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, "frank@example.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	f.mailer.Err = errors.New("535 authentication failed")

	if err := f.svc.ForgotPassword(ctx, "frank@example.com"); !errors.Is(err, service.ErrMailDeliveryFailed) {
		t.Errorf("error = %v, want ErrMailDeliveryFailed", err)
	}
}

// resetToken requests a reset for email and extracts the token from the mailed link.
func resetToken(t *testing.T, f *authFixture, email string) string {
	t.Helper()
	if err := f.svc.ForgotPassword(context.Background(), email); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	msgs := f.mailer.Messages()
	body := msgs[len(msgs)-1].Text
	start := strings.Index(body, "/reset/") + len("/reset/")
	end := start + strings.IndexByte(body[start:], '\n')
	return body[start:end]
}

func TestResetPassword(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t, service.AuthOptions{})
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, "gina@example.com", "old-secret"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token := resetToken(t, f, "gina@example.com")

	if err := f.svc.ResetPassword(ctx, token, "123"); !errors.Is(err, service.ErrWeakPassword) {
		t.Errorf("weak password error = %v", err)
	}
	if err := f.svc.ResetPassword(ctx, token+"x", "new-secret"); !errors.Is(err, service.ErrInvalidToken) {
		t.Errorf("tampered token error = %v", err)
	}
	if err := f.svc.ResetPassword(ctx, token, "new-secret"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	if _, err := f.svc.Login(ctx, "gina@example.com", "old-secret"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Error("old password should stop working")
	}
	if _, err := f.svc.Login(ctx, "gina@example.com", "new-secret"); err != nil {
		t.Errorf("Login with new password: %v", err)
	}
}

func TestResetPassword_Expired(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t, service.AuthOptions{})
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, "hank@example.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token := resetToken(t, f, "hank@example.com")

	f.now = f.now.Add(601 * time.Second)
	if err := f.svc.ResetPassword(ctx, token, "new-secret"); !errors.Is(err, service.ErrTokenExpired) {
		t.Errorf("error = %v, want ErrTokenExpired", err)
	}
}

func TestResetPassword_UserGone(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t, service.AuthOptions{})
	token := f.resets.Issue("removed@example.com")

	if err := f.svc.ResetPassword(context.Background(), token, "new-secret"); !errors.Is(err, service.ErrUserNotFound) {
		t.Errorf("error = %v, want ErrUserNotFound", err)
	}
}
