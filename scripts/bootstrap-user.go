package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/credittrack/credittrack/internal/auth"
	"github.com/credittrack/credittrack/internal/mail"
	"github.com/credittrack/credittrack/internal/repository"
	"github.com/credittrack/credittrack/internal/service"
)

type output struct {
	UserID      int64  `json:"user_id"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		jwtSecret   = flag.String("jwt-secret", os.Getenv("JWT_SECRET_KEY"), "Secret used to sign the session token")
		email       = flag.String("email", "", "User email")
		password    = flag.String("password", os.Getenv("BOOTSTRAP_PASSWORD"), "User password (defaults to $BOOTSTRAP_PASSWORD)")
		ttl         = flag.Duration("token-ttl", 15*time.Minute, "Lifetime of the printed session token")
		migrate     = flag.Bool("migrate", true, "Apply database migrations first")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	if *jwtSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET_KEY is required")
		os.Exit(1)
	}
	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "-email and -password are required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *migrate {
		if err := repository.Migrate(*databaseURL); err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
	}

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	sessions := auth.NewSessionManager(*jwtSecret, *ttl)
	// Registration never mails, so the reset signer and sender are placeholders.
	svc := service.NewAuthService(repo, sessions, auth.NewTimedSigner(*jwtSecret, auth.PasswordResetSalt),
		mail.NewLogSender(logger), service.AuthOptions{}, logger, nil)

	token, err := svc.Register(ctx, *email, *password)
	switch {
	case errors.Is(err, service.ErrEmailExists):
		fmt.Fprintln(os.Stderr, "user already exists:", service.NormalizeEmail(*email))
		os.Exit(1)
	case err != nil:
		fmt.Fprintln(os.Stderr, "register user:", err)
		os.Exit(1)
	}

	session, err := sessions.Parse(token)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse issued token:", err)
		os.Exit(1)
	}

	out := output{
		UserID:      session.UserID,
		Email:       service.NormalizeEmail(*email),
		AccessToken: token,
	}

	if *format == "json" {
		if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
			fmt.Fprintln(os.Stderr, "encode output:", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("user_id=%d\n", out.UserID)
	fmt.Printf("email=%s\n", out.Email)
	fmt.Printf("access_token=%s\n", out.AccessToken)
}
