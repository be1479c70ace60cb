// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles,
// optionally seeded from a local .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Mail drivers.
const (
	MailDriverSMTP = "smtp"
	MailDriverLog  = "log"
)

// Notification queue drivers.
const (
	QueueDriverRedis  = "redis"
	QueueDriverMemory = "memory"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL    string `env:"DATABASE_URL,required"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	// Queue broker and rate limit store (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Comma-separated list of allowed origins for the browser frontend.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173,http://127.0.0.1:5173"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_BYTES" envDefault:"1048576"`

	// Signing secrets
	SecretKey    string        `env:"SECRET_KEY,required"`
	JWTSecretKey string        `env:"JWT_SECRET_KEY,required"`
	JWTAccessTTL time.Duration `env:"JWT_ACCESS_TTL" envDefault:"15m"`

	// Password reset
	ResetTokenMaxAge      time.Duration `env:"RESET_TOKEN_MAX_AGE" envDefault:"600s"`
	ResetHideUnknownEmail bool          `env:"RESET_HIDE_UNKNOWN_EMAIL" envDefault:"false"`
	FrontendURL           string        `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`

	// Mail transport
	MailDriver        string `env:"MAIL_DRIVER" envDefault:"smtp"`
	MailServer        string `env:"MAIL_SERVER" envDefault:"smtp.sendgrid.net"`
	MailPort          int    `env:"MAIL_PORT" envDefault:"587"`
	MailUseTLS        bool   `env:"MAIL_USE_TLS" envDefault:"true"`
	MailUseSSL        bool   `env:"MAIL_USE_SSL" envDefault:"false"`
	MailUsername      string `env:"MAIL_USERNAME" envDefault:"apikey"`
	MailPassword      string `env:"MAIL_PASSWORD"`
	MailDefaultSender string `env:"MAIL_DEFAULT_SENDER" envDefault:"no-reply@credittrack.local"`
	MailAdmin         string `env:"MAIL_ADMIN"`

	// Credit notification queue
	NotifyStream          string        `env:"NOTIFY_STREAM" envDefault:"notify:credit-email"`
	NotifyGroup           string        `env:"NOTIFY_GROUP" envDefault:"notify-workers"`
	NotifyDedupTTL        time.Duration `env:"NOTIFY_DEDUP_TTL" envDefault:"24h"`
	NotifyMaxDeliveries   int64         `env:"NOTIFY_MAX_DELIVERIES" envDefault:"5"`
	NotifyClaimIdle       time.Duration `env:"NOTIFY_CLAIM_IDLE" envDefault:"1m"`
	NotifyReclaimSchedule string        `env:"NOTIFY_RECLAIM_SCHEDULE" envDefault:"@every 30s"`
	NotifyInlineWorker    bool          `env:"NOTIFY_INLINE_WORKER" envDefault:"false"`

	// The memory driver keeps jobs inside the API process; they are lost on restart.
	NotifyQueueDriver  string `env:"NOTIFY_QUEUE_DRIVER" envDefault:"redis"`
	NotifyMemoryBuffer int    `env:"NOTIFY_MEMORY_BUFFER" envDefault:"1000"`

	// Rate limiting of public auth routes
	AuthRateLimitEnabled bool `env:"AUTH_RATE_LIMIT_ENABLED" envDefault:"true"`
	AuthRateLimitRPS     int  `env:"AUTH_RATE_LIMIT_RPS" envDefault:"1"`
	AuthRateLimitBurst   int  `env:"AUTH_RATE_LIMIT_BURST" envDefault:"10"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// ResetLinkBase returns the frontend URL without a trailing slash.
func (c *Config) ResetLinkBase() string {
	return strings.TrimRight(c.FrontendURL, "/")
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	switch c.MailDriver {
	case MailDriverSMTP, MailDriverLog:
	default:
		return fmt.Errorf("MAIL_DRIVER must be %q or %q, got %q", MailDriverSMTP, MailDriverLog, c.MailDriver)
	}
	switch c.NotifyQueueDriver {
	case QueueDriverRedis, QueueDriverMemory:
	default:
		return fmt.Errorf("NOTIFY_QUEUE_DRIVER must be %q or %q, got %q", QueueDriverRedis, QueueDriverMemory, c.NotifyQueueDriver)
	}
	if c.MailUseTLS && c.MailUseSSL {
		return errors.New("MAIL_USE_TLS and MAIL_USE_SSL are mutually exclusive")
	}
	if c.NotifyMaxDeliveries <= 0 {
		return errors.New("NOTIFY_MAX_DELIVERIES must be positive")
	}
	if c.ResetTokenMaxAge <= 0 {
		return errors.New("RESET_TOKEN_MAX_AGE must be positive")
	}
	u, err := url.Parse(c.FrontendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("FRONTEND_URL must be an absolute URL, got %q", c.FrontendURL)
	}
	return nil
}

// Load reads an optional .env file, parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		// godotenv never overrides variables already present in the environment.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
