// Package app holds the process wiring shared by the api and worker binaries:
// logger construction, secret redaction and the notification pipeline.
package app

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/credittrack/credittrack/internal/config"
	"github.com/credittrack/credittrack/internal/mail"
	"github.com/credittrack/credittrack/internal/metrics"
	"github.com/credittrack/credittrack/internal/notify"
)

// NewLogger builds the process logger from LOG_FORMAT and LOG_LEVEL and installs it as
// the slog default.
func NewLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// ParseLogLevel converts a level name to slog.Level. Unknown names mean info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// RedactURL drops the password of a connection URL.
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// SanitizeError renders err with every secret replaced by its redacted form.
func SanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := RedactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}

// NewMailSender returns the sender selected by MAIL_DRIVER.
func NewMailSender(cfg *config.Config, logger *slog.Logger) mail.Sender {
	if cfg.MailDriver == config.MailDriverLog {
		return mail.NewLogSender(logger)
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.MailServer,
		Port:     cfg.MailPort,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
		From:     cfg.MailDefaultSender,
		UseTLS:   cfg.MailUseTLS,
		UseSSL:   cfg.MailUseSSL,
	}, logger)
}

// NewRedisQueue returns the notification stream configured by the NOTIFY_* variables.
func NewRedisQueue(cfg *config.Config, client *redis.Client) *notify.RedisQueue {
	return notify.NewRedisQueue(client, notify.RedisQueueConfig{
		Stream:   cfg.NotifyStream,
		Group:    cfg.NotifyGroup,
		DedupTTL: cfg.NotifyDedupTTL,
	})
}

// Consumer is a notification worker with its reclaim schedule.
type Consumer struct {
	Worker    *notify.Worker
	Reclaimer *notify.Reclaimer
}

// NewConsumer wires a Worker and its Reclaimer over queue.
func NewConsumer(
	cfg *config.Config,
	client *redis.Client,
	queue *notify.RedisQueue,
	credits notify.CreditReader,
	users notify.UserReader,
	sender mail.Sender,
	logger *slog.Logger,
	recorder metrics.Recorder,
) (*Consumer, error) {
	processor := notify.NewProcessor(credits, users, sender, cfg.MailAdmin, logger, recorder)

	worker := notify.NewWorker(client, queue, processor, logger, notify.NewConsumerID(), recorder)
	worker.SetMaxDeliveries(cfg.NotifyMaxDeliveries)
	worker.SetClaimIdle(cfg.NotifyClaimIdle)

	reclaimer, err := notify.NewReclaimer(worker, cfg.NotifyReclaimSchedule, logger)
	if err != nil {
		return nil, err
	}
	return &Consumer{Worker: worker, Reclaimer: reclaimer}, nil
}

// MemoryConsumer runs the notification processor over an in-process MemoryQueue.
// It serves NOTIFY_QUEUE_DRIVER=memory, where the API process is its own worker.
type MemoryConsumer struct {
	Queue     *notify.MemoryQueue
	processor notify.JobProcessor
	logger    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMemoryConsumer builds a MemoryQueue of NOTIFY_MEMORY_BUFFER jobs and its processor.
func NewMemoryConsumer(
	cfg *config.Config,
	credits notify.CreditReader,
	users notify.UserReader,
	sender mail.Sender,
	logger *slog.Logger,
	recorder metrics.Recorder,
) *MemoryConsumer {
	return &MemoryConsumer{
		Queue:     notify.NewMemoryQueue(cfg.NotifyMemoryBuffer),
		processor: notify.NewProcessor(credits, users, sender, cfg.MailAdmin, logger, recorder),
		logger:    logger,
	}
}

// Start consumes jobs in a goroutine until Shutdown.
func (c *MemoryConsumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.Queue.Run(ctx, c.processor, c.logger)
	}()
}

// Shutdown stops the consumer after its in-flight job. Buffered jobs are dropped.
func (c *MemoryConsumer) Shutdown(ctx context.Context) error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	select {
	case <-c.done:
		if n := c.Queue.Len(); n > 0 {
			c.logger.Warn("notification jobs dropped at shutdown", "count", n)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
