// Package main is the entrypoint for the credittrack notification worker.
//
// The worker consumes credit-created jobs from the Redis stream, mails the credit owner
// and the admin address, and periodically reclaims jobs whose delivery failed.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/credittrack/credittrack/internal/app"
	"github.com/credittrack/credittrack/internal/cache"
	"github.com/credittrack/credittrack/internal/config"
	"github.com/credittrack/credittrack/internal/metrics"
	"github.com/credittrack/credittrack/internal/repository"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg).With("process", "worker")

	if cfg.NotifyQueueDriver == config.QueueDriverMemory {
		logger.Error("NOTIFY_QUEUE_DRIVER=memory is consumed by the API process; the worker needs the redis driver")
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", app.SanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", app.RedactURL(cfg.DatabaseURL)),
		)
		return err
	}
	defer repo.Close()

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", app.SanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", app.RedactURL(cfg.RedisURL)),
		)
		return err
	}
	defer cacheClient.Close()

	recorder := metrics.NewInMemory()
	queue := app.NewRedisQueue(cfg, cacheClient.Client())
	consumer, err := app.NewConsumer(cfg, cacheClient.Client(), queue, repo, repo, app.NewMailSender(cfg, logger), logger, recorder)
	if err != nil {
		return err
	}

	consumer.Reclaimer.Start()
	logger.Info("notification worker starting",
		"stream", queue.Stream(),
		"group", queue.Group(),
		"reclaim_schedule", cfg.NotifyReclaimSchedule,
	)

	runErr := make(chan error, 1)
	go func() { runErr <- consumer.Worker.Run(ctx) }()

	select {
	case err := <-runErr:
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = consumer.Reclaimer.Shutdown(stopCtx)
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := consumer.Reclaimer.Shutdown(stopCtx); err != nil {
		logger.Warn("reclaimer shutdown", "error", err)
	}
	if err := consumer.Worker.Shutdown(stopCtx); err != nil {
		return err
	}
	logger.Info("notification worker stopped")
	return nil
}
