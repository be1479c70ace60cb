// Package main is the entrypoint for the credittrack API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/credittrack/credittrack/internal/app"
	"github.com/credittrack/credittrack/internal/auth"
	"github.com/credittrack/credittrack/internal/cache"
	"github.com/credittrack/credittrack/internal/config"
	"github.com/credittrack/credittrack/internal/handler"
	"github.com/credittrack/credittrack/internal/mail"
	"github.com/credittrack/credittrack/internal/metrics"
	"github.com/credittrack/credittrack/internal/notify"
	"github.com/credittrack/credittrack/internal/repository"
	"github.com/credittrack/credittrack/internal/server"
	"github.com/credittrack/credittrack/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if cfg.MigrateOnStart {
		if err := repository.Migrate(cfg.DatabaseURL); err != nil {
			logger.Error("failed to run migrations", slog.String("error", app.SanitizeError(err, cfg.DatabaseURL)))
			os.Exit(1)
		}
		logger.Info("database migrations applied")
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", app.SanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", app.RedactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", app.SanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", app.RedactURL(cfg.RedisURL)),
		)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	recorder := metrics.NewInMemory()
	mailer := app.NewMailSender(cfg, logger)

	var (
		queue       notify.Queue
		redisQueue  *notify.RedisQueue
		memConsumer *app.MemoryConsumer
	)
	if cfg.NotifyQueueDriver == config.QueueDriverMemory {
		memConsumer = app.NewMemoryConsumer(cfg, repo, repo, mailer, logger, recorder)
		queue = memConsumer.Queue
	} else {
		redisQueue = app.NewRedisQueue(cfg, cacheClient.Client())
		queue = redisQueue
	}
	dispatcher := notify.NewDispatcher(queue, logger, recorder)

	sessions := auth.NewSessionManager(cfg.JWTSecretKey, cfg.JWTAccessTTL)
	resets := auth.NewTimedSigner(cfg.SecretKey, auth.PasswordResetSalt)

	authService := service.NewAuthService(repo, sessions, resets, mailer, service.AuthOptions{
		ResetMaxAge:      cfg.ResetTokenMaxAge,
		ResetLinkBase:    cfg.ResetLinkBase() + "/reset/",
		HideUnknownEmail: cfg.ResetHideUnknownEmail,
	}, logger, recorder)
	creditService := service.NewCreditService(repo, dispatcher, logger, recorder)

	routerCfg := handler.RouterConfig{
		Logger:             logger,
		Root:               handler.New(),
		Auth:               handler.NewAuthHandler(authService, logger),
		Credits:            handler.NewCreditHandler(creditService, logger),
		Health:             handler.NewHealthHandler(repo, cacheClient),
		Metrics:            handler.NewMetricsHandler(recorder),
		Sessions:           sessions,
		RateLimitRPS:       cfg.AuthRateLimitRPS,
		RateLimitBurst:     cfg.AuthRateLimitBurst,
		CORSOrigins:        cfg.GetCORSAllowedOrigins(),
		IsDevelopment:      cfg.IsDevelopment(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}
	if cfg.AuthRateLimitEnabled {
		routerCfg.Limiter = cacheClient
	}
	r := handler.NewRouter(routerCfg)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Storage is registered first so it closes last.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	switch {
	case memConsumer != nil:
		memConsumer.Start(ctx)
		srv.OnShutdown("notify-memory", memConsumer.Shutdown)
	case cfg.NotifyInlineWorker:
		if err := startInlineConsumer(ctx, cfg, srv, redisQueue, repo, cacheClient, mailer, logger, recorder); err != nil {
			logger.Error("failed to start notification worker", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"mail_driver", cfg.MailDriver,
		"queue_driver", cfg.NotifyQueueDriver,
		"inline_worker", cfg.NotifyInlineWorker,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// startInlineConsumer runs the notification worker and its reclaim sweep inside the API process.
func startInlineConsumer(
	ctx context.Context,
	cfg *config.Config,
	srv *server.Server,
	queue *notify.RedisQueue,
	repo *repository.Repository,
	cacheClient *cache.Cache,
	mailer mail.Sender,
	logger *slog.Logger,
	recorder metrics.Recorder,
) error {
	consumer, err := app.NewConsumer(cfg, cacheClient.Client(), queue, repo, repo, mailer, logger, recorder)
	if err != nil {
		return err
	}
	if err := consumer.Worker.EnsureGroup(ctx); err != nil {
		return err
	}

	go func() {
		if err := consumer.Worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("notification worker stopped", "error", err)
		}
	}()
	consumer.Reclaimer.Start()

	srv.OnShutdown("notify-worker", consumer.Worker.Shutdown)
	srv.OnShutdown("notify-reclaimer", consumer.Reclaimer.Shutdown)
	return nil
}
