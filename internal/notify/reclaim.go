package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultReclaimSchedule runs the pending-job sweep twice a minute.
const DefaultReclaimSchedule = "@every 30s"

// sweepTimeout bounds a single reclaim sweep.
const sweepTimeout = 2 * time.Minute

// Reclaimer periodically runs Worker.Reclaim and refreshes the queue depth metric.
type Reclaimer struct {
	cron   *cron.Cron
	worker *Worker
	logger *slog.Logger
}

// NewReclaimer schedules sweeps for worker using a cron spec (e.g. "@every 30s").
func NewReclaimer(worker *Worker, schedule string, logger *slog.Logger) (*Reclaimer, error) {
	logger = logger.With("component", "notify.reclaimer")
	cl := cronLogger{logger: logger}

	r := &Reclaimer{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		worker: worker,
		logger: logger,
	}
	if schedule == "" {
		schedule = DefaultReclaimSchedule
	}
	if _, err := r.cron.AddFunc(schedule, r.sweep); err != nil {
		return nil, fmt.Errorf("schedule reclaim %q: %w", schedule, err)
	}
	return r, nil
}

// Start begins running scheduled sweeps in the background.
func (r *Reclaimer) Start() {
	r.cron.Start()
	r.logger.Info("reclaimer started", "entries", len(r.cron.Entries()))
}

// Shutdown stops scheduling and waits for a running sweep to finish.
// It implements server.ShutdownFunc.
func (r *Reclaimer) Shutdown(ctx context.Context) error {
	stopped := r.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reclaimer) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if err := r.worker.Reclaim(ctx); err != nil {
		r.logger.Warn("reclaim sweep failed", "error", err)
	}
	r.worker.RefreshQueueDepth(ctx)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
