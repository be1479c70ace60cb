package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// readyTimeout bounds each dependency probe of /readyz.
const readyTimeout = 3 * time.Second

// HealthChecker is a dependency that can be probed for readiness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	deps   []namedChecker
	logger *slog.Logger
}

type namedChecker struct {
	name    string
	checker HealthChecker
}

// NewHealthHandler probes Postgres and Redis. A nil checker is reported as
// "not configured" and does not fail readiness.
func NewHealthHandler(db, redis HealthChecker) *HealthHandler {
	return &HealthHandler{
		deps: []namedChecker{
			{name: "postgres", checker: db},
			{name: "redis", checker: redis},
		},
		logger: slog.Default(),
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz reports that the process is serving. It does not touch dependencies.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz probes every dependency concurrently and returns 503 if any fails.
// Failure details go to the log, the body only says "unavailable".
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	results := make([]string, len(h.deps))
	var wg sync.WaitGroup
	for i, dep := range h.deps {
		if dep.checker == nil {
			results[i] = "not configured"
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dep.checker.Ping(ctx); err != nil {
				h.logger.Warn("readiness probe failed", "dependency", dep.name, "error", err)
				results[i] = "unavailable"
				return
			}
			results[i] = "ok"
		}()
	}
	wg.Wait()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.deps))}
	status := http.StatusOK
	for i, dep := range h.deps {
		resp.Checks[dep.name] = results[i]
		if results[i] == "unavailable" {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}
