package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/credittrack/credittrack/internal/auth"
	"github.com/credittrack/credittrack/internal/middleware"
)

// APIPrefix is where the auth and credit routes are mounted.
const APIPrefix = "/api/v1"

// RouterConfig carries the handlers and middleware settings of the HTTP API.
type RouterConfig struct {
	Logger *slog.Logger

	Root    *Handler
	Auth    *AuthHandler
	Credits *CreditHandler
	Health  *HealthHandler
	Metrics *MetricsHandler

	Sessions *auth.SessionManager

	// Limiter backs the per-IP limit of the public auth routes. Nil disables it.
	Limiter        middleware.IPRateLimiter
	RateLimitRPS   int
	RateLimitBurst int

	CORSOrigins        []string
	IsDevelopment      bool
	MaxRequestBodySize int64
}

// NewRouter builds the chi router with middleware and all routes.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment:      cfg.IsDevelopment,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSOrigins,
		MaxAge:         middleware.DefaultCORSConfig().MaxAge,
	}))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))
	}

	root := cfg.Root
	if root == nil {
		root = New()
	}
	r.Get("/", root.Banner)

	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health.Healthz)
		r.Get("/readyz", cfg.Health.Readyz)
	}
	if cfg.Metrics != nil {
		r.Get("/metrics", cfg.Metrics.Metrics)
	}

	requireAuth := middleware.Auth(middleware.AuthConfig{
		Logger:   cfg.Logger,
		Sessions: cfg.Sessions,
	})
	limitIP := middleware.RateLimitIP(middleware.RateLimitConfig{
		Logger:  cfg.Logger,
		Limiter: cfg.Limiter,
		Enabled: cfg.Limiter != nil,
		Scope:   "auth",
		RPS:     cfg.RateLimitRPS,
		Burst:   cfg.RateLimitBurst,
	})

	r.Route(APIPrefix, func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(limitIP)
				r.Post("/register", cfg.Auth.Register)
				r.Post("/login", cfg.Auth.Login)
				r.Post("/forgot", cfg.Auth.Forgot)
				r.Post("/reset/{token}", cfg.Auth.Reset)
			})
			r.With(requireAuth).Get("/profile", cfg.Auth.Profile)
		})

		r.Route("/credits", func(r chi.Router) {
			r.Get("/distinct", cfg.Credits.Distinct)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", cfg.Credits.Create)
				r.Get("/", cfg.Credits.List)
				r.Get("/{id}", cfg.Credits.Get)
				r.Put("/{id}", cfg.Credits.Update)
				r.Delete("/{id}", cfg.Credits.Delete)
			})
		})
	})

	r.NotFound(root.NotFound)
	r.MethodNotAllowed(root.MethodNotAllowed)

	return r
}
