package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/neexbeast/hotel-offers/internal/obs"
)

// RouterConfig carries everything NewRouter mounts besides the handlers.
type RouterConfig struct {
	Token              string
	RateLimitPerMinute int
	Health             http.HandlerFunc
	// Suppliers serves the mock supplier endpoints under /suppliers when set.
	Suppliers http.Handler
	// Metrics enables request metrics and GET /metrics when set.
	Metrics *obs.Metrics
	Log     *slog.Logger
}

// NewRouter builds and returns the Chi router with all routes configured.
// Hotel search, health, metrics and the mock suppliers are public; cache
// management and run inspection require bearer auth. Rate limiting is applied
// per IP to the API routes.
func NewRouter(handlers *Handlers, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(cfg.Log))
	if cfg.Metrics != nil {
		r.Use(Metrics(cfg.Metrics))
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	if cfg.Suppliers != nil {
		r.Mount("/suppliers", cfg.Suppliers)
	}

	limit := cfg.RateLimitPerMinute
	if limit <= 0 {
		limit = 60
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(limit, time.Minute))

		r.Get("/health", cfg.Health)
		r.Get("/hotels", handlers.GetHotels)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(cfg.Token))
			r.Delete("/cache", handlers.ClearCache)
			r.Get("/runs/{runID}", handlers.GetRun)
		})
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
