package httpserver

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"safekids-search/internal/handlers"
	"safekids-search/internal/metrics"
	"safekids-search/internal/middleware"
	"safekids-search/internal/ratelimit"
)

const (
	defaultRequestTimeout = 75 * time.Second
	maxBodyBytes          = 16 * 1024
)

// Deps are the handlers and collaborators the router mounts.
type Deps struct {
	Search  *handlers.SearchHandler
	Limiter ratelimit.Limiter
	// Ready is pinged by /readyz.
	Ready map[string]handlers.Pinger
	// RequestTimeout bounds every request; zero uses 75s, enough for two model attempts.
	RequestTimeout time.Duration
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, deps Deps) {
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(metrics.Middleware)

	r.Use(middleware.Identity())
	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))
			if deps.Limiter != nil {
				r.Use(middleware.RateLimit(deps.Limiter))
			}
			r.Post("/search", deps.Search.Search)
		})
	})

	r.Get("/healthz", handlers.Healthz)
	r.Get("/readyz", handlers.Readyz(deps.Ready))
	r.Handle("/metrics", metrics.Handler())
}
