package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"safekids-search/pkg/logging/logging"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Healthz is the liveness probe.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz answers 200 once every dependency responds to a ping.
func Readyz(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := make(map[string]string, len(deps))
		code := http.StatusOK
		for name, p := range deps {
			if err := p.Ping(ctx); err != nil {
				logging.L(ctx).Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
				status[name] = "down"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		writeJSON(w, code, status)
	}
}
