package middleware

import (
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"safekids-search/internal/metrics"
	"safekids-search/internal/ratelimit"
	"safekids-search/pkg/logging/logging"
)

const rateLimitedMessage = "Too many search requests. Please try again later."

// RateLimit rejects callers that exceed their per-identity budget with 429.
// A failing limiter lets the request through.
func RateLimit(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			uid, ok := UserID(ctx)
			if !ok {
				uid = AnonymousID
			}

			d, err := limiter.Allow(ctx, uid)
			if err != nil {
				logging.L(ctx).Warn("rate_limit_unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			reset := strconv.Itoa(int(math.Ceil(d.ResetAfter.Seconds())))
			h := w.Header()
			h.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("RateLimit-Reset", reset)

			if !d.Allowed {
				metrics.RateLimitedTotal.Inc()
				logging.L(ctx).Info("rate_limited", zap.Int("limit", d.Limit))
				h.Set("Retry-After", reset)
				writeError(w, http.StatusTooManyRequests, rateLimitedMessage)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
