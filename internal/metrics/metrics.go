package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter: how each search request was answered (ai, cached, fallback, unavailable).
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total number of search requests by outcome.",
		},
		[]string{"outcome"},
	)

	// Counter: result cache lookups (hit, miss, error).
	CacheResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_results_total",
			Help: "Result cache lookups by result.",
		},
		[]string{"result"},
	)

	// Counter: callers that joined an already running computation.
	InflightJoinsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "search_inflight_joins_total",
			Help: "Total number of search requests collapsed into an in-flight computation.",
		},
	)

	// Counter: model endpoint calls by provider and outcome.
	ModelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_requests_total",
			Help: "Total number of language model requests.",
		},
		[]string{"provider", "outcome"},
	)

	// Histogram: model endpoint latency in seconds.
	ModelRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_request_duration_seconds",
			Help:    "Language model request latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"provider"},
	)

	// Counter: failed parse attempts by error kind.
	ModelAttemptFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_attempt_failures_total",
			Help: "Failed query parse attempts by error kind.",
		},
		[]string{"kind"},
	)

	// Counter: requests rejected by the per-identity rate limit.
	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "search_rate_limited_total",
			Help: "Total number of search requests rejected by the rate limiter.",
		},
	)

	// Histogram: HTTP latency in seconds.
	HTTPLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
		},
		[]string{"path", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		SearchRequestsTotal,
		CacheResultsTotal,
		InflightJoinsTotal,
		ModelRequestsTotal,
		ModelRequestDuration,
		ModelAttemptFailuresTotal,
		RateLimitedTotal,
		HTTPLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures latency for each HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// capture status code
		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		duration := time.Since(start).Seconds()

		// route pattern keeps label cardinality bounded
		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}

		HTTPLatencySeconds.
			WithLabelValues(path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(duration)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
