package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"safekids-search/internal/ratelimit"
	"safekids-search/pkg/logging/logging"
)

func TestIdentity(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"u-42", "u-42"},
		{"  u-7 ", "u-7"},
		{"", AnonymousID},
		{strings.Repeat("x", maxUserIDLen+1), AnonymousID},
	}

	for _, tt := range tests {
		var got string
		h := Identity()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = UserID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/search", nil)
		if tt.header != "" {
			req.Header.Set(UserIDHeader, tt.header)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)

		if got != tt.want {
			t.Errorf("header %q: got %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestRateLimitRejectsOverBudget(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{Max: 2, Window: time.Minute})
	h := Identity()(RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	do := func(uid string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/search", nil)
		req.Header.Set(UserIDHeader, uid)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do("u1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := do("u1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), rateLimitedMessage) {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" || rec.Header().Get("RateLimit-Remaining") != "0" {
		t.Fatalf("missing rate limit headers: %v", rec.Header())
	}

	if rec := do("u2"); rec.Code != http.StatusOK {
		t.Fatalf("other identity must not be limited, got %d", rec.Code)
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis down")
}

func TestRateLimitFailsOpen(t *testing.T) {
	h := RateLimit(brokenLimiter{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/search", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected request to pass, got %d", rec.Code)
	}
}

func TestMaxBodySize(t *testing.T) {
	var readErr error
	h := MaxBodySize(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(strings.Repeat("a", 64)))
	h.ServeHTTP(httptest.NewRecorder(), req)

	var mbe *http.MaxBytesError
	if !errors.As(readErr, &mbe) {
		t.Fatalf("expected MaxBytesError, got %v", readErr)
	}
}

func TestTimeoutReturns504(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	h := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		<-release
		_, _ = w.Write([]byte("late"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
}

func TestTimeoutPassesResponseThrough(t *testing.T) {
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "1")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusCreated || rec.Body.String() != "ok" || rec.Header().Get("X-Test") != "1" {
		t.Fatalf("unexpected response %d %q %v", rec.Code, rec.Body.String(), rec.Header())
	}
}

func TestRecovererLogsAndAnswers500(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := Recoverer()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logging.WithLogger(req.Context(), zap.New(core)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatalf("expected panic to be logged")
	}
}

func TestLoggingContextAddsUserID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := Identity()(LoggingContext(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.L(r.Context()).Info("hello")
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	req.Header.Set(UserIDHeader, "u-9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("hello").All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["user_id"]; got != "u-9" {
		t.Fatalf("expected user_id u-9, got %v", got)
	}
}
