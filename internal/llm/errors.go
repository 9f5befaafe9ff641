package llm

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrTimeout is returned when an attempt exceeds UpstreamTimeout.
	ErrTimeout = errors.New("llmclient: upstream timeout")
	// ErrUnavailable wraps network-level failures reaching the endpoint.
	ErrUnavailable = errors.New("llmclient: upstream unavailable")
	// ErrBadResponse marks a 2xx answer whose envelope could not be read.
	ErrBadResponse = errors.New("llmclient: bad upstream response")
)

// StatusError is a non-2xx answer from the model endpoint.
type StatusError struct {
	StatusCode int
	Body       string
	// RetryAfter is the parsed Retry-After header, zero when absent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("llmclient: upstream %d", e.StatusCode)
	}
	return fmt.Sprintf("llmclient: upstream %d: %s", e.StatusCode, e.Body)
}

// IsTransient reports whether err is the kind of failure that may go away on
// its own: timeouts, network errors, 408, 429 and 5xx.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return shouldRetryStatus(se.StatusCode)
	}
	return isTransientNetError(err)
}

// isTransientNetError determines whether a network error is worth retrying.
func isTransientNetError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" || opErr.Op == "read" || opErr.Op == "write" {
			return true
		}
	}

	// wrapped errors sometimes lose their type
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"temporary failure",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

func shouldRetryStatus(status int) bool {
	switch {
	case status == http.StatusTooManyRequests:
		return true
	case status == http.StatusRequestTimeout:
		return true
	case status >= 500 && status <= 599:
		return true
	default:
		return false
	}
}

// truncate limits string length for logging and error bodies.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
