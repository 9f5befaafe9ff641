package llm

import (
	"errors"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxRetryAfter = 5 * time.Minute

// RetryAfter returns the server-requested delay carried by err, if any.
func RetryAfter(err error) time.Duration {
	var se *StatusError
	if !errors.As(err, &se) {
		return 0
	}
	return se.RetryAfter
}

// parseRetryAfter extracts the retry delay from a Retry-After header.
// Returns 0 if header is missing or invalid.
//
// Retry-After can be:
// - Number of seconds: "120"
// - HTTP date: "Wed, 21 Oct 2015 07:28:00 GMT"
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil {
		if seconds > 0 {
			d := time.Duration(seconds) * time.Second
			if d > maxRetryAfter {
				d = maxRetryAfter
			}
			return d
		}
		return 0
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		duration := time.Until(t)
		if duration > 0 {
			if duration > maxRetryAfter {
				duration = maxRetryAfter
			}
			return duration
		}
	}

	return 0
}

// Backoff calculates exponential backoff with full jitter: a random value
// in [0, base*2^attempt), capped at 60s. A non-positive base means no delay.
//
// Example progression (base=100ms):
// Attempt 0: 0-100ms
// Attempt 1: 0-200ms
// Attempt 2: 0-400ms
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}

	// 2^10 is more than enough
	const maxExponent = 10
	if attempt > maxExponent {
		attempt = maxExponent
	}
	if attempt < 0 {
		attempt = 0
	}

	maxBackoff := time.Duration(float64(base) * math.Pow(2, float64(attempt)))

	const maxAllowed = 60 * time.Second
	if maxBackoff > maxAllowed {
		maxBackoff = maxAllowed
	}

	return time.Duration(rand.Float64() * float64(maxBackoff))
}
