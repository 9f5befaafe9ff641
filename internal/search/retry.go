package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"safekids-search/internal/llm"
	"safekids-search/internal/metrics"
	"safekids-search/internal/query"
	"safekids-search/pkg/logging/logging"
)

// parseAttempts is the initial attempt plus exactly one retry.
const parseAttempts = 2

// parseWithRetry retries any parser failure once, including validation
// failures. When both attempts fail the first error is returned.
func (s *Service) parseWithRetry(ctx context.Context, raw string) (query.ParsedQuery, error) {
	logger := logging.L(ctx)

	var first *Error
	for attempt := 0; attempt < parseAttempts; attempt++ {
		if attempt > 0 {
			if err := s.waitBeforeRetry(ctx, attempt, first); err != nil {
				return query.ParsedQuery{}, first
			}
		}

		pq, err := s.parser.Parse(ctx, raw)
		if err == nil {
			return pq, nil
		}

		e := classify("parse", err)
		metrics.ModelAttemptFailuresTotal.WithLabelValues(string(e.Kind)).Inc()
		logger.Warn("model_attempt_failed",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", parseAttempts),
			zap.String("kind", string(e.Kind)),
			zap.Bool("transient", llm.IsTransient(err)),
			zap.Error(err),
		)

		if first == nil {
			first = e
		}
	}

	return query.ParsedQuery{}, first
}

// waitBeforeRetry sleeps for the jittered backoff, or for the endpoint's
// Retry-After when configured to honour it. It returns early on ctx end.
func (s *Service) waitBeforeRetry(ctx context.Context, attempt int, prev error) error {
	delay := llm.Backoff(s.cfg.RetryBackoff, attempt-1)
	if ra := llm.RetryAfter(prev); ra > 0 && s.cfg.MaxRetryAfter > 0 {
		delay = min(ra, s.cfg.MaxRetryAfter)
	}
	if delay <= 0 {
		return ctx.Err()
	}

	logging.L(ctx).Debug("backing off before retry",
		zap.Duration("backoff", delay),
		zap.Int("next_attempt", attempt+1),
	)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
