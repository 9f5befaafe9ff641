package search

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"safekids-search/internal/cache"
	"safekids-search/internal/metrics"
	"safekids-search/internal/query"
	"safekids-search/internal/store"
	"safekids-search/pkg/logging/logging"
)

// Outcomes reported on search_requests_total.
const (
	OutcomeAI          = "ai"
	OutcomeCached      = "cached"
	OutcomeFallback    = "fallback"
	OutcomeUnavailable = "unavailable"
)

const defaultCacheTTL = 60 * time.Second

type Config struct {
	// CacheTTL is how long assisted results are reused.
	CacheTTL time.Duration
	// MaxResults caps every store query.
	MaxResults int
	// VersionID scopes cache keys; bump it to invalidate after prompt changes.
	VersionID string
	// RetryBackoff is the base delay before the single retry. Zero retries immediately.
	RetryBackoff time.Duration
	// MaxRetryAfter caps how long a Retry-After hint is honoured. Zero ignores the hint.
	MaxRetryAfter time.Duration
}

func (c Config) withDefaults() Config {
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
	if c.MaxResults <= 0 || c.MaxResults > store.MaxResults {
		c.MaxResults = store.MaxResults
	}
	if c.VersionID == "" {
		c.VersionID = "v1"
	}
	return c
}

// Result is what a search produces. Query is nil on the fallback path.
type Result struct {
	Posts    []store.Post       `json:"posts"`
	Query    *query.ParsedQuery `json:"query"`
	Fallback bool               `json:"fallback"`
}

type flightResult struct {
	result  Result
	outcome string
}

// Service orchestrates AI-assisted search: cache, in-flight dedup,
// parse with one retry, compile, query, and degrade to literal search.
type Service struct {
	parser Parser
	store  Store
	cache  cache.ResultCache
	flight singleflight.Group
	cfg    Config
}

func NewService(parser Parser, st Store, c cache.ResultCache, cfg Config) *Service {
	return &Service{
		parser: parser,
		store:  st,
		cache:  c,
		cfg:    cfg.withDefaults(),
	}
}

// Search answers raw with structured results when the model cooperates and
// literal results otherwise. Concurrent calls whose queries normalize to the
// same text share one computation; a caller that gives up does not cancel it.
func (s *Service) Search(ctx context.Context, raw string) (Result, error) {
	key := cache.BuildKey(query.Normalize(raw), s.cfg.VersionID).String()
	logger := logging.L(ctx).With(zap.String("search_key", key))
	ctx = logging.WithLogger(ctx, logger)

	if res, ok := s.cached(ctx, key); ok {
		metrics.SearchRequestsTotal.WithLabelValues(OutcomeCached).Inc()
		return res, nil
	}

	ch := s.flight.DoChan(key, func() (any, error) {
		return s.compute(context.WithoutCancel(ctx), key, raw)
	})

	select {
	case r := <-ch:
		if r.Shared {
			metrics.InflightJoinsTotal.Inc()
		}
		if r.Err != nil {
			metrics.SearchRequestsTotal.WithLabelValues(OutcomeUnavailable).Inc()
			return Result{}, r.Err
		}
		fr := r.Val.(flightResult)
		metrics.SearchRequestsTotal.WithLabelValues(fr.outcome).Inc()
		return fr.result, nil
	case <-ctx.Done():
		logger.Info("search_abandoned", zap.Error(ctx.Err()))
		return Result{}, ctx.Err()
	}
}

// Fallback runs raw as a literal relevance-ranked text search.
// Its results are never cached.
func (s *Service) Fallback(ctx context.Context, raw string) (Result, error) {
	posts, err := s.store.Search(ctx, store.Query{
		Text:  raw,
		Sort:  store.SortRelevance,
		Limit: s.cfg.MaxResults,
	})
	if err != nil {
		return Result{}, &Error{Kind: KindStore, Op: "fallback", Err: err}
	}
	return Result{Posts: nonNil(posts), Fallback: true}, nil
}

func (s *Service) compute(ctx context.Context, key, raw string) (flightResult, error) {
	logger := logging.L(ctx)

	// a flight for the same key may have finished between our lookup and DoChan
	if res, ok := s.cached(ctx, key); ok {
		return flightResult{result: res, outcome: OutcomeCached}, nil
	}

	start := time.Now()
	res, aiErr := s.assisted(ctx, raw)
	if aiErr == nil {
		s.remember(ctx, key, res)
		logger.Info("search_assisted",
			zap.Int("results", len(res.Posts)),
			zap.Strings("keywords", res.Query.Keywords),
			zap.String("sort_by", string(res.Query.SortBy)),
			zap.Duration("elapsed", time.Since(start)),
		)
		return flightResult{result: res, outcome: OutcomeAI}, nil
	}

	kind := classify("assisted", aiErr).Kind
	logger.Warn("search_degraded", zap.String("kind", string(kind)), zap.Error(aiErr))

	fb, fbErr := s.Fallback(ctx, raw)
	if fbErr != nil {
		logger.Error("search_unavailable", zap.Error(aiErr), zap.NamedError("fallback_error", fbErr))
		return flightResult{}, &Error{Kind: KindUnavailable, Op: "search", Err: aiErr, Fallback: fbErr}
	}
	return flightResult{result: fb, outcome: OutcomeFallback}, nil
}

func (s *Service) assisted(ctx context.Context, raw string) (Result, error) {
	pq, err := s.parseWithRetry(ctx, raw)
	if err != nil {
		return Result{}, err
	}

	q := Compile(pq)
	q.Limit = s.cfg.MaxResults

	posts, err := s.store.Search(ctx, q)
	if err != nil {
		return Result{}, &Error{Kind: KindStore, Op: "store.search", Err: err}
	}
	return Result{Posts: nonNil(posts), Query: &pq}, nil
}

func (s *Service) cached(ctx context.Context, key string) (Result, bool) {
	if s.cache == nil {
		return Result{}, false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return Result{}, false
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		logging.L(ctx).Warn("search_cache_decode_failed", zap.Error(err))
		return Result{}, false
	}
	res.Posts = nonNil(res.Posts)
	return res, true
}

func (s *Service) remember(ctx context.Context, key string, res Result) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		logging.L(ctx).Warn("search_cache_encode_failed", zap.Error(err))
		return
	}
	// Set failures are logged by the cache decorator; the result still goes out.
	_ = s.cache.Set(ctx, key, data, s.cfg.CacheTTL)
}

func nonNil(posts []store.Post) []store.Post {
	if posts == nil {
		return []store.Post{}
	}
	return posts
}
