package cache

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"safekids-search/internal/metrics"
	"safekids-search/pkg/logging/logging"
)

// LoggingCache wraps a ResultCache with logging + metrics.
type LoggingCache struct {
	inner ResultCache
	tier  string
}

// NewLoggingCache returns a cache that logs and records metrics.
func NewLoggingCache(inner ResultCache, tier string) ResultCache {
	return &LoggingCache{inner: inner, tier: tier}
}

func (c *LoggingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := c.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
	}
	metrics.CacheResultsTotal.WithLabelValues(result).Inc()

	fields := append(c.keyFields(key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", latencyMs),
	)

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("search_cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("search_cache_get", fields...)
	}

	return value, ok, err
}

func (c *LoggingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.inner.Set(ctx, key, value, ttl)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	fields := append(c.keyFields(key),
		zap.Duration("ttl", ttl),
		zap.Int("bytes", len(value)),
		zap.Float64("latency_ms", latencyMs),
	)

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("search_cache_set", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("search_cache_set", fields...)
	}

	return err
}

func (c *LoggingCache) keyFields(key string) []zap.Field {
	fields := []zap.Field{
		zap.String("cache_tier", c.tier),
		zap.String("cache_key", key),
	}
	if parts, ok := parseKey(key); ok {
		fields = append(fields,
			zap.String("version_id", parts.VersionID),
			zap.String("hash", parts.Hash),
		)
	}
	return fields
}

// parseKey reverses Key.String: search:<VERSION_ID>:<HASH>
func parseKey(key string) (Key, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != "search" {
		return Key{}, false
	}
	return Key{VersionID: parts[1], Hash: parts[2]}, true
}
