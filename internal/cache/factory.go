package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Backend string
	// Size bounds the in-process LRU.
	Size   int
	TTL    time.Duration
	Prefix string
}

// New builds the configured backend wrapped in the logging decorator.
// redisClient may be nil unless Backend is "redis".
func New(cfg Config, redisClient redis.UniversalClient) ResultCache {
	switch cfg.Backend {
	case BackendRedis:
		return NewLoggingCache(NewRedisCache(redisClient, RedisConfig{Prefix: cfg.Prefix}), BackendRedis)
	default:
		return NewLoggingCache(NewMemoryCache(cfg.Size, cfg.TTL), BackendMemory)
	}
}
