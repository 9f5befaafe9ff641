package ratelimit

import "github.com/redis/go-redis/v9"

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// New builds the configured limiter. client may be nil unless backend is "redis".
func New(backend string, cfg Config, client redis.UniversalClient) Limiter {
	if backend == BackendRedis {
		return NewRedisLimiter(client, cfg)
	}
	return NewMemoryLimiter(cfg)
}
