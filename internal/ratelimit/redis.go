package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares windows across replicas: INCR the window key and set
// its expiry only when the key is new.
type RedisLimiter struct {
	client redis.UniversalClient
	cfg    Config
}

func NewRedisLimiter(client redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg.withDefaults()}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := l.cfg.Prefix + ":" + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.ExpireNX(ctx, k, l.cfg.Window)
		ttl = p.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("redis rate limit failed: %w", err)
	}

	resetAfter := ttl.Val()
	if resetAfter <= 0 {
		resetAfter = l.cfg.Window
	}
	return decide(incr.Val(), l.cfg.Max, resetAfter), nil
}
