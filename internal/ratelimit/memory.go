package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const memoryMaxKeys = 10_000

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryLimiter keeps windows in-process. Suitable for a single instance.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows *expirable.LRU[string, window]
	cfg     Config
	now     func() time.Time
}

func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	cfg = cfg.withDefaults()
	return &MemoryLimiter{
		windows: expirable.NewLRU[string, window](memoryMaxKeys, nil, cfg.Window),
		cfg:     cfg,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows.Get(key)
	if !ok || !now.Before(w.resetAt) {
		w = window{resetAt: now.Add(l.cfg.Window)}
	}
	w.count++
	l.windows.Add(key, w)

	return decide(w.count, l.cfg.Max, w.resetAt.Sub(now)), nil
}
