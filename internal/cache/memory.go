package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is a size-bounded in-process cache. The LRU evicts on size and
// on its own TTL; each entry also carries the TTL it was Set with.
type MemoryCache struct {
	lru *expirable.LRU[string, memoryEntry]
}

// NewMemoryCache creates an LRU holding at most size entries, none older
// than maxTTL. Non-positive values fall back to 1024 entries and 5 minutes.
func NewMemoryCache(size int, maxTTL time.Duration) *MemoryCache {
	if size <= 0 {
		size = 1024
	}
	if maxTTL <= 0 {
		maxTTL = 5 * time.Minute
	}
	return &MemoryCache{lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores value for ttl. A non-positive ttl removes the key.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		c.lru.Remove(key)
		return nil
	}

	// Copy to decouple from caller's buffer
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.lru.Add(key, memoryEntry{value: valueCopy, expiresAt: time.Now().Add(ttl)})
	return nil
}

// Len returns the number of items currently in the cache.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Clear removes all items from cache.
func (c *MemoryCache) Clear() {
	c.lru.Purge()
}
