package cache

import (
	"context"
	"fmt"
	"time"
)

// Key identifies a cached search result.
// Hash is sha256 of the normalized query.
type Key struct {
	VersionID string
	Hash      string
}

// String converts the structured key into the final string used in Redis/LRU.
func (k Key) String() string {
	// search:<VERSION_ID>:<HASH_HEX>
	return fmt.Sprintf("search:%s:%s", k.VersionID, k.Hash)
}

// ResultCache stores encoded search results with a TTL.
// Implemented by the in-process LRU (dev, single instance) and Redis (shared).
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
