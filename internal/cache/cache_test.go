package cache

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"safekids-search/pkg/logging/logging"
)

func TestMemoryCache_TTL(t *testing.T) {
	c := NewMemoryCache(16, time.Minute)

	ctx := context.Background()
	key := "test:key"
	val := []byte("hello")

	if err := c.Set(ctx, key, val, 20*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, hit, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatalf("expected hit immediately after Set")
	}
	if string(got) != "hello" {
		t.Fatalf("expected 'hello', got %q", got)
	}

	// Wait for TTL to expire
	time.Sleep(30 * time.Millisecond)

	_, hit, err = c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after TTL failed: %v", err)
	}
	if hit {
		t.Fatalf("expected miss after TTL expiry")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be removed, len=%d", c.Len())
	}
}

func TestMemoryCache_CopiesValue(t *testing.T) {
	c := NewMemoryCache(16, time.Minute)
	ctx := context.Background()

	buf := []byte("abc")
	_ = c.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'x'

	got, _, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("cache must not alias caller buffer, got %q", got)
	}
}

func TestMemoryCache_EvictsBySize(t *testing.T) {
	c := NewMemoryCache(2, time.Minute)
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), time.Minute)
	_ = c.Set(ctx, "b", []byte("2"), time.Minute)
	_ = c.Set(ctx, "c", []byte("3"), time.Minute)

	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Fatalf("expected oldest entry to be evicted")
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
}

func TestMemoryCache_NonPositiveTTLRemoves(t *testing.T) {
	c := NewMemoryCache(16, time.Minute)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	_ = c.Set(ctx, "k", []byte("v"), 0)

	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Fatalf("expected miss after zero-ttl Set")
	}
}

func TestBuildKey(t *testing.T) {
	a := BuildKey("stray dogs", "v1")
	b := BuildKey("stray dogs", "v1")
	c := BuildKey("stray dogs", "v2")

	if a != b {
		t.Fatalf("expected stable key")
	}
	if a.String() == c.String() {
		t.Fatalf("version must change the key")
	}
	if !strings.HasPrefix(a.String(), "search:v1:") || len(a.Hash) != 64 {
		t.Fatalf("unexpected key %q", a.String())
	}

	parsed, ok := parseKey(a.String())
	if !ok || parsed != a {
		t.Fatalf("parseKey round trip failed: %+v %v", parsed, ok)
	}
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("boom")
}

func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("boom")
}

func TestLoggingCache_LogsResults(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := logging.WithLogger(context.Background(), zap.New(core))

	c := NewLoggingCache(NewMemoryCache(16, time.Minute), BackendMemory)
	key := BuildKey("dog", "v1").String()

	if _, hit, _ := c.Get(ctx, key); hit {
		t.Fatalf("expected miss")
	}
	_ = c.Set(ctx, key, []byte("{}"), time.Minute)
	if _, hit, _ := c.Get(ctx, key); !hit {
		t.Fatalf("expected hit")
	}

	gets := logs.FilterMessage("search_cache_get").All()
	if len(gets) != 2 {
		t.Fatalf("expected 2 get events, got %d", len(gets))
	}
	if gets[0].ContextMap()["cache_result"] != "miss" || gets[1].ContextMap()["cache_result"] != "hit" {
		t.Fatalf("unexpected results: %v / %v", gets[0].ContextMap(), gets[1].ContextMap())
	}
	if gets[1].ContextMap()["version_id"] != "v1" {
		t.Fatalf("expected parsed version_id field")
	}

	failing := NewLoggingCache(failingCache{}, "test")
	if _, _, err := failing.Get(ctx, key); err == nil {
		t.Fatalf("expected error to pass through")
	}
	if logs.FilterMessage("search_cache_get").FilterField(zap.String("cache_result", "error")).Len() != 1 {
		t.Fatalf("expected an error event")
	}
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping integration test: TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	c := NewRedisCache(client, RedisConfig{Prefix: "test"})
	ctx := context.Background()
	key := BuildKey("redis dogs", "v1").String()
	defer func() { _ = c.Delete(ctx, key) }()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, hit, err := c.Get(ctx, key); err != nil || hit {
		t.Fatalf("expected clean miss, hit=%v err=%v", hit, err)
	}
	if err := c.Set(ctx, key, []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, hit, err := c.Get(ctx, key)
	if err != nil || !hit || string(got) != "v" {
		t.Fatalf("expected hit with v, got %q hit=%v err=%v", got, hit, err)
	}
}
