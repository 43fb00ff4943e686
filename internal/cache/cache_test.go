package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestMemoryCacheStoreLookup(t *testing.T) {
	cache := NewMemory()
	ctx := context.Background()

	providerAt := time.Now().UTC()
	entry := Entry{
		Key:        "sociallens:modash:profile:alice:v1",
		Payload:    json.RawMessage(`{"handle":"alice"}`),
		SavedAt:    time.Now().UTC(),
		ProviderAt: &providerAt,
	}

	if err := cache.Store(ctx, entry.Key, entry, time.Minute); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, ok, err := cache.Lookup(ctx, entry.Key)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if string(got.Payload) != `{"handle":"alice"}` {
		t.Fatalf("unexpected payload: %s", got.Payload)
	}
	if got.ProviderAt == nil || !got.ProviderAt.Equal(providerAt) {
		t.Fatalf("unexpected providerAt: %v", got.ProviderAt)
	}

	size, err := cache.Size(ctx)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if size != 1 {
		t.Fatalf("expected size 1, got %d", size)
	}

	if err := cache.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestMemoryCacheHardExpiry(t *testing.T) {
	cache := NewMemory()
	ctx := context.Background()

	entry := Entry{Key: "key", Payload: json.RawMessage(`{}`), SavedAt: time.Now().UTC()}
	if err := cache.Store(ctx, entry.Key, entry, 10*time.Millisecond); err != nil {
		t.Fatalf("store: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	_, ok, err := cache.Lookup(ctx, entry.Key)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if ok {
		t.Fatalf("expected entry to hard-expire")
	}
}

func TestMemoryCacheInjectedClock(t *testing.T) {
	clock := time.Date(2025, time.July, 1, 10, 0, 0, 0, time.UTC)
	cache := NewMemoryWithClock(func() time.Time { return clock })
	ctx := context.Background()

	// A six-month-old timestamp stays live as long as the pinned clock says so.
	entry := Entry{Key: "key", Payload: json.RawMessage(`{}`), SavedAt: clock.Add(-180 * 24 * time.Hour)}
	if err := cache.Store(ctx, entry.Key, entry, 365*24*time.Hour); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, ok, err := cache.Lookup(ctx, entry.Key); err != nil || !ok {
		t.Fatalf("expected hit under pinned clock: ok=%v err=%v", ok, err)
	}

	clock = clock.Add(200 * 24 * time.Hour)
	if _, ok, err := cache.Lookup(ctx, entry.Key); err != nil || ok {
		t.Fatalf("expected eviction once the clock passes the hard TTL: ok=%v err=%v", ok, err)
	}
}

func TestMemoryCacheCopiesPayload(t *testing.T) {
	cache := NewMemory()
	ctx := context.Background()

	payload := []byte(`{"n":1}`)
	entry := Entry{Key: "key", Payload: payload, SavedAt: time.Now().UTC()}
	if err := cache.Store(ctx, entry.Key, entry, time.Minute); err != nil {
		t.Fatalf("store: %v", err)
	}
	payload[0] = 'X'

	got, ok, err := cache.Lookup(ctx, "key")
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if string(got.Payload) != `{"n":1}` {
		t.Fatalf("stored entry shares caller memory: %s", got.Payload)
	}
}

func TestMemoryCacheZeroTTLIsNoop(t *testing.T) {
	cache := NewMemory()
	ctx := context.Background()

	entry := Entry{Key: "key", Payload: json.RawMessage(`{}`), SavedAt: time.Now().UTC()}
	if err := cache.Store(ctx, entry.Key, entry, 0); err != nil {
		t.Fatalf("store: %v", err)
	}
	_, ok, err := cache.Lookup(ctx, "key")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if ok {
		t.Fatalf("expected zero ttl store to be a no-op")
	}
}

func TestRedisCacheStoreLookup(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer server.Close()

	cache, err := NewRedis(RedisConfig{Address: server.Addr()})
	if err != nil {
		t.Fatalf("new redis: %v", err)
	}
	ctx := context.Background()
	defer func() {
		if err := cache.Close(ctx); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()

	entry := Entry{
		Key:     "sociallens:modash:profile:bob:v1",
		Payload: json.RawMessage(`{"handle":"bob"}`),
		SavedAt: time.Now().UTC(),
	}
	if err := cache.Store(ctx, entry.Key, entry, time.Minute); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, ok, err := cache.Lookup(ctx, entry.Key)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if string(got.Payload) != `{"handle":"bob"}` {
		t.Fatalf("unexpected payload: %s", got.Payload)
	}
	if got.ProviderAt != nil {
		t.Fatalf("expected nil providerAt, got %v", got.ProviderAt)
	}

	size, err := cache.Size(ctx)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if size != 1 {
		t.Fatalf("expected size 1, got %d", size)
	}
}

func TestRedisCacheMiss(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer server.Close()

	cache, err := NewRedis(RedisConfig{Address: server.Addr()})
	if err != nil {
		t.Fatalf("new redis: %v", err)
	}
	ctx := context.Background()
	defer cache.Close(ctx)

	_, ok, err := cache.Lookup(ctx, "absent")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if ok {
		t.Fatalf("expected miss for absent key")
	}
}

func TestRedisCacheHardExpiry(t *testing.T) {
	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer server.Close()

	cache, err := NewRedis(RedisConfig{Address: server.Addr()})
	if err != nil {
		t.Fatalf("new redis: %v", err)
	}
	ctx := context.Background()
	defer cache.Close(ctx)

	entry := Entry{Key: "key", Payload: json.RawMessage(`{}`), SavedAt: time.Now().UTC()}
	if err := cache.Store(ctx, entry.Key, entry, 50*time.Millisecond); err != nil {
		t.Fatalf("store: %v", err)
	}
	server.FastForward(100 * time.Millisecond)

	_, ok, err := cache.Lookup(ctx, "key")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if ok {
		t.Fatalf("expected entry to hard-expire")
	}
}

func TestNewRedisRequiresAddress(t *testing.T) {
	if _, err := NewRedis(RedisConfig{}); err == nil {
		t.Fatalf("expected error for missing address")
	}
}
