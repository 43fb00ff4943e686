package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory returns an in-process cache with hard-TTL eviction on read.
// It mirrors the store semantics the redis backend provides so the two are
// interchangeable behind ProfileCache.
func NewMemory() ProfileCache {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock is NewMemory with an injectable clock, mirroring the
// classifier's now func so eviction and freshness can share a timeline.
func NewMemoryWithClock(now func() time.Time) ProfileCache {
	if now == nil {
		now = time.Now
	}
	return &memoryCache{entries: make(map[string]memoryEntry), now: now}
}

func (c *memoryCache) Lookup(_ context.Context, key string) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	held, ok := c.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	if c.now().After(held.expiresAt) {
		delete(c.entries, key)
		return Entry{}, false, nil
	}
	return cloneEntry(held.entry), true, nil
}

func (c *memoryCache) Store(_ context.Context, key string, entry Entry, hardTTL time.Duration) error {
	if hardTTL <= 0 {
		return nil
	}
	if entry.SavedAt.IsZero() {
		entry.SavedAt = c.now().UTC()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{
		entry:     cloneEntry(entry),
		expiresAt: entry.SavedAt.Add(hardTTL),
	}
	return nil
}

func (c *memoryCache) Size(_ context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.entries)), nil
}

func (c *memoryCache) Close(_ context.Context) error {
	return nil
}

func cloneEntry(in Entry) Entry {
	out := Entry{
		Key:     in.Key,
		SavedAt: in.SavedAt,
	}
	if in.ProviderAt != nil {
		at := *in.ProviderAt
		out.ProviderAt = &at
	}
	if len(in.Payload) > 0 {
		out.Payload = append([]byte(nil), in.Payload...)
	}
	return out
}
