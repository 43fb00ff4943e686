package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Entry is one cached derivation result. Entries are immutable once written:
// a refresh replaces the whole entry rather than mutating it in place.
type Entry struct {
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	SavedAt    time.Time       `json:"savedAt"`
	ProviderAt *time.Time      `json:"providerAt,omitempty"`
}

// ProfileCache abstracts the backing key-value store for derived metrics.
//
// The cache is an optimization, never a source of truth: callers treat read
// errors as misses and write errors as no-ops. Concurrent stores on the same
// key are last-write-wins with no ordering guarantee beyond store semantics.
type ProfileCache interface {
	// Lookup returns the entry for key if one is physically present.
	Lookup(ctx context.Context, key string) (Entry, bool, error)
	// Store persists entry under key with the supplied hard TTL, after which
	// the backing store discards it entirely.
	Store(ctx context.Context, key string, entry Entry, hardTTL time.Duration) error
	// Size reports the number of entries for health reporting.
	Size(ctx context.Context) (int64, error)
	// Close releases backend resources.
	Close(ctx context.Context) error
}
