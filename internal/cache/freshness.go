package cache

import (
	"time"
)

// Freshness classifies a cache entry relative to the soft TTL window.
type Freshness string

const (
	// Fresh entries are served without a provider call.
	Fresh Freshness = "fresh"
	// Stale entries are older than the soft TTL but still physically present;
	// they are refreshed when possible and served as-is when the provider fails.
	Stale Freshness = "stale"
	// Missing means no entry exists (or the caller forced a refresh); the
	// provider call is mandatory and its failure surfaces to the caller.
	Missing Freshness = "missing"
)

// Classifier recomputes freshness per request. It is not a persisted state
// machine; the same entry can classify differently as time advances.
type Classifier struct {
	softTTL time.Duration
	now     func() time.Time
}

// NewClassifier builds a classifier over the configured soft TTL. A nil now
// source defaults to time.Now; tests inject a fixed clock.
func NewClassifier(softTTL time.Duration, now func() time.Time) Classifier {
	if now == nil {
		now = time.Now
	}
	return Classifier{softTTL: softTTL, now: now}
}

// Classify maps an entry (or its absence) onto the freshness enum.
// forceRefresh short-circuits to Missing so the caller performs a mandatory
// provider call regardless of what the store holds.
func (c Classifier) Classify(entry Entry, present, forceRefresh bool) Freshness {
	if forceRefresh || !present {
		return Missing
	}
	if c.now().Sub(entry.SavedAt) <= c.softTTL {
		return Fresh
	}
	return Stale
}
