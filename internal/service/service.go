// Package service orchestrates profile lookups: cache consultation,
// freshness classification, provider refresh, and derivation. The cache is
// an optimization layer; every cache failure downgrades to a miss and every
// store failure is absorbed, so only a mandatory provider fetch can fail a
// lookup.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sociallens/sociallens/internal/cache"
	"github.com/sociallens/sociallens/internal/config"
	"github.com/sociallens/sociallens/internal/derive"
	"github.com/sociallens/sociallens/internal/metrics"
)

// ErrEmptyHandle rejects lookups with a blank profile handle.
var ErrEmptyHandle = errors.New("service: handle required")

// Fetcher is the outbound provider boundary. The concrete client applies its
// own timeout, rate limiting, and circuit breaking behind this surface.
type Fetcher interface {
	Fetch(ctx context.Context, handle string) (derive.RawPayload, error)
}

// Result is one completed lookup. Payload is the serialized ProfileMetrics
// document; Degraded marks a stale payload served because the refresh
// attempt failed.
type Result struct {
	Payload   json.RawMessage
	Freshness cache.Freshness
	FromCache bool
	Degraded  bool
	SavedAt   time.Time
}

// Service executes the lookup protocol over a cache store, a provider
// client, and the derivation engine.
type Service struct {
	store      cache.ProfileCache
	keys       cache.KeyBuilder
	classifier cache.Classifier
	fetcher    Fetcher
	engine     *derive.Engine

	enabled   bool
	backend   string
	opTimeout time.Duration
	hardTTL   time.Duration

	logger  *slog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

// Option customizes service construction.
type Option func(*Service)

// WithClock pins the clock used for entry timestamps and freshness
// classification.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New wires the lookup service. The key builder and freshness classifier
// derive from cfg so a cache version bump or TTL change takes effect on the
// next construction without touching stored entries.
func New(cfg config.CacheConfig, providerName string, store cache.ProfileCache, fetcher Fetcher, engine *derive.Engine, logger *slog.Logger, recorder *metrics.Recorder, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:     store,
		keys:      cache.NewKeyBuilder(cfg.Namespace, providerName, "profile", cfg.Version),
		fetcher:   fetcher,
		engine:    engine,
		enabled:   cfg.Enabled,
		backend:   backendName(cfg.Backend),
		opTimeout: cfg.OpTimeout(),
		hardTTL:   cfg.HardTTL(),
		logger:    logger.With(slog.String("agent", "lookup")),
		metrics:   recorder,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.classifier = cache.NewClassifier(cfg.SoftTTL(), s.now)
	return s
}

// Lookup resolves one profile handle through the freshness protocol:
// fresh entries serve directly, stale entries refresh opportunistically and
// fall back to the cached payload, missing entries (or forced refreshes)
// require a successful provider fetch.
func (s *Service) Lookup(ctx context.Context, handle string, forceRefresh bool) (Result, error) {
	handle = strings.ToLower(strings.TrimSpace(handle))
	if handle == "" {
		return Result{}, ErrEmptyHandle
	}

	if !s.enabled {
		payload, err := s.refresh(ctx, handle, "", false)
		if err != nil {
			return Result{}, err
		}
		return Result{Payload: payload, Freshness: cache.Missing}, nil
	}

	key := s.keys.Key(handle)
	entry, present := s.cachedEntry(ctx, key)
	freshness := s.classifier.Classify(entry, present, forceRefresh)

	switch freshness {
	case cache.Fresh:
		return Result{
			Payload:   entry.Payload,
			Freshness: cache.Fresh,
			FromCache: true,
			SavedAt:   entry.SavedAt,
		}, nil

	case cache.Stale:
		payload, err := s.refresh(ctx, handle, key, true)
		if err != nil {
			// The cached payload outlives a broken provider; the entry is
			// left untouched so the next lookup retries the refresh.
			s.logger.Warn("refresh failed, serving stale entry",
				slog.String("handle", handle),
				slog.Time("saved_at", entry.SavedAt),
				slog.Any("error", err))
			return Result{
				Payload:   entry.Payload,
				Freshness: cache.Stale,
				FromCache: true,
				Degraded:  true,
				SavedAt:   entry.SavedAt,
			}, nil
		}
		return Result{Payload: payload, Freshness: cache.Stale}, nil

	default:
		payload, err := s.refresh(ctx, handle, key, true)
		if err != nil {
			return Result{}, fmt.Errorf("service: mandatory fetch for %q: %w", handle, err)
		}
		return Result{Payload: payload, Freshness: cache.Missing}, nil
	}
}

func backendName(backend string) string {
	name := strings.TrimSpace(strings.ToLower(backend))
	if name == "" {
		return "memory"
	}
	return name
}

// cachedEntry performs the bounded cache lookup. Errors are logged and
// reported as a miss so a broken backend degrades to provider-only serving.
func (s *Service) cachedEntry(ctx context.Context, key string) (cache.Entry, bool) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	start := time.Now()
	entry, present, err := s.store.Lookup(lookupCtx, key)
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Warn("cache lookup failed, treating as miss",
			slog.String("key", key),
			slog.Any("error", err))
		s.metrics.ObserveCacheLookup(metrics.CacheLookupError, elapsed)
		return cache.Entry{}, false
	}
	if !present {
		s.metrics.ObserveCacheLookup(metrics.CacheLookupMiss, elapsed)
		return cache.Entry{}, false
	}
	s.metrics.ObserveCacheLookup(metrics.CacheLookupHit, elapsed)
	return entry, true
}

// refresh fetches the raw provider payload, derives the metrics document,
// and (when store is set) replaces the cache entry. A store failure never
// fails the lookup that produced the document.
func (s *Service) refresh(ctx context.Context, handle, key string, store bool) (json.RawMessage, error) {
	raw, err := s.fetcher.Fetch(ctx, handle)
	if err != nil {
		return nil, err
	}

	doc := s.engine.Derive(raw)
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("service: encode document: %w", err)
	}

	if store {
		now := s.now()
		entry := cache.Entry{
			Key:        key,
			Payload:    payload,
			SavedAt:    now,
			ProviderAt: &now,
		}
		storeCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		defer cancel()

		start := time.Now()
		if err := s.store.Store(storeCtx, key, entry, s.hardTTL); err != nil {
			s.logger.Warn("cache store failed",
				slog.String("key", key),
				slog.Any("error", err))
			s.metrics.ObserveCacheStore(metrics.CacheStoreError, time.Since(start))
		} else {
			s.metrics.ObserveCacheStore(metrics.CacheStoreStored, time.Since(start))
		}
	}
	return payload, nil
}
