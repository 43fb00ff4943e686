package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CacheOperation identifies the cache method being instrumented.
type CacheOperation string

const (
	// CacheOperationLookup records profile cache lookup calls.
	CacheOperationLookup CacheOperation = "lookup"
	// CacheOperationStore records profile cache store attempts.
	CacheOperationStore CacheOperation = "store"
)

// CacheLookupOutcome captures the result of a cache lookup.
type CacheLookupOutcome string

const (
	// CacheLookupHit indicates the lookup found a cached entry.
	CacheLookupHit CacheLookupOutcome = "hit"
	// CacheLookupMiss indicates no cached entry was present.
	CacheLookupMiss CacheLookupOutcome = "miss"
	// CacheLookupError indicates the lookup failed due to a store error.
	CacheLookupError CacheLookupOutcome = "error"
)

// CacheStoreOutcome captures the result of a cache store attempt.
type CacheStoreOutcome string

const (
	// CacheStoreStored indicates the entry was persisted.
	CacheStoreStored CacheStoreOutcome = "stored"
	// CacheStoreError indicates the store operation failed.
	CacheStoreError CacheStoreOutcome = "error"
)

// ProviderOutcome captures the result of an outbound provider fetch.
type ProviderOutcome string

const (
	// ProviderOK indicates the provider returned a usable payload.
	ProviderOK ProviderOutcome = "ok"
	// ProviderError indicates the fetch failed (transport, non-2xx, breaker open).
	ProviderError ProviderOutcome = "error"
)

// Recorder publishes Prometheus metrics for lookup activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	lookupRequests *prometheus.CounterVec
	lookupLatency  *prometheus.HistogramVec

	cacheOperations *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec

	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec

	deriveDegraded *prometheus.CounterVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a dedicated
// registry is created so multiple recorders can coexist without conflicting with
// the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	lookupRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sociallens",
		Subsystem: "lookup",
		Name:      "requests_total",
		Help:      "Total profile lookup requests processed.",
	}, []string{"freshness", "outcome", "status_code", "from_cache"})

	lookupLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sociallens",
		Subsystem: "lookup",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for completed profile lookups.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"freshness", "outcome"})

	cacheOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sociallens",
		Subsystem: "cache",
		Name:      "operations_total",
		Help:      "Profile cache operations executed.",
	}, []string{"operation", "result"})

	cacheLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sociallens",
		Subsystem: "cache",
		Name:      "operation_duration_seconds",
		Help:      "Latency distribution for profile cache operations.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	}, []string{"operation", "result"})

	providerCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sociallens",
		Subsystem: "provider",
		Name:      "calls_total",
		Help:      "Outbound provider fetches, including failures.",
	}, []string{"result", "status_code"})

	providerLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sociallens",
		Subsystem: "provider",
		Name:      "call_duration_seconds",
		Help:      "Latency distribution for provider fetches.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"result"})

	deriveDegraded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sociallens",
		Subsystem: "derive",
		Name:      "degraded_metrics_total",
		Help:      "Derivation steps that fell back to their degraded value.",
	}, []string{"metric"})

	reg.MustRegister(lookupRequests, lookupLatency, cacheOperations, cacheLatency, providerCalls, providerLatency, deriveDegraded)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:        reg,
		handler:         handler,
		lookupRequests:  lookupRequests,
		lookupLatency:   lookupLatency,
		cacheOperations: cacheOperations,
		cacheLatency:    cacheLatency,
		providerCalls:   providerCalls,
		providerLatency: providerLatency,
		deriveDegraded:  deriveDegraded,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and advanced
// integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveLookup records the freshness classification, outcome, and latency for
// a completed profile lookup.
func (r *Recorder) ObserveLookup(freshness, outcome string, statusCode int, fromCache bool, duration time.Duration) {
	if r == nil {
		return
	}
	freshnessLabel := normalizeLabel(freshness)
	outcomeLabel := normalizeLabel(outcome)
	statusLabel := strconv.Itoa(statusCode)
	if statusCode <= 0 {
		statusLabel = "unknown"
	}
	cacheLabel := "false"
	if fromCache {
		cacheLabel = "true"
	}
	r.lookupRequests.WithLabelValues(freshnessLabel, outcomeLabel, statusLabel, cacheLabel).Inc()
	r.lookupLatency.WithLabelValues(freshnessLabel, outcomeLabel).Observe(duration.Seconds())
}

// ObserveCacheLookup records the result of a cache lookup.
func (r *Recorder) ObserveCacheLookup(result CacheLookupOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	resultLabel := string(result)
	if resultLabel == "" {
		resultLabel = string(CacheLookupMiss)
	}
	r.observeCache(CacheOperationLookup, resultLabel, duration)
}

// ObserveCacheStore records the result of a cache store attempt.
func (r *Recorder) ObserveCacheStore(result CacheStoreOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	resultLabel := string(result)
	if resultLabel == "" {
		resultLabel = string(CacheStoreError)
	}
	r.observeCache(CacheOperationStore, resultLabel, duration)
}

// ObserveProviderCall records one outbound provider fetch.
func (r *Recorder) ObserveProviderCall(result ProviderOutcome, statusCode int, duration time.Duration) {
	if r == nil {
		return
	}
	resultLabel := string(result)
	if resultLabel == "" {
		resultLabel = string(ProviderError)
	}
	statusLabel := strconv.Itoa(statusCode)
	if statusCode <= 0 {
		statusLabel = "unknown"
	}
	r.providerCalls.WithLabelValues(resultLabel, statusLabel).Inc()
	r.providerLatency.WithLabelValues(resultLabel).Observe(duration.Seconds())
}

// ObserveDeriveDegraded counts a derivation step that fell back to its
// degraded value instead of aborting the document.
func (r *Recorder) ObserveDeriveDegraded(metric string) {
	if r == nil {
		return
	}
	r.deriveDegraded.WithLabelValues(normalizeLabel(metric)).Inc()
}

func (r *Recorder) observeCache(operation CacheOperation, result string, duration time.Duration) {
	opLabel := string(operation)
	if opLabel == "" {
		opLabel = string(CacheOperationLookup)
	}
	resLabel := normalizeLabel(result)
	r.cacheOperations.WithLabelValues(opLabel, resLabel).Inc()
	r.cacheLatency.WithLabelValues(opLabel, resLabel).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
