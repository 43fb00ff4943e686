package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sociallens/sociallens/internal/logging"
	"github.com/sociallens/sociallens/internal/metrics"
)

type contextKey string

const handleContextKey contextKey = "profileHandle"

// Handler exposes the lookup service over HTTP. Routing lives in the server
// package; Handler only implements the endpoint semantics.
type Handler struct {
	service *Service
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewHandler wraps a lookup service for HTTP serving.
func NewHandler(svc *Service, logger *slog.Logger, recorder *metrics.Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: svc,
		logger:  logger.With(slog.String("agent", "http")),
		metrics: recorder,
	}
}

// RequestWithHandle attaches the routed profile handle to the request so
// ServeProfile stays independent of the URL layout.
func (h *Handler) RequestWithHandle(r *http.Request, handle string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), handleContextKey, handle))
}

func handleFromRequest(r *http.Request) string {
	if handle, ok := r.Context().Value(handleContextKey).(string); ok {
		return handle
	}
	return strings.TrimPrefix(strings.Trim(r.URL.Path, "/"), "profiles/")
}

// ServeProfile handles GET /profiles/{handle}?refresh=<bool>. A successful
// lookup answers 200 with the ProfileMetrics document; only a mandatory
// provider fetch failure surfaces as 500.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodGet {
		h.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	forceRefresh := false
	if raw := r.URL.Query().Get("refresh"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "refresh must be a boolean")
			return
		}
		forceRefresh = parsed
	}

	handle := handleFromRequest(r)
	result, err := h.service.Lookup(r.Context(), handle, forceRefresh)
	elapsed := time.Since(start)
	if err != nil {
		// Upstream failure details stay in the log; clients get a fixed message.
		status := http.StatusInternalServerError
		message := "upstream provider unavailable"
		if errors.Is(err, ErrEmptyHandle) {
			status = http.StatusBadRequest
			message = err.Error()
		}
		logger := h.logger
		if id, ok := logging.CorrelationID(r.Context()); ok {
			logger = logger.With(slog.String("correlationId", id))
		}
		logger.Error("lookup failed",
			slog.String("handle", handle),
			slog.Int("status", status),
			slog.Any("error", err))
		h.metrics.ObserveLookup(string(result.Freshness), "error", status, false, elapsed)
		h.WriteError(w, status, message)
		return
	}

	outcome := "ok"
	if result.Degraded {
		outcome = "degraded"
	}
	h.metrics.ObserveLookup(string(result.Freshness), outcome, http.StatusOK, result.FromCache, elapsed)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Freshness", string(result.Freshness))
	if result.FromCache {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Payload)
}

// ServeHealth answers liveness probes with the cache backend status,
// including the entry count when the backend can report one.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	cacheStatus := map[string]any{
		"backend": h.service.backend,
		"enabled": h.service.enabled,
	}
	if h.service.enabled {
		sizeCtx, cancel := context.WithTimeout(r.Context(), h.service.opTimeout)
		defer cancel()
		if size, err := h.service.store.Size(sizeCtx); err == nil {
			cacheStatus["entries"] = size
		}
	}
	body := map[string]any{"status": "ok", "cache": cacheStatus}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError emits the JSON error envelope shared by every endpoint.
func (h *Handler) WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
