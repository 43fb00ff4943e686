package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sociallens/sociallens/internal/config"
	"github.com/sociallens/sociallens/internal/derive"
	"github.com/sociallens/sociallens/internal/metrics"
)

// Error reports a failed provider fetch: a non-2xx response or a transport
// failure. The body is truncated and intended for logs, never for clients.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider: status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("provider: %s", e.Body)
}

// ErrBreakerOpen is returned while the circuit breaker refuses outbound
// calls; callers treat it exactly like any other provider failure.
var ErrBreakerOpen = errors.New("provider: circuit open")

const maxBodyBytes = 1 << 20

// Client fetches raw profile payloads from the upstream analytics provider.
// The outbound path is guarded by a token-bucket rate limiter and a circuit
// breaker so a misbehaving provider degrades to stale-serving instead of
// piling up slow requests.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	apiKeyHeader string
	limiter      *rate.Limiter
	breaker      *gobreaker.CircuitBreaker
	logger       *slog.Logger
	metrics      *metrics.Recorder
}

// New builds a provider client from configuration. The HTTP client carries
// its own timeout, distinct from cache operation timeouts, so a slow
// provider cannot block a request that could have served stale data.
func New(cfg config.ProviderConfig, logger *slog.Logger, recorder *metrics.Recorder) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("provider: base url required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("provider: base url: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	openFor := time.Duration(cfg.BreakerOpenSecs) * time.Second
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	breakerLogger := logger.With(slog.String("agent", "provider_breaker"))
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerLogger.Warn("provider breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout()},
		baseURL:      base,
		apiKey:       cfg.APIKey,
		apiKeyHeader: headerOrDefault(cfg.APIKeyHeader),
		limiter:      rate.NewLimiter(limit, burst),
		breaker:      breaker,
		logger:       logger.With(slog.String("agent", "provider")),
		metrics:      recorder,
	}, nil
}

func headerOrDefault(name string) string {
	if strings.TrimSpace(name) == "" {
		return "X-Api-Key"
	}
	return name
}

// Fetch performs one GET for the handle's analytics document. It fails with
// *Error on non-2xx responses and transport problems, and with
// ErrBreakerOpen while the breaker rejects calls.
func (c *Client) Fetch(ctx context.Context, handle string) (derive.RawPayload, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("provider: rate wait: %w", err)
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx, handle)
	})
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = ErrBreakerOpen
		}
		status := 0
		var provErr *Error
		if errors.As(err, &provErr) {
			status = provErr.Status
		}
		c.metrics.ObserveProviderCall(metrics.ProviderError, status, elapsed)
		return nil, err
	}

	c.metrics.ObserveProviderCall(metrics.ProviderOK, http.StatusOK, elapsed)
	return result.(derive.RawPayload), nil
}

func (c *Client) fetch(ctx context.Context, handle string) (derive.RawPayload, error) {
	endpoint := c.baseURL + "/profiles/" + url.PathEscape(strings.ToLower(strings.TrimSpace(handle)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("provider: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Body: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Status: resp.StatusCode, Body: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Status: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	var payload derive.RawPayload
	if err := decoder.Decode(&payload); err != nil {
		return nil, &Error{Status: resp.StatusCode, Body: fmt.Sprintf("decode: %v", err)}
	}
	return payload, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
