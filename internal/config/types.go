package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds every server-level option once the loader resolves precedence.
type Config struct {
	Server ServerConfig `koanf:"server"`
}

// ServerConfig collects the bootstrap knobs owned by the process lifecycle.
type ServerConfig struct {
	Listen   ListenConfig   `koanf:"listen"`
	Logging  LoggingConfig  `koanf:"logging"`
	Cache    CacheConfig    `koanf:"cache"`
	Provider ProviderConfig `koanf:"provider"`
	Tables   TablesConfig   `koanf:"tables"`
}

// ListenConfig instructs the HTTP listener about bind address, port, and the
// drain budget granted to in-flight lookups on shutdown.
type ListenConfig struct {
	Address              string `koanf:"address"`
	Port                 int    `koanf:"port"`
	ShutdownGraceSeconds int    `koanf:"shutdownGraceSeconds"`
}

// ShutdownGrace returns how long a stopping listener waits for in-flight
// requests before closing their connections.
func (c ListenConfig) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds) * time.Second
}

// LoggingConfig expresses log level, format, and correlation ID wiring.
type LoggingConfig struct {
	Level             string `koanf:"level"`
	Format            string `koanf:"format"`
	CorrelationHeader string `koanf:"correlationHeader"`
}

// CacheConfig drives the profile cache: freshness windows, key versioning,
// and the backing store selection.
//
// The soft TTL is the age below which cached metrics are served without a
// provider call; the hard TTL is the physical expiry applied in the store.
// The hard TTL must never be shorter than the soft TTL, otherwise the
// stale-but-present window that degraded serving relies on cannot exist.
type CacheConfig struct {
	Enabled         bool             `koanf:"enabled"`
	Backend         string           `koanf:"backend"`
	Namespace       string           `koanf:"namespace"`
	Version         string           `koanf:"version"`
	SoftTTLSeconds  int              `koanf:"softTtlSeconds"`
	HardTTLSeconds  int              `koanf:"hardTtlSeconds"`
	OpTimeoutMillis int              `koanf:"opTimeoutMillis"`
	Redis           RedisCacheConfig `koanf:"redis"`
}

// SoftTTL returns the freshness window as a duration.
func (c CacheConfig) SoftTTL() time.Duration {
	return time.Duration(c.SoftTTLSeconds) * time.Second
}

// HardTTL returns the physical store expiry as a duration.
func (c CacheConfig) HardTTL() time.Duration {
	return time.Duration(c.HardTTLSeconds) * time.Second
}

// OpTimeout bounds individual cache store operations. Cache reads and writes
// are an optimization; they must fail fast rather than hold up a lookup that
// could fall through to the provider.
func (c CacheConfig) OpTimeout() time.Duration {
	return time.Duration(c.OpTimeoutMillis) * time.Millisecond
}

// RedisCacheConfig carries the valkey/redis connection settings.
type RedisCacheConfig struct {
	Address  string              `koanf:"address"`
	Username string              `koanf:"username"`
	Password string              `koanf:"password"`
	DB       int                 `koanf:"db"`
	TLS      RedisTLSCacheConfig `koanf:"tls"`
}

// RedisTLSCacheConfig gates TLS for the cache connection.
type RedisTLSCacheConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

// ProviderConfig describes the upstream analytics provider boundary: where
// to reach it, how to authenticate, and how aggressively to guard the
// outbound path.
type ProviderConfig struct {
	Name            string  `koanf:"name"`
	BaseURL         string  `koanf:"baseUrl"`
	APIKey          string  `koanf:"apiKey"`
	APIKeyHeader    string  `koanf:"apiKeyHeader"`
	TimeoutSeconds  int     `koanf:"timeoutSeconds"`
	RatePerSecond   float64 `koanf:"ratePerSecond"`
	RateBurst       int     `koanf:"rateBurst"`
	BreakerFailures uint32  `koanf:"breakerFailures"`
	BreakerOpenSecs int     `koanf:"breakerOpenSecs"`
}

// Timeout bounds a single provider fetch, independent of cache timeouts.
func (c ProviderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TablesConfig points at an optional folder of normalization table overrides.
type TablesConfig struct {
	Folder string `koanf:"folder"`
	Watch  bool   `koanf:"watch"`
}

// Validate rejects configurations the runtime cannot honor.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	if c.Server.Listen.Port <= 0 || c.Server.Listen.Port > 65535 {
		return fmt.Errorf("config: listen.port invalid: %d", c.Server.Listen.Port)
	}
	if c.Server.Listen.ShutdownGraceSeconds <= 0 {
		return fmt.Errorf("config: listen.shutdownGraceSeconds invalid: %d", c.Server.Listen.ShutdownGraceSeconds)
	}
	if c.Server.Cache.SoftTTLSeconds <= 0 {
		return fmt.Errorf("config: server.cache.softTtlSeconds invalid: %d", c.Server.Cache.SoftTTLSeconds)
	}
	if c.Server.Cache.HardTTLSeconds <= 0 {
		return fmt.Errorf("config: server.cache.hardTtlSeconds invalid: %d", c.Server.Cache.HardTTLSeconds)
	}
	if c.Server.Cache.HardTTLSeconds < c.Server.Cache.SoftTTLSeconds {
		return fmt.Errorf("config: server.cache.hardTtlSeconds (%d) must be >= softTtlSeconds (%d)",
			c.Server.Cache.HardTTLSeconds, c.Server.Cache.SoftTTLSeconds)
	}
	if c.Server.Cache.OpTimeoutMillis <= 0 {
		return fmt.Errorf("config: server.cache.opTimeoutMillis invalid: %d", c.Server.Cache.OpTimeoutMillis)
	}
	if strings.TrimSpace(c.Server.Cache.Version) == "" {
		return errors.New("config: server.cache.version required")
	}
	backend := strings.TrimSpace(strings.ToLower(c.Server.Cache.Backend))
	switch backend {
	case "", "memory":
	case "redis":
		if strings.TrimSpace(c.Server.Cache.Redis.Address) == "" {
			return errors.New("config: server.cache.redis.address required for redis backend")
		}
	default:
		return fmt.Errorf("config: server.cache.backend unsupported: %s", c.Server.Cache.Backend)
	}
	if base := strings.TrimSpace(c.Server.Provider.BaseURL); base != "" {
		if _, err := url.Parse(base); err != nil {
			return fmt.Errorf("config: server.provider.baseUrl invalid: %w", err)
		}
	}
	if c.Server.Provider.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: server.provider.timeoutSeconds invalid: %d", c.Server.Provider.TimeoutSeconds)
	}
	if c.Server.Provider.RatePerSecond < 0 {
		return fmt.Errorf("config: server.provider.ratePerSecond invalid: %f", c.Server.Provider.RatePerSecond)
	}
	return nil
}

// DefaultConfig returns the baseline values that align with the documented defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen: ListenConfig{
				Address:              "0.0.0.0",
				Port:                 8080,
				ShutdownGraceSeconds: 5,
			},
			Logging: LoggingConfig{
				Level:             "info",
				Format:            "json",
				CorrelationHeader: "X-Request-Id",
			},
			Cache: CacheConfig{
				Enabled:   true,
				Backend:   "memory",
				Namespace: "sociallens",
				Version:   "v1",
				// 30 days fresh, 40 days before physical expiry.
				SoftTTLSeconds:  2_592_000,
				HardTTLSeconds:  3_456_000,
				OpTimeoutMillis: 50,
			},
			Provider: ProviderConfig{
				Name:            "modash",
				APIKeyHeader:    "X-Api-Key",
				TimeoutSeconds:  10,
				RatePerSecond:   5,
				RateBurst:       10,
				BreakerFailures: 5,
				BreakerOpenSecs: 30,
			},
			Tables: TablesConfig{},
		},
	}
}
