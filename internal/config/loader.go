package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader hydrates the runtime configuration while respecting env > file > default precedence.
type Loader struct {
	envPrefix string
	files     []string
}

// NewLoader prepares a config hydrator that honors the env-first contract before touching files or defaults.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// Load assembles the effective snapshot using the documented precedence rules.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	defaultCfg := DefaultConfig()
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(defaultCfg), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		parser, err := parserFor(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		canonical := map[string]string{
			"server.listen.shutdowngraceseconds": "server.listen.shutdownGraceSeconds",
			"server.logging.correlationheader":   "server.logging.correlationHeader",
			"server.cache.softttlseconds":        "server.cache.softTtlSeconds",
			"server.cache.hardttlseconds":        "server.cache.hardTtlSeconds",
			"server.cache.optimeoutmillis":       "server.cache.opTimeoutMillis",
			"server.cache.redis.tls.cafile":      "server.cache.redis.tls.caFile",
			"server.provider.baseurl":            "server.provider.baseUrl",
			"server.provider.apikey":             "server.provider.apiKey",
			"server.provider.apikeyheader":       "server.provider.apiKeyHeader",
			"server.provider.timeoutseconds":     "server.provider.timeoutSeconds",
			"server.provider.ratepersecond":      "server.provider.ratePerSecond",
			"server.provider.rateburst":          "server.provider.rateBurst",
			"server.provider.breakerfailures":    "server.provider.breakerFailures",
			"server.provider.breakeropensecs":    "server.provider.breakerOpenSecs",
		}
		transform := func(s string) string {
			// Double underscores signal a nested path (SERVER__CACHE__VERSION -> server.cache.version).
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			lower := strings.ToLower(key)
			if mapped, ok := canonical[lower]; ok {
				return mapped
			}
			// Single underscores are removed so SOFT_TTL_SECONDS collapses when callers
			// choose not to use double underscores for object nesting.
			key = strings.ReplaceAll(key, "_", "")
			return strings.ToLower(key)
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parserFor selects a koanf parser from the file extension.
func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("config: unsupported file format %s", path)
	}
}

// structToMap converts DefaultConfig into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"listen": map[string]any{
				"address":              cfg.Server.Listen.Address,
				"port":                 cfg.Server.Listen.Port,
				"shutdownGraceSeconds": cfg.Server.Listen.ShutdownGraceSeconds,
			},
			"logging": map[string]any{
				"level":             cfg.Server.Logging.Level,
				"format":            cfg.Server.Logging.Format,
				"correlationHeader": cfg.Server.Logging.CorrelationHeader,
			},
			"cache": map[string]any{
				"enabled":         cfg.Server.Cache.Enabled,
				"backend":         cfg.Server.Cache.Backend,
				"namespace":       cfg.Server.Cache.Namespace,
				"version":         cfg.Server.Cache.Version,
				"softTtlSeconds":  cfg.Server.Cache.SoftTTLSeconds,
				"hardTtlSeconds":  cfg.Server.Cache.HardTTLSeconds,
				"opTimeoutMillis": cfg.Server.Cache.OpTimeoutMillis,
				"redis": map[string]any{
					"address":  cfg.Server.Cache.Redis.Address,
					"username": cfg.Server.Cache.Redis.Username,
					"password": cfg.Server.Cache.Redis.Password,
					"db":       cfg.Server.Cache.Redis.DB,
					"tls": map[string]any{
						"enabled": cfg.Server.Cache.Redis.TLS.Enabled,
						"caFile":  cfg.Server.Cache.Redis.TLS.CAFile,
					},
				},
			},
			"provider": map[string]any{
				"name":            cfg.Server.Provider.Name,
				"baseUrl":         cfg.Server.Provider.BaseURL,
				"apiKey":          cfg.Server.Provider.APIKey,
				"apiKeyHeader":    cfg.Server.Provider.APIKeyHeader,
				"timeoutSeconds":  cfg.Server.Provider.TimeoutSeconds,
				"ratePerSecond":   cfg.Server.Provider.RatePerSecond,
				"rateBurst":       cfg.Server.Provider.RateBurst,
				"breakerFailures": cfg.Server.Provider.BreakerFailures,
				"breakerOpenSecs": cfg.Server.Provider.BreakerOpenSecs,
			},
			"tables": map[string]any{
				"folder": cfg.Server.Tables.Folder,
				"watch":  cfg.Server.Tables.Watch,
			},
		},
	}
}
