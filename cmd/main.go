package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sociallens/sociallens/internal/cache"
	"github.com/sociallens/sociallens/internal/config"
	"github.com/sociallens/sociallens/internal/derive"
	"github.com/sociallens/sociallens/internal/logging"
	"github.com/sociallens/sociallens/internal/metrics"
	"github.com/sociallens/sociallens/internal/provider"
	"github.com/sociallens/sociallens/internal/server"
	"github.com/sociallens/sociallens/internal/service"
	"github.com/sociallens/sociallens/internal/tables"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to server configuration file")
		envPrefix  = flag.String("env-prefix", "SOCIALLENS", "environment variable prefix")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Logging)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}

	cacheLogger := logger.With(slog.String("agent", "cache_factory"))
	profileCache := buildProfileCache(cacheLogger, cfg.Server.Cache)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := profileCache.Close(closeCtx); err != nil {
			logger.Error("cache shutdown failed", slog.Any("error", err))
		}
	}()

	tableSet, err := tables.Load(cfg.Server.Tables.Folder)
	if err != nil {
		log.Fatalf("failed to load normalization tables: %v", err)
	}
	tableProvider := tables.NewProvider(tableSet)
	if cfg.Server.Tables.Watch && strings.TrimSpace(cfg.Server.Tables.Folder) != "" {
		watcher, err := tableProvider.Watch(ctx, cfg.Server.Tables.Folder, func(err error) {
			logger.Error("table watcher error", slog.Any("error", err))
		})
		if err != nil {
			logger.Error("table watcher setup failed", slog.Any("error", err))
		} else {
			defer watcher.Stop()
		}
	}

	promRegistry := prometheus.NewRegistry()
	metricsRecorder := metrics.NewRecorder(promRegistry)

	providerClient, err := provider.New(cfg.Server.Provider, logger, metricsRecorder)
	if err != nil {
		log.Fatalf("failed to construct provider client: %v", err)
	}

	engine := derive.NewEngine(tableProvider, logger, metricsRecorder)
	lookup := service.New(cfg.Server.Cache, cfg.Server.Provider.Name, profileCache, providerClient, engine, logger, metricsRecorder)
	api := service.NewHandler(lookup, logger, metricsRecorder)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsRecorder.Handler())
	mux.Handle("/", server.NewProfileHandler(api))
	handler := logging.WithCorrelation(cfg.Server.Logging.CorrelationHeader, mux)

	srv, err := server.New(cfg, logger, handler)
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

func buildProfileCache(logger *slog.Logger, cfg config.CacheConfig) cache.ProfileCache {
	backend := strings.TrimSpace(strings.ToLower(cfg.Backend))
	switch backend {
	case "", "memory":
		if logger != nil {
			logger.Info("using memory profile cache", slog.Duration("hard_ttl", cfg.HardTTL()))
		}
		return cache.NewMemory()
	case "redis":
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS: cache.RedisTLSConfig{
				Enabled: cfg.Redis.TLS.Enabled,
				CAFile:  cfg.Redis.TLS.CAFile,
			},
		})
		if err != nil {
			if logger != nil {
				logger.Error("redis cache initialization failed", slog.Any("error", err))
				logger.Info("falling back to memory cache")
			}
			return cache.NewMemory()
		}
		if logger != nil {
			logger.Info("using redis profile cache", slog.String("address", cfg.Redis.Address))
		}
		return redisCache
	default:
		if logger != nil {
			logger.Warn("unsupported cache backend, defaulting to memory", slog.String("backend", cfg.Backend))
		}
		return cache.NewMemory()
	}
}
