package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sociallens/sociallens/internal/config"
)

// Server owns the HTTP lifecycle and orchestrates graceful shutdown.
type Server struct {
	cfg        config.Config
	logger     *slog.Logger
	httpServer *http.Server
	once       sync.Once
}

// New binds the lifecycle agent to its handler and listener settings.
func New(cfg config.Config, logger *slog.Logger, handler http.Handler) (*Server, error) {
	if handler == nil {
		return nil, errors.New("server: handler required")
	}

	addr := net.JoinHostPort(cfg.Server.Listen.Address, strconv.Itoa(cfg.Server.Listen.Port))
	// Lookup responses are small JSON documents; the write budget only has to
	// cover one provider fetch plus derivation.
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		cfg:        cfg,
		logger:     logger.With(slog.String("agent", "lifecycle")),
		httpServer: httpSrv,
	}, nil
}

// Run serves until the context is cancelled, then drains in-flight lookups
// within the configured shutdown grace.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("http listener starting", slog.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: listen: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.Listen.ShutdownGrace())
		defer cancel()
		if err := s.shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	}
}

// shutdown closes the listener exactly once; repeated cancellations reuse the first result.
func (s *Server) shutdown(ctx context.Context) error {
	var shutdownErr error
	s.once.Do(func() {
		s.logger.Info("http listener shutting down")
		shutdownErr = s.httpServer.Shutdown(ctx)
	})
	return shutdownErr
}
