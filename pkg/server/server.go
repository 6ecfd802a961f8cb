// Package server wraps the HTTP listener lifecycle around the WebDAV
// handler: startup, serving, and context-driven graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/marmos91/marble/internal/logger"
)

// Config contains the HTTP server settings.
type Config struct {
	// ListenAddress is the host:port to bind to
	ListenAddress string

	// ReadTimeout bounds reading a full request, body included
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a full response
	WriteTimeout time.Duration

	// IdleTimeout bounds keep-alive connections between requests
	IdleTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for in-flight requests
	// during graceful shutdown
	ShutdownTimeout time.Duration
}

// Server manages the lifecycle of the HTTP listener serving the WebDAV
// handler.
//
// Lifecycle:
//  1. Creation: New() with a configured handler
//  2. Startup: Serve() binds the listener and blocks
//  3. Shutdown: context cancellation drains in-flight requests, bounded
//     by ShutdownTimeout
//
// Thread safety:
// Serve() should only be called once per server instance.
type Server struct {
	config  Config
	httpSrv *http.Server
}

// New creates a server around handler.
//
// Panics if handler is nil (programmer error).
func New(cfg Config, handler http.Handler) *Server {
	if handler == nil {
		panic("handler cannot be nil")
	}

	return &Server{
		config: cfg,
		httpSrv: &http.Server{
			Addr:         cfg.ListenAddress,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Serve binds the listener and serves requests until ctx is cancelled or
// the listener fails.
//
// On cancellation the server stops accepting connections and waits up to
// ShutdownTimeout for in-flight requests to drain; connections still open
// after that are closed forcibly.
//
// Returns:
//   - nil on clean shutdown
//   - the listener error if serving failed
func (s *Server) Serve(ctx context.Context) error {
	serveErr := make(chan error, 1)

	go func() {
		logger.Info("listening on %s", s.config.ListenAddress)
		serveErr <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		logger.Info("shutting down, draining in-flight requests")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown timed out, closing connections: %v", err)
			s.httpSrv.Close()
		}

		// After Shutdown, ListenAndServe reports ErrServerClosed.
		if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	}
}
