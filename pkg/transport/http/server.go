package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Server wraps an http.Server and manages the full lifecycle including
// startup and graceful shutdown.
type Server struct {
	httpServer *http.Server
	config     ServerConfig
	logger     *slog.Logger
}

// ServerConfig holds configuration for the transport server.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
// The write timeout is generous because deep queries can run multiple
// retrieval iterations before responding.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    300 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		Logger:          slog.Default(),
	}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.config.Addr = addr }
}

// WithReadTimeout sets the request read deadline.
func WithReadTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ReadTimeout = d }
}

// WithWriteTimeout sets the response write deadline.
func WithWriteTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.WriteTimeout = d }
}

// WithShutdownTimeout sets the graceful shutdown deadline.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.config.ShutdownTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.config.Logger = l; s.logger = l }
}

// NewServer creates a server around the given handler. The handler is
// expected to carry the full middleware chain already; the server only
// owns the listener lifecycle.
func NewServer(handler http.Handler, opts ...ServerOption) *Server {
	s := &Server{
		config: DefaultServerConfig(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	return s
}

// ListenAndServe starts the server and blocks until a shutdown signal
// (SIGINT or SIGTERM) is received. It then gracefully shuts down,
// waiting for in-flight requests to complete within the configured timeout.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", slog.String("addr", s.config.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	return s.shutdown()
}

// ServeOn starts the server on the given listener. Used for testing.
func (s *Server) ServeOn(ln net.Listener) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
