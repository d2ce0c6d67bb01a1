// Package server assembles the request pipeline and runs the HTTP servers
// with graceful startup and shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nimburion/devserver/pkg/observability/logger"
)

// Server wraps http.Server with an explicit listener and a drain policy.
type Server struct {
	name       string
	httpServer *http.Server
	logger     logger.Logger
	config     Config

	mu       sync.Mutex
	listener net.Listener
}

// Config holds configuration for one HTTP server.
type Config struct {
	// Addr is the listen address, e.g. ":3000". Port 0 picks a free port.
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// DrainTimeout bounds graceful shutdown. Zero waits for every in-flight request.
	DrainTimeout time.Duration
}

// NewServer creates a server named name (used in logs) serving handler.
func NewServer(name string, cfg Config, handler http.Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		name:   name,
		logger: log,
		config: cfg,
		httpServer: &http.Server{
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Listen binds the configured address. It is called by Serve when needed;
// calling it first surfaces bind failures before anything else starts.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("%s server: listen on %s: %w", s.name, s.config.Addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is done, then drains gracefully.
// It returns nil after a clean drain.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	s.logger.Info("server listening", "server", s.name, "address", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s server failed: %w", s.name, err)
	case <-ctx.Done():
		shutdownErr := s.Shutdown(context.Background())
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Join(shutdownErr, fmt.Errorf("%s server failed: %w", s.name, err))
		}
		return shutdownErr
	}
}

// Shutdown stops accepting connections and waits for in-flight requests.
// With a DrainTimeout the wait is bounded and the remaining connections are
// closed once it elapses.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server", "server", s.name, "drain_timeout", s.config.DrainTimeout.String())

	drainCtx := ctx
	if s.config.DrainTimeout > 0 {
		var cancel context.CancelFunc
		drainCtx, cancel = context.WithTimeout(ctx, s.config.DrainTimeout)
		defer cancel()
	}

	err := s.httpServer.Shutdown(drainCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("drain timeout elapsed, closing remaining connections", "server", s.name)
		if closeErr := s.httpServer.Close(); closeErr != nil {
			return fmt.Errorf("%s server close failed: %w", s.name, closeErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s server shutdown failed: %w", s.name, err)
	}

	s.logger.Info("server shutdown complete", "server", s.name)
	return nil
}

// Close releases the listener without serving. Used when startup fails
// after Listen succeeded.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	s.listener = nil
	return err
}
