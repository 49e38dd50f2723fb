package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"resumegenie/internal/shared/telemetry"
)

const (
	defaultShutdownTimeout   = 15 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
)

// ShutdownFunc releases a component after the listener stops.
type ShutdownFunc func(ctx context.Context) error

// Server runs an http.Handler until its context is cancelled, then drains
// in-flight requests and shuts registered components down in reverse order.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	shutdownFuncs   []namedShutdown
}

type namedShutdown struct {
	name string
	fn   ShutdownFunc
}

// New wraps handler in a Server listening on addr. A non-positive
// shutdownTimeout falls back to fifteen seconds.
func New(handler http.Handler, addr string, shutdownTimeout time.Duration) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: defaultReadHeaderTimeout,
		},
		shutdownTimeout: shutdownTimeout,
	}
}

// OnShutdown registers fn to run after the HTTP server stops.
func (s *Server) OnShutdown(name string, fn ShutdownFunc) {
	s.shutdownFuncs = append(s.shutdownFuncs, namedShutdown{name: name, fn: fn})
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run blocks until ctx is done or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		telemetry.Info("server.starting", map[string]any{"addr": s.httpServer.Addr})
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok && err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		telemetry.Info("server.shutdown_requested", nil)
		return s.shutdown()
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.httpServer.SetKeepAlivesEnabled(false)
	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		telemetry.Error("server.shutdown_failed", map[string]any{"error": err})
		errs = append(errs, err)
	}

	for i := len(s.shutdownFuncs) - 1; i >= 0; i-- {
		c := s.shutdownFuncs[i]
		if err := c.fn(ctx); err != nil {
			telemetry.Error("server.component_shutdown_failed", map[string]any{"component": c.name, "error": err})
			errs = append(errs, err)
		}
	}

	telemetry.Info("server.stopped", map[string]any{"errors": len(errs)})
	return errors.Join(errs...)
}
