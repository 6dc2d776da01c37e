// Package core provides the API chassis for the SkyRisk service.
// It creates a chi router that serves both standard HTTP (local and container
// deployments) and API Gateway events (see lambda.go), and enforces the
// cross-cutting concerns (logging, compression, rate limiting, metrics and
// error formatting) before requests reach the dashboard handlers.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"skyrisk/internal/config"
)

// MetricsCollector records API telemetry.
type MetricsCollector interface {
	// RecordRequest records latency and count for one request. endpoint is
	// the chi route pattern, never the raw path.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Server holds the dependencies of the HTTP layer. Optional collaborators
// (Metrics, RateLimitStore, HealthProbes) are plain fields so tests and
// main.go can inject them after construction.
type Server struct {
	Config         *config.Config
	Logger         *slog.Logger
	Validator      *Validator
	Metrics        MetricsCollector
	RateLimitStore RateLimitStore
	HealthProbes   []HealthProbe

	// V1RouteRegistrars mount domain handlers under /v1. They are appended
	// by the entry point so core never imports handler packages.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux

	mu      sync.Mutex
	closers []func(context.Context) error
}

// NewServer initializes the server and its router. Routes are mounted
// separately by MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers fn to run during Shutdown. Hooks run in reverse
// registration order, like deferred calls.
func (s *Server) OnShutdown(fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// Shutdown releases server resources (database pools, background workers).
// Every hook runs even if an earlier one fails; the errors are joined.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			s.Logger.Error("shutdown hook failed", "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
