// Package rest exposes the discrepancy engine over HTTP with JSON payloads.
package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/therealutkarshpriyadarshi/shapelet/internal/engine"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/api/rest/middleware"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/config"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/observability"
)

// Server is the REST API server
type Server struct {
	cfg        *config.Config
	handler    *Handler
	httpServer *http.Server
	logger     *observability.Logger
}

// NewServer creates a new REST API server
func NewServer(cfg *config.Config, registry *engine.Registry, metrics *observability.Metrics, logger *observability.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		handler: NewHandler(registry, cfg, metrics, logger),
		logger:  logger.WithField("component", "rest"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", s.handler.HealthCheck)
	mux.HandleFunc("/v1/stats", s.handler.GetStats)
	mux.HandleFunc("/v1/discrepancies", s.routeCollection)
	mux.HandleFunc("/v1/discrepancies/", s.routeInstance)
	mux.Handle("/metrics", promhttp.Handler())

	var h http.Handler = mux
	h = middleware.AuthMiddleware(middleware.AuthConfig{
		JWTSecret: cfg.Auth.JWTSecret,
		Enabled:   cfg.Auth.Enabled,
		PublicPaths: []string{
			"/v1/health",
			"/metrics",
		},
	})(h)

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Enabled:        cfg.RateLimit.Enabled,
		RequestsPerSec: cfg.RateLimit.RequestsPerSec,
		Burst:          cfg.RateLimit.Burst,
		PerIP:          cfg.RateLimit.PerIP,
	})
	h = middleware.RateLimitMiddleware(limiter)(h)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// routeCollection dispatches /v1/discrepancies by method.
func (s *Server) routeCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handler.ListDiscrepancies(w, r)
	case http.MethodPost:
		s.handler.CreateDiscrepancy(w, r)
	default:
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// routeInstance dispatches /v1/discrepancies/{name} and
// /v1/discrepancies/{name}/compute.
func (s *Server) routeInstance(w http.ResponseWriter, r *http.Request) {
	name, compute := trimName(r.URL.Path)
	if name == "" {
		writeError(w, "Missing discrepancy name", http.StatusBadRequest)
		return
	}
	switch {
	case compute && r.Method == http.MethodPost:
		s.handler.Compute(w, r, name)
	case !compute && r.Method == http.MethodGet:
		s.handler.GetDiscrepancy(w, r, name)
	default:
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Start begins serving HTTP requests. It blocks until the listener fails
// or the server is stopped.
func (s *Server) Start() error {
	s.logger.Info("Starting REST server", map[string]interface{}{
		"address": s.httpServer.Addr,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("rest server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server, waiting up to the configured
// shutdown timeout for in-flight requests.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Stopping REST server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("rest server shutdown: %w", err)
	}
	return nil
}

// Handler returns the underlying HTTP handler, used by tests to drive
// requests without a listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
