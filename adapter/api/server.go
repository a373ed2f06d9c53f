// Package api exposes the anniversary service over HTTP. Responses use a
// uniform envelope; identity arrives as an X-User-ID header.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/raziel-gershoni/calbrew-sub001/pkg/observability"
)

// Server is the HTTP API server.
type Server struct {
	mux     *http.ServeMux
	server  *http.Server
	logger  *slog.Logger
	handler *Handler
	health  *observability.HealthRegistry
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration. The write
// timeout leaves room for a provider-bound sync triggered over the API.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         ":8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, handler *Handler, health *observability.HealthRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if health == nil {
		health = observability.NewHealthRegistry()
	}

	mux := http.NewServeMux()

	s := &Server{
		mux:     mux,
		logger:  logger,
		handler: handler,
		health:  health,
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.withRequestContext(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	// Probes
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)

	// Anniversary events
	s.mux.HandleFunc("POST /api/v1/events", s.handler.CreateEvent)
	s.mux.HandleFunc("GET /api/v1/events", s.handler.ListEvents)
	s.mux.HandleFunc("GET /api/v1/events/{id}", s.handler.GetEvent)
	s.mux.HandleFunc("PUT /api/v1/events/{id}", s.handler.UpdateEvent)
	s.mux.HandleFunc("DELETE /api/v1/events/{id}", s.handler.DeleteEvent)
	s.mux.HandleFunc("GET /api/v1/events/{id}/progression", s.handler.GetProgression)
	s.mux.HandleFunc("POST /api/v1/events/{id}/sync", s.handler.SyncEvent)

	// User-wide sync
	s.mux.HandleFunc("POST /api/v1/sync", s.handler.SyncUser)
	s.mux.HandleFunc("GET /api/v1/sync/runs", s.handler.ListSyncRuns)

	// Provider calendars
	s.mux.HandleFunc("GET /api/v1/calendars", s.handler.ListCalendars)
}

// withRequestContext stamps every request with correlation and request IDs
// so handler logs can be tied back to one call.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.NewRequestContext(r.Context(), r.Header.Get("X-Correlation-ID"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// handleHealthz is the liveness probe. It answers as long as the process
// serves requests; component state belongs to readyz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReadyz runs all registered component checks. Degraded components
// still answer ready; only an unhealthy one takes the server out of rotation.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	overall := s.health.GetOverallHealth(r.Context())

	status := http.StatusOK
	if overall.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, overall)
}

// Handler returns the server's HTTP handler, including middleware.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}
