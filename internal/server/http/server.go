// Package httpserver provides the HTTP REST API of the scientometrics service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/scientometrics-service/internal/authz"
	"github.com/helixir/scientometrics-service/internal/database"
	"github.com/helixir/scientometrics-service/internal/domain"
	"github.com/helixir/scientometrics-service/internal/extras"
)

// MetricsService is the reconciler as seen by the HTTP layer.
// *scientometrics.Service implements it.
type MetricsService interface {
	UpdateMetrics(ctx context.Context, userRef string, requested []domain.Source) (map[domain.Source]domain.Metrics, error)
	GetMetrics(ctx context.Context, userRef string) (map[domain.Source]*domain.MetricRecord, error)
	DeleteMetrics(ctx context.Context, userRef string) (int64, error)
	SetStatus(ctx context.Context, userRef string, source domain.Source, status domain.MetricStatus) (*domain.MetricRecord, error)
}

// AuthorIDStore reads and writes the author ids on user profiles.
// *extras.Bridge implements it.
type AuthorIDStore interface {
	Read(ctx context.Context, userRef string) (*extras.Profile, error)
	Write(ctx context.Context, userRef string, updates map[string]string) (domain.AuthorIdentifiers, error)
	EnabledSources() []domain.Source
}

// HealthChecker reports database health. *database.DB implements it.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Deps are the collaborators of the server. CacheCheck and AuthMiddleware
// are optional.
type Deps struct {
	Metrics        MetricsService
	AuthorIDs      AuthorIDStore
	Authorizer     authz.Authorizer
	Health         HealthChecker
	CacheCheck     func(ctx context.Context) error
	AuthMiddleware func(http.Handler) http.Handler
	ShowOnUserPage bool
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	deps       Deps
	validate   *validator.Validate
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		deps:     deps,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogger(s.logger))
	r.Use(jsonContentTypeMiddleware)

	// Health endpoints (no auth)
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		if s.deps.AuthMiddleware != nil {
			r.Use(s.deps.AuthMiddleware)
		}
		r.Use(actorMiddleware)

		r.Get("/sources", s.listSources)
		r.Route("/users/{userRef}", func(r chi.Router) {
			r.Get("/metrics", s.getMetrics)
			r.Delete("/metrics", s.deleteMetrics)
			r.Post("/metrics/refresh", s.refreshMetrics)
			r.Put("/metrics/{source}/status", s.setMetricStatus)
			r.Get("/author-ids", s.getAuthorIDs)
			r.Patch("/author-ids", s.patchAuthorIDs)
		})
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.deps.Health.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status including cache connectivity.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.deps.Health.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	resp := map[string]string{
		"status":   "ready",
		"database": "healthy",
	}
	if s.deps.CacheCheck != nil {
		if err := s.deps.CacheCheck(r.Context()); err != nil {
			// The cache is optional; report it without failing readiness.
			resp["cache"] = "unavailable"
		} else {
			resp["cache"] = "healthy"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
