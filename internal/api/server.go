package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/veriscript-health/clarity/internal/domain"
	"github.com/veriscript-health/clarity/internal/engine"
	"github.com/veriscript-health/clarity/internal/policy"
	"github.com/veriscript-health/clarity/internal/zipstate"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, policies *policy.Store, zip *zipstate.Service, policyPath, version string) *Server {
	handler := NewHandler(repo, cache, bus, eng, policies, zip, policyPath, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Coverage classification
	router.Post("/classify", handler.Classify)
	router.Post("/safety-check", handler.SafetyCheck)
	router.Post("/member-id/validate", handler.ValidateMemberID)
	router.Post("/carrier/resolve", handler.ResolveCarrier)

	// Lookups
	router.Get("/zip/{zip}", handler.ResolveZIP)

	// Submission retrieval
	router.Get("/submissions", handler.ListSubmissions)
	router.Get("/submissions/{id}", handler.GetSubmission)

	// Policy management
	router.Get("/policy", handler.GetPolicy)
	router.Post("/policy/reload", handler.ReloadPolicy)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
