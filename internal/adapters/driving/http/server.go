package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	_ "github.com/custodia-labs/verag/docs"
	"github.com/custodia-labs/verag/internal/core/ports/driven"
	"github.com/custodia-labs/verag/internal/core/ports/driving"
	"github.com/custodia-labs/verag/internal/runtime"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	Version     string
	CORSOrigins []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// Deps are the services and infrastructure the handlers call into.
type Deps struct {
	Answers   driving.AnswerService
	Ingest    driving.IngestService
	Documents driving.DocumentService

	// Verifier enables bearer-token auth on /api/v1 routes when set.
	Verifier driven.TokenVerifier

	Services  *runtime.Services
	TaskQueue driven.TaskQueue
	DB        Pinger
	Redis     Pinger // nil when Redis is not configured

	Logger *slog.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	validate   *validator.Validate
	logger     *slog.Logger

	answers   driving.AnswerService
	ingest    driving.IngestService
	documents driving.DocumentService
	verifier  driven.TokenVerifier

	services  *runtime.Services
	taskQueue driven.TaskQueue
	db        Pinger
	redis     Pinger
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:    http.NewServeMux(),
		version:   cfg.Version,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
		answers:   deps.Answers,
		ingest:    deps.Ingest,
		documents: deps.Documents,
		verifier:  deps.Verifier,
		services:  deps.Services,
		taskQueue: deps.TaskQueue,
		db:        deps.DB,
		redis:     deps.Redis,
	}
	s.setupRoutes()

	var handler http.Handler = s.router
	handler = NewCORSMiddleware(cfg.CORSOrigins).Handler(handler)
	handler = NewLoggingMiddleware(logger).Handler(handler)
	handler = NewRecoveryMiddleware(logger).Handler(handler)
	handler = RequestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // answers wait on the language model
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	auth := NewAuthMiddleware(s.verifier)

	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwagger)

	s.router.Handle("POST /api/v1/ask", auth.Authenticate(http.HandlerFunc(s.handleAsk)))
	s.router.Handle("POST /api/v1/ingest", auth.Authenticate(http.HandlerFunc(s.handleIngestText)))
	s.router.Handle("POST /api/v1/documents/{id}/ingest", auth.Authenticate(http.HandlerFunc(s.handleIngestDocument)))
	s.router.Handle("GET /api/v1/documents/{id}", auth.Authenticate(http.HandlerFunc(s.handleGetDocument)))
	s.router.Handle("GET /api/v1/documents/{id}/chunks", auth.Authenticate(http.HandlerFunc(s.handleGetDocumentChunks)))
	s.router.Handle("GET /api/v1/projects/{id}/documents", auth.Authenticate(http.HandlerFunc(s.handleListProjectDocuments)))
	s.router.Handle("GET /api/v1/tasks/{id}", auth.Authenticate(http.HandlerFunc(s.handleGetTask)))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
