// Package httpserver provides the HTTP REST API for the paper acquisition service.
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

	"github.com/paperharbor/acquisition-service/internal/crawl"
	"github.com/paperharbor/acquisition-service/internal/feeds"
)

// CrawlManager is the orchestrator surface the HTTP layer depends on.
type CrawlManager interface {
	Start(req crawl.Request) (crawl.Snapshot, error)
	Stop() (crawl.Snapshot, error)
	Status() crawl.Snapshot
	AddFeed(feedURL, name string) error
	RemoveFeed(feedURL string) error
	ListFeeds() []feeds.Feed
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MetricsPath     string
}

// Server is the HTTP REST API server.
type Server struct {
	router         chi.Router
	httpServer     *http.Server
	manager        CrawlManager
	validate       *validator.Validate
	metricsHandler http.Handler
	metricsPath    string
	logger         zerolog.Logger
}

// NewServer creates the HTTP server. metricsHandler may be nil to disable
// the metrics endpoint.
func NewServer(cfg Config, manager CrawlManager, metricsHandler http.Handler, logger zerolog.Logger) *Server {
	s := &Server{
		manager:        manager,
		validate:       validator.New(),
		metricsHandler: metricsHandler,
		metricsPath:    cfg.MetricsPath,
		logger:         logger.With().Str("component", "http-server").Logger(),
	}
	if s.metricsPath == "" {
		s.metricsPath = "/metrics"
	}

	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Router exposes the handler tree. Used by tests.
func (s *Server) Router() http.Handler { return s.router }

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(s.requestLogMiddleware)

	r.Get("/healthz", s.healthHandler)
	if s.metricsHandler != nil {
		r.Method(http.MethodGet, s.metricsPath, s.metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Post("/crawl", s.startCrawl)
		r.Delete("/crawl", s.stopCrawl)
		r.Get("/crawl/status", s.crawlStatus)

		r.Get("/feeds", s.listFeeds)
		r.Post("/feeds", s.addFeed)
		r.Delete("/feeds", s.removeFeed)
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
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
