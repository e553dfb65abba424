// Package httpserver provides the HTTP API and web UI for PubMed searches.
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
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-search/internal/domain"
	"github.com/helixir/pubmed-search/internal/observability"
	"github.com/helixir/pubmed-search/internal/search"
)

// DefaultSearchTimeout bounds one /api/search request.
const DefaultSearchTimeout = 5 * time.Minute

// Searcher runs one PubMed search.
type Searcher interface {
	Search(ctx context.Context, q search.Query) ([]domain.ArticleRecord, error)
}

// SearcherFactory builds a Searcher that identifies itself to NCBI with the
// caller's email and optional API key.
type SearcherFactory func(email, apiKey string) Searcher

// Server is the HTTP API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	newSearcher   SearcherFactory
	validate      *validator.Validate
	searchTimeout time.Duration
	outputDir     string
	staticDir     string
	metrics       *observability.Metrics
	logger        zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// SearchTimeout bounds each search. Defaults to DefaultSearchTimeout.
	SearchTimeout time.Duration
	// OutputDir receives the CSV and metadata of every search.
	OutputDir string
	// StaticDir serves the web UI from disk instead of the embedded copy.
	StaticDir string
}

// NewServer creates a new HTTP server. metrics may be nil.
func NewServer(cfg Config, newSearcher SearcherFactory, metrics *observability.Metrics, logger zerolog.Logger) *Server {
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = DefaultSearchTimeout
	}
	s := &Server{
		newSearcher:   newSearcher,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		searchTimeout: cfg.SearchTimeout,
		outputDir:     cfg.OutputDir,
		staticDir:     cfg.StaticDir,
		metrics:       metrics,
		logger:        logger.With().Str("component", "http-server").Logger(),
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

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", correlationIDHeader},
		ExposedHeaders: []string{correlationIDHeader},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)
		r.Get("/health", s.healthHandler)
		r.Post("/search", s.searchHandler)
	})

	static := s.staticHandler()
	r.Get("/", static.ServeHTTP)
	r.Get("/*", static.ServeHTTP)

	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
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
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
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
