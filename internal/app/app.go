// Package app builds the pubmed-search components from configuration and runs
// the HTTP service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-search/internal/batch"
	"github.com/helixir/pubmed-search/internal/config"
	"github.com/helixir/pubmed-search/internal/export"
	"github.com/helixir/pubmed-search/internal/observability"
	"github.com/helixir/pubmed-search/internal/papersources"
	"github.com/helixir/pubmed-search/internal/papersources/arxiv"
	"github.com/helixir/pubmed-search/internal/papersources/biorxiv"
	"github.com/helixir/pubmed-search/internal/papersources/pubmed"
	"github.com/helixir/pubmed-search/internal/papersources/researchgate"
	"github.com/helixir/pubmed-search/internal/pdf"
	"github.com/helixir/pubmed-search/internal/resolver"
	"github.com/helixir/pubmed-search/internal/search"
	httpserver "github.com/helixir/pubmed-search/internal/server/http"
)

// App holds the shared resources every command builds on. The HTTP client is
// the only connection pool and rate limiter in the process.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *observability.Metrics
	HTTP    *papersources.HTTPClient
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	return observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		AddSource:  cfg.AddSource,
		TimeFormat: cfg.TimeFormat,
	})
}

// New creates an App. Metrics are registered only when enabled.
func New(cfg *config.Config, logger zerolog.Logger) *App {
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}
	return NewWithMetrics(cfg, metrics, logger)
}

// NewWithMetrics creates an App around an existing metrics set, which may be nil.
func NewWithMetrics(cfg *config.Config, metrics *observability.Metrics, logger zerolog.Logger) *App {
	hc := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:    cfg.NCBI.Timeout,
		RateLimit:  cfg.NCBI.RateLimit,
		MaxRetries: cfg.NCBI.MaxRetries,
		RetryDelay: cfg.NCBI.RetryDelay,
		UserAgent:  cfg.NCBI.UserAgent,
	}, papersources.WithMetrics(metrics), papersources.WithLogger(logger))

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		HTTP:    hc,
	}
}

// PubMed returns an E-utilities client identified by email and apiKey.
func (a *App) PubMed(email, apiKey string) *pubmed.Client {
	return pubmed.New(pubmed.Config{
		BaseURL:       a.Config.NCBI.BaseURL,
		Email:         email,
		Tool:          a.Config.NCBI.Tool,
		APIKey:        apiKey,
		CitationDelay: a.Config.NCBI.CitationDelay,
	}, a.HTTP, a.Logger)
}

// Searcher returns a search service for the given NCBI identity.
func (a *App) Searcher(email, apiKey string, fetchCitations bool) *search.Service {
	return search.NewService(a.PubMed(email, apiKey), search.Options{
		FetchCitations: fetchCitations,
	}, a.Metrics, a.Logger)
}

// Resolver returns the full-text waterfall. The PMC step looks ids up through
// a PubMed client with the given identity.
func (a *App) Resolver(email, apiKey string) *resolver.Resolver {
	rc := a.Config.Resolver
	return resolver.New(resolver.Config{
		StepTimeout:    rc.StepTimeout,
		Steps:          rc.Steps,
		PMCArticlesURL: rc.PMCArticlesURL,
	}, resolver.Deps{
		PMC:           a.PubMed(email, apiKey),
		HTTP:          a.HTTP,
		Preprints:     biorxiv.New(biorxiv.Config{BaseURL: rc.BioRxivBaseURL}, a.HTTP),
		ArXiv:         arxiv.New(arxiv.Config{BaseURL: rc.ArXivBaseURL}, a.HTTP),
		AuthorNetwork: researchgate.New(researchgate.Config{BaseURL: rc.ResearchGateBaseURL}, a.HTTP),
	}, a.Metrics, a.Logger)
}

// Downloader returns the PDF downloader.
func (a *App) Downloader() *pdf.Downloader {
	dc := a.Config.Download
	return pdf.NewDownloader(pdf.Config{
		Timeout:              dc.Timeout,
		MaxSize:              dc.MaxSize,
		UserAgent:            a.Config.NCBI.UserAgent,
		AllowPrivateNetworks: dc.AllowPrivateNetworks,
	}, a.Metrics, a.Logger)
}

// ExportFormats parses the configured export formats.
func (a *App) ExportFormats() ([]export.Format, error) {
	return export.ParseFormats(a.Config.Export.Formats)
}

// BatchRunner returns a topic runner using the configured NCBI identity.
// extra formats are written on top of the configured ones.
func (a *App) BatchRunner(extra []string) (*batch.Runner, error) {
	formats, err := export.ParseFormats(append(append([]string{}, a.Config.Export.Formats...), extra...))
	if err != nil {
		return nil, err
	}
	email, apiKey := a.Config.NCBI.Email, a.Config.NCBI.APIKey
	return batch.NewRunner(
		a.Searcher(email, apiKey, a.Config.NCBI.FetchCitations),
		a.Resolver(email, apiKey),
		a.Downloader(),
		formats,
		a.Logger,
	), nil
}

// HTTPServer returns the HTTP API server. Each request gets a search service
// bound to the caller's email and API key.
func (a *App) HTTPServer() *httpserver.Server {
	sc := a.Config.Server
	return httpserver.NewServer(httpserver.Config{
		Address:         sc.HTTPAddress(),
		ReadTimeout:     sc.ReadTimeout,
		WriteTimeout:    sc.WriteTimeout,
		IdleTimeout:     sc.ReadTimeout * 4,
		ShutdownTimeout: sc.ShutdownTimeout,
		SearchTimeout:   sc.SearchTimeout,
		OutputDir:       a.Config.Export.OutputDir,
		StaticDir:       sc.StaticDir,
	}, func(email, apiKey string) httpserver.Searcher {
		return a.Searcher(email, apiKey, a.Config.NCBI.FetchCitations)
	}, a.Metrics, a.Logger)
}

// Serve runs the HTTP server, plus the metrics server when metrics are
// enabled, until ctx is done or a server fails.
func (a *App) Serve(ctx context.Context) error {
	logger := a.Logger.With().Str("component", "server").Logger()
	sc := a.Config.Server

	httpSrv := a.HTTPServer()

	var metricsServer *http.Server
	if a.Config.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(a.Config.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         sc.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  sc.ReadTimeout,
			WriteTimeout: sc.ReadTimeout,
		}
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("address", sc.HTTPAddress()).Msg("HTTP server starting")
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", sc.HTTPAddress())
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("pubmed-search is ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("pubmed-search shutdown complete")
	return nil
}
