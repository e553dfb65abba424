// Package main is the entry point for the pubmed-search CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/helixir/pubmed-search/internal/app"
	"github.com/helixir/pubmed-search/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	configFile string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "pubmed-search",
	Short: "Search PubMed, find full texts and export the results",
	Long: `pubmed-search runs PubMed queries through the NCBI E-utilities, normalizes
the hits into flat records and exports them as CSV together with a
search_metadata.json file. JSON, HTML, BibTeX and CSL-YAML exports are
available on request.

Full texts are looked up through PubMed Central, bioRxiv/medRxiv, arXiv and
ResearchGate, in that order, and can be downloaded as PDFs.

Settings come from config.yaml, PUBMED_* environment variables and a .env
file in the working directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine.
		_ = godotenv.Load()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./config.yaml, ./config/config.yaml or /etc/pubmed-search/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console)")
	rootCmd.Version = version
}

// loadApp reads the configuration, applies the logging flags and builds the
// shared components.
func loadApp() (*app.App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" || logFormat != "" {
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if logFormat != "" {
			cfg.Logging.Format = logFormat
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return app.New(cfg, app.NewLogger(cfg.Logging)), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
