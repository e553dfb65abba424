// Package config provides configuration management for pubmed-search.
package config

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "PUBMED"

// Resolver step timeout bounds.
const (
	MinResolverStepTimeout = 5 * time.Second
	MaxResolverStepTimeout = 15 * time.Second
)

// Resolver step names accepted in resolver.steps.
var validResolverSteps = map[string]bool{
	"pmc": true, "biorxiv": true, "arxiv": true, "researchgate": true,
}

// Export formats accepted in export.formats.
var validExportFormats = map[string]bool{
	"csv": true, "json": true, "html": true, "bibtex": true, "yaml": true,
}

// Config holds all configuration for pubmed-search.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// NCBI contains E-utilities client settings.
	NCBI NCBIConfig `mapstructure:"ncbi"`
	// Resolver contains full-text waterfall settings.
	Resolver ResolverConfig `mapstructure:"resolver"`
	// Download contains PDF download settings.
	Download DownloadConfig `mapstructure:"download"`
	// Export contains output settings.
	Export ExportConfig `mapstructure:"export"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 5000).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing the response. It must
	// exceed SearchTimeout so a 504 can still be written.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// SearchTimeout is the wall-clock budget of one /api/search request.
	SearchTimeout time.Duration `mapstructure:"search_timeout"`
	// StaticDir overrides the embedded web UI when set.
	StaticDir string `mapstructure:"static_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// NCBIConfig holds E-utilities settings.
type NCBIConfig struct {
	// Email identifies the caller to NCBI. Required by the CLI, supplied per
	// request by the HTTP API.
	Email string `mapstructure:"email"`
	// APIKey is the NCBI API key (loaded from PUBMED_NCBI_API_KEY only).
	APIKey string `mapstructure:"-"`
	// Tool is the registered tool name sent with each request.
	Tool string `mapstructure:"tool"`
	// BaseURL is the E-utilities base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// CitationDelay is the pause before each cited-by lookup.
	CitationDelay time.Duration `mapstructure:"citation_delay"`
	// FetchCitations enables cited-by counts during search.
	FetchCitations bool `mapstructure:"fetch_citations"`
	// MaxRetries is the retry count for 429 and 5xx responses.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base backoff delay.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// UserAgent is sent with every outbound request.
	UserAgent string `mapstructure:"user_agent"`
}

// ResolverConfig holds full-text waterfall settings.
type ResolverConfig struct {
	// StepTimeout bounds each step (5s to 15s).
	StepTimeout time.Duration `mapstructure:"step_timeout"`
	// Steps lists the enabled steps.
	Steps []string `mapstructure:"steps"`
	// PMCArticlesURL is the root of PMC article pages.
	PMCArticlesURL string `mapstructure:"pmc_articles_url"`
	// BioRxivBaseURL is the bioRxiv details API base URL.
	BioRxivBaseURL string `mapstructure:"biorxiv_base_url"`
	// ArXivBaseURL is the arXiv query API base URL.
	ArXivBaseURL string `mapstructure:"arxiv_base_url"`
	// ResearchGateBaseURL is the author network search root.
	ResearchGateBaseURL string `mapstructure:"researchgate_base_url"`
}

// DownloadConfig holds PDF download settings.
type DownloadConfig struct {
	// Timeout is the per-download timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxSize is the largest accepted PDF in bytes.
	MaxSize int64 `mapstructure:"max_size"`
	// AllowPrivateNetworks disables the private address guard.
	AllowPrivateNetworks bool `mapstructure:"allow_private_networks"`
}

// ExportConfig holds output settings.
type ExportConfig struct {
	// OutputDir is the root directory for result files.
	OutputDir string `mapstructure:"output_dir"`
	// Formats lists the formats written next to the CSV.
	Formats []string `mapstructure:"formats"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from defaults, an optional config file and
// PUBMED_* environment variables. An empty path searches ., ./config and
// /etc/pubmed-search for config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/pubmed-search")
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.NCBI.APIKey = os.Getenv(EnvPrefix + "_NCBI_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 5000)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "6m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.search_timeout", "5m")
	v.SetDefault("server.static_dir", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "pubmed_search")

	// NCBI defaults. The API key is loaded from the environment only (see loadSecrets).
	v.SetDefault("ncbi.email", "")
	v.SetDefault("ncbi.tool", "pubmed-search")
	v.SetDefault("ncbi.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("ncbi.timeout", "30s")
	v.SetDefault("ncbi.rate_limit", 3.0) // NCBI allows 3 req/sec without an API key
	v.SetDefault("ncbi.citation_delay", "400ms")
	v.SetDefault("ncbi.fetch_citations", true)
	v.SetDefault("ncbi.max_retries", 3)
	v.SetDefault("ncbi.retry_delay", "1s")
	v.SetDefault("ncbi.user_agent", "PubMedSearch/1.0 (gzip)")

	// Resolver defaults
	v.SetDefault("resolver.step_timeout", "5s")
	v.SetDefault("resolver.steps", []string{"pmc", "biorxiv", "arxiv", "researchgate"})
	v.SetDefault("resolver.pmc_articles_url", "https://www.ncbi.nlm.nih.gov/pmc/articles")
	v.SetDefault("resolver.biorxiv_base_url", "https://api.biorxiv.org")
	v.SetDefault("resolver.arxiv_base_url", "http://export.arxiv.org/api")
	v.SetDefault("resolver.researchgate_base_url", "https://www.researchgate.net")

	// Download defaults
	v.SetDefault("download.timeout", "30s")
	v.SetDefault("download.max_size", 100*1024*1024)
	v.SetDefault("download.allow_private_networks", false)

	// Export defaults
	v.SetDefault("export.output_dir", "./pubmed_downloads")
	v.SetDefault("export.formats", []string{"csv"})
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}
	if c.Server.SearchTimeout <= 0 {
		return fmt.Errorf("server search_timeout must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate NCBI config
	if c.NCBI.Email != "" {
		if _, err := mail.ParseAddress(c.NCBI.Email); err != nil {
			return fmt.Errorf("invalid ncbi email: %s", c.NCBI.Email)
		}
	}
	if c.NCBI.BaseURL == "" {
		return fmt.Errorf("ncbi base_url is required")
	}
	if c.NCBI.Timeout <= 0 {
		return fmt.Errorf("ncbi timeout must be positive")
	}
	if c.NCBI.RateLimit <= 0 {
		return fmt.Errorf("ncbi rate_limit must be positive")
	}
	if c.NCBI.MaxRetries < 0 {
		return fmt.Errorf("ncbi max_retries must not be negative")
	}
	if c.NCBI.CitationDelay < 0 {
		return fmt.Errorf("ncbi citation_delay must not be negative")
	}

	// Validate resolver config
	if c.Resolver.StepTimeout < MinResolverStepTimeout || c.Resolver.StepTimeout > MaxResolverStepTimeout {
		return fmt.Errorf("resolver step_timeout must be between %s and %s, got %s",
			MinResolverStepTimeout, MaxResolverStepTimeout, c.Resolver.StepTimeout)
	}
	for _, step := range c.Resolver.Steps {
		if !validResolverSteps[strings.ToLower(step)] {
			return fmt.Errorf("unknown resolver step: %s", step)
		}
	}

	// Validate download config
	if c.Download.Timeout <= 0 {
		return fmt.Errorf("download timeout must be positive")
	}
	if c.Download.MaxSize <= 0 {
		return fmt.Errorf("download max_size must be positive")
	}

	// Validate export config
	if c.Export.OutputDir == "" {
		return fmt.Errorf("export output_dir is required")
	}
	for _, f := range c.Export.Formats {
		if !validExportFormats[strings.ToLower(f)] {
			return fmt.Errorf("unknown export format: %s", f)
		}
	}

	return nil
}
