// Package biorxiv looks up preprint PDFs on bioRxiv and medRxiv through the
// api.biorxiv.org details endpoint.
package biorxiv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/helixir/pubmed-search/internal/domain"
	"github.com/helixir/pubmed-search/internal/papersources"
)

const (
	// DefaultBaseURL is the default bioRxiv API base URL.
	DefaultBaseURL = "https://api.biorxiv.org"

	// DefaultPDFHost prefixes PDF paths that come back relative.
	DefaultPDFHost = "https://biorxiv.org"

	sourceName = "biorxiv"
)

// Servers are queried in this order.
var Servers = []string{"biorxiv", "medrxiv"}

// Config holds configuration for the bioRxiv/medRxiv client.
type Config struct {
	// BaseURL is the API base URL.
	BaseURL string

	// PDFHost is prepended to relative PDF paths.
	PDFHost string
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.PDFHost == "" {
		c.PDFHost = DefaultPDFHost
	}
	c.PDFHost = strings.TrimRight(c.PDFHost, "/")
}

// Client queries the details endpoint.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// New creates a client that sends requests through httpClient.
func New(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// FindPDF asks one server for key and returns the PDF URL of the first
// collection entry. A non-200 response or an empty collection is a miss.
func (c *Client) FindPDF(ctx context.Context, server, key string) (string, bool, error) {
	endpoint := fmt.Sprintf("%s/details/%s/%s", c.config.BaseURL, server, url.PathEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.DoFor(sourceName, server, req)
	if err != nil {
		return "", false, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return "", false, domain.NewExternalAPIError(server, resp.StatusCode, string(body), nil)
	}

	var details DetailsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&details); err != nil {
		return "", false, fmt.Errorf("decoding response: %w", err)
	}

	if len(details.Collection) == 0 {
		return "", false, nil
	}
	pdf := strings.TrimSpace(details.Collection[0].PDF)
	if pdf == "" {
		return "", false, nil
	}
	return c.absolute(pdf), true, nil
}

// absolute prefixes relative paths with the configured PDF host.
func (c *Client) absolute(pdf string) string {
	if strings.HasPrefix(pdf, "http") {
		return pdf
	}
	if !strings.HasPrefix(pdf, "/") {
		pdf = "/" + pdf
	}
	return c.config.PDFHost + pdf
}
