// Package researchgate probes the ResearchGate search page for a title. The
// site has no public API, so a reachable search page is the only signal.
package researchgate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/helixir/pubmed-search/internal/papersources"
)

// DefaultBaseURL is the ResearchGate site root.
const DefaultBaseURL = "https://www.researchgate.net"

const sourceName = "researchgate"

// Config holds configuration for the ResearchGate probe.
type Config struct {
	BaseURL string
}

// Client issues HEAD probes against the search page.
type Client struct {
	baseURL    string
	httpClient *papersources.HTTPClient
}

// New creates a client that sends requests through httpClient.
func New(cfg Config, httpClient *papersources.HTTPClient) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: httpClient,
	}
}

// SearchURL returns the search page URL for key.
func (c *Client) SearchURL(key string) string {
	return fmt.Sprintf("%s/search?q=%s", c.baseURL, url.QueryEscape(key))
}

// Probe sends a HEAD request to the search page, following redirects, and
// reports the page URL when the final response is 200.
func (c *Client) Probe(ctx context.Context, key string) (string, bool, error) {
	target := c.SearchURL(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return "", false, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.DoFor(sourceName, "search", req)
	if err != nil {
		return "", false, fmt.Errorf("executing request: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, nil
	}
	return target, true, nil
}
