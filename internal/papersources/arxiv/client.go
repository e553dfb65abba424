// Package arxiv looks up arXiv preprints by title through the export API.
package arxiv

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/helixir/pubmed-search/internal/domain"
	"github.com/helixir/pubmed-search/internal/papersources"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// PDFURLTemplate builds the canonical PDF link from an arXiv id.
	PDFURLTemplate = "https://arxiv.org/pdf/%s.pdf"

	sourceName = "arxiv"
)

// pdfElementPattern matches the text of any element whose name ends in "pdf".
var pdfElementPattern = regexp.MustCompile(`pdf>(.*?)<`)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// Client queries the arXiv export API.
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

// FindPDF searches all fields for key and returns the PDF link of the top
// entry. The feed must contain an entry; the id is the last path segment of
// the first pdf element text, or of the entry's application/pdf link.
func (c *Client) FindPDF(ctx context.Context, key string) (string, bool, error) {
	endpoint := fmt.Sprintf("%s/query?search_query=all:%s&start=0&max_results=1",
		c.config.BaseURL, url.QueryEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.DoFor(sourceName, "query", req)
	if err != nil {
		return "", false, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", false, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", false, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	if !bytes.Contains(body, []byte("<entry>")) {
		return "", false, nil
	}

	if m := pdfElementPattern.FindSubmatch(body); m != nil {
		if id := lastSegment(string(m[1])); id != "" {
			return fmt.Sprintf(PDFURLTemplate, id), true, nil
		}
	}

	var feed Feed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return "", false, fmt.Errorf("decoding response: %w", err)
	}
	if len(feed.Entries) == 0 {
		return "", false, nil
	}
	for _, link := range feed.Entries[0].Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			if id := lastSegment(link.Href); id != "" {
				return fmt.Sprintf(PDFURLTemplate, id), true, nil
			}
		}
	}
	return "", false, nil
}

func lastSegment(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if s == "" {
		return ""
	}
	return path.Base(s)
}
