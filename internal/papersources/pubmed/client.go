package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-search/internal/domain"
	"github.com/helixir/pubmed-search/internal/papersources"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultTool identifies this program to NCBI.
	DefaultTool = "pubmed-search"

	// DefaultCitationDelay is the pause taken before each elink call.
	DefaultCitationDelay = 400 * time.Millisecond

	// MaxResultsLimit is the maximum results allowed per request by the API.
	MaxResultsLimit = 10000

	// postThreshold is the id count above which efetch switches to POST.
	postThreshold = 200

	// maxResponseSize caps the bytes read from any E-utilities response.
	maxResponseSize = 50 << 20

	// sourceName labels metrics and errors for this source.
	sourceName = "pubmed"

	citedInLinkName = "pubmed_pubmed_citedin"
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Email is sent with every request as NCBI asks callers to identify themselves.
	Email string

	// Tool is the registered tool name. Defaults to DefaultTool.
	Tool string

	// APIKey is the NCBI API key for higher rate limits. Optional.
	APIKey string

	// CitationDelay is the fixed pause before each cited-by lookup.
	// Negative values are treated as zero.
	CitationDelay time.Duration
}

// applyDefaults applies default values to the config.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Tool == "" {
		c.Tool = DefaultTool
	}
	if c.CitationDelay < 0 {
		c.CitationDelay = 0
	}
}

// Client talks to the E-utilities endpoints.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	logger     zerolog.Logger
}

// New creates a PubMed client that sends its requests through httpClient.
func New(cfg Config, httpClient *papersources.HTTPClient, logger zerolog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "pubmed").Logger(),
	}
}

// Search runs esearch against the pubmed database, ordered by relevance, and
// returns the matching PMIDs. A query with no hits yields an empty slice.
func (c *Client) Search(ctx context.Context, term string, maxResults int) ([]string, error) {
	if maxResults <= 0 {
		return nil, domain.NewValidationError("max_results", "must be positive")
	}
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}

	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("term", term)
	q.Set("retmax", strconv.Itoa(maxResults))
	q.Set("sort", "relevance")

	var result ESearchResult
	if err := c.get(ctx, "esearch", q, &result); err != nil {
		return nil, err
	}
	if result.ERROR != "" {
		return nil, domain.NewExternalAPIError(sourceName, http.StatusOK, result.ERROR, nil)
	}
	if result.ErrorList != nil && len(result.ErrorList.PhraseNotFound) > 0 {
		c.logger.Debug().Strs("phrases", result.ErrorList.PhraseNotFound).Msg("phrases not found")
	}

	c.logger.Info().
		Int("total", result.Count).
		Int("returned", len(result.IDList.IDs)).
		Msg("esearch completed")

	return result.IDList.IDs, nil
}

// Fetch retrieves article XML for the given PMIDs in a single efetch call.
// Large id lists are sent as a POST body.
func (c *Client) Fetch(ctx context.Context, pmids []string) (*PubmedArticleSet, error) {
	if len(pmids) == 0 {
		return &PubmedArticleSet{}, nil
	}

	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")

	var result PubmedArticleSet
	var err error
	if len(pmids) > postThreshold {
		err = c.post(ctx, "efetch", q, &result)
	} else {
		err = c.get(ctx, "efetch", q, &result)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CitationCount returns how many PubMed records cite pmid, using the
// pubmed_pubmed_citedin link set. It waits CitationDelay first. A response
// without any LinkSetDb counts as zero.
func (c *Client) CitationCount(ctx context.Context, pmid string) (int, error) {
	if err := papersources.Sleep(ctx, c.config.CitationDelay); err != nil {
		return 0, err
	}

	q := url.Values{}
	q.Set("dbfrom", "pubmed")
	q.Set("db", "pubmed")
	q.Set("id", pmid)
	q.Set("linkname", citedInLinkName)

	var result ELinkResult
	if err := c.get(ctx, "elink", q, &result); err != nil {
		return 0, err
	}
	if result.ERROR != "" {
		return 0, domain.NewExternalAPIError(sourceName, http.StatusOK, result.ERROR, nil)
	}
	if len(result.LinkSets) == 0 || len(result.LinkSets[0].LinkSetDb) == 0 {
		return 0, nil
	}
	return len(result.LinkSets[0].LinkSetDb[0].Links), nil
}

// FindPMCID searches the pmc database for pmid and returns the first PMC
// numeric id, without the PMC prefix.
func (c *Client) FindPMCID(ctx context.Context, pmid string) (string, bool, error) {
	q := url.Values{}
	q.Set("db", "pmc")
	q.Set("term", pmid)
	q.Set("retmax", "1")

	var result ESearchResult
	if err := c.get(ctx, "esearch", q, &result); err != nil {
		return "", false, err
	}
	if len(result.IDList.IDs) == 0 {
		return "", false, nil
	}
	return result.IDList.IDs[0], true, nil
}

// get issues a GET to {BaseURL}/{endpoint}.fcgi and decodes the XML body into out.
func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	c.identify(q)
	u := c.config.BaseURL + "/" + endpoint + ".fcgi?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, endpoint, out)
}

// post sends the parameters as a form body.
func (c *Client) post(ctx context.Context, endpoint string, q url.Values, out any) error {
	c.identify(q)
	u := c.config.BaseURL + "/" + endpoint + ".fcgi"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(q.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, endpoint, out)
}

func (c *Client) do(req *http.Request, endpoint string, out any) error {
	resp, err := c.httpClient.DoFor(sourceName, endpoint, req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, truncate(string(body), 512), nil)
	}

	if err := xml.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s XML response: %w", endpoint, err)
	}
	return nil
}

// identify adds the tool, email and api_key parameters.
func (c *Client) identify(q url.Values) {
	q.Set("tool", c.config.Tool)
	if c.config.Email != "" {
		q.Set("email", c.config.Email)
	}
	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
