package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-search/internal/domain"
	"github.com/helixir/pubmed-search/internal/observability"
)

// Step names, also accepted in Config.Steps.
const (
	StepPMC          = "pmc"
	StepPreprint     = "biorxiv"
	StepArXiv        = "arxiv"
	StepResearchGate = "researchgate"
)

const (
	// DefaultStepTimeout bounds each step.
	DefaultStepTimeout = 5 * time.Second

	// MinStepTimeout and MaxStepTimeout bound configured step timeouts.
	MinStepTimeout = 5 * time.Second
	MaxStepTimeout = 15 * time.Second

	// DefaultPMCArticlesURL is the PubMed Central article root.
	DefaultPMCArticlesURL = "https://www.ncbi.nlm.nih.gov/pmc/articles"

	// MaxKeyRunes caps the title key sent to title searches.
	MaxKeyRunes = 100
)

// DefaultSteps is the waterfall order.
var DefaultSteps = []string{StepPMC, StepPreprint, StepArXiv, StepResearchGate}

// PreprintServers are tried in order by the preprint step.
var PreprintServers = []string{"biorxiv", "medrxiv"}

// Hint carries the metadata title searches need.
type Hint struct {
	Title   string
	Authors []string
}

// HintFromRecord builds a hint from a normalized record.
func HintFromRecord(rec domain.ArticleRecord) *Hint {
	return &Hint{Title: rec.Title.OrElse(""), Authors: rec.Authors}
}

// PMCLookup maps a PMID to a PubMed Central id.
type PMCLookup interface {
	FindPMCID(ctx context.Context, pmid string) (string, bool, error)
}

// PreprintFinder looks up a preprint PDF on one server.
type PreprintFinder interface {
	FindPDF(ctx context.Context, server, key string) (string, bool, error)
}

// ArXivFinder looks up an arXiv PDF by title key.
type ArXivFinder interface {
	FindPDF(ctx context.Context, key string) (string, bool, error)
}

// AuthorNetworkProber checks an author-network search page.
type AuthorNetworkProber interface {
	Probe(ctx context.Context, key string) (string, bool, error)
}

// Doer sends HTTP requests on behalf of a named source.
type Doer interface {
	DoFor(source, endpoint string, req *http.Request) (*http.Response, error)
}

// Config configures the waterfall.
type Config struct {
	// StepTimeout bounds each step. Clamped to [MinStepTimeout, MaxStepTimeout].
	StepTimeout time.Duration

	// Steps lists the enabled steps. Order is always DefaultSteps order.
	Steps []string

	// PMCArticlesURL is the root used to build PMC PDF links.
	PMCArticlesURL string
}

func (c *Config) applyDefaults() {
	switch {
	case c.StepTimeout == 0:
		c.StepTimeout = DefaultStepTimeout
	case c.StepTimeout < MinStepTimeout:
		c.StepTimeout = MinStepTimeout
	case c.StepTimeout > MaxStepTimeout:
		c.StepTimeout = MaxStepTimeout
	}
	if len(c.Steps) == 0 {
		c.Steps = DefaultSteps
	}
	if c.PMCArticlesURL == "" {
		c.PMCArticlesURL = DefaultPMCArticlesURL
	}
	c.PMCArticlesURL = strings.TrimRight(c.PMCArticlesURL, "/")
}

// Deps are the source clients used by the steps. A nil dependency disables
// its step.
type Deps struct {
	PMC           PMCLookup
	HTTP          Doer
	Preprints     PreprintFinder
	ArXiv         ArXivFinder
	AuthorNetwork AuthorNetworkProber
}

// Resolver runs the full-text waterfall.
type Resolver struct {
	config  Config
	deps    Deps
	enabled map[string]bool
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// New creates a Resolver. metrics may be nil.
func New(cfg Config, deps Deps, metrics *observability.Metrics, logger zerolog.Logger) *Resolver {
	cfg.applyDefaults()
	enabled := make(map[string]bool, len(cfg.Steps))
	for _, s := range cfg.Steps {
		enabled[strings.ToLower(strings.TrimSpace(s))] = true
	}
	return &Resolver{
		config:  cfg,
		deps:    deps,
		enabled: enabled,
		metrics: metrics,
		logger:  logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve returns the first full-text location found for pmid. hint may be
// nil, in which case only the PMC step can run. Resolve never fails: every
// error becomes a miss.
func (r *Resolver) Resolve(ctx context.Context, pmid string, hint *Hint) domain.ResolutionResult {
	logger := observability.WithArticleContext(r.logger, pmid)
	res := FirstSuccess(ctx, logger, r.steps(pmid, hint)...)
	r.metrics.RecordResolution(string(res.Source()))

	if u, ok := res.URL(); ok {
		logger.Debug().Str("source", string(res.Source())).Str("url", u).Msg("full text resolved")
	} else {
		logger.Debug().Msg("no full text found")
	}
	return res
}

func (r *Resolver) steps(pmid string, hint *Hint) []Step {
	var steps []Step
	add := func(name string, timeout time.Duration, run func(ctx context.Context) (domain.ResolutionResult, error)) {
		if r.enabled[name] {
			steps = append(steps, Step{Name: name, Timeout: timeout, Run: run})
		}
	}

	if r.deps.PMC != nil && r.deps.HTTP != nil {
		add(StepPMC, r.config.StepTimeout, func(ctx context.Context) (domain.ResolutionResult, error) {
			return r.tryPMC(ctx, pmid)
		})
	}

	if hint == nil || strings.TrimSpace(hint.Title) == "" {
		return steps
	}
	key := SearchKey(hint.Title)

	if r.deps.Preprints != nil {
		add(StepPreprint, r.config.StepTimeout*time.Duration(len(PreprintServers)), func(ctx context.Context) (domain.ResolutionResult, error) {
			return r.tryPreprints(ctx, key)
		})
	}
	if r.deps.ArXiv != nil {
		add(StepArXiv, r.config.StepTimeout, func(ctx context.Context) (domain.ResolutionResult, error) {
			u, ok, err := r.deps.ArXiv.FindPDF(ctx, key)
			if err != nil || !ok {
				return domain.NoResolution(), err
			}
			return domain.NewResolution(u, domain.SourceArXiv, domain.AccessOpen), nil
		})
	}
	if r.deps.AuthorNetwork != nil && len(hint.Authors) > 0 {
		add(StepResearchGate, r.config.StepTimeout, func(ctx context.Context) (domain.ResolutionResult, error) {
			u, ok, err := r.deps.AuthorNetwork.Probe(ctx, key)
			if err != nil || !ok {
				return domain.NoResolution(), err
			}
			return domain.NewResolution(u, domain.SourceAuthorNetwork, domain.AccessPossiblyRestricted), nil
		})
	}
	return steps
}

// tryPMC maps the PMID to a PMC id and checks that the PDF link answers 200.
func (r *Resolver) tryPMC(ctx context.Context, pmid string) (domain.ResolutionResult, error) {
	id, ok, err := r.deps.PMC.FindPMCID(ctx, pmid)
	if err != nil || !ok {
		return domain.NoResolution(), err
	}

	pdfURL := fmt.Sprintf("%s/PMC%s/pdf/", r.config.PMCArticlesURL, strings.TrimPrefix(id, "PMC"))
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, pdfURL, nil)
	if err != nil {
		return domain.NoResolution(), err
	}
	resp, err := r.deps.HTTP.DoFor("pmc", "pdf", req)
	if err != nil {
		return domain.NoResolution(), err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.NoResolution(), nil
	}
	return domain.NewResolution(pdfURL, domain.SourceRepository, domain.AccessOpen), nil
}

// tryPreprints asks each preprint server in turn, each under its own
// StepTimeout. A failing or slow server does not stop the next one from
// being asked.
func (r *Resolver) tryPreprints(ctx context.Context, key string) (domain.ResolutionResult, error) {
	var lastErr error
	for _, server := range PreprintServers {
		callCtx, cancel := context.WithTimeout(ctx, r.config.StepTimeout)
		u, ok, err := r.deps.Preprints.FindPDF(callCtx, server, key)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return domain.NewResolution(u, domain.SourcePreprint, domain.AccessOpen), nil
		}
	}
	return domain.NoResolution(), lastErr
}

// SearchKey reduces a title to the text before its first colon, capped at
// MaxKeyRunes runes.
func SearchKey(title string) string {
	if i := strings.Index(title, ":"); i >= 0 {
		title = title[:i]
	}
	runes := []rune(title)
	if len(runes) > MaxKeyRunes {
		runes = runes[:MaxKeyRunes]
	}
	return strings.TrimSpace(string(runes))
}
