// Package search runs PubMed searches and turns the results into flat
// article records.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-search/internal/domain"
	"github.com/helixir/pubmed-search/internal/observability"
	"github.com/helixir/pubmed-search/internal/papersources/pubmed"
)

// PubMed is the subset of the E-utilities client the service uses.
type PubMed interface {
	Search(ctx context.Context, term string, maxResults int) ([]string, error)
	Fetch(ctx context.Context, pmids []string) (*pubmed.PubmedArticleSet, error)
	CitationCount(ctx context.Context, pmid string) (int, error)
}

// Options tune a Service.
type Options struct {
	// FetchCitations enables the per-record cited-by lookup.
	FetchCitations bool
}

// Service runs searches against PubMed.
type Service struct {
	client  PubMed
	opts    Options
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewService creates a search service. metrics may be nil.
func NewService(client PubMed, opts Options, metrics *observability.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		client:  client,
		opts:    opts,
		metrics: metrics,
		logger:  logger.With().Str("component", "search").Logger(),
	}
}

// Search validates q, runs esearch then a single efetch, and normalizes every
// returned article. Records that cannot be normalized are logged and skipped.
// Citation lookups that fail leave the count absent, but a context that ends
// during the citation phase fails the whole search.
func (s *Service) Search(ctx context.Context, q Query) ([]domain.ArticleRecord, error) {
	if q.MaxResults == 0 {
		q.MaxResults = DefaultMaxResults
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	searchID := observability.SearchIDFromContext(ctx)
	if searchID == "" {
		searchID = uuid.NewString()
		ctx = observability.WithSearchID(ctx, searchID)
	}
	logger := observability.WithSearchContext(s.logger, searchID, q.Text)

	start := time.Now()
	s.metrics.RecordSearchStarted()

	records, err := s.search(ctx, logger, q)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
		}
		s.metrics.RecordSearchFailed(time.Since(start).Seconds())
		logger.Error().Err(err).Msg("search failed")
		return nil, err
	}

	s.metrics.RecordSearchCompleted(len(records), time.Since(start).Seconds())
	logger.Info().
		Int("articles", len(records)).
		Dur("duration", time.Since(start)).
		Msg("search completed")
	return records, nil
}

func (s *Service) search(ctx context.Context, logger zerolog.Logger, q Query) ([]domain.ArticleRecord, error) {
	term := q.Term()
	logger.Info().Str("term", term).Int("max_results", q.MaxResults).Msg("searching PubMed")

	ids, err := s.client.Search(ctx, term, q.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("esearch: %w", err)
	}
	if len(ids) == 0 {
		logger.Warn().Msg("no results found")
		return []domain.ArticleRecord{}, nil
	}

	set, err := s.client.Fetch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("efetch: %w", err)
	}

	records := make([]domain.ArticleRecord, 0, len(set.Articles))
	for _, article := range set.Articles {
		rec, err := pubmed.Normalize(article)
		if err != nil {
			s.metrics.RecordRecordSkipped()
			logger.Warn().Err(err).Msg("skipping record")
			continue
		}
		if s.opts.FetchCitations {
			rec.CitationCount = s.citationCount(ctx, logger, rec.PMID)
			// A cancelled search must not pass for a run of failed lookups.
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("citation lookup: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Service) citationCount(ctx context.Context, logger zerolog.Logger, pmid string) domain.Optional[int] {
	n, err := s.client.CitationCount(ctx, pmid)
	s.metrics.RecordCitationLookup(err == nil)
	if err != nil {
		logger.Warn().Err(err).Str("pmid", pmid).Msg("citation lookup failed")
		return domain.None[int]()
	}
	logger.Debug().Str("pmid", pmid).Int("citations", n).Msg("citation count")
	return domain.Some(n)
}
