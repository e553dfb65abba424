package search

import (
	"context"
	"encoding/xml"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/pubmed-search/internal/domain"
	"github.com/helixir/pubmed-search/internal/observability"
	"github.com/helixir/pubmed-search/internal/papersources/pubmed"
)

const twoArticlesXML = `<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation>
			<PMID>111</PMID>
			<Article>
				<Journal><Title>Cell</Title><JournalIssue><PubDate><Year>2021</Year></PubDate></JournalIssue></Journal>
				<ArticleTitle>First</ArticleTitle>
				<AuthorList><Author><LastName>Doe</LastName><Initials>J</Initials></Author></AuthorList>
			</Article>
		</MedlineCitation>
	</PubmedArticle>
	<PubmedArticle>
		<MedlineCitation>
			<PMID></PMID>
			<Article><ArticleTitle>Broken</ArticleTitle></Article>
		</MedlineCitation>
	</PubmedArticle>
	<PubmedArticle>
		<MedlineCitation>
			<PMID>222</PMID>
			<Article><ArticleTitle>Second</ArticleTitle></Article>
		</MedlineCitation>
	</PubmedArticle>
</PubmedArticleSet>`

type fakePubMed struct {
	ids            []string
	searchErr      error
	fetchErr       error
	citations      map[string]int
	citationErr    map[string]error
	terms          []string
	citationCall   int
	blockCitations bool
}

func (f *fakePubMed) Search(_ context.Context, term string, _ int) ([]string, error) {
	f.terms = append(f.terms, term)
	return f.ids, f.searchErr
}

func (f *fakePubMed) Fetch(context.Context, []string) (*pubmed.PubmedArticleSet, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var set pubmed.PubmedArticleSet
	if err := xml.Unmarshal([]byte(twoArticlesXML), &set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (f *fakePubMed) CitationCount(ctx context.Context, pmid string) (int, error) {
	f.citationCall++
	if f.blockCitations {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if err := f.citationErr[pmid]; err != nil {
		return 0, err
	}
	return f.citations[pmid], nil
}

func TestService_Search(t *testing.T) {
	t.Run("normalizes and skips malformed records", func(t *testing.T) {
		fake := &fakePubMed{
			ids:         []string{"111", "222"},
			citations:   map[string]int{"111": 7},
			citationErr: map[string]error{"222": errors.New("elink down")},
		}
		m := observability.NewMetrics("test_search_service")
		svc := NewService(fake, Options{FetchCitations: true}, m, zerolog.Nop())

		records, err := svc.Search(context.Background(), Query{Text: "cancer", MaxResults: 5, DateFrom: "2020"})
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, []string{"cancer AND (2020[PDAT] : 3000[PDAT])"}, fake.terms)
		assert.Equal(t, "111", records[0].PMID)
		assert.Equal(t, 7, records[0].CitationCount.OrElse(-1))
		assert.Equal(t, "222", records[1].PMID)
		assert.False(t, records[1].CitationCount.IsPresent())

		assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsSkipped))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesCompleted))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.CitationLookups.WithLabelValues("failed")))
	})

	t.Run("citations disabled", func(t *testing.T) {
		fake := &fakePubMed{ids: []string{"111"}}
		svc := NewService(fake, Options{}, nil, zerolog.Nop())

		records, err := svc.Search(context.Background(), Query{Text: "cancer"})
		require.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Equal(t, 0, fake.citationCall)
		assert.Equal(t, domain.Unknown, records[0].CitationCount.String())
	})

	t.Run("zero ids returns empty slice", func(t *testing.T) {
		svc := NewService(&fakePubMed{}, Options{}, nil, zerolog.Nop())

		records, err := svc.Search(context.Background(), Query{Text: "nothing", MaxResults: 10})
		require.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})

	t.Run("esearch failure is fatal", func(t *testing.T) {
		m := observability.NewMetrics("test_search_service_fail")
		svc := NewService(&fakePubMed{searchErr: errors.New("boom")}, Options{}, m, zerolog.Nop())

		_, err := svc.Search(context.Background(), Query{Text: "x", MaxResults: 10})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "esearch")
		assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesFailed))
	})

	t.Run("efetch failure is fatal", func(t *testing.T) {
		svc := NewService(&fakePubMed{ids: []string{"1"}, fetchErr: errors.New("boom")}, Options{}, nil, zerolog.Nop())

		_, err := svc.Search(context.Background(), Query{Text: "x", MaxResults: 10})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "efetch")
	})

	t.Run("expired deadline is reported as timeout", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()
		svc := NewService(&fakePubMed{searchErr: context.DeadlineExceeded}, Options{}, nil, zerolog.Nop())

		_, err := svc.Search(ctx, Query{Text: "x", MaxResults: 10})
		assert.ErrorIs(t, err, domain.ErrTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("deadline during citation lookups is a timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		m := observability.NewMetrics("test_search_service_citation_timeout")
		fake := &fakePubMed{ids: []string{"111", "222"}, blockCitations: true}
		svc := NewService(fake, Options{FetchCitations: true}, m, zerolog.Nop())

		records, err := svc.Search(ctx, Query{Text: "x", MaxResults: 10})
		assert.Nil(t, records)
		assert.ErrorIs(t, err, domain.ErrTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, fake.citationCall)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesFailed))
	})

	t.Run("cancelled search during citation lookups", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		fake := &fakePubMed{ids: []string{"111"}, blockCitations: true}
		svc := NewService(fake, Options{FetchCitations: true}, nil, zerolog.Nop())

		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		_, err := svc.Search(ctx, Query{Text: "x", MaxResults: 10})
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, domain.ErrTimeout)
	})

	t.Run("invalid query", func(t *testing.T) {
		svc := NewService(&fakePubMed{}, Options{}, nil, zerolog.Nop())

		_, err := svc.Search(context.Background(), Query{Text: "  ", MaxResults: 10})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestQuery_Term(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{name: "no dates", q: Query{Text: "cancer"}, want: "cancer"},
		{name: "both", q: Query{Text: "cancer", DateFrom: "2020/01/01", DateTo: "2023/12/31"}, want: "cancer AND (2020/01/01:2023/12/31[PDAT])"},
		{name: "from only", q: Query{Text: "cancer", DateFrom: "2020"}, want: "cancer AND (2020[PDAT] : 3000[PDAT])"},
		{name: "to only", q: Query{Text: "cancer", DateTo: "2023"}, want: "cancer AND (0001[PDAT] : 2023[PDAT])"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.q.Term())
		})
	}
}

func TestQuery_Validate(t *testing.T) {
	t.Run("normalizes dashed dates", func(t *testing.T) {
		q := Query{Text: " cancer ", MaxResults: 10, DateFrom: "2020-01-31"}
		require.NoError(t, q.Validate())
		assert.Equal(t, "cancer", q.Text)
		assert.Equal(t, "2020/01/31", q.DateFrom)
	})

	tests := []struct {
		name string
		q    Query
	}{
		{name: "empty text", q: Query{MaxResults: 1}},
		{name: "zero max", q: Query{Text: "x"}},
		{name: "too many", q: Query{Text: "x", MaxResults: MaxResultsLimit + 1}},
		{name: "bad date", q: Query{Text: "x", MaxResults: 1, DateTo: "yesterday"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.q.Validate(), domain.ErrInvalidInput)
		})
	}
}
