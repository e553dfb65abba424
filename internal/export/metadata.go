package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/helixir/pubmed-search/internal/domain"
)

// MetadataFileName is the name of the JSON sidecar written next to the CSV.
const MetadataFileName = "search_metadata.json"

// Article is the JSON shape of one record. Absent optional values encode as
// "unknown".
type Article struct {
	PMID          string                  `json:"pmid"`
	PMCID         domain.Optional[string] `json:"pmc_id"`
	Title         domain.Optional[string] `json:"title"`
	Abstract      string                  `json:"abstract"`
	Authors       string                  `json:"authors"`
	Year          domain.Optional[string] `json:"year"`
	Journal       domain.Optional[string] `json:"journal"`
	DOI           domain.Optional[string] `json:"doi"`
	DOILink       domain.Optional[string] `json:"doi_link"`
	PDFLink       domain.Optional[string] `json:"pdf_link"`
	URL           string                  `json:"url"`
	CitationCount domain.Optional[int]    `json:"citation_count"`
}

// NewArticle converts a record to its JSON shape.
func NewArticle(rec domain.ArticleRecord) Article {
	return Article{
		PMID:          rec.PMID,
		PMCID:         rec.PMCID,
		Title:         rec.Title,
		Abstract:      rec.Abstract,
		Authors:       rec.AuthorsDisplay(),
		Year:          rec.Year,
		Journal:       rec.Journal,
		DOI:           rec.DOI,
		DOILink:       rec.DOILink(),
		PDFLink:       rec.PDFLink,
		URL:           rec.URL(),
		CitationCount: rec.CitationCount,
	}
}

// Articles converts a slice of records. The result is never nil.
func Articles(records []domain.ArticleRecord) []Article {
	out := make([]Article, 0, len(records))
	for _, rec := range records {
		out = append(out, NewArticle(rec))
	}
	return out
}

// Metadata describes one exported search run.
type Metadata struct {
	SearchQuery      string    `json:"search_query"`
	SearchDate       time.Time `json:"search_date"`
	TotalResults     int       `json:"total_results"`
	ExportedArticles int       `json:"exported_articles"`
	CSVFile          string    `json:"csv_file"`
	Articles         []Article `json:"articles"`
}

// NewMetadata builds the metadata for a run. total is the number of search
// hits; records are the exported subset.
func NewMetadata(query string, searchDate time.Time, total int, csvFile string, records []domain.ArticleRecord) Metadata {
	return Metadata{
		SearchQuery:      query,
		SearchDate:       searchDate,
		TotalResults:     total,
		ExportedArticles: len(records),
		CSVFile:          csvFile,
		Articles:         Articles(records),
	}
}

// WriteMetadata writes md as indented JSON. search_date is RFC 3339.
func WriteMetadata(w io.Writer, md Metadata) error {
	if md.Articles == nil {
		md.Articles = []Article{}
	}
	md.SearchDate = md.SearchDate.Truncate(time.Second)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(md); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return nil
}
