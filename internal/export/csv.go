// Package export writes search results to disk formats: CSV, JSON metadata,
// HTML reports, BibTeX and CSL-YAML.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/helixir/pubmed-search/internal/domain"
)

// CSV column names, in output order.
const (
	ColPMID          = "PMID"
	ColPMCID         = "PMC_ID"
	ColTitle         = "Title"
	ColCitationCount = "Citation_Count"
	ColAuthors       = "Authors"
	ColJournal       = "Journal"
	ColYear          = "Year"
	ColDOI           = "DOI"
	ColDOILink       = "DOI_Link"
	ColPDFLink       = "PDF_Link"
	ColPubMedURL     = "PubMed_URL"
)

// CSVHeader is the header row written by WriteCSV.
var CSVHeader = []string{
	ColPMID, ColPMCID, ColTitle, ColCitationCount, ColAuthors, ColJournal,
	ColYear, ColDOI, ColDOILink, ColPDFLink, ColPubMedURL,
}

// maxFileNameQuery caps the sanitized query embedded in CSV file names.
const maxFileNameQuery = 50

var (
	fileNameStrip = regexp.MustCompile(`[^\p{L}\p{N}_\s\p{Zs}-]`)
	fileNameSpace = regexp.MustCompile(`[\s\p{Zs}]+`)
)

// Row is one CSV row keyed by column name.
type Row map[string]string

// WriteCSV writes records as CSV with CSVHeader. Absent values are written
// as "unknown".
func WriteCSV(w io.Writer, records []domain.ArticleRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(csvRecord(rec)); err != nil {
			return fmt.Errorf("write csv row %s: %w", rec.PMID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRecord(rec domain.ArticleRecord) []string {
	return []string{
		rec.PMID,
		rec.PMCID.String(),
		rec.Title.String(),
		rec.CitationCount.String(),
		rec.AuthorsDisplay(),
		rec.Journal.String(),
		rec.Year.String(),
		rec.DOI.String(),
		rec.DOILink().String(),
		rec.PDFLink.String(),
		rec.URL(),
	}
}

// ReadCSV reads a file produced by WriteCSV into rows keyed by the header.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cr.FieldsPerRecord = len(header)

	rows := []Row{}
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			row[col] = fields[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CSVFileName returns pubmed_results_{query}_{YYYYMMDD}.csv. The query keeps
// letters and digits in any script, '_', whitespace and '-', whitespace runs become '_', and the
// result is capped at 50 characters.
func CSVFileName(query string, t time.Time) string {
	return fmt.Sprintf("pubmed_results_%s_%s.csv", SanitizeQuery(query), t.Format("20060102"))
}

// SanitizeQuery turns a free-text query into a file-name fragment.
func SanitizeQuery(query string) string {
	s := fileNameStrip.ReplaceAllString(query, "")
	s = fileNameSpace.ReplaceAllString(strings.TrimSpace(s), "_")
	if r := []rune(s); len(r) > maxFileNameQuery {
		s = string(r[:maxFileNameQuery])
	}
	return s
}
