package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/helixir/pubmed-search/internal/domain"
)

// Format names an export format.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatHTML   Format = "html"
	FormatBibTeX Format = "bibtex"
	FormatYAML   Format = "yaml"
)

// Formats lists every supported format.
var Formats = []Format{FormatCSV, FormatJSON, FormatHTML, FormatBibTeX, FormatYAML}

var formatExtensions = map[Format]string{
	FormatCSV:    ".csv",
	FormatJSON:   ".json",
	FormatHTML:   ".html",
	FormatBibTeX: ".bib",
	FormatYAML:   ".yaml",
}

// ParseFormat parses a format name, case-insensitively. "bib" and "yml" are
// accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatHTML, FormatBibTeX, FormatYAML:
		return f, nil
	case "bib":
		return FormatBibTeX, nil
	case "yml", "csl":
		return FormatYAML, nil
	}
	return "", domain.NewValidationError("format", fmt.Sprintf("unsupported export format %q", s))
}

// ParseFormats parses a list of names, dropping duplicates.
func ParseFormats(names []string) ([]Format, error) {
	seen := make(map[Format]bool, len(names))
	out := make([]Format, 0, len(names))
	for _, n := range names {
		f, err := ParseFormat(n)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	return formatExtensions[f]
}

// FileName returns the output file name for f. CSV keeps the dated results
// name; the others share its stem.
func (f Format) FileName(query string, t time.Time) string {
	stem := strings.TrimSuffix(CSVFileName(query, t), ".csv")
	return stem + f.Extension()
}

// Write dispatches to the writer for f. query and generated are only used by
// the HTML report.
func Write(w io.Writer, f Format, query string, generated time.Time, records []domain.ArticleRecord) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatJSON:
		return WriteJSON(w, records)
	case FormatHTML:
		return WriteHTML(w, Report{Query: query, Generated: generated, Records: records})
	case FormatBibTeX:
		return WriteBibTeX(w, records)
	case FormatYAML:
		return WriteCSLYAML(w, records)
	}
	return domain.NewValidationError("format", fmt.Sprintf("unsupported export format %q", f))
}
