package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/helixir/pubmed-search/internal/domain"
)

// ToBibTeX converts a record to a BibTeX @article entry keyed PMID{pmid}.
func ToBibTeX(rec domain.ArticleRecord) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@article{PMID%s,\n", rec.PMID))
	b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(rec.Title.String())))
	b.WriteString(fmt.Sprintf("  author = {%s},\n", escapeLatex(formatAuthors(rec.Authors))))
	b.WriteString(fmt.Sprintf("  year = {%s},\n", rec.Year.String()))

	if journal, ok := rec.Journal.Get(); ok {
		b.WriteString(fmt.Sprintf("  journal = {%s},\n", escapeLatex(journal)))
	}
	if doi, ok := rec.DOI.Get(); ok {
		b.WriteString(fmt.Sprintf("  doi = {%s},\n", doi))
	}

	b.WriteString(fmt.Sprintf("  url = {%s}\n", rec.URL()))
	b.WriteString("}\n")

	return b.String()
}

// WriteBibTeX writes one entry per record, separated by blank lines.
func WriteBibTeX(w io.Writer, records []domain.ArticleRecord) error {
	entries := make([]string, 0, len(records))
	for _, rec := range records {
		entries = append(entries, ToBibTeX(rec))
	}
	if _, err := io.WriteString(w, strings.Join(entries, "\n")); err != nil {
		return fmt.Errorf("write bibtex: %w", err)
	}
	return nil
}

// formatAuthors joins PubMed display names with BibTeX's " and ".
func formatAuthors(authors []string) string {
	if len(authors) == 0 {
		return domain.Unknown
	}
	return strings.Join(authors, " and ")
}

var latexReplacer = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	"&", `\&`,
	"%", `\%`,
	"$", `\$`,
	"#", `\#`,
	"_", `\_`,
	"{", `\{`,
	"}", `\}`,
	"~", `\textasciitilde{}`,
	"^", `\textasciicircum{}`,
)

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	return latexReplacer.Replace(s)
}
