package export

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/helixir/pubmed-search/internal/domain"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(
	template.New("report.html.tmpl").
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		ParseFS(templateFS, "templates/report.html.tmpl"),
)

// Report is the input of WriteHTML.
type Report struct {
	Query     string
	Generated time.Time
	Records   []domain.ArticleRecord
}

type reportArticle struct {
	Title     string
	Authors   string
	Year      string
	PMID      string
	Abstract  string
	URL       string
	PDFLink   string
	Citations string
}

type reportView struct {
	Query     string
	Generated time.Time
	Articles  []reportArticle
}

// WriteHTML renders a standalone HTML report. All record text is escaped.
func WriteHTML(w io.Writer, r Report) error {
	view := reportView{
		Query:     r.Query,
		Generated: r.Generated,
		Articles:  make([]reportArticle, 0, len(r.Records)),
	}
	for _, rec := range r.Records {
		a := reportArticle{
			Title:    rec.Title.String(),
			Authors:  rec.AuthorsDisplay(),
			Year:     rec.Year.String(),
			PMID:     rec.PMID,
			Abstract: rec.Abstract,
			URL:      rec.URL(),
			PDFLink:  rec.PDFLink.OrElse(""),
		}
		if n, ok := rec.CitationCount.Get(); ok {
			a.Citations = fmt.Sprint(n)
		}
		view.Articles = append(view.Articles, a)
	}
	if err := reportTemplate.Execute(w, view); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
