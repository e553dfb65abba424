package pubmed

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/helixir/pubmed-search/internal/domain"
)

// MaxAbstractRunes is the abstract length kept before the ellipsis is added.
const MaxAbstractRunes = 500

var (
	pmidPattern = regexp.MustCompile(`^\d+$`)
	yearPattern = regexp.MustCompile(`\d{4}`)
)

// Normalize converts one efetch record into an ArticleRecord. The citation
// count is left absent; callers fill it in separately. A record without a
// numeric PMID is rejected with domain.ErrMalformedRecord.
func Normalize(article PubmedArticle) (domain.ArticleRecord, error) {
	citation := article.MedlineCitation
	pmid := strings.TrimSpace(citation.PMID.Value)
	if !pmidPattern.MatchString(pmid) {
		return domain.ArticleRecord{}, fmt.Errorf("%w: invalid PMID %q", domain.ErrMalformedRecord, pmid)
	}

	pmcID := extractPMCID(article.PubmedData)
	pdfLink := domain.None[string]()
	if id, ok := pmcID.Get(); ok {
		pdfLink = domain.Some(domain.PMCPDFLink(id))
	}

	return domain.ArticleRecord{
		PMID:          pmid,
		PMCID:         pmcID,
		Title:         domain.SomeString(citation.Article.ArticleTitle.Value),
		Abstract:      extractAbstract(citation.Article.Abstract),
		Authors:       extractAuthors(citation.Article.AuthorList),
		Year:          extractYear(citation.Article),
		Journal:       extractJournal(citation.Article.Journal),
		DOI:           extractDOI(citation.Article, article.PubmedData),
		PDFLink:       pdfLink,
		CitationCount: domain.None[int](),
	}, nil
}

// extractAbstract joins the abstract sections with single spaces and
// truncates the result to MaxAbstractRunes.
func extractAbstract(abstract *Abstract) string {
	if abstract == nil {
		return ""
	}
	parts := make([]string, 0, len(abstract.AbstractTexts))
	for _, section := range abstract.AbstractTexts {
		if text := strings.TrimSpace(section.Value); text != "" {
			parts = append(parts, text)
		}
	}
	return TruncateAbstract(strings.Join(parts, " "))
}

// TruncateAbstract keeps the first MaxAbstractRunes runes of s and appends
// "..." when anything was cut.
func TruncateAbstract(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxAbstractRunes {
		return s
	}
	return string(runes[:MaxAbstractRunes]) + "..."
}

// extractAuthors formats up to domain.MaxDisplayAuthors authors as
// "LastName Initials". Collective names have no LastName and are skipped.
func extractAuthors(list *AuthorList) []string {
	if list == nil {
		return []string{}
	}
	authors := make([]string, 0, domain.MaxDisplayAuthors)
	for _, a := range list.Authors {
		last := strings.TrimSpace(a.LastName)
		if last == "" {
			continue
		}
		authors = append(authors, strings.TrimSpace(last+" "+strings.TrimSpace(a.Initials)))
		if len(authors) == domain.MaxDisplayAuthors {
			break
		}
	}
	return authors
}

// extractYear prefers the electronic article date, then the journal issue
// year, then the first four-digit run of a MedlineDate.
func extractYear(article Article) domain.Optional[string] {
	if len(article.ArticleDate) > 0 {
		if y := domain.SomeString(article.ArticleDate[0].Year); y.IsPresent() {
			return y
		}
	}
	pubDate := article.Journal.JournalIssue.PubDate
	if y := domain.SomeString(pubDate.Year); y.IsPresent() {
		return y
	}
	if m := yearPattern.FindString(pubDate.MedlineDate); m != "" {
		return domain.Some(m)
	}
	return domain.None[string]()
}

func extractJournal(j Journal) domain.Optional[string] {
	if title := domain.SomeString(j.Title); title.IsPresent() {
		return title
	}
	return domain.SomeString(j.ISOAbbreviation)
}

// extractDOI checks ELocationID first, then ArticleIdList.
func extractDOI(article Article, data PubmedData) domain.Optional[string] {
	for _, eloc := range article.ELocationID {
		if eloc.EIdType == "doi" {
			if doi := domain.SomeString(eloc.Value); doi.IsPresent() {
				return doi
			}
		}
	}
	for _, aid := range data.ArticleIdList.ArticleIds {
		if aid.IdType == "doi" {
			if doi := domain.SomeString(aid.Value); doi.IsPresent() {
				return doi
			}
		}
	}
	return domain.None[string]()
}

func extractPMCID(data PubmedData) domain.Optional[string] {
	for _, aid := range data.ArticleIdList.ArticleIds {
		if aid.IdType == "pmc" {
			return domain.SomeString(aid.Value)
		}
	}
	return domain.None[string]()
}
