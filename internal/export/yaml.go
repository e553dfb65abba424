package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/helixir/pubmed-search/internal/domain"
)

// CSLItem is one bibliography entry in CSL-YAML form, readable by Pandoc and
// reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title,omitempty"`
	Author         []CSLName `yaml:"author,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	URL            string    `yaml:"URL"`
	PMID           string    `yaml:"PMID"`
	PMCID          string    `yaml:"PMCID,omitempty"`
}

// CSLName is a person's name. PubMed names are "Family Initials".
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate holds date-parts; only the year is known for PubMed records.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// WriteCSLYAML writes records as a CSL-YAML list.
func WriteCSLYAML(w io.Writer, records []domain.ArticleRecord) error {
	items := make([]CSLItem, 0, len(records))
	for _, rec := range records {
		items = append(items, toCSLItem(rec))
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encode csl yaml: %w", err)
	}
	return enc.Close()
}

func toCSLItem(rec domain.ArticleRecord) CSLItem {
	item := CSLItem{
		ID:             "PMID" + rec.PMID,
		Type:           "article-journal",
		Title:          rec.Title.OrElse(""),
		ContainerTitle: rec.Journal.OrElse(""),
		DOI:            rec.DOI.OrElse(""),
		URL:            rec.URL(),
		PMID:           rec.PMID,
		PMCID:          rec.PMCID.OrElse(""),
	}
	for _, a := range rec.Authors {
		if name := parseAuthorName(a); name != (CSLName{}) {
			item.Author = append(item.Author, name)
		}
	}
	if y, ok := rec.Year.Get(); ok {
		if year, err := strconv.Atoi(y); err == nil {
			item.Issued = &CSLDate{DateParts: [][]int{{year}}}
		}
	}
	return item
}

// parseAuthorName splits "Family Initials" on the last space. Single-token
// names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Family: name[:idx],
		Given:  name[idx+1:],
	}
}
