// Package domain holds the records exchanged between the search, resolution
// and export layers.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Unknown is the placeholder written wherever an optional value is absent.
const Unknown = "unknown"

// MaxDisplayAuthors is the number of authors kept on a record.
const MaxDisplayAuthors = 3

// URL templates for links derived from record identifiers.
const (
	PubMedURLTemplate = "https://pubmed.ncbi.nlm.nih.gov/%s/"
	DOIURLTemplate    = "https://doi.org/%s"
	PMCPDFURLTemplate = "https://www.ncbi.nlm.nih.gov/pmc/articles/%s/pdf/"
)

// Optional holds a value that may be absent.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some wraps a present value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None returns an absent value.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// SomeString returns None for blank strings and Some otherwise.
func SomeString(s string) Optional[string] {
	s = strings.TrimSpace(s)
	if s == "" {
		return None[string]()
	}
	return Some(s)
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// IsPresent reports whether the value is set.
func (o Optional[T]) IsPresent() bool {
	return o.ok
}

// OrElse returns the value, or def when absent.
func (o Optional[T]) OrElse(def T) T {
	if !o.ok {
		return def
	}
	return o.value
}

// String formats the value, or Unknown when absent.
func (o Optional[T]) String() string {
	if !o.ok {
		return Unknown
	}
	return fmt.Sprint(o.value)
}

// MarshalJSON encodes the value, or the Unknown placeholder when absent.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return json.Marshal(Unknown)
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON accepts either a value or the Unknown placeholder.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil && s == Unknown {
		*o = None[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// ArticleRecord is one normalized PubMed search hit. Records are built once
// by the search normalizer and treated as read-only afterwards.
type ArticleRecord struct {
	PMID          string
	PMCID         Optional[string]
	Title         Optional[string]
	Abstract      string
	Authors       []string
	Year          Optional[string]
	Journal       Optional[string]
	DOI           Optional[string]
	PDFLink       Optional[string]
	CitationCount Optional[int]
}

// URL returns the canonical PubMed page for the record.
func (a ArticleRecord) URL() string {
	return fmt.Sprintf(PubMedURLTemplate, a.PMID)
}

// DOILink returns the doi.org resolver link when the DOI is known.
func (a ArticleRecord) DOILink() Optional[string] {
	doi, ok := a.DOI.Get()
	if !ok {
		return None[string]()
	}
	return Some(fmt.Sprintf(DOIURLTemplate, doi))
}

// AuthorsDisplay joins the retained authors with ", ".
func (a ArticleRecord) AuthorsDisplay() string {
	return strings.Join(a.Authors, ", ")
}

// PMCPDFLink builds the PubMed Central PDF link for a PMC identifier.
func PMCPDFLink(pmcID string) string {
	return fmt.Sprintf(PMCPDFURLTemplate, pmcID)
}
