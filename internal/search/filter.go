package search

import (
	"strconv"
	"strings"

	"github.com/helixir/pubmed-search/internal/domain"
)

// Filter narrows a result list after the search. Zero fields do not filter.
type Filter struct {
	// MinYear drops records published before this year, and records whose
	// year is unknown.
	MinYear int
	// MinAuthors drops records with fewer retained authors.
	MinAuthors int
	// TitleKeywords keeps records whose title contains any keyword,
	// compared case-insensitively.
	TitleKeywords []string
}

// IsZero reports whether the filter keeps everything.
func (f Filter) IsZero() bool {
	return f.MinYear == 0 && f.MinAuthors == 0 && len(f.TitleKeywords) == 0
}

// Apply returns the records that pass every set criterion, in order.
func (f Filter) Apply(records []domain.ArticleRecord) []domain.ArticleRecord {
	if f.IsZero() {
		return records
	}
	out := make([]domain.ArticleRecord, 0, len(records))
	for _, rec := range records {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Match reports whether rec passes the filter.
func (f Filter) Match(rec domain.ArticleRecord) bool {
	if f.MinYear > 0 {
		y, ok := rec.Year.Get()
		if !ok {
			return false
		}
		year, err := strconv.Atoi(y)
		if err != nil || year < f.MinYear {
			return false
		}
	}
	if f.MinAuthors > 0 && len(rec.Authors) < f.MinAuthors {
		return false
	}
	if len(f.TitleKeywords) > 0 {
		title := strings.ToLower(rec.Title.OrElse(""))
		matched, active := false, false
		for _, kw := range f.TitleKeywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			active = true
			if strings.Contains(title, kw) {
				matched = true
				break
			}
		}
		if active && !matched {
			return false
		}
	}
	return true
}
