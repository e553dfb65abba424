package search

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/helixir/pubmed-search/internal/domain"
)

// DefaultMaxResults is used when a caller does not set MaxResults.
const DefaultMaxResults = 50

// MaxResultsLimit is the largest accepted MaxResults.
const MaxResultsLimit = 10000

var datePattern = regexp.MustCompile(`^\d{4}([/-]\d{1,2}([/-]\d{1,2})?)?$`)

// Query is one PubMed search request.
type Query struct {
	Text       string
	MaxResults int
	// DateFrom and DateTo bound the publication date. Accepted forms are
	// YYYY, YYYY/MM, YYYY/MM/DD and the same with '-' separators.
	DateFrom string
	DateTo   string
}

// Validate checks the query and normalizes its date bounds to the slash form
// PubMed expects.
func (q *Query) Validate() error {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return domain.NewValidationError("query", "is required")
	}
	if q.MaxResults <= 0 || q.MaxResults > MaxResultsLimit {
		return domain.NewValidationError("max_results", fmt.Sprintf("must be between 1 and %d", MaxResultsLimit))
	}

	var err error
	if q.DateFrom, err = normalizeDate("date_from", q.DateFrom); err != nil {
		return err
	}
	if q.DateTo, err = normalizeDate("date_to", q.DateTo); err != nil {
		return err
	}
	return nil
}

func normalizeDate(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if !datePattern.MatchString(value) {
		return "", domain.NewValidationError(field, fmt.Sprintf("invalid date %q", value))
	}
	return strings.ReplaceAll(value, "-", "/"), nil
}

// Term returns the esearch term: the query text followed by a publication
// date clause when either bound is set.
func (q Query) Term() string {
	switch {
	case q.DateFrom != "" && q.DateTo != "":
		return fmt.Sprintf("%s AND (%s:%s[PDAT])", q.Text, q.DateFrom, q.DateTo)
	case q.DateFrom != "":
		return fmt.Sprintf("%s AND (%s[PDAT] : 3000[PDAT])", q.Text, q.DateFrom)
	case q.DateTo != "":
		return fmt.Sprintf("%s AND (0001[PDAT] : %s[PDAT])", q.Text, q.DateTo)
	default:
		return q.Text
	}
}
