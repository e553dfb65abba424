// Package batch runs saved topic searches into per-topic folders, once or on
// a cron schedule.
package batch

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/helixir/pubmed-search/internal/domain"
	"github.com/helixir/pubmed-search/internal/search"
)

// DefaultTopicResults is the per-topic result cap when a topic sets none.
const DefaultTopicResults = 30

// Topic is one saved search.
type Topic struct {
	Name       string `yaml:"name"`
	Query      string `yaml:"query"`
	MaxResults int    `yaml:"max_results,omitempty"`
	DateFrom   string `yaml:"date_from,omitempty"`
	DateTo     string `yaml:"date_to,omitempty"`
	// Download is how many of the leading records get a PDF download attempt.
	Download int `yaml:"download,omitempty"`

	MinYear       int      `yaml:"min_year,omitempty"`
	MinAuthors    int      `yaml:"min_authors,omitempty"`
	TitleKeywords []string `yaml:"title_keywords,omitempty"`
}

// SearchQuery returns the search query for the topic.
func (t Topic) SearchQuery() search.Query {
	q := search.Query{
		Text:       t.Query,
		MaxResults: t.MaxResults,
		DateFrom:   t.DateFrom,
		DateTo:     t.DateTo,
	}
	if q.MaxResults == 0 {
		q.MaxResults = DefaultTopicResults
	}
	return q
}

// Filter returns the post-search filter for the topic.
func (t Topic) Filter() search.Filter {
	return search.Filter{
		MinYear:       t.MinYear,
		MinAuthors:    t.MinAuthors,
		TitleKeywords: t.TitleKeywords,
	}
}

// TopicsFile is the YAML document read by LoadTopics.
type TopicsFile struct {
	// Formats lists extra export formats written for every topic.
	Formats []string `yaml:"formats,omitempty"`
	Topics  []Topic  `yaml:"topics"`
}

// LoadTopics reads and validates a topics file.
func LoadTopics(path string) (*TopicsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topics file: %w", err)
	}
	return ParseTopics(data)
}

// ParseTopics decodes and validates a topics document.
func ParseTopics(data []byte) (*TopicsFile, error) {
	var tf TopicsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse topics file: %w", err)
	}
	if err := tf.Validate(); err != nil {
		return nil, err
	}
	return &tf, nil
}

// Validate checks that every topic has a unique name and a query.
func (tf *TopicsFile) Validate() error {
	if len(tf.Topics) == 0 {
		return domain.NewValidationError("topics", "at least one topic is required")
	}
	seen := make(map[string]bool, len(tf.Topics))
	for i := range tf.Topics {
		t := &tf.Topics[i]
		t.Name = strings.TrimSpace(t.Name)
		t.Query = strings.TrimSpace(t.Query)
		if t.Name == "" {
			return domain.NewValidationError(fmt.Sprintf("topics[%d].name", i), "is required")
		}
		if t.Query == "" {
			return domain.NewValidationError(fmt.Sprintf("topics[%d].query", i), "is required")
		}
		if seen[t.Name] {
			return domain.NewValidationError(fmt.Sprintf("topics[%d].name", i), fmt.Sprintf("duplicate topic %q", t.Name))
		}
		if t.Download < 0 {
			return domain.NewValidationError(fmt.Sprintf("topics[%d].download", i), "must not be negative")
		}
		seen[t.Name] = true
	}
	return nil
}
