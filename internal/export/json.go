package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/helixir/pubmed-search/internal/domain"
)

// WriteJSON writes records as an indented JSON array of Article objects.
func WriteJSON(w io.Writer, records []domain.ArticleRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Articles(records)); err != nil {
		return fmt.Errorf("encode articles: %w", err)
	}
	return nil
}
