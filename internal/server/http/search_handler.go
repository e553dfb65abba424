package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/pubmed-search/internal/domain"
	"github.com/helixir/pubmed-search/internal/export"
	"github.com/helixir/pubmed-search/internal/observability"
	"github.com/helixir/pubmed-search/internal/search"
)

const maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies

// Response messages.
const (
	msgRequired = "Email and query are required"
	msgTimeout  = "Search timeout (>5 minutes). Try reducing max results or disable citation fetching."
)

// searchRequest is the JSON body of POST /api/search.
type searchRequest struct {
	Email      string `json:"email"`
	Query      string `json:"query"`
	MaxResults *int   `json:"maxResults,omitempty"`
	APIKey     string `json:"apiKey,omitempty"`
	DateFrom   string `json:"dateFrom,omitempty"`
	DateTo     string `json:"dateTo,omitempty"`
}

// searchParams is the validated form of a searchRequest.
type searchParams struct {
	Email      string `validate:"required,email"`
	Query      string `validate:"required,max=10000"`
	MaxResults int    `validate:"min=1,max=10000"`
}

type searchResponse struct {
	Success bool         `json:"success"`
	Results []export.Row `json:"results"`
	Count   int          `json:"count"`
}

// searchHandler handles POST /api/search. It runs the search, writes the CSV
// and metadata into the output directory, and returns the CSV rows.
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFromContext(r.Context(), s.logger)

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req searchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	params := searchParams{
		Email:      strings.TrimSpace(req.Email),
		Query:      strings.TrimSpace(req.Query),
		MaxResults: search.DefaultMaxResults,
	}
	if params.Email == "" || params.Query == "" {
		writeError(w, http.StatusBadRequest, msgRequired)
		return
	}
	if req.MaxResults != nil {
		params.MaxResults = *req.MaxResults
	}
	if err := s.validate.Struct(params); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	q := search.Query{
		Text:       params.Query,
		MaxResults: params.MaxResults,
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
	}
	if err := q.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.searchTimeout)
	defer cancel()

	started := time.Now()
	records, err := s.newSearcher(params.Email, strings.TrimSpace(req.APIKey)).Search(ctx, q)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTimeout) || errors.Is(ctx.Err(), context.DeadlineExceeded):
			logger.Warn().Err(err).Dur("timeout", s.searchTimeout).Msg("search timed out")
			writeError(w, http.StatusGatewayTimeout, msgTimeout)
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			logger.Error().Err(err).Msg("search failed")
			writeError(w, http.StatusInternalServerError, "Search failed: "+err.Error())
		}
		return
	}

	rows, err := s.saveResults(q.Text, started, records)
	if err != nil {
		logger.Error().Err(err).Msg("saving results failed")
		writeError(w, http.StatusInternalServerError, "Search failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Success: true,
		Results: rows,
		Count:   len(rows),
	})
}

// saveResults writes the run into the output directory and reads the CSV
// back as rows.
func (s *Server) saveResults(query string, date time.Time, records []domain.ArticleRecord) ([]export.Row, error) {
	paths, err := export.SaveRun(s.outputDir, export.Run{
		Query:   query,
		Date:    date,
		Total:   len(records),
		Records: records,
	}, nil)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(paths[0])
	if err != nil {
		return nil, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()
	return export.ReadCSV(f)
}

// validationMessage turns validator errors into a client-facing message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	switch fe := verrs[0]; fe.Field() {
	case "Email":
		return "invalid email address"
	case "MaxResults":
		return fmt.Sprintf("maxResults must be between 1 and %d", search.MaxResultsLimit)
	case "Query":
		return fmt.Sprintf("query must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("invalid %s", fe.Field())
	}
}
