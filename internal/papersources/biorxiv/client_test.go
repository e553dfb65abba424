package biorxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/pubmed-search/internal/papersources"
)

func newTestClient(baseURL string) *Client {
	return New(Config{BaseURL: baseURL}, papersources.NewHTTPClient(papersources.HTTPClientConfig{
		RateLimit:  100,
		BurstSize:  10,
		MaxRetries: 1,
		RetryDelay: 10 * time.Millisecond,
	}))
}

func TestClient_FindPDF(t *testing.T) {
	t.Run("relative pdf path gets host prefix", func(t *testing.T) {
		var path string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.EscapedPath()
			_, _ = w.Write([]byte(`{"messages":[{"status":"ok"}],"collection":[{"doi":"10.1101/2023.01.01.000001","pdf":"/content/10.1101/2023.01.01.000001v1.full.pdf"}]}`))
		}))
		defer server.Close()

		u, ok, err := newTestClient(server.URL).FindPDF(context.Background(), "biorxiv", "Single cell atlas")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "https://biorxiv.org/content/10.1101/2023.01.01.000001v1.full.pdf", u)
		assert.Equal(t, "/details/biorxiv/Single%20cell%20atlas", path)
	})

	t.Run("absolute pdf url kept", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"collection":[{"pdf":"https://www.medrxiv.org/content/x.pdf"}]}`))
		}))
		defer server.Close()

		u, ok, err := newTestClient(server.URL).FindPDF(context.Background(), "medrxiv", "x")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "https://www.medrxiv.org/content/x.pdf", u)
	})

	t.Run("empty collection is a miss", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"messages":[{"status":"no posts found"}],"collection":[]}`))
		}))
		defer server.Close()

		_, ok, err := newTestClient(server.URL).FindPDF(context.Background(), "biorxiv", "x")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing pdf field is a miss", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"collection":[{"doi":"10.1101/x"}]}`))
		}))
		defer server.Close()

		_, ok, err := newTestClient(server.URL).FindPDF(context.Background(), "biorxiv", "x")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		_, ok, err := newTestClient(server.URL).FindPDF(context.Background(), "biorxiv", "x")
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid json is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer server.Close()

		_, _, err := newTestClient(server.URL).FindPDF(context.Background(), "biorxiv", "x")
		assert.Error(t, err)
	})
}
