package app

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/pubmed-search/internal/config"
	"github.com/helixir/pubmed-search/internal/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			HTTPPort:        freePort(t),
			MetricsPort:     freePort(t),
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			SearchTimeout:   5 * time.Second,
		},
		Logging: config.LoggingConfig{Level: "error", Format: "json", Output: "stderr"},
		NCBI: config.NCBIConfig{
			Email:     "user@example.org",
			Tool:      "pubmed-search",
			Timeout:   5 * time.Second,
			RateLimit: 100,
		},
		Resolver: config.ResolverConfig{StepTimeout: 5 * time.Second},
		Download: config.DownloadConfig{Timeout: 5 * time.Second, MaxSize: 1 << 20},
		Export:   config.ExportConfig{OutputDir: t.TempDir(), Formats: []string{"csv"}},
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestNew_MetricsDisabled(t *testing.T) {
	a := New(testConfig(t), zerolog.Nop())
	assert.Nil(t, a.Metrics)
	assert.NotNil(t, a.HTTP)
}

func TestApp_HTTPServer(t *testing.T) {
	a := NewWithMetrics(testConfig(t), nil, zerolog.Nop())

	rec := httptest.NewRecorder()
	a.HTTPServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestApp_BatchRunner(t *testing.T) {
	a := NewWithMetrics(testConfig(t), nil, zerolog.Nop())

	t.Run("extra formats", func(t *testing.T) {
		r, err := a.BatchRunner([]string{"json", "bib"})
		require.NoError(t, err)
		assert.NotNil(t, r)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := a.BatchRunner([]string{"docx"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestApp_ResolverUsesPMC(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/esearch.fcgi":
			assert.Equal(t, "pmc", r.URL.Query().Get("db"))
			assert.Equal(t, "user@example.org", r.URL.Query().Get("email"))
			w.Header().Set("Content-Type", "text/xml")
			_, _ = w.Write([]byte(`<eSearchResult><Count>1</Count><IdList><Id>998877</Id></IdList></eSearchResult>`))
		case r.Method == http.MethodHead && r.URL.Path == "/pmc/PMC998877/pdf/":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.NCBI.BaseURL = srv.URL
	cfg.Resolver.PMCArticlesURL = srv.URL + "/pmc"
	cfg.Resolver.Steps = []string{"pmc"}
	a := NewWithMetrics(cfg, nil, zerolog.Nop())

	res := a.Resolver(cfg.NCBI.Email, "").Resolve(context.Background(), "123", nil)
	require.True(t, res.Found())
	u, _ := res.URL()
	assert.Equal(t, srv.URL+"/pmc/PMC998877/pdf/", u)
	assert.Equal(t, domain.SourceRepository, res.Source())
}

func TestApp_Serve(t *testing.T) {
	cfg := testConfig(t)
	a := NewWithMetrics(cfg, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	url := "http://" + cfg.Server.HTTPAddress() + "/api/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
