package batch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/pubmed-search/internal/domain"
	"github.com/helixir/pubmed-search/internal/resolver"
)

type fakeResolver struct {
	mu    sync.Mutex
	urls  map[string]string
	hints map[string]*resolver.Hint
}

func (f *fakeResolver) Resolve(_ context.Context, pmid string, hint *resolver.Hint) domain.ResolutionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hints == nil {
		f.hints = make(map[string]*resolver.Hint)
	}
	f.hints[pmid] = hint
	u, ok := f.urls[pmid]
	if !ok {
		return domain.NoResolution()
	}
	return domain.NewResolution(u, domain.SourceRepository, domain.AccessOpen)
}

type fakeDownloader struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (f *fakeDownloader) DownloadToFile(_ context.Context, rawURL, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	if f.fail[rawURL] {
		return false
	}
	return os.WriteFile(path, []byte("%PDF-1.4"), 0o644) == nil
}

func record(pmid, title string) domain.ArticleRecord {
	return domain.ArticleRecord{
		PMID:    pmid,
		Title:   domain.SomeString(title),
		Authors: []string{"Doe J"},
		Year:    domain.Some("2023"),
	}
}

func TestDownloadRecords(t *testing.T) {
	res := &fakeResolver{urls: map[string]string{
		"1": "https://example.org/1.pdf",
		"3": "https://example.org/3.pdf",
	}}
	dl := &fakeDownloader{fail: map[string]bool{"https://example.org/3.pdf": true}}
	dir := filepath.Join(t.TempDir(), "pdfs")

	records := []domain.ArticleRecord{
		record("1", "Gene editing: a review"),
		record("2", "No full text"),
		record("3", "Broken download"),
	}
	downloads, err := DownloadRecords(context.Background(), res, dl, dir, records)
	require.NoError(t, err)
	require.Len(t, downloads, 3)

	assert.True(t, downloads[0].Saved())
	assert.Equal(t, filepath.Join(dir, "1_Gene_editing_a_review.pdf"), downloads[0].Path)
	assert.FileExists(t, downloads[0].Path)

	assert.False(t, downloads[1].Saved())
	assert.False(t, downloads[1].Resolution.Found())

	assert.False(t, downloads[2].Saved())
	assert.True(t, downloads[2].Resolution.Found())

	assert.Equal(t, 1, CountSaved(downloads))
	assert.Equal(t, []string{"https://example.org/1.pdf", "https://example.org/3.pdf"}, dl.calls)
	assert.Equal(t, "Gene editing: a review", res.hints["1"].Title)
}

func TestDownloadRecords_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	downloads, err := DownloadRecords(ctx, &fakeResolver{}, &fakeDownloader{}, t.TempDir(), []domain.ArticleRecord{record("1", "x")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, downloads)
}
