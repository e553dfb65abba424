package pdf

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF builds a structurally valid PDF with the given number of empty pages.
func minimalPDF(pages int) []byte {
	var b strings.Builder
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, b.Len())
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	b.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(offsets)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return []byte(b.String())
}

func TestInspect(t *testing.T) {
	t.Run("counts pages", func(t *testing.T) {
		info := Inspect(minimalPDF(3))
		assert.Equal(t, 3, info.Pages)
		assert.Empty(t, info.DOI)
	})

	t.Run("garbage yields zero info", func(t *testing.T) {
		assert.Equal(t, Info{}, Inspect(samplePDFContent))
		assert.Equal(t, Info{}, Inspect(nil))
	})
}

func TestSaveFile(t *testing.T) {
	content := minimalPDF(2)
	server := httptest.NewServer(pdfHandler(content, "application/pdf"))
	defer server.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "123.pdf")

	saved, err := newTestDownloader(Config{}).SaveFile(context.Background(), server.URL, path)
	require.NoError(t, err)

	assert.Equal(t, path, saved.Path)
	assert.Equal(t, int64(len(content)), saved.SizeBytes)
	assert.Equal(t, 2, saved.Pages)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, written)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestDownloadToFile(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(pdfHandler(samplePDFContent, "application/pdf"))
		defer server.Close()

		path := filepath.Join(t.TempDir(), "a.pdf")
		assert.True(t, newTestDownloader(Config{}).DownloadToFile(context.Background(), server.URL, path))
		assert.FileExists(t, path)
	})

	t.Run("failure leaves no file", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		path := filepath.Join(t.TempDir(), "b.pdf")
		assert.False(t, newTestDownloader(Config{}).DownloadToFile(context.Background(), server.URL, path))
		assert.NoFileExists(t, path)
	})
}

func TestFileName(t *testing.T) {
	tests := []struct {
		pmid, title, want string
	}{
		{"123", "CRISPR: a review!", "123_CRISPR_a_review.pdf"},
		{"123", "", "123.pdf"},
		{"123", "???", "123.pdf"},
		{"9", strings.Repeat("word ", 20), "9_word_word_word_word_word_word_word_word.pdf"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, FileName(tc.pmid, tc.title))
		})
	}
}
