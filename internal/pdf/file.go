package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
)

// SavedFile describes a PDF written to disk.
type SavedFile struct {
	Path        string
	SizeBytes   int64
	ContentHash string
	// Pages is the page count, 0 when the file could not be parsed.
	Pages int
	// DOI is the first DOI found on the opening pages, if any.
	DOI string
}

// SaveFile downloads rawURL and writes it to path through a temporary file
// in the same directory, so a partial download never appears under path.
func (d *Downloader) SaveFile(ctx context.Context, rawURL, path string) (*SavedFile, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result, err := d.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if err := writeAtomic(path, result.Content); err != nil {
		return nil, err
	}

	info := Inspect(result.Content)
	return &SavedFile{
		Path:        path,
		SizeBytes:   result.SizeBytes,
		ContentHash: result.ContentHash,
		Pages:       info.Pages,
		DOI:         info.DOI,
	}, nil
}

// DownloadToFile downloads rawURL into path and reports success. Failures
// are logged, never returned.
func (d *Downloader) DownloadToFile(ctx context.Context, rawURL, path string) bool {
	saved, err := d.SaveFile(ctx, rawURL, path)
	if err != nil {
		d.logger.Error().Err(err).Str("url", rawURL).Msg("failed to download PDF")
		return false
	}
	d.logger.Info().
		Str("path", saved.Path).
		Int64("bytes", saved.SizeBytes).
		Int("pages", saved.Pages).
		Msg("downloaded PDF")
	return true
}

func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".download-*.pdf")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Info is what Inspect can read from a PDF.
type Info struct {
	Pages int
	DOI   string
}

var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// Inspect parses content and returns its page count and the first DOI printed
// on its first page. Unparseable content yields a zero Info.
func Inspect(content []byte) Info {
	r, err := openReader(content)
	if err != nil || r == nil {
		return Info{}
	}
	info := Info{Pages: pageCount(r)}
	if info.Pages > 0 {
		info.DOI = firstPageDOI(r)
	}
	return info
}

// The parser panics on some malformed files, so each call is guarded.

func openReader(content []byte) (r *lpdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("parse pdf: %v", p)
		}
	}()
	return lpdf.NewReader(bytes.NewReader(content), int64(len(content)))
}

func pageCount(r *lpdf.Reader) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	return r.NumPage()
}

func firstPageDOI(r *lpdf.Reader) (doi string) {
	defer func() {
		if recover() != nil {
			doi = ""
		}
	}()
	page := r.Page(1)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.TrimRight(doiPattern.FindString(text), ".,;)")
}

var unsafeFileChars = regexp.MustCompile(`[^\w\s-]`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// FileName builds "{pmid}_{title}.pdf" with the title reduced to safe
// characters and capped at 40 runes. An empty title gives "{pmid}.pdf".
func FileName(pmid, title string) string {
	clean := unsafeFileChars.ReplaceAllString(title, "")
	clean = whitespaceRun.ReplaceAllString(strings.TrimSpace(clean), "_")
	runes := []rune(clean)
	if len(runes) > 40 {
		runes = runes[:40]
	}
	clean = strings.Trim(string(runes), "_")
	if clean == "" {
		return pmid + ".pdf"
	}
	return pmid + "_" + clean + ".pdf"
}
