package batch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/helixir/pubmed-search/internal/domain"
	"github.com/helixir/pubmed-search/internal/pdf"
	"github.com/helixir/pubmed-search/internal/resolver"
)

// Resolver finds a full-text URL for one record.
type Resolver interface {
	Resolve(ctx context.Context, pmid string, hint *resolver.Hint) domain.ResolutionResult
}

// Downloader saves one URL to a local file and reports success.
type Downloader interface {
	DownloadToFile(ctx context.Context, rawURL, path string) bool
}

// Download is the outcome for one record.
type Download struct {
	PMID       string
	Resolution domain.ResolutionResult
	// Path is set when the file was written.
	Path string
}

// Saved reports whether the PDF was written.
func (d Download) Saved() bool {
	return d.Path != ""
}

// DownloadRecords resolves each record and downloads the PDFs it finds into
// dir, one record at a time. Records without a resolution are reported with
// an empty Path.
func DownloadRecords(ctx context.Context, res Resolver, dl Downloader, dir string, records []domain.ArticleRecord) ([]Download, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	out := make([]Download, 0, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		d := Download{PMID: rec.PMID, Resolution: res.Resolve(ctx, rec.PMID, resolver.HintFromRecord(rec))}
		if u, ok := d.Resolution.URL(); ok {
			path := filepath.Join(dir, pdf.FileName(rec.PMID, rec.Title.OrElse("")))
			if dl.DownloadToFile(ctx, u, path) {
				d.Path = path
			}
		}
		out = append(out, d)
	}
	return out, nil
}

// CountSaved returns how many downloads wrote a file.
func CountSaved(downloads []Download) int {
	n := 0
	for _, d := range downloads {
		if d.Saved() {
			n++
		}
	}
	return n
}
