package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/helixir/pubmed-search/internal/domain"
)

// Run is one search run to be saved.
type Run struct {
	Query   string
	Date    time.Time
	Total   int
	Records []domain.ArticleRecord
}

// SaveRun writes the run into dir: the CSV and search_metadata.json always,
// plus one file per extra format. It returns the written paths, CSV first.
func SaveRun(dir string, run Run, formats []Format) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	csvName := CSVFileName(run.Query, run.Date)
	csvPath := filepath.Join(dir, csvName)
	if err := writeFile(csvPath, func(w io.Writer) error { return WriteCSV(w, run.Records) }); err != nil {
		return nil, err
	}
	paths := []string{csvPath}

	md := NewMetadata(run.Query, run.Date, run.Total, csvName, run.Records)
	mdPath := filepath.Join(dir, MetadataFileName)
	if err := writeFile(mdPath, func(w io.Writer) error { return WriteMetadata(w, md) }); err != nil {
		return paths, err
	}
	paths = append(paths, mdPath)

	for _, f := range formats {
		if f == FormatCSV {
			continue
		}
		p := filepath.Join(dir, f.FileName(run.Query, run.Date))
		if err := writeFile(p, func(w io.Writer) error {
			return Write(w, f, run.Query, run.Date, run.Records)
		}); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// writeFile writes through a temp file in the same directory and renames it
// into place.
func writeFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
