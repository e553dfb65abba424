package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-search/internal/domain"
	"github.com/helixir/pubmed-search/internal/export"
	"github.com/helixir/pubmed-search/internal/search"
)

// DailyDir is the folder under the output root that scheduled runs use.
const DailyDir = "daily"

// Searcher runs one PubMed search.
type Searcher interface {
	Search(ctx context.Context, q search.Query) ([]domain.ArticleRecord, error)
}

// Result summarizes one topic run.
type Result struct {
	Topic      string
	Dir        string
	Found      int
	Kept       int
	Downloaded int
	Files      []string
	Err        error
}

// Runner executes topic searches.
type Runner struct {
	searcher   Searcher
	resolver   Resolver
	downloader Downloader
	formats    []export.Format
	logger     zerolog.Logger
	now        func() time.Time
}

// NewRunner creates a Runner. resolver and downloader may be nil, in which
// case topics never download PDFs.
func NewRunner(searcher Searcher, res Resolver, dl Downloader, formats []export.Format, logger zerolog.Logger) *Runner {
	return &Runner{
		searcher:   searcher,
		resolver:   res,
		downloader: dl,
		formats:    formats,
		logger:     logger.With().Str("component", "batch").Logger(),
		now:        time.Now,
	}
}

// TopicDir returns {root}/{topic} for one-off runs, and
// {root}/daily/{topic}/{YYYY-MM-DD} for daily runs.
func TopicDir(root, topic string, daily bool, day time.Time) string {
	name := export.SanitizeQuery(topic)
	if daily {
		return filepath.Join(root, DailyDir, name, day.Format("2006-01-02"))
	}
	return filepath.Join(root, name)
}

// Run executes every topic in order. A failing topic is recorded in its
// Result and does not stop the others. Run returns early only when ctx ends.
func (r *Runner) Run(ctx context.Context, root string, topics []Topic, daily bool) []Result {
	results := make([]Result, 0, len(topics))
	for _, t := range topics {
		if ctx.Err() != nil {
			break
		}
		res := r.RunTopic(ctx, TopicDir(root, t.Name, daily, r.now()), t)
		if res.Err != nil {
			r.logger.Error().Err(res.Err).Str("topic", t.Name).Msg("topic failed")
		} else {
			r.logger.Info().
				Str("topic", t.Name).
				Str("dir", res.Dir).
				Int("found", res.Found).
				Int("kept", res.Kept).
				Int("downloaded", res.Downloaded).
				Msg("topic completed")
		}
		results = append(results, res)
	}
	return results
}

// RunTopic searches one topic and writes its results into dir.
func (r *Runner) RunTopic(ctx context.Context, dir string, t Topic) Result {
	res := Result{Topic: t.Name, Dir: dir}

	started := r.now()
	records, err := r.searcher.Search(ctx, t.SearchQuery())
	if err != nil {
		res.Err = fmt.Errorf("search %s: %w", t.Name, err)
		return res
	}
	res.Found = len(records)

	records = t.Filter().Apply(records)
	res.Kept = len(records)

	files, err := export.SaveRun(dir, export.Run{
		Query:   t.Query,
		Date:    started,
		Total:   res.Found,
		Records: records,
	}, r.formats)
	res.Files = files
	if err != nil {
		res.Err = fmt.Errorf("export %s: %w", t.Name, err)
		return res
	}

	if t.Download > 0 && r.resolver != nil && r.downloader != nil {
		head := records
		if len(head) > t.Download {
			head = head[:t.Download]
		}
		downloads, err := DownloadRecords(ctx, r.resolver, r.downloader, dir, head)
		res.Downloaded = CountSaved(downloads)
		if err != nil {
			res.Err = fmt.Errorf("download %s: %w", t.Name, err)
		}
	}
	return res
}
