package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/pubmed-search/internal/batch"
	"github.com/helixir/pubmed-search/internal/domain"
	"github.com/helixir/pubmed-search/internal/export"
	"github.com/helixir/pubmed-search/internal/search"
)

const (
	listTitleLen    = 70
	listAbstractLen = 100
	rule            = "================================================================================"
)

var (
	searchEmail         string
	searchAPIKey        string
	searchQuery         string
	searchMaxResults    int
	searchDateFrom      string
	searchDateTo        string
	searchOutputDir     string
	searchBatch         bool
	searchFormats       []string
	searchDownload      bool
	searchNoCitations   bool
	searchMinYear       int
	searchMinAuthors    int
	searchTitleKeywords []string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search PubMed and export the results",
	Long: `Search runs a PubMed query, lists the hits and exports the ones you pick.

Interactive mode prints every hit with a number and reads a selection such as
"1 3 5", "1-5" or "all" from stdin. --batch exports every hit without asking.

Examples:
  pubmed-search search --email user@example.com --query "CRISPR gene therapy"
  pubmed-search search --email user@example.com --query "machine learning COVID-19" \
      --max-results 100 --date-from 2023 --date-to 2024 --format bibtex
  pubmed-search search --email user@example.com --query "immunotherapy melanoma" \
      --max-results 10 --batch --download`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchEmail, "email", "", "your email, sent to NCBI with every request (default: ncbi.email)")
	searchCmd.Flags().StringVar(&searchAPIKey, "api-key", "", "NCBI API key (default: PUBMED_NCBI_API_KEY)")
	searchCmd.Flags().StringVar(&searchQuery, "query", "", "PubMed search query")
	searchCmd.Flags().IntVar(&searchMaxResults, "max-results", search.DefaultMaxResults, "maximum results to fetch")
	searchCmd.Flags().StringVar(&searchDateFrom, "date-from", "", "earliest publication date (YYYY, YYYY/MM or YYYY/MM/DD)")
	searchCmd.Flags().StringVar(&searchDateTo, "date-to", "", "latest publication date (YYYY, YYYY/MM or YYYY/MM/DD)")
	searchCmd.Flags().StringVar(&searchOutputDir, "output-dir", "", "output directory (default: export.output_dir, ./pubmed_downloads)")
	searchCmd.Flags().BoolVar(&searchBatch, "batch", false, "export all results without prompting")
	searchCmd.Flags().StringSliceVar(&searchFormats, "format", nil, "extra export format: json, html, bibtex or yaml (repeatable)")
	searchCmd.Flags().BoolVar(&searchDownload, "download", false, "resolve and download PDFs of the exported articles")
	searchCmd.Flags().BoolVar(&searchNoCitations, "no-citations", false, "skip the cited-by count lookups")
	searchCmd.Flags().IntVar(&searchMinYear, "min-year", 0, "drop articles published before this year")
	searchCmd.Flags().IntVar(&searchMinAuthors, "min-authors", 0, "drop articles with fewer authors")
	searchCmd.Flags().StringSliceVar(&searchTitleKeywords, "title-keyword", nil, "keep articles whose title contains any keyword (repeatable)")
	_ = searchCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	cfg := a.Config

	email := firstNonEmpty(searchEmail, cfg.NCBI.Email)
	if email == "" {
		return errors.New("--email is required (or set ncbi.email)")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email %q", email)
	}
	apiKey := firstNonEmpty(searchAPIKey, cfg.NCBI.APIKey)
	outputDir := firstNonEmpty(searchOutputDir, cfg.Export.OutputDir)

	formats, err := export.ParseFormats(append(append([]string{}, cfg.Export.Formats...), searchFormats...))
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	svc := a.Searcher(email, apiKey, cfg.NCBI.FetchCitations && !searchNoCitations)
	started := time.Now()
	records, err := svc.Search(ctx, search.Query{
		Text:       searchQuery,
		MaxResults: searchMaxResults,
		DateFrom:   searchDateFrom,
		DateTo:     searchDateTo,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	total := len(records)

	filter := search.Filter{
		MinYear:       searchMinYear,
		MinAuthors:    searchMinAuthors,
		TitleKeywords: searchTitleKeywords,
	}
	records = filter.Apply(records)

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No articles found. Try a different query.")
		return nil
	}

	selected := records
	if !searchBatch {
		selected, err = selectRecords(cmd.InOrStdin(), out, records)
		if err != nil {
			return err
		}
	}
	if len(selected) == 0 {
		fmt.Fprintln(out, "No articles selected.")
		return nil
	}

	files, err := export.SaveRun(outputDir, export.Run{
		Query:   searchQuery,
		Date:    started,
		Total:   total,
		Records: selected,
	}, formats)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	var downloads []batch.Download
	if searchDownload {
		downloads, err = batch.DownloadRecords(ctx, a.Resolver(email, apiKey), a.Downloader(), outputDir, selected)
		if err != nil {
			return fmt.Errorf("download: %w", err)
		}
	}

	printSummary(out, len(selected), outputDir, files, downloads)
	return nil
}

// selectRecords lists records with 1-based numbers and reads one selection
// line from in.
func selectRecords(in io.Reader, out io.Writer, records []domain.ArticleRecord) ([]domain.ArticleRecord, error) {
	printRecords(out, records)
	fmt.Fprint(out, "Enter article numbers to export (e.g. '1 3 5' or '1-5'), or 'all': ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read selection: %w", err)
	}
	picked, err := search.ParseSelection(line, len(records))
	if err != nil {
		return nil, err
	}

	selected := make([]domain.ArticleRecord, 0, len(picked))
	for _, i := range picked {
		selected = append(selected, records[i])
	}
	fmt.Fprintf(out, "\nSelected %d articles\n\n", len(selected))
	return selected, nil
}

func printRecords(out io.Writer, records []domain.ArticleRecord) {
	fmt.Fprintf(out, "\n%s\n", rule)
	fmt.Fprintf(out, "Found %d articles. Review and select which to export:\n\n", len(records))
	for i, rec := range records {
		fmt.Fprintf(out, "[%d] %s\n", i+1, truncate(rec.Title.String(), listTitleLen))
		fmt.Fprintf(out, "    Authors: %s\n", rec.AuthorsDisplay())
		fmt.Fprintf(out, "    Year: %s | PMID: %s", rec.Year, rec.PMID)
		if n, ok := rec.CitationCount.Get(); ok {
			fmt.Fprintf(out, " | Cited by: %d", n)
		}
		fmt.Fprintln(out)
		if rec.Abstract != "" {
			fmt.Fprintf(out, "    %s\n", truncate(rec.Abstract, listAbstractLen))
		}
		fmt.Fprintln(out)
	}
}

func printSummary(out io.Writer, exported int, outputDir string, files []string, downloads []batch.Download) {
	fmt.Fprintf(out, "\n%s\nSUMMARY\n%s\n", rule, rule)
	fmt.Fprintf(out, "Exported articles: %d\n", exported)
	fmt.Fprintf(out, "Output directory: %s\n", outputDir)
	for _, f := range files {
		fmt.Fprintf(out, "  %s\n", f)
	}
	if downloads != nil {
		fmt.Fprintf(out, "PDFs downloaded: %d of %d\n", batch.CountSaved(downloads), len(downloads))
		for _, d := range downloads {
			switch {
			case d.Saved():
			case d.Resolution.Found():
				u, _ := d.Resolution.URL()
				fmt.Fprintf(out, "  %s: download failed (%s)\n", d.PMID, u)
			default:
				fmt.Fprintf(out, "  %s: no full text found\n", d.PMID)
			}
		}
	}
	fmt.Fprintf(out, "\nCSV columns: %s\n", strings.Join(export.CSVHeader, ", "))
}

// truncate cuts s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
