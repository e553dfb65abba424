package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/helixir/pubmed-search/internal/app"
	"github.com/helixir/pubmed-search/internal/batch"
)

var (
	batchTopicsFile string
	batchOutputDir  string
	batchFormats    []string
	batchEmail      string
	batchAPIKey     string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run every topic in a topics file once",
	Long: `Batch runs each topic of a YAML topics file and writes its CSV, metadata and
extra exports into {output-dir}/{topic}/. A topic with "download: N" also
downloads the PDFs of its first N articles.

Example topics.yaml:
  formats: [bibtex]
  topics:
    - name: CRISPR delivery
      query: "CRISPR AND (lipid nanoparticle OR LNP)"
      max_results: 50
      date_from: "2022"
      download: 5
    - name: Sepsis biomarkers
      query: sepsis AND biomarker
      min_year: 2020`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	addTopicFlags(batchCmd)
	rootCmd.AddCommand(batchCmd)
}

// addTopicFlags registers the flags shared by batch and schedule.
func addTopicFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&batchTopicsFile, "topics", "", "YAML topics file")
	cmd.Flags().StringVar(&batchOutputDir, "output-dir", "", "output root (default: export.output_dir)")
	cmd.Flags().StringSliceVar(&batchFormats, "format", nil, "extra export format for every topic (repeatable)")
	cmd.Flags().StringVar(&batchEmail, "email", "", "your email, sent to NCBI (default: ncbi.email)")
	cmd.Flags().StringVar(&batchAPIKey, "api-key", "", "NCBI API key (default: PUBMED_NCBI_API_KEY)")
	_ = cmd.MarkFlagRequired("topics")
}

// loadTopicRun reads the topics file and builds the runner for it.
func loadTopicRun() (*app.App, *batch.TopicsFile, *batch.Runner, error) {
	a, err := loadApp()
	if err != nil {
		return nil, nil, nil, err
	}
	cfg := a.Config
	cfg.NCBI.Email = firstNonEmpty(batchEmail, cfg.NCBI.Email)
	cfg.NCBI.APIKey = firstNonEmpty(batchAPIKey, cfg.NCBI.APIKey)
	cfg.Export.OutputDir = firstNonEmpty(batchOutputDir, cfg.Export.OutputDir)
	if cfg.NCBI.Email == "" {
		return nil, nil, nil, errors.New("--email is required (or set ncbi.email)")
	}

	tf, err := batch.LoadTopics(batchTopicsFile)
	if err != nil {
		return nil, nil, nil, err
	}
	runner, err := a.BatchRunner(append(append([]string{}, tf.Formats...), batchFormats...))
	if err != nil {
		return nil, nil, nil, err
	}
	return a, tf, runner, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	a, tf, runner, err := loadTopicRun()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	results := runner.Run(ctx, a.Config.Export.OutputDir, tf.Topics, false)
	printResults(cmd.OutOrStdout(), results)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d topics failed", failed, len(tf.Topics))
	}
	return nil
}

func printResults(out io.Writer, results []batch.Result) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOPIC\tFOUND\tKEPT\tPDFS\tFOLDER")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\terror: %v\n", r.Topic, r.Err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", r.Topic, r.Found, r.Kept, r.Downloaded, r.Dir)
	}
	_ = tw.Flush()
}
