package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helixir/pubmed-search/internal/resolver"
)

var (
	resolveTitle   string
	resolveAuthors []string
	resolveEmail   string
	resolveAPIKey  string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <pmid>",
	Short: "Find a full-text URL for one article",
	Long: `Resolve tries PubMed Central, bioRxiv/medRxiv, arXiv and ResearchGate in
that order and prints the first hit as JSON. Without --title only the PubMed
Central step can run.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveTitle, "title", "", "article title, used by the title searches")
	resolveCmd.Flags().StringSliceVar(&resolveAuthors, "author", nil, "author name (repeatable)")
	resolveCmd.Flags().StringVar(&resolveEmail, "email", "", "your email, sent to NCBI (default: ncbi.email)")
	resolveCmd.Flags().StringVar(&resolveAPIKey, "api-key", "", "NCBI API key (default: PUBMED_NCBI_API_KEY)")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	var hint *resolver.Hint
	if resolveTitle != "" || len(resolveAuthors) > 0 {
		hint = &resolver.Hint{Title: resolveTitle, Authors: resolveAuthors}
	}

	ctx, stop := signalContext()
	defer stop()

	r := a.Resolver(
		firstNonEmpty(resolveEmail, a.Config.NCBI.Email),
		firstNonEmpty(resolveAPIKey, a.Config.NCBI.APIKey),
	)
	result := r.Resolve(ctx, args[0], hint)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
