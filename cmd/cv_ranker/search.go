package main

import (
	"fmt"

	"github.com/jonathan/cv-ranker/internal/observability"
	"github.com/jonathan/cv-ranker/internal/types"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Rank the stored CVs of a job",
	Long:  "Runs the full ranking pipeline for a (company, job) pair held in the configured store, embedding missing records first.",
	RunE:  runSearch,
}

var (
	searchCompany string
	searchJob     string
	searchTopK    int
	searchDetails bool
	searchRerank  bool
)

func init() {
	searchCmd.Flags().StringVar(&searchCompany, "company", "", "Company identifier (required)")
	searchCmd.Flags().StringVar(&searchJob, "job", "", "Job identifier (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "Number of candidates to return (defaults to scoring.default_top_k)")
	searchCmd.Flags().BoolVar(&searchDetails, "details", false, "Include impact events and relevance skills")
	searchCmd.Flags().BoolVar(&searchRerank, "rerank", false, "Force cross-encoder reranking on or off")

	if err := searchCmd.MarkFlagRequired("company"); err != nil {
		panic(fmt.Sprintf("failed to mark company flag as required: %v", err))
	}
	if err := searchCmd.MarkFlagRequired("job"); err != nil {
		panic(fmt.Sprintf("failed to mark job flag as required: %v", err))
	}

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	req := types.SearchRequest{
		Company:     searchCompany,
		Job:         searchJob,
		TopK:        searchTopK,
		ShowDetails: searchDetails,
	}
	if cmd.Flags().Changed("rerank") {
		req.Rerank = &searchRerank
	}

	resp, err := a.searcher.Search(cmd.Context(), req, nil)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), resp)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintResults(resp)
	return nil
}
