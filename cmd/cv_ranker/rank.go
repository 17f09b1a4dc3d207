package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jonathan/cv-ranker/internal/config"
	"github.com/jonathan/cv-ranker/internal/observability"
	"github.com/jonathan/cv-ranker/internal/types"
	"github.com/spf13/cobra"
)

// localCompany groups ad hoc rankings run from files.
const localCompany = "local"

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank CV files against a JD file",
	Long:  "Loads a job description and a directory of CVs into an in-memory store, embeds them and prints the ranking. Nothing is persisted.",
	RunE:  runRank,
}

var (
	rankJD       string
	rankCVs      string
	rankTopK     int
	rankDetails  bool
	rankEmbedder string
	rankRerank   bool
)

func init() {
	rankCmd.Flags().StringVarP(&rankJD, "jd", "j", "", "Path to the job description JSON file (required)")
	rankCmd.Flags().StringVar(&rankCVs, "cvs", "", "Directory of CV JSON files (required)")
	rankCmd.Flags().IntVarP(&rankTopK, "top-k", "k", 0, "Number of candidates to return (defaults to scoring.default_top_k)")
	rankCmd.Flags().BoolVar(&rankDetails, "details", false, "Include impact events and relevance skills")
	rankCmd.Flags().StringVar(&rankEmbedder, "embedder", "", "Override embedding.provider (ollama, gemini, hugot, hash)")
	rankCmd.Flags().BoolVar(&rankRerank, "rerank", false, "Force cross-encoder reranking on or off")

	if err := rankCmd.MarkFlagRequired("jd"); err != nil {
		panic(fmt.Sprintf("failed to mark jd flag as required: %v", err))
	}
	if err := rankCmd.MarkFlagRequired("cvs"); err != nil {
		panic(fmt.Sprintf("failed to mark cvs flag as required: %v", err))
	}

	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Store.Driver = config.StoreMemory
	if rankEmbedder != "" {
		cfg.Embedding.Provider = rankEmbedder
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	job := strings.TrimSuffix(filepath.Base(rankJD), filepath.Ext(rankJD))
	summary, err := importRecords(cmd.Context(), a.catalog, a.logger, localCompany, job, rankJD, rankCVs)
	if err != nil {
		return err
	}
	if summary.CVs == 0 {
		return fmt.Errorf("no valid CV files found in %s", rankCVs)
	}

	req := types.SearchRequest{
		Company:     localCompany,
		Job:         job,
		TopK:        rankTopK,
		ShowDetails: rankDetails,
	}
	if cmd.Flags().Changed("rerank") {
		req.Rerank = &rankRerank
	}

	resp, err := a.searcher.Search(cmd.Context(), req, nil)
	if err != nil {
		return fmt.Errorf("ranking failed: %w", err)
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), resp)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintResults(resp)
	return nil
}
