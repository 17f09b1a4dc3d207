package main

import (
	"fmt"

	"github.com/jonathan/cv-ranker/internal/observability"
	"github.com/spf13/cobra"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed the JD and CVs of a job",
	Long:  "Embeds every record of (company, job) that has no stored vectors. With --force every record is re-embedded.",
	RunE:  runEmbed,
}

var (
	embedCompany string
	embedJob     string
	embedForce   bool
)

func init() {
	embedCmd.Flags().StringVar(&embedCompany, "company", "", "Company identifier (required)")
	embedCmd.Flags().StringVar(&embedJob, "job", "", "Job identifier (required)")
	embedCmd.Flags().BoolVar(&embedForce, "force", false, "Re-embed records that already have vectors")

	if err := embedCmd.MarkFlagRequired("company"); err != nil {
		panic(fmt.Sprintf("failed to mark company flag as required: %v", err))
	}
	if err := embedCmd.MarkFlagRequired("job"); err != nil {
		panic(fmt.Sprintf("failed to mark job flag as required: %v", err))
	}

	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.searcher.Embed(cmd.Context(), embedCompany, embedJob, embedForce)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), stats)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintEmbedStats(embedCompany, embedJob, stats.Embedded, stats.JDEmbedded, stats.CVsEmbedded, stats.Vectors)
	return nil
}
