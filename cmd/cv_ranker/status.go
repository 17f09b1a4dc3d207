package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored records and vectors for a job",
	RunE:  runStatus,
}

var (
	statusCompany string
	statusJob     string
)

func init() {
	statusCmd.Flags().StringVar(&statusCompany, "company", "", "Company identifier (required)")
	statusCmd.Flags().StringVar(&statusJob, "job", "", "Job identifier (required)")

	if err := statusCmd.MarkFlagRequired("company"); err != nil {
		panic(fmt.Sprintf("failed to mark company flag as required: %v", err))
	}
	if err := statusCmd.MarkFlagRequired("job"); err != nil {
		panic(fmt.Sprintf("failed to mark job flag as required: %v", err))
	}

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.searcher.Status(cmd.Context(), statusCompany, statusJob)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), st)
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Company:     %s\n", st.Company)
	_, _ = fmt.Fprintf(out, "Job:         %s\n", st.Job)
	_, _ = fmt.Fprintf(out, "JD stored:   %t\n", st.HasJD)
	_, _ = fmt.Fprintf(out, "CVs stored:  %d (%d embedded)\n", st.CVs, st.EmbeddedCV)
	_, _ = fmt.Fprintf(out, "Vectors:     %d JD, %d CV\n", st.JDVectors, st.CVVectors)
	_, _ = fmt.Fprintf(out, "Ready:       %t\n", st.Ready)
	return nil
}
