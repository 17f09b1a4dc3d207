package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a JD and a directory of CVs into the store",
	Long:  "Validates and stores a job description JSON file and every *.json CV in a directory under (company, job). Malformed CVs are reported and skipped.",
	RunE:  runImport,
}

var (
	importCompany string
	importJob     string
	importJD      string
	importCVs     string
)

func init() {
	importCmd.Flags().StringVar(&importCompany, "company", "", "Company identifier (required)")
	importCmd.Flags().StringVar(&importJob, "job", "", "Job identifier (required)")
	importCmd.Flags().StringVar(&importJD, "jd", "", "Path to the job description JSON file")
	importCmd.Flags().StringVar(&importCVs, "cvs", "", "Directory of CV JSON files")

	if err := importCmd.MarkFlagRequired("company"); err != nil {
		panic(fmt.Sprintf("failed to mark company flag as required: %v", err))
	}
	if err := importCmd.MarkFlagRequired("job"); err != nil {
		panic(fmt.Sprintf("failed to mark job flag as required: %v", err))
	}

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, _ []string) error {
	if importJD == "" && importCVs == "" {
		return fmt.Errorf("nothing to import: pass --jd and/or --cvs")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := importRecords(cmd.Context(), a.catalog, a.logger, importCompany, importJob, importJD, importCVs)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), summary)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d CVs into %s/%s", summary.CVs, summary.Company, summary.Job)
	if len(summary.Skipped) > 0 {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), " (%d skipped)", len(summary.Skipped))
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
