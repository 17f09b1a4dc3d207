package main

import (
	"fmt"

	"github.com/jonathan/cv-ranker/internal/impact"
	"github.com/jonathan/cv-ranker/internal/ingestion"
	"github.com/jonathan/cv-ranker/internal/observability"
	"github.com/spf13/cobra"
)

var impactCmd = &cobra.Command{
	Use:   "impact",
	Short: "Extract quantified impact events from a CV file",
	Long:  "Finds achievement sentences with action verbs and metrics in a CV. With --mandatory each event is tagged with the skills it demonstrates.",
	RunE:  runImpact,
}

var (
	impactCV        string
	impactMandatory []string
)

func init() {
	impactCmd.Flags().StringVar(&impactCV, "cv", "", "Path to the CV JSON file (required)")
	impactCmd.Flags().StringSliceVar(&impactMandatory, "mandatory", nil, "Mandatory skills to tag events with (comma separated)")

	if err := impactCmd.MarkFlagRequired("cv"); err != nil {
		panic(fmt.Sprintf("failed to mark cv flag as required: %v", err))
	}

	rootCmd.AddCommand(impactCmd)
}

// impactOutput is the JSON shape of the impact command.
type impactOutput struct {
	CVID string `json:"cv_id"`
	impact.Result
	RelevanceRatio float64  `json:"relevance_ratio"`
	RelevantSkills []string `json:"relevant_skills,omitempty"`
}

func runImpact(cmd *cobra.Command, _ []string) error {
	raw, err := readFile(impactCV)
	if err != nil {
		return err
	}
	cv, err := ingestion.ParseCV(raw)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	result := impact.NewExtractor(cfg.Scoring.ImpactTopEvents).Extract(cv)
	out := impactOutput{CVID: cv.ID, Result: result}

	if len(impactMandatory) > 0 {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		rel := impact.ComputeRelevance(cmd.Context(), a.searcher.Matcher(), result.Events, impactMandatory)
		out.Events = rel.Events
		out.RelevanceRatio = rel.Ratio
		out.RelevantSkills = rel.Skills
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintImpactEvents(out.CVID, out.Events, out.Count)
	return nil
}
