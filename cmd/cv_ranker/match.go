package main

import (
	"fmt"

	"github.com/jonathan/cv-ranker/internal/ingestion"
	"github.com/jonathan/cv-ranker/internal/observability"
	"github.com/jonathan/cv-ranker/internal/types"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Check whether skills appear in a piece of text",
	Long:  "Runs the lexical, alias and semantic skill matcher for each --skill against --text (or --file).",
	RunE:  runMatch,
}

var (
	matchSkills []string
	matchText   string
	matchFile   string
)

func init() {
	matchCmd.Flags().StringSliceVarP(&matchSkills, "skill", "s", nil, "Skill to match (repeatable, required)")
	matchCmd.Flags().StringVarP(&matchText, "text", "t", "", "Text to search")
	matchCmd.Flags().StringVarP(&matchFile, "file", "f", "", "Read the text from a file (HTML is flattened)")

	if err := matchCmd.MarkFlagRequired("skill"); err != nil {
		panic(fmt.Sprintf("failed to mark skill flag as required: %v", err))
	}
	matchCmd.MarkFlagsMutuallyExclusive("text", "file")

	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, _ []string) error {
	text := matchText
	if matchFile != "" {
		raw, err := readFile(matchFile)
		if err != nil {
			return err
		}
		text = ingestion.StripHTML(string(raw))
	}
	if text == "" {
		return fmt.Errorf("no text to match: pass --text or --file")
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

	spans := ingestion.SplitSentences(text)
	results := make([]types.MatchResult, 0, len(matchSkills))
	for _, skill := range matchSkills {
		results = append(results, a.searcher.Matcher().MatchAny(cmd.Context(), skill, text, spans))
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), results)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintMatches(results)
	return nil
}
