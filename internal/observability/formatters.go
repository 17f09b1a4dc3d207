// Package observability provides formatted terminal output for ranking results.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jonathan/cv-ranker/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the CLI
type Printer struct {
	out     io.Writer
	colored bool
}

// NewPrinter creates a new Printer that writes to the given writer.
// Colors follow color.NoColor, which is set when stdout is not a terminal.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, colored: !color.NoColor}
}

// WithColor forces colored output on or off.
func (p *Printer) WithColor(enabled bool) *Printer {
	p.colored = enabled
	return p
}

func (p *Printer) paint(s string, attrs ...color.Attribute) string {
	c := color.New(attrs...)
	if p.colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

// score picks green/yellow/red bands for a [0,1] score.
func (p *Printer) score(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	switch {
	case v >= 0.6:
		return p.paint(s, color.FgGreen, color.Bold)
	case v >= 0.3:
		return p.paint(s, color.FgYellow)
	default:
		return p.paint(s, color.FgRed)
	}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s\n", p.paint(title, color.FgCyan, color.Bold))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s\n", line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}

// PrintResults outputs the ranked candidates of a search response.
func (p *Printer) PrintResults(resp *types.SearchResponse) {
	if resp == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Company:  %s\n", resp.Company))
	sb.WriteString(fmt.Sprintf("Job:      %s\n", resp.Job))
	sb.WriteString(fmt.Sprintf("Ranked:   %d of %d candidates\n", len(resp.Candidates), resp.Total))
	rerank := resp.RerankStatus
	if resp.Reranked {
		rerank = p.paint(rerank, color.FgGreen)
	} else if rerank == types.RerankStatusUnavailable {
		rerank = p.paint(rerank, color.FgYellow)
	}
	sb.WriteString(fmt.Sprintf("Rerank:   %s\n", rerank))

	if len(resp.Candidates) == 0 {
		sb.WriteString("\nNo candidates")
	}
	for _, c := range resp.Candidates {
		sb.WriteString("\n")
		name := c.CandidateID
		if c.Name != "" {
			name = fmt.Sprintf("%s (%s)", c.Name, c.CandidateID)
		}
		sb.WriteString(fmt.Sprintf("#%d  %s\n", c.Rank, p.paint(truncate(name, 60), color.Bold)))
		sb.WriteString(fmt.Sprintf("    Final: %s  Combined: %.3f  Vector: %.3f", p.score(c.FinalScore), c.CombinedScore, c.VectorScore))
		if c.CrossEncoderScore != nil {
			sb.WriteString(fmt.Sprintf("  CE: %.3f", *c.CrossEncoderScore))
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("    Mandatory: %.0f%%  Optional: %.0f%%  Impact: %.3f (%d events)\n",
			c.MandatoryCoverage*100, c.OptionalCoverage*100, c.ImpactComponent, c.ImpactEventCount))
		if len(c.MatchedSkills) > 0 {
			sb.WriteString(fmt.Sprintf("    Skills:  %s\n", truncate(strings.Join(c.MatchedSkills, ", "), 56)))
		}
		if len(c.MissingSkills) > 0 {
			sb.WriteString(fmt.Sprintf("    Missing: %s\n", p.paint(truncate(strings.Join(c.MissingSkills, ", "), 56), color.FgRed)))
		}
		if c.Notes != "" {
			sb.WriteString(fmt.Sprintf("    %s\n", truncate(c.Notes, 64)))
		}
		for _, ev := range c.ImpactEvents[:min(len(c.ImpactEvents), 3)] {
			sb.WriteString(fmt.Sprintf("      • %s\n", truncate(ev.Text, 60)))
		}
	}

	if len(resp.Skipped) > 0 {
		sb.WriteString(fmt.Sprintf("\n%s\n", p.paint(fmt.Sprintf("Skipped %d malformed records:", len(resp.Skipped)), color.FgYellow)))
		count := min(len(resp.Skipped), maxItemsToShow)
		for _, s := range resp.Skipped[:count] {
			sb.WriteString(fmt.Sprintf("  • %s: %s\n", s.ID, truncate(s.Reason, 50)))
		}
		if len(resp.Skipped) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(resp.Skipped)-maxItemsToShow))
		}
	}

	p.printBox("RANKED CANDIDATES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintImpactEvents outputs the impact events found in one CV.
func (p *Printer) PrintImpactEvents(cvID string, events []types.ImpactEvent, count int) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("CV:     %s\n", cvID))
	sb.WriteString(fmt.Sprintf("Events: %d detected\n", count))

	for _, ev := range events {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("• %s\n", truncate(ev.Text, 66)))
		metrics := make([]string, 0, len(ev.Metrics))
		for _, m := range ev.Metrics {
			metrics = append(metrics, fmt.Sprintf("%s=%s", m.Type, m.Raw))
		}
		sb.WriteString(fmt.Sprintf("  score %s  verbs [%s]  metrics [%s]\n",
			p.score(min(ev.Score/3, 1)), strings.Join(ev.Verbs, " "), strings.Join(metrics, " ")))
		if len(ev.MatchedSkills) > 0 {
			sb.WriteString(fmt.Sprintf("  skills [%s]\n", strings.Join(ev.MatchedSkills, ", ")))
		}
	}

	p.printBox("IMPACT EVENTS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintMatches outputs one line per skill match result.
func (p *Printer) PrintMatches(results []types.MatchResult) {
	var sb strings.Builder
	for _, r := range results {
		mark := p.paint("✗", color.FgRed)
		detail := "no match"
		if r.Matched {
			mark = p.paint("✓", color.FgGreen)
			detail = fmt.Sprintf("%s via %q (%.2f)", r.Method, r.Term, r.Confidence)
		}
		sb.WriteString(fmt.Sprintf("%s %-20s %s\n", mark, truncate(r.Skill, 20), detail))
	}
	p.printBox("SKILL MATCHES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintEmbedStats outputs what an embedding run did.
func (p *Printer) PrintEmbedStats(company, job string, embedded bool, jdEmbedded bool, cvs, vectors int) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Company:  %s\n", company))
	sb.WriteString(fmt.Sprintf("Job:      %s\n", job))
	if !embedded {
		sb.WriteString(p.paint("Already embedded", color.FgGreen))
	} else {
		sb.WriteString(fmt.Sprintf("JD:       %t\n", jdEmbedded))
		sb.WriteString(fmt.Sprintf("CVs:      %d\n", cvs))
		sb.WriteString(fmt.Sprintf("Vectors:  %d", vectors))
	}
	p.printBox("EMBEDDINGS", sb.String())
}
