// Package impact detects quantified achievements ("impact events") in CVs
// and measures how many of them involve the job's mandatory skills.
package impact

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/jonathan/cv-ranker/internal/ingestion"
	"github.com/jonathan/cv-ranker/internal/types"
)

const (
	// MinSentenceChars is the length a candidate sentence must exceed.
	MinSentenceChars = 15
	// MaxSentences caps the sentences scanned per CV.
	MaxSentences = 1000
	// DefaultTopEvents is the number of events retained per CV.
	DefaultTopEvents = 8

	outcomeBonus      = 1.15
	directionModifier = 1.1
	contextStep       = 0.05
	contextCap        = 1.1
	maxOutcomeChars   = 120
)

var verbPatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(verbWeights))
	for v := range verbWeights {
		m[v] = regexp.MustCompile(`\b` + regexp.QuoteMeta(v) + `\b`)
	}
	return m
}()

// Result is the outcome of scanning one CV.
type Result struct {
	// Events holds the highest-scoring events, best first.
	Events []types.ImpactEvent `json:"impact_events"`
	// Count is the number of events detected before truncation.
	Count int `json:"impact_event_count"`
	// RawScore is the sum of retained event scores.
	RawScore float64 `json:"raw_impact_score"`
}

// Extractor finds impact events. The zero value is not usable; use NewExtractor.
type Extractor struct {
	topN int
}

// NewExtractor returns an extractor keeping the topN best events per CV.
func NewExtractor(topN int) *Extractor {
	if topN <= 0 {
		topN = DefaultTopEvents
	}
	return &Extractor{topN: topN}
}

// Extract scans the achievement-bearing parts of a CV.
func (e *Extractor) Extract(cv *types.CVRecord) Result {
	return e.ExtractSentences(CandidateSentences(cv))
}

// ExtractSentences classifies each sentence and keeps the best events.
func (e *Extractor) ExtractSentences(sentences []string) Result {
	var events []types.ImpactEvent
	for _, s := range sentences {
		if ev, ok := Analyze(s); ok {
			events = append(events, ev)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Score > events[j].Score
	})

	res := Result{Count: len(events)}
	if len(events) > e.topN {
		events = events[:e.topN]
	}
	res.Events = events
	for _, ev := range events {
		res.RawScore += ev.Score
	}
	return res
}

// Analyze classifies one sentence. A sentence is an impact event when it has
// an action verb, a quantified metric and an outcome clause: an explicit
// result connector, a directional verb, or a business context for a metric.
func Analyze(sentence string) (types.ImpactEvent, bool) {
	sentence = strings.TrimSpace(sentence)
	verbs := detectVerbs(sentence)
	if len(verbs) == 0 {
		return types.ImpactEvent{}, false
	}
	metrics := extractMetrics(sentence)
	if len(metrics) == 0 {
		return types.ImpactEvent{}, false
	}

	outcome := detectOutcome(sentence)
	dir := direction(verbs)
	if outcome == "" && dir == DirectionNeutral && !hasContext(metrics) {
		return types.ImpactEvent{}, false
	}

	return types.ImpactEvent{
		Text:      sentence,
		Verbs:     verbs,
		Metrics:   metrics,
		Outcome:   outcome,
		Direction: dir,
		Score:     score(verbs, metrics, outcome, dir),
	}, true
}

func detectVerbs(sentence string) []string {
	lower := strings.ToLower(sentence)
	var found []string
	for _, v := range sortedVerbs {
		if verbPatterns[v].MatchString(lower) {
			found = append(found, v)
		}
	}
	return found
}

// detectOutcome returns the text following the first outcome connector.
func detectOutcome(sentence string) string {
	lower := strings.ToLower(sentence)
	for _, conn := range outcomeConnectors {
		idx := strings.Index(lower, conn)
		if idx < 0 {
			continue
		}
		tail := strings.TrimSpace(sentence[idx+len(conn):])
		if r := []rune(tail); len(r) > maxOutcomeChars {
			tail = string(r[:maxOutcomeChars])
		}
		return strings.Trim(tail, " .;")
	}
	return ""
}

func hasContext(metrics []types.Metric) bool {
	for _, m := range metrics {
		if m.Context != "" {
			return true
		}
	}
	return false
}

// score is verb weight times a log-damped magnitude, boosted for an explicit
// outcome, a direction, and revenue or cost context.
func score(verbs []string, metrics []types.Metric, outcome, dir string) float64 {
	verbWeight := 0.0
	for _, v := range verbs {
		verbWeight = math.Max(verbWeight, verbWeights[v])
	}

	s := verbWeight * (1 + math.Log1p(magnitude(metrics)))
	if outcome != "" {
		s *= outcomeBonus
	}
	if dir != DirectionNeutral {
		s *= directionModifier
	}

	ctx := 1.0
	var revenue, cost bool
	for _, m := range metrics {
		revenue = revenue || m.Context == "revenue"
		cost = cost || m.Context == "cost"
	}
	if revenue {
		ctx += contextStep
	}
	if cost {
		ctx += contextStep
	}
	return s * math.Min(ctx, contextCap)
}

// CandidateSentences collects the achievement-bearing text of a CV: work
// responsibilities, project descriptions and results, and achievements. When
// the CV carries no structured lists, the matching sections are split into
// sentences instead.
func CandidateSentences(cv *types.CVRecord) []string {
	if cv == nil {
		return nil
	}
	var out []string
	keep := func(s string) {
		s = strings.TrimSpace(s)
		if len(s) > MinSentenceChars && len(out) < MaxSentences {
			out = append(out, s)
		}
	}

	structured := len(cv.WorkExperience) > 0 || len(cv.Projects) > 0 || len(cv.Achievements) > 0
	if structured {
		for _, job := range cv.WorkExperience {
			for _, r := range job.Responsibilities {
				keep(r)
			}
		}
		for _, p := range cv.Projects {
			keep(p.Description)
			keep(p.Impact)
			keep(p.Result)
		}
		for _, a := range cv.Achievements {
			keep(a)
		}
		return out
	}

	for _, section := range []string{types.SectionWorkExperience, types.SectionProjects, types.SectionAchievements} {
		for _, s := range ingestion.SplitSentences(cv.Section(section)) {
			keep(s)
		}
	}
	return out
}
