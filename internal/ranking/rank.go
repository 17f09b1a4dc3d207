package ranking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jonathan/cv-ranker/internal/types"
)

// SortCandidates orders candidates by final score, descending, with ties
// broken by candidate ID, and assigns 1-based ranks.
func SortCandidates(candidates []types.CandidateResult) {
	sortByFinal(candidates)
	assignRanks(candidates)
}

func sortByFinal(candidates []types.CandidateResult) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].FinalScore != candidates[j].FinalScore {
			return candidates[i].FinalScore > candidates[j].FinalScore
		}
		return candidates[i].CandidateID < candidates[j].CandidateID
	})
}

func assignRanks(candidates []types.CandidateResult) {
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
}

// TopK returns at most k candidates. k <= 0 returns all of them.
func TopK(candidates []types.CandidateResult, k int) []types.CandidateResult {
	if k <= 0 || k >= len(candidates) {
		return candidates
	}
	return candidates[:k]
}

// Explain summarizes why a candidate scored as it did.
func Explain(c types.CandidateResult) string {
	var parts []string

	matched := len(c.MatchedSkills)
	switch {
	case matched == 0:
		parts = append(parts, "No mandatory skill matches")
	case c.MandatoryCoverage >= 0.7:
		parts = append(parts, fmt.Sprintf("Strong skill match (%s)", strings.Join(c.MatchedSkills, ", ")))
	case c.MandatoryCoverage >= 0.4:
		parts = append(parts, fmt.Sprintf("Moderate skill match (%s)", strings.Join(c.MatchedSkills, ", ")))
	default:
		parts = append(parts, fmt.Sprintf("Weak skill match (%s)", strings.Join(c.MatchedSkills, ", ")))
	}

	if c.ImpactComponent > 0 {
		parts = append(parts, fmt.Sprintf("%d impact events, %.0f%% on mandatory skills", c.ImpactEventCount, c.ImpactRelevanceRatio*100))
	} else if c.ImpactEventCount > 0 {
		parts = append(parts, fmt.Sprintf("%d impact events below gate", c.ImpactEventCount))
	} else {
		parts = append(parts, "No quantified achievements")
	}

	if c.VectorScore >= 0.6 {
		parts = append(parts, "High section similarity")
	} else if c.VectorScore >= 0.3 {
		parts = append(parts, "Some section similarity")
	}
	return strings.Join(parts, ". ")
}
