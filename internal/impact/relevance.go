package impact

import (
	"context"
	"sort"

	"github.com/jonathan/cv-ranker/internal/skills"
	"github.com/jonathan/cv-ranker/internal/types"
)

// Relevance summarizes how impact events relate to mandatory skills.
type Relevance struct {
	// Ratio is the fraction of events matching at least one mandatory skill.
	Ratio float64
	// Skills lists the distinct mandatory skills matched by any event.
	Skills []string
	// Events are copies of the input events with MatchedSkills and Relevant set.
	Events []types.ImpactEvent
}

// ComputeRelevance tags each event with the mandatory skills its sentence
// matches. No events or no mandatory skills yield a ratio of 0.
func ComputeRelevance(ctx context.Context, m *skills.Matcher, events []types.ImpactEvent, mandatory []string) Relevance {
	rel := Relevance{Events: make([]types.ImpactEvent, len(events))}
	copy(rel.Events, events)
	if len(events) == 0 || len(mandatory) == 0 {
		return rel
	}

	seen := make(map[string]bool)
	relevant := 0
	for i := range rel.Events {
		ev := &rel.Events[i]
		ev.MatchedSkills = nil
		ev.Relevant = false
		for _, skill := range mandatory {
			r := m.Match(ctx, skill, ev.Text)
			if !r.Matched {
				continue
			}
			ev.MatchedSkills = append(ev.MatchedSkills, r.Skill)
			if !seen[r.Skill] {
				seen[r.Skill] = true
				rel.Skills = append(rel.Skills, r.Skill)
			}
		}
		if len(ev.MatchedSkills) > 0 {
			ev.Relevant = true
			relevant++
		}
	}
	sort.Strings(rel.Skills)
	rel.Ratio = float64(relevant) / float64(len(rel.Events))
	return rel
}
