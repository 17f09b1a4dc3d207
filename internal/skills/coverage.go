package skills

import (
	"context"

	"github.com/jonathan/cv-ranker/internal/types"
)

// Coverage is the result of checking a required skill set against a CV.
type Coverage struct {
	// Ratio is the credited fraction of required skills, in [0,1].
	Ratio float64
	// Matches holds the matcher result for every matched skill.
	Matches map[string]types.MatchResult
	// Credits holds the credit given to each skill (1 for a match, the
	// family credit for an adjacent skill, 0 otherwise).
	Credits map[string]float64
	// Missing lists the skills without a direct match, in input order.
	Missing      []string
	SemanticUsed bool
}

// Coverage computes the fraction of required skills present in a CV. Each
// matched skill counts 1; an unmatched skill whose taxonomy family peer is
// present counts familyCredit. An empty required set yields a ratio of 0.
func (m *Matcher) Coverage(ctx context.Context, required []string, text string, spans []string, familyCredit float64) Coverage {
	cov := Coverage{
		Matches: make(map[string]types.MatchResult),
		Credits: make(map[string]float64),
	}
	skills := m.uniqueCanonical(required)
	if len(skills) == 0 {
		return cov
	}

	total := 0.0
	for _, skill := range skills {
		r := m.MatchAny(ctx, skill, text, spans)
		if r.Matched {
			cov.Matches[skill] = r
			cov.Credits[skill] = 1
			total++
			if r.Method == types.MatchSemantic {
				cov.SemanticUsed = true
			}
			continue
		}
		cov.Missing = append(cov.Missing, skill)
		if familyCredit <= 0 {
			cov.Credits[skill] = 0
			continue
		}
		credit := 0.0
		for _, peer := range m.taxonomy.FamilyPeers(skill) {
			if m.MatchLexicalOrAlias(peer, text).Matched {
				credit = familyCredit
				break
			}
		}
		cov.Credits[skill] = credit
		total += credit
	}
	cov.Ratio = total / float64(len(skills))
	return cov
}

// uniqueCanonical normalizes and de-duplicates skills, keeping first-seen order.
func (m *Matcher) uniqueCanonical(skills []string) []string {
	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		c := m.taxonomy.Normalize(s)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// DeriveJDSkills returns the mandatory and optional skill sets of a JD. Explicit
// sets on the record win; otherwise taxonomy skills are extracted from the
// requirement sections. Overlap between the two tiers is kept.
func DeriveJDSkills(t *Taxonomy, jd *types.JobDescription) (mandatory, optional []string) {
	mandatory = normalizeAll(t, jd.MandatorySkills)
	if len(mandatory) == 0 {
		mandatory = extractFrom(t, jd, MandatorySections)
	}
	optional = normalizeAll(t, jd.OptionalSkills)
	if len(optional) == 0 {
		optional = extractFrom(t, jd, OptionalSections)
	}
	return mandatory, optional
}

// MandatorySections are the JD sections mined for mandatory skills.
var MandatorySections = []string{
	types.SectionRequiredSkills,
	types.SectionRequiredQualifications,
	types.SectionTechnicalSkills,
}

// OptionalSections are the JD sections mined for optional skills.
var OptionalSections = []string{
	types.SectionPreferredSkills,
	types.SectionSoftSkills,
	types.SectionCertifications,
	types.SectionResponsibilities,
}

func normalizeAll(t *Taxonomy, skills []string) []string {
	seen := make(map[string]bool, len(skills))
	var out []string
	for _, s := range skills {
		c := t.Normalize(s)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func extractFrom(t *Taxonomy, jd *types.JobDescription, sections []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, section := range sections {
		for _, skill := range t.Extract(jd.Section(section)) {
			if !seen[skill] {
				seen[skill] = true
				out = append(out, skill)
			}
		}
	}
	return out
}
