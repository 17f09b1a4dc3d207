package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalize_NormalizesWeightsOverMappedSections(t *testing.T) {
	cfg := DefaultScoringConfig()
	cfg.SectionMapping = map[string][]string{
		"required_skills":  {"skills"},
		"responsibilities": {"work_experience"},
		"job_title":        {"summary"},
	}
	cfg.SectionWeights = map[string]float64{
		"required_skills":  0.3,
		"responsibilities": 0.1,
		"not_mapped":       0.9,
	}

	out, err := cfg.Finalize()
	require.NoError(t, err)

	require.Len(t, out.SectionWeights, 3)
	assert.NotContains(t, out.SectionWeights, "not_mapped")
	total := 0.3 + 0.1 + DefaultSectionWeight
	assert.InDelta(t, 0.3/total, out.SectionWeight("required_skills"), 1e-12)
	assert.InDelta(t, 0.1/total, out.SectionWeight("responsibilities"), 1e-12)
	assert.InDelta(t, DefaultSectionWeight/total, out.SectionWeight("job_title"), 1e-12)
	assert.Equal(t, 0.0, out.SectionWeight("education_requirements"))
}

func TestFinalize_ReturnsIndependentCopy(t *testing.T) {
	cfg := DefaultScoringConfig()
	out, err := cfg.Finalize()
	require.NoError(t, err)

	cfg.SectionMapping["required_skills"][0] = "mutated"
	cfg.SectionWeights["required_skills"] = 42

	assert.Equal(t, "skills", out.SectionMapping["required_skills"][0])
	assert.Less(t, out.SectionWeight("required_skills"), 1.0)
}

func TestFinalize_ZeroWeightsSpreadEvenly(t *testing.T) {
	cfg := DefaultScoringConfig()
	cfg.SectionMapping = map[string][]string{"a": {"x"}, "b": {"y"}}
	cfg.SectionWeights = map[string]float64{"a": 0, "b": 0}

	out, err := cfg.Finalize()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out.SectionWeight("a"), 1e-12)
	assert.InDelta(t, 0.5, out.SectionWeight("b"), 1e-12)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ScoringConfig)
	}{
		{"negative impact weight", func(c *ScoringConfig) { c.ImpactWeight = -0.1 }},
		{"threshold zero", func(c *ScoringConfig) { c.SemanticRelevanceThreshold = 0 }},
		{"saturation below min events", func(c *ScoringConfig) { c.ImpactSaturationEvents = 1 }},
		{"empty mapping", func(c *ScoringConfig) { c.SectionMapping = nil }},
		{"negative section weight", func(c *ScoringConfig) { c.SectionWeights["required_skills"] = -1 }},
		{"zero top k per section", func(c *ScoringConfig) { c.TopKPerSection = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultScoringConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
			_, err := cfg.Finalize()
			assert.Error(t, err)
		})
	}
}

func TestJDSections_Sorted(t *testing.T) {
	cfg := DefaultScoringConfig()
	sections := cfg.JDSections()
	require.Len(t, sections, len(cfg.SectionMapping))
	for i := 1; i < len(sections); i++ {
		assert.Less(t, sections[i-1], sections[i])
	}
}
