package config

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/cv-ranker/internal/types"
)

// DefaultSectionWeight is assigned to mapped JD sections without an explicit weight.
const DefaultSectionWeight = 0.05

// Rerank calibration modes.
const (
	CalibrationMinMax = "minmax"
	CalibrationZScore = "zscore"
	CalibrationNone   = "none"
)

// ScoringConfig holds every tunable of the scoring and fusion engine.
// Obtain a usable value through Finalize; the result is treated as
// read-only for the lifetime of a search.
type ScoringConfig struct {
	// ImpactWeight is the ceiling of the impact component.
	ImpactWeight float64 `json:"impact_weight" mapstructure:"impact_weight" validate:"gte=0,lte=1"`
	// MandatoryStrengthFactor scales the mandatory coverage boost.
	MandatoryStrengthFactor float64 `json:"mandatory_strength_factor" mapstructure:"mandatory_strength_factor" validate:"gte=0,lte=1"`
	// ImpactMinRelevance gates the impact component on the relevance ratio.
	ImpactMinRelevance float64 `json:"impact_min_relevance" mapstructure:"impact_min_relevance" validate:"gte=0,lte=1"`
	// SemanticRelevanceThreshold is the minimum cosine similarity for a semantic skill match.
	SemanticRelevanceThreshold float64 `json:"semantic_relevance_threshold" mapstructure:"semantic_relevance_threshold" validate:"gt=0,lte=1"`
	SemanticEnabled            bool    `json:"semantic_enabled" mapstructure:"semantic_enabled"`
	// SemanticMinChars rejects short generic fragments from semantic matching.
	SemanticMinChars int `json:"semantic_min_chars" mapstructure:"semantic_min_chars" validate:"gte=0,lte=1000"`

	// ImpactMinEvents is the event count below which the impact component is zero.
	ImpactMinEvents int `json:"impact_min_events" mapstructure:"impact_min_events" validate:"gte=2"`
	// ImpactSaturationEvents is the event count at which the count term reaches 1.
	ImpactSaturationEvents int `json:"impact_saturation_events" mapstructure:"impact_saturation_events" validate:"gtefield=ImpactMinEvents,lte=1000"`
	ImpactTopEvents        int `json:"impact_top_events" mapstructure:"impact_top_events" validate:"gte=1,lte=100"`

	FamilyAdjacencyCredit float64 `json:"family_adjacency_credit" mapstructure:"family_adjacency_credit" validate:"gte=0,lte=1"`
	LexicalWeight         float64 `json:"lexical_weight" mapstructure:"lexical_weight" validate:"gte=0,lte=1"`

	TopKPerSection int `json:"top_k_per_section" mapstructure:"top_k_per_section" validate:"gte=1,lte=100"`
	DefaultTopK    int `json:"default_top_k" mapstructure:"default_top_k" validate:"gte=1,lte=1000"`
	MaxConcurrency int `json:"max_concurrency" mapstructure:"max_concurrency" validate:"gte=1,lte=256"`

	RerankTopN        int     `json:"rerank_top_n" mapstructure:"rerank_top_n" validate:"gte=1,lte=1000"`
	RerankBlendWeight float64 `json:"rerank_blend_weight" mapstructure:"rerank_blend_weight" validate:"gte=0,lte=1"`
	RerankCalibration string  `json:"rerank_calibration" mapstructure:"rerank_calibration" validate:"oneof=minmax zscore none"`

	// SectionMapping maps each JD section to the CV sections it is compared against.
	SectionMapping map[string][]string `json:"section_mapping" mapstructure:"section_mapping"`
	// SectionWeights are normalized to sum to 1 by Finalize.
	SectionWeights map[string]float64 `json:"section_weights" mapstructure:"section_weights"`
}

// DefaultScoringConfig returns the default tunables.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		ImpactWeight:               0.08,
		MandatoryStrengthFactor:    0.15,
		ImpactMinRelevance:         0.0,
		SemanticRelevanceThreshold: 0.65,
		SemanticEnabled:            true,
		SemanticMinChars:           15,
		ImpactMinEvents:            2,
		ImpactSaturationEvents:     8,
		ImpactTopEvents:            8,
		FamilyAdjacencyCredit:      0.5,
		LexicalWeight:              0.0,
		TopKPerSection:             5,
		DefaultTopK:                5,
		MaxConcurrency:             8,
		RerankTopN:                 20,
		RerankBlendWeight:          0.5,
		RerankCalibration:          CalibrationMinMax,
		SectionMapping:             DefaultSectionMapping(),
		SectionWeights:             DefaultSectionWeights(),
	}
}

// DefaultSectionMapping returns the JD section to CV sections mapping.
func DefaultSectionMapping() map[string][]string {
	return map[string][]string{
		types.SectionJobTitle:               {types.SectionSummary},
		types.SectionRequiredSkills:         {types.SectionSkills, types.SectionWorkExperience},
		types.SectionPreferredSkills:        {types.SectionSkills, types.SectionWorkExperience},
		types.SectionRequiredQualifications: {types.SectionEducation, types.SectionYearsOfExperience, types.SectionWorkExperience},
		types.SectionEducationRequirements:  {types.SectionEducation},
		types.SectionExperienceRequirements: {types.SectionWorkExperience, types.SectionYearsOfExperience},
		types.SectionTechnicalSkills:        {types.SectionSkills},
		types.SectionSoftSkills:             {types.SectionSoftSkills},
		types.SectionCertifications:         {types.SectionCertifications},
		types.SectionResponsibilities:       {types.SectionWorkExperience, types.SectionProjects},
	}
}

// DefaultSectionWeights returns the raw (pre-normalization) JD section weights.
func DefaultSectionWeights() map[string]float64 {
	return map[string]float64{
		types.SectionRequiredSkills:         0.3,
		types.SectionPreferredSkills:        0.05,
		types.SectionRequiredQualifications: 0.05,
		types.SectionEducationRequirements:  0.05,
		types.SectionExperienceRequirements: 0.05,
		types.SectionTechnicalSkills:        0.05,
		types.SectionSoftSkills:             0.1,
		types.SectionCertifications:         0.1,
		types.SectionResponsibilities:       0.1,
		types.SectionJobTitle:               0.05,
	}
}

// Validate checks field ranges and cross-field constraints.
func (c ScoringConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid scoring config: %w", err)
	}
	if len(c.SectionMapping) == 0 {
		return fmt.Errorf("invalid scoring config: section_mapping is empty")
	}
	for section, weight := range c.SectionWeights {
		if weight < 0 {
			return fmt.Errorf("invalid scoring config: section weight for %q is negative", section)
		}
	}
	return nil
}

// Finalize validates the config and returns an independent copy whose
// section weights cover exactly the mapped JD sections and sum to 1.
func (c ScoringConfig) Finalize() (ScoringConfig, error) {
	if err := c.Validate(); err != nil {
		return ScoringConfig{}, err
	}

	out := c
	out.SectionMapping = make(map[string][]string, len(c.SectionMapping))
	for section, cvSections := range c.SectionMapping {
		out.SectionMapping[section] = append([]string(nil), cvSections...)
	}

	weights := make(map[string]float64, len(c.SectionMapping))
	total := 0.0
	for section := range c.SectionMapping {
		w, ok := c.SectionWeights[section]
		if !ok {
			w = DefaultSectionWeight
		}
		weights[section] = w
		total += w
	}
	for section := range weights {
		if total > 0 {
			weights[section] /= total
		} else {
			weights[section] = 1.0 / float64(len(weights))
		}
	}
	out.SectionWeights = weights
	return out, nil
}

// JDSections returns the mapped JD section names in sorted order.
func (c ScoringConfig) JDSections() []string {
	sections := make([]string, 0, len(c.SectionMapping))
	for section := range c.SectionMapping {
		sections = append(sections, section)
	}
	sort.Strings(sections)
	return sections
}

// SectionWeight returns the weight for a JD section, 0 when unmapped.
func (c ScoringConfig) SectionWeight(section string) float64 {
	return c.SectionWeights[section]
}
