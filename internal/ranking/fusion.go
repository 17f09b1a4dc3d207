// Package ranking fuses retrieval, skill coverage and impact signals into a
// single candidate score and orders candidates.
package ranking

import (
	"math"

	"github.com/jonathan/cv-ranker/internal/config"
	"github.com/jonathan/cv-ranker/internal/types"
)

// Signals are the raw per-candidate inputs to fusion.
type Signals struct {
	VectorScore          float64
	LexicalScore         float64
	MandatoryCoverage    float64
	OptionalCoverage     float64
	ImpactRelevanceRatio float64
	ImpactEventCount     int
}

// Stage is one fusion step. It must not depend on anything but its inputs.
type Stage func(types.ScoreComponents, config.ScoringConfig) types.ScoreComponents

// Stages is the fixed fusion order. Each stage reads only fields written by
// the stages before it.
var Stages = []Stage{
	BlendBase,
	ApplyMandatoryBoost,
	ApplyImpact,
	Combine,
}

// Fuse runs every stage over the signals.
func Fuse(s Signals, cfg config.ScoringConfig) types.ScoreComponents {
	c := types.ScoreComponents{
		VectorScore:          s.VectorScore,
		LexicalScore:         s.LexicalScore,
		MandatoryCoverage:    clamp01(s.MandatoryCoverage),
		OptionalCoverage:     clamp01(s.OptionalCoverage),
		ImpactRelevanceRatio: clamp01(s.ImpactRelevanceRatio),
		ImpactEventCount:     s.ImpactEventCount,
	}
	for _, stage := range Stages {
		c = stage(c, cfg)
	}
	return c
}

// BlendBase sets the base score from the vector score, mixing in the lexical
// score when LexicalWeight is positive.
func BlendBase(c types.ScoreComponents, cfg config.ScoringConfig) types.ScoreComponents {
	w := cfg.LexicalWeight
	if w <= 0 {
		c.BaseScore = c.VectorScore
		return c
	}
	c.BaseScore = (1-w)*c.VectorScore + w*c.LexicalScore
	return c
}

// ApplyMandatoryBoost computes base · (1 + coverage · strength).
func ApplyMandatoryBoost(c types.ScoreComponents, cfg config.ScoringConfig) types.ScoreComponents {
	c.CombinedScorePreImpact = c.BaseScore * (1 + c.MandatoryCoverage*cfg.MandatoryStrengthFactor)
	return c
}

// ApplyImpact sets the impact component. Too few events or a relevance ratio
// under the minimum gate it to exactly 0.
func ApplyImpact(c types.ScoreComponents, cfg config.ScoringConfig) types.ScoreComponents {
	if c.ImpactEventCount < cfg.ImpactMinEvents || c.ImpactRelevanceRatio < cfg.ImpactMinRelevance {
		c.ImpactComponent = 0
		return c
	}
	c.ImpactComponent = cfg.ImpactWeight * ImpactCurve(c.ImpactRelevanceRatio, c.ImpactEventCount, cfg.ImpactSaturationEvents)
	return c
}

// Combine adds the impact component to the pre-impact score.
func Combine(c types.ScoreComponents, _ config.ScoringConfig) types.ScoreComponents {
	c.CombinedScore = c.CombinedScorePreImpact + c.ImpactComponent
	return c
}

// ImpactCurve maps a relevance ratio and event count into [0,1]:
//
//	f(r, n) = r · (1 − e^(−(n−1)/τ)) / (1 − e^(−(S−1)/τ)),  τ = S/3
//
// The count term rises quickly for the first events and reaches 1 at
// saturation events S. It is non-decreasing in both arguments.
func ImpactCurve(ratio float64, count, saturation int) float64 {
	ratio = clamp01(ratio)
	if count <= 1 {
		return 0
	}
	if saturation <= 1 || count >= saturation {
		return ratio
	}
	s := float64(saturation)
	tau := s / 3
	countTerm := (1 - math.Exp(-float64(count-1)/tau)) / (1 - math.Exp(-(s-1)/tau))
	return ratio * math.Min(countTerm, 1)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
