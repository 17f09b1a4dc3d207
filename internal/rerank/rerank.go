// Package rerank re-scores the best fused candidates with a cross-encoder
// and blends the result into the final score.
package rerank

import (
	"context"
	"math"
	"strings"

	"github.com/jonathan/cv-ranker/internal/config"
	"github.com/jonathan/cv-ranker/internal/logging"
	"github.com/jonathan/cv-ranker/internal/types"
	"go.uber.org/zap"
)

// Per-candidate cross-encoder statuses.
const (
	StatusScored  = "scored"
	StatusNoText  = "no_text"
	StatusSkipped = "not_in_top_n"
)

// CrossEncoder scores texts against a query. Scores are returned in input order.
type CrossEncoder interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
	Model() string
}

// Candidate is one fused candidate offered for reranking.
type Candidate struct {
	ID       string
	Text     string
	Combined float64
}

// Result is the reranked score of one candidate.
type Result struct {
	ID                string
	CrossEncoderScore *float64
	FinalScore        float64
	Status            string
}

// Outcome is the result of one rerank pass, in input order.
type Outcome struct {
	Results  []Result
	Reranked bool
	// Status is one of the types.RerankStatus* values.
	Status string
}

// Adapter calibrates cross-encoder scores and blends them with fused scores.
type Adapter struct {
	encoder     CrossEncoder
	topN        int
	blend       float64
	calibration string
	logger      *zap.Logger
}

// NewAdapter creates an adapter. A nil encoder disables reranking.
func NewAdapter(encoder CrossEncoder, cfg config.ScoringConfig, logger *zap.Logger) *Adapter {
	return &Adapter{
		encoder:     encoder,
		topN:        cfg.RerankTopN,
		blend:       cfg.RerankBlendWeight,
		calibration: cfg.RerankCalibration,
		logger:      logging.OrNop(logger),
	}
}

// Enabled reports whether a cross-encoder is configured.
func (a *Adapter) Enabled() bool {
	return a != nil && a.encoder != nil
}

// Rerank scores the first topN candidates, which must already be ordered by
// combined score. The rest keep final = combined. When the encoder fails the
// whole batch keeps final = combined and Reranked is false; the failure is
// logged and never returned.
func (a *Adapter) Rerank(ctx context.Context, query string, candidates []Candidate) Outcome {
	out := Outcome{Results: passthrough(candidates, StatusSkipped), Status: types.RerankStatusDisabled}
	if !a.Enabled() || len(candidates) == 0 {
		return out
	}

	n := min(a.topN, len(candidates))
	var idx []int
	var texts []string
	for i := 0; i < n; i++ {
		if strings.TrimSpace(candidates[i].Text) == "" {
			out.Results[i].Status = StatusNoText
			continue
		}
		idx = append(idx, i)
		texts = append(texts, candidates[i].Text)
	}
	if len(texts) == 0 {
		out.Status = types.RerankStatusUnavailable
		return out
	}

	raw, err := a.encoder.Score(ctx, query, texts)
	if err == nil && len(raw) != len(texts) {
		err = &types.RerankUnavailableError{Model: a.encoder.Model()}
	}
	if err != nil {
		a.logger.Warn("reranker unavailable, keeping fused scores",
			zap.String("model", a.encoder.Model()),
			zap.Int("candidates", len(texts)),
			zap.Error(err))
		out.Status = types.RerankStatusUnavailable
		return out
	}

	calibrated := Calibrate(raw, a.calibration)
	for j, i := range idx {
		ce := calibrated[j]
		out.Results[i].CrossEncoderScore = &ce
		out.Results[i].FinalScore = (1-a.blend)*candidates[i].Combined + a.blend*ce
		out.Results[i].Status = StatusScored
	}
	out.Reranked = true
	out.Status = types.RerankStatusApplied
	a.logger.Debug("reranked candidates",
		zap.String("model", a.encoder.Model()),
		zap.Int("scored", len(idx)))
	return out
}

func passthrough(candidates []Candidate, status string) []Result {
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{ID: c.ID, FinalScore: c.Combined, Status: status}
	}
	return results
}

// Calibrate maps raw cross-encoder scores into [0,1] across the batch.
// minmax rescales to the batch range; zscore standardizes and applies a
// logistic. A degenerate batch (zero span or variance) keeps the raw
// scores clamped to [0,1], as does mode none.
func Calibrate(scores []float64, mode string) []float64 {
	out := make([]float64, len(scores))
	switch mode {
	case config.CalibrationMinMax:
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, s := range scores {
			lo = math.Min(lo, s)
			hi = math.Max(hi, s)
		}
		span := hi - lo
		for i, s := range scores {
			if span < 1e-12 {
				out[i] = clamp01(s)
			} else {
				out[i] = (s - lo) / span
			}
		}
	case config.CalibrationZScore:
		mean, std := meanStd(scores)
		for i, s := range scores {
			if std < 1e-12 {
				out[i] = clamp01(s)
			} else {
				out[i] = 1 / (1 + math.Exp(-(s-mean)/std))
			}
		}
	default:
		for i, s := range scores {
			out[i] = clamp01(s)
		}
	}
	return out
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(variance / float64(len(values)))
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
