package retrieval

import (
	"context"
	"fmt"

	"github.com/jonathan/cv-ranker/internal/config"
	"github.com/jonathan/cv-ranker/internal/store"
)

// SectionScore is the base similarity of one CV against a JD.
type SectionScore struct {
	VectorScore float64
	// Sections holds the score of every mapped JD section, 0 when absent.
	Sections map[string]float64
	// Evidence holds the CV chunks retrieved for each JD section.
	Evidence map[string][]store.Hit
}

// Scorer computes section-level vector similarity from the vector store.
type Scorer struct {
	vectors store.VectorStore
	cfg     config.ScoringConfig
}

// NewScorer creates a scorer. cfg must come from ScoringConfig.Finalize.
func NewScorer(vectors store.VectorStore, cfg config.ScoringConfig) *Scorer {
	return &Scorer{vectors: vectors, cfg: cfg}
}

// Score compares each JD section vector with the top-k chunks of the CV's
// mapped sections. A section score is the mean similarity of the distinct
// retrieved chunks, floored at 0. The vector score is the weighted sum over
// every mapped JD section; sections with no JD vector or no CV chunks count
// as 0 with their weight kept.
func (s *Scorer) Score(ctx context.Context, cvCollection, cvID string, jdVectors map[string][]float32) (SectionScore, error) {
	out := SectionScore{
		Sections: make(map[string]float64, len(s.cfg.SectionMapping)),
		Evidence: make(map[string][]store.Hit),
	}

	for _, section := range s.cfg.JDSections() {
		out.Sections[section] = 0
		vec, ok := jdVectors[section]
		if !ok {
			continue
		}
		hits, err := s.vectors.Query(ctx, cvCollection, vec, s.cfg.TopKPerSection, store.Filter{
			OwnerID:  cvID,
			Sections: s.cfg.SectionMapping[section],
		})
		if err != nil {
			return SectionScore{}, fmt.Errorf("failed to retrieve %s chunks for %s: %w", section, cvID, err)
		}
		hits = dedupeHits(hits)
		if len(hits) == 0 {
			continue
		}

		total := 0.0
		for _, h := range hits {
			total += h.Score
		}
		score := total / float64(len(hits))
		if score < 0 {
			score = 0
		}
		out.Sections[section] = score
		out.Evidence[section] = hits
		out.VectorScore += s.cfg.SectionWeight(section) * score
	}
	return out, nil
}

// dedupeHits drops chunks whose text repeats an earlier, better hit.
func dedupeHits(hits []store.Hit) []store.Hit {
	seen := make(map[string]bool, len(hits))
	out := hits[:0:0]
	for _, h := range hits {
		if seen[h.Text] {
			continue
		}
		seen[h.Text] = true
		out = append(out, h)
	}
	return out
}
