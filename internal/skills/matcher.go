package skills

import (
	"context"
	"strings"
	"sync"

	"github.com/jonathan/cv-ranker/internal/embedding"
	"github.com/jonathan/cv-ranker/internal/logging"
	"github.com/jonathan/cv-ranker/internal/types"
	"go.uber.org/zap"
)

// Confidence reported for exact hits.
const (
	LexicalConfidence = 1.0
	AliasConfidence   = 0.95
)

// Embedder produces vectors for the semantic fallback.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options controls the semantic fallback.
type Options struct {
	SemanticEnabled bool
	Threshold       float64
	MinChars        int
}

// Matcher decides whether a skill is present in a span of text. It tries a
// lexical match, then the taxonomy aliases, then (only if both fail) an
// embedding similarity check.
//
// A Matcher is safe for concurrent use. Skill vectors are embedded once and
// cached for the Matcher's lifetime.
type Matcher struct {
	taxonomy *Taxonomy
	embedder Embedder
	opts     Options
	logger   *zap.Logger

	mu         sync.Mutex
	skillVecs  map[string][][]float32
	skillFails map[string]bool
}

// NewMatcher creates a matcher. A nil embedder disables the semantic fallback.
func NewMatcher(taxonomy *Taxonomy, embedder Embedder, opts Options, logger *zap.Logger) *Matcher {
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy()
	}
	return &Matcher{
		taxonomy:   taxonomy,
		embedder:   embedder,
		opts:       opts,
		logger:     logging.OrNop(logger),
		skillVecs:  make(map[string][][]float32),
		skillFails: make(map[string]bool),
	}
}

// Taxonomy returns the matcher's taxonomy.
func (m *Matcher) Taxonomy() *Taxonomy {
	return m.taxonomy
}

// Match matches one skill against one text span.
func (m *Matcher) Match(ctx context.Context, skill, text string) types.MatchResult {
	return m.MatchAny(ctx, skill, text, []string{text})
}

// MatchAny matches a skill against a document. Lexical and alias checks run
// over the whole text; the semantic fallback compares the skill with each
// span and keeps the best similarity.
func (m *Matcher) MatchAny(ctx context.Context, skill, text string, spans []string) types.MatchResult {
	canonical := m.taxonomy.Normalize(skill)
	result := types.MatchResult{Skill: canonical}
	if canonical == "" {
		return result
	}

	if r, ok := m.matchLexical(canonical, text); ok {
		return r
	}
	if r, ok := m.matchAlias(canonical, text); ok {
		return r
	}
	if r, ok := m.matchSemantic(ctx, canonical, spans); ok {
		return r
	}
	return result
}

// MatchLexicalOrAlias runs only the exact stages.
func (m *Matcher) MatchLexicalOrAlias(skill, text string) types.MatchResult {
	canonical := m.taxonomy.Normalize(skill)
	if r, ok := m.matchLexical(canonical, text); ok {
		return r
	}
	if r, ok := m.matchAlias(canonical, text); ok {
		return r
	}
	return types.MatchResult{Skill: canonical}
}

func (m *Matcher) matchLexical(skill, text string) (types.MatchResult, bool) {
	if containsTerm(strings.ToLower(text), skill) {
		return types.MatchResult{
			Skill:      skill,
			Matched:    true,
			Method:     types.MatchLexical,
			Confidence: LexicalConfidence,
			Term:       skill,
		}, true
	}
	return types.MatchResult{}, false
}

func (m *Matcher) matchAlias(skill, text string) (types.MatchResult, bool) {
	lower := strings.ToLower(text)
	for _, alias := range m.taxonomy.Aliases(skill) {
		if containsTerm(lower, alias) {
			return types.MatchResult{
				Skill:      skill,
				Matched:    true,
				Method:     types.MatchAlias,
				Confidence: AliasConfidence,
				Term:       alias,
			}, true
		}
	}
	return types.MatchResult{}, false
}

func (m *Matcher) matchSemantic(ctx context.Context, skill string, spans []string) (types.MatchResult, bool) {
	if !m.opts.SemanticEnabled || m.embedder == nil {
		return types.MatchResult{}, false
	}

	skillVecs, ok := m.skillVectors(ctx, skill)
	if !ok {
		return types.MatchResult{}, false
	}

	best := -1.0
	bestSpan := ""
	for _, span := range spans {
		span = strings.TrimSpace(span)
		if len([]rune(span)) < m.opts.MinChars {
			continue
		}
		vec, err := m.embedder.Embed(ctx, span)
		if err != nil {
			// Semantic matching degrades to no-match when the backend fails.
			m.logger.Debug("semantic span embedding failed",
				zap.String("skill", skill),
				zap.String("span", logging.TruncateForLog(span, 60)),
				zap.Error(err))
			return types.MatchResult{}, false
		}
		for _, sv := range skillVecs {
			if sim := embedding.CosineSimilarity(vec, sv); sim > best {
				best = sim
				bestSpan = span
			}
		}
	}

	if best >= m.opts.Threshold {
		return types.MatchResult{
			Skill:      skill,
			Matched:    true,
			Method:     types.MatchSemantic,
			Confidence: best,
			Term:       logging.TruncateForLog(bestSpan, 80),
		}, true
	}
	return types.MatchResult{}, false
}

// skillVectors embeds the skill and its aliases once.
func (m *Matcher) skillVectors(ctx context.Context, skill string) ([][]float32, bool) {
	m.mu.Lock()
	if vecs, ok := m.skillVecs[skill]; ok {
		m.mu.Unlock()
		return vecs, true
	}
	if m.skillFails[skill] {
		m.mu.Unlock()
		return nil, false
	}
	m.mu.Unlock()

	phrases := append([]string{skill}, m.taxonomy.Aliases(skill)...)
	vecs := make([][]float32, 0, len(phrases))
	for _, p := range phrases {
		v, err := m.embedder.Embed(ctx, p)
		if err != nil {
			m.logger.Debug("semantic skill embedding failed", zap.String("skill", skill), zap.Error(err))
			if ctx.Err() == nil {
				m.mu.Lock()
				m.skillFails[skill] = true
				m.mu.Unlock()
			}
			return nil, false
		}
		vecs = append(vecs, v)
	}

	m.mu.Lock()
	m.skillVecs[skill] = vecs
	m.mu.Unlock()
	return vecs, true
}
