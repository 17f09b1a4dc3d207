package types

import (
	"github.com/go-playground/validator/v10"
)

// MatchMethod identifies which stage of the skill matcher produced a hit.
type MatchMethod string

// Match methods, tried in this order.
const (
	MatchNone     MatchMethod = ""
	MatchLexical  MatchMethod = "lexical"
	MatchAlias    MatchMethod = "alias"
	MatchSemantic MatchMethod = "semantic"
)

// MatchResult is the outcome of matching one skill against one text span.
type MatchResult struct {
	Skill      string      `json:"skill"`
	Matched    bool        `json:"matched"`
	Method     MatchMethod `json:"method,omitempty"`
	Confidence float64     `json:"confidence"`
	// Term is the surface form that matched (the skill itself or an alias).
	Term string `json:"term,omitempty"`
}

// Metric types detected inside impact sentences.
const (
	MetricPercent  = "percent"
	MetricCurrency = "currency"
	MetricCount    = "count"
)

// Metric is one quantified value found in an impact sentence.
type Metric struct {
	Raw        string  `json:"raw"`
	Value      float64 `json:"value"`
	Type       string  `json:"type"`
	Normalized float64 `json:"normalized"`
	Context    string  `json:"context,omitempty"`
}

// ImpactEvent is a CV sentence classified as a quantified achievement.
type ImpactEvent struct {
	Text          string   `json:"text"`
	Verbs         []string `json:"verbs"`
	Metrics       []Metric `json:"metrics"`
	Outcome       string   `json:"outcome,omitempty"`
	Direction     string   `json:"direction"`
	Score         float64  `json:"score"`
	MatchedSkills []string `json:"matched_skills,omitempty"`
	Relevant      bool     `json:"relevance"`
}

// ScoreComponents is the per-candidate score breakdown. Values are produced
// by the fusion stages in order and never mutated in place.
type ScoreComponents struct {
	VectorScore            float64 `json:"vector_score"`
	LexicalScore           float64 `json:"lexical_score"`
	BaseScore              float64 `json:"base_score"`
	MandatoryCoverage      float64 `json:"mandatory_coverage"`
	OptionalCoverage       float64 `json:"optional_coverage"`
	CombinedScorePreImpact float64 `json:"combined_score_pre_impact"`
	ImpactRelevanceRatio   float64 `json:"impact_relevance_ratio"`
	ImpactEventCount       int     `json:"impact_event_count"`
	ImpactComponent        float64 `json:"impact_component"`
	CombinedScore          float64 `json:"combined_score"`
}

// Lift returns the score delta attributable to the impact component.
func (s ScoreComponents) Lift() float64 {
	return s.CombinedScore - s.CombinedScorePreImpact
}

// CandidateResult is one ranked entry in a search response.
type CandidateResult struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name,omitempty"`
	Rank        int    `json:"rank"`
	ScoreComponents
	CrossEncoderScore *float64 `json:"cross_encoder_score,omitempty"`
	// CrossEncoderStatus is set when a rerank pass ran.
	CrossEncoderStatus string             `json:"ce_status,omitempty"`
	FinalScore         float64            `json:"final_score"`
	SectionScores      map[string]float64 `json:"section_scores"`
	MatchedSkills      []string           `json:"matched_skills,omitempty"`
	MissingSkills      []string           `json:"missing_skills,omitempty"`
	SemanticUsed       bool               `json:"semantic_used"`
	RelevanceSkills    []string           `json:"impact_relevance_skills,omitempty"`
	ImpactEvents       []ImpactEvent      `json:"impact_events,omitempty"`
	Notes              string             `json:"notes,omitempty"`
}

// SearchRequest is the externally visible search contract.
type SearchRequest struct {
	Company     string `json:"company" validate:"required,max=200"`
	Job         string `json:"job" validate:"required,max=200"`
	TopK        int    `json:"top_k" validate:"gte=0,lte=1000"`
	ShowDetails bool   `json:"show_details"`
	Rerank      *bool  `json:"rerank,omitempty"`
}

// Validate validates the SearchRequest using the validator.
func (r *SearchRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// SkippedRecord names a record excluded from ranking.
type SkippedRecord struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Rerank statuses reported in responses.
const (
	RerankStatusDisabled    = "disabled"
	RerankStatusApplied     = "applied"
	RerankStatusUnavailable = "unavailable"
)

// SearchResponse is the result of one search request.
type SearchResponse struct {
	RequestID    string            `json:"request_id"`
	Company      string            `json:"company"`
	Job          string            `json:"job"`
	Reranked     bool              `json:"reranked"`
	RerankStatus string            `json:"rerank_status"`
	Embedded     bool              `json:"embedded"`
	Total        int               `json:"total_candidates"`
	Candidates   []CandidateResult `json:"candidates"`
	Skipped      []SkippedRecord   `json:"skipped,omitempty"`
	States       []string          `json:"states"`
}
