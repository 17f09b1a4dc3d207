package rerank

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/jonathan/cv-ranker/internal/llm"
	"github.com/jonathan/cv-ranker/internal/logging"
	"github.com/jonathan/cv-ranker/internal/prompts"
	"github.com/jonathan/cv-ranker/internal/types"
	"golang.org/x/sync/errgroup"
)

// Judge prompt location.
const (
	judgePromptFile = "rerank.json"
	judgePromptKey  = "judge-cv-relevance"
	maxJudgeChars   = 6000
)

// JudgeSchema constrains Gemini answers to the judge response shape.
var JudgeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"relevance_score": {Type: genai.TypeNumber},
		"reasoning":       {Type: genai.TypeString},
	},
	Required: []string{"relevance_score"},
}

type judgeResponse struct {
	RelevanceScore float64 `json:"relevance_score"`
	Reasoning      string  `json:"reasoning"`
}

// LLMJudge is a CrossEncoder that asks an LLM to rate each CV.
type LLMJudge struct {
	client      llm.Client
	concurrency int
}

// NewLLMJudge creates a judge. concurrency <= 0 judges one CV at a time.
func NewLLMJudge(client llm.Client, concurrency int) *LLMJudge {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &LLMJudge{client: client, concurrency: concurrency}
}

// Score judges every text. Any failed call fails the batch.
func (j *LLMJudge) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	scores := make([]float64, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			s, err := j.judge(gctx, query, text)
			if err != nil {
				return err
			}
			scores[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &types.RerankUnavailableError{Model: j.Model(), Cause: err}
	}
	return scores, nil
}

func (j *LLMJudge) judge(ctx context.Context, query, text string) (float64, error) {
	prompt, err := prompts.Execute(judgePromptFile, judgePromptKey, map[string]string{
		"JobDescription": logging.TruncateForLog(query, maxJudgeChars),
		"CV":             logging.TruncateForLog(text, maxJudgeChars),
	})
	if err != nil {
		return 0, err
	}

	resp, err := j.client.GenerateJSON(ctx, prompt)
	if err != nil {
		return 0, fmt.Errorf("LLM generation failed: %w", err)
	}

	var parsed judgeResponse
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(resp)), &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse LLM response: %w (content: %s)", err, logging.TruncateForLog(resp, 200))
	}
	return clamp01(parsed.RelevanceScore), nil
}

// Model returns the judge's model name.
func (j *LLMJudge) Model() string {
	return j.client.Model()
}
