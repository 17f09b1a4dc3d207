package rerank

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jonathan/cv-ranker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockLLMClient is a scripted judge client.
type MockLLMClient struct {
	GenerateJSONFunc func(ctx context.Context, prompt string) (string, error)
	calls            atomic.Int32
}

func (m *MockLLMClient) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	m.calls.Add(1)
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt)
	}
	return `{"relevance_score": 0.75, "reasoning": "Mock reasoning"}`, nil
}

func (m *MockLLMClient) Model() string { return "mock-model" }

func TestLLMJudge_Score(t *testing.T) {
	client := &MockLLMClient{
		GenerateJSONFunc: func(_ context.Context, prompt string) (string, error) {
			assert.Contains(t, prompt, "Senior Data Engineer")
			if strings.Contains(prompt, "Airflow") {
				return "```json\n{\"relevance_score\": 0.9, \"reasoning\": \"Strong pipeline work\"}\n```", nil
			}
			return `{"relevance_score": 0.2}`, nil
		},
	}
	judge := NewLLMJudge(client, 2)

	scores, err := judge.Score(context.Background(), "Senior Data Engineer", []string{"Built Airflow DAGs", "Oil painting"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.2}, scores)
	assert.Equal(t, int32(2), client.calls.Load())
	assert.Equal(t, "mock-model", judge.Model())
}

func TestLLMJudge_ClampsScores(t *testing.T) {
	client := &MockLLMClient{
		GenerateJSONFunc: func(_ context.Context, prompt string) (string, error) {
			if strings.Contains(prompt, "overqualified-marker") {
				return `{"relevance_score": 1.7}`, nil
			}
			return `{"relevance_score": -0.3}`, nil
		},
	}
	scores, err := NewLLMJudge(client, 0).Score(context.Background(), "jd", []string{"overqualified-marker", "unrelated-marker"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, scores)
}

func TestLLMJudge_FailureIsRerankUnavailable(t *testing.T) {
	tests := []struct {
		name string
		fn   func(context.Context, string) (string, error)
	}{
		{"api error", func(context.Context, string) (string, error) {
			return "", errors.New("quota exceeded")
		}},
		{"invalid json", func(context.Context, string) (string, error) {
			return "I think this candidate is great", nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLLMJudge(&MockLLMClient{GenerateJSONFunc: tt.fn}, 1).Score(context.Background(), "jd", []string{"cv"})
			require.Error(t, err)
			assert.True(t, types.IsRerankUnavailable(err))
		})
	}
}

func TestLLMJudge_ThroughAdapter(t *testing.T) {
	client := &MockLLMClient{
		GenerateJSONFunc: func(context.Context, string) (string, error) {
			return "", errors.New("service down")
		},
	}
	a := NewAdapter(NewLLMJudge(client, 1), scoring(t, nil), nil)

	out := a.Rerank(context.Background(), "jd", candidates())
	assert.False(t, out.Reranked)
	for i, c := range candidates() {
		assert.Equal(t, c.Combined, out.Results[i].FinalScore)
	}
}
