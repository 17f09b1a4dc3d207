package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonathan/cv-ranker/internal/config"
	"github.com/jonathan/cv-ranker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := Normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestHashBackend_Deterministic(t *testing.T) {
	b := NewHashBackend(64)
	ctx := context.Background()

	v1, err := b.Embed(ctx, "Built Kubernetes operators in Go")
	require.NoError(t, err)
	v2, err := b.Embed(ctx, "Built Kubernetes operators in Go")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 64)
	assert.Equal(t, "hash", b.Model())
	assert.Equal(t, 64, b.Dimensions())
}

func TestHashBackend_SimilarTextScoresHigher(t *testing.T) {
	b := NewHashBackend(256)
	ctx := context.Background()

	base, _ := b.Embed(ctx, "python data pipelines")
	near, _ := b.Embed(ctx, "python data pipeline")
	far, _ := b.Embed(ctx, "negotiated vendor contracts")

	assert.Greater(t, CosineSimilarity(base, near), CosineSimilarity(base, far))
}

func TestHashBackend_EmptyText(t *testing.T) {
	v, err := NewHashBackend(8).Embed(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, float32(1), v[0])
}

func TestOllamaBackend_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiPathEmbeddings, r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "hello", req.Prompt)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	b := NewOllamaBackend(WithBaseURL(srv.URL), WithModel("test-model"), WithDimensions(3))
	vec, err := b.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOllamaBackend_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1}})
	}))
	defer srv.Close()

	b := NewOllamaBackend(WithBaseURL(srv.URL), WithDimensions(3))
	_, err := b.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected embedding dimensions")
}

func TestOllamaBackend_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaBackend(WithBaseURL(srv.URL)).Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllamaBackend_HasModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiPathTags, r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest"}]}`))
	}))
	defer srv.Close()

	ok, err := NewOllamaBackend(WithBaseURL(srv.URL)).HasModel(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewOllamaBackend(WithBaseURL(srv.URL), WithModel("other")).HasModel(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

// flaky fails the first n calls.
type flaky struct {
	fails int32
	calls atomic.Int32
}

func (f *flaky) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.calls.Add(1) <= f.fails {
		return nil, errors.New("connection refused")
	}
	return []float32{1, 0}, nil
}

func (f *flaky) Model() string   { return "flaky" }
func (f *flaky) Dimensions() int { return 2 }

func TestWithRetry_RecoversWithinBudget(t *testing.T) {
	f := &flaky{fails: 2}
	b := WithRetry(f, 2, time.Millisecond, nil)

	vec, err := b.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
	assert.Equal(t, int32(3), f.calls.Load())
}

func TestWithRetry_ExhaustionIsEmbeddingUnavailable(t *testing.T) {
	f := &flaky{fails: 10}
	b := WithRetry(f, 1, time.Millisecond, nil)

	_, err := b.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, types.IsEmbeddingUnavailable(err))
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestWithRetry_StopsOnCancel(t *testing.T) {
	f := &flaky{fails: 10}
	b := WithRetry(f, 3, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Embed(ctx, "x")
	require.Error(t, err)
	assert.True(t, types.IsEmbeddingUnavailable(err))
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestWithMemo_CachesByText(t *testing.T) {
	f := &flaky{}
	m := WithMemo(f, 0)
	ctx := context.Background()

	_, err := m.Embed(ctx, "a")
	require.NoError(t, err)
	_, err = m.Embed(ctx, "a")
	require.NoError(t, err)
	_, err = m.Embed(ctx, "b")
	require.NoError(t, err)

	assert.Equal(t, int32(2), f.calls.Load())
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, "flaky", m.Model())
}

func TestWithMemo_DoesNotCacheErrors(t *testing.T) {
	f := &flaky{fails: 1}
	m := WithMemo(f, 0)

	_, err := m.Embed(context.Background(), "a")
	require.Error(t, err)
	_, err = m.Embed(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
}

func TestWithRateLimit_ZeroIsPassthrough(t *testing.T) {
	f := &flaky{}
	assert.Same(t, Backend(f), WithRateLimit(f, 0, 1))

	limited := WithRateLimit(f, 1000, 5)
	_, err := limited.Embed(context.Background(), "x")
	require.NoError(t, err)
}

func TestNew_HashProvider(t *testing.T) {
	cfg := config.Default().Embedding
	cfg.Provider = config.EmbeddingHash
	cfg.Dimensions = 32

	b, closer, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, "hash", b.Model())
	assert.Equal(t, 32, b.Dimensions())
	vec, err := b.Embed(context.Background(), "golang")
	require.NoError(t, err)
	assert.Len(t, vec, 32)
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := config.Default().Embedding
	cfg.Provider = "bogus"
	_, _, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
}
