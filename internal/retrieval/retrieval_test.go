package retrieval

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jonathan/cv-ranker/internal/config"
	"github.com/jonathan/cv-ranker/internal/embedding"
	"github.com/jonathan/cv-ranker/internal/store"
	"github.com/jonathan/cv-ranker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBackend struct {
	embedding.Backend
	calls atomic.Int64
	fail  error
}

func (c *countingBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Backend.Embed(ctx, text)
}

func testJD() *types.JobDescription {
	return &types.JobDescription{
		ID:       "jd1",
		Company:  "Acme",
		JobTitle: "Data Engineer",
		Sections: map[string]string{
			types.SectionRequiredSkills:   "Python and SQL",
			types.SectionResponsibilities: "Build data pipelines",
		},
	}
}

func testCV(id string) *types.CVRecord {
	return &types.CVRecord{
		ID: id,
		Sections: map[string]string{
			types.SectionSkills:         "python\nsql",
			types.SectionWorkExperience: "Built ingestion pipelines in Python",
		},
	}
}

func TestEnsureEmbedded_Idempotent(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemory()
	backend := &countingBackend{Backend: embedding.NewHashBackend(64)}
	ix := NewIndexer(backend, vs, 2, nil)
	cvs := []*types.CVRecord{testCV("a"), testCV("b")}

	stats, err := ix.EnsureEmbedded(ctx, "Acme", "Data Engineer", testJD(), cvs, false)
	require.NoError(t, err)
	assert.True(t, stats.Embedded)
	assert.True(t, stats.JDEmbedded)
	assert.Equal(t, 2, stats.CVsEmbedded)
	// 2 JD sections + 3 chunks per CV
	assert.Equal(t, 8, stats.Vectors)
	assert.Equal(t, int64(8), backend.calls.Load())

	stats, err = ix.EnsureEmbedded(ctx, "Acme", "Data Engineer", testJD(), cvs, false)
	require.NoError(t, err)
	assert.False(t, stats.Embedded)
	assert.Equal(t, int64(8), backend.calls.Load())

	n, err := vs.Count(ctx, store.CVCollection("Acme", "Data Engineer"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestEnsureEmbedded_OnlyMissingCVs(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemory()
	backend := &countingBackend{Backend: embedding.NewHashBackend(64)}
	ix := NewIndexer(backend, vs, 0, nil)

	_, err := ix.EnsureEmbedded(ctx, "Acme", "DE", testJD(), []*types.CVRecord{testCV("a")}, false)
	require.NoError(t, err)
	before := backend.calls.Load()

	stats, err := ix.EnsureEmbedded(ctx, "Acme", "DE", testJD(), []*types.CVRecord{testCV("a"), testCV("b")}, false)
	require.NoError(t, err)
	assert.True(t, stats.Embedded)
	assert.False(t, stats.JDEmbedded)
	assert.Equal(t, 1, stats.CVsEmbedded)
	assert.Equal(t, before+3, backend.calls.Load())
}

func TestEnsureEmbedded_CountsOnlyCVsWithVectors(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemory()
	ix := NewIndexer(embedding.NewHashBackend(32), vs, 2, nil)
	odd := &types.CVRecord{ID: "odd", Sections: map[string]string{"hobbies": "chess and python"}}

	stats, err := ix.EnsureEmbedded(ctx, "Acme", "Data Engineer", testJD(), []*types.CVRecord{testCV("a"), odd}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CVsEmbedded)

	owners, err := vs.OwnerIDs(ctx, store.CVCollection("Acme", "Data Engineer"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, owners)
}

func TestEnsureEmbedded_Force(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemory()
	backend := &countingBackend{Backend: embedding.NewHashBackend(64)}
	ix := NewIndexer(backend, vs, 0, nil)
	cvs := []*types.CVRecord{testCV("a")}

	_, err := ix.EnsureEmbedded(ctx, "Acme", "DE", testJD(), cvs, false)
	require.NoError(t, err)
	stats, err := ix.EnsureEmbedded(ctx, "Acme", "DE", testJD(), cvs, true)
	require.NoError(t, err)
	assert.True(t, stats.JDEmbedded)
	assert.Equal(t, 1, stats.CVsEmbedded)

	n, err := vs.Count(ctx, store.CVCollection("Acme", "DE"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestEnsureEmbedded_BackendFailure(t *testing.T) {
	backend := &countingBackend{Backend: embedding.NewHashBackend(64), fail: errors.New("connection refused")}
	ix := NewIndexer(backend, store.NewMemory(), 0, nil)

	_, err := ix.EnsureEmbedded(context.Background(), "Acme", "DE", testJD(), []*types.CVRecord{testCV("a")}, false)
	require.Error(t, err)
	assert.True(t, types.IsEmbeddingUnavailable(err))
}

func TestEnsureEmbedded_EmptyJD(t *testing.T) {
	ix := NewIndexer(embedding.NewHashBackend(64), store.NewMemory(), 0, nil)
	jd := &types.JobDescription{ID: "jd1"}

	_, err := ix.EnsureEmbedded(context.Background(), "Acme", "DE", jd, nil, false)
	require.Error(t, err)
	assert.True(t, types.IsMalformedRecord(err))
}

func TestEnsureEmbedded_Concurrent(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemory()
	ix := NewIndexer(embedding.NewHashBackend(64), vs, 4, nil)
	cvs := []*types.CVRecord{testCV("a"), testCV("b"), testCV("c")}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = ix.EnsureEmbedded(ctx, "Acme", "DE", testJD(), cvs, false)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}

	n, err := vs.Count(ctx, store.CVCollection("Acme", "DE"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	owners, err := vs.OwnerIDs(ctx, store.CVCollection("Acme", "DE"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, owners)
}

func TestJDVectors(t *testing.T) {
	ctx := context.Background()
	ix := NewIndexer(embedding.NewHashBackend(64), store.NewMemory(), 0, nil)
	_, err := ix.EnsureEmbedded(ctx, "Acme", "DE", testJD(), nil, false)
	require.NoError(t, err)

	vecs, err := ix.JDVectors(ctx, "Acme", "DE", "jd1")
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Len(t, vecs[types.SectionRequiredSkills], 64)
}

func scorerConfig(t *testing.T) config.ScoringConfig {
	t.Helper()
	cfg := config.DefaultScoringConfig()
	cfg.SectionMapping = map[string][]string{
		types.SectionRequiredSkills:   {types.SectionSkills},
		types.SectionResponsibilities: {types.SectionWorkExperience},
	}
	cfg.SectionWeights = map[string]float64{
		types.SectionRequiredSkills:   0.3,
		types.SectionResponsibilities: 0.1,
	}
	final, err := cfg.Finalize()
	require.NoError(t, err)
	return final
}

func TestScorer_MeanOfRetrievedChunks(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemory()
	require.NoError(t, vs.Upsert(ctx, "cv", []store.VectorEntry{
		{Key: "c1:skills:0", OwnerID: "c1", Section: types.SectionSkills, Text: "python", Vector: []float32{1, 0}},
		{Key: "c1:skills:1", OwnerID: "c1", Section: types.SectionSkills, Text: "painting", Vector: []float32{0, 1}},
		{Key: "c2:skills:0", OwnerID: "c2", Section: types.SectionSkills, Text: "python", Vector: []float32{1, 0}},
	}))

	s := NewScorer(vs, scorerConfig(t))
	jdVecs := map[string][]float32{
		types.SectionRequiredSkills:   {1, 0},
		types.SectionResponsibilities: {0, 1},
	}

	got, err := s.Score(ctx, "cv", "c1", jdVecs)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.Sections[types.SectionRequiredSkills], 1e-9)
	// No work experience chunks: counted as 0 with its weight kept.
	assert.Equal(t, 0.0, got.Sections[types.SectionResponsibilities])
	assert.InDelta(t, 0.75*0.5, got.VectorScore, 1e-9)
	assert.Len(t, got.Evidence[types.SectionRequiredSkills], 2)

	got, err = s.Score(ctx, "cv", "c2", jdVecs)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got.VectorScore, 1e-9)
}

func TestScorer_MissingJDSection(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemory()
	require.NoError(t, vs.Upsert(ctx, "cv", []store.VectorEntry{
		{Key: "c1:skills:0", OwnerID: "c1", Section: types.SectionSkills, Text: "python", Vector: []float32{1, 0}},
	}))

	got, err := NewScorer(vs, scorerConfig(t)).Score(ctx, "cv", "c1", map[string][]float32{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.VectorScore)
	assert.Len(t, got.Sections, 2)
}

func TestScorer_DedupesAndFloors(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemory()
	require.NoError(t, vs.Upsert(ctx, "cv", []store.VectorEntry{
		{Key: "c1:skills:0", OwnerID: "c1", Section: types.SectionSkills, Text: "python", Vector: []float32{1, 0}},
		{Key: "c1:skills:1", OwnerID: "c1", Section: types.SectionSkills, Text: "python", Vector: []float32{1, 0}},
		{Key: "c1:work_experience:0", OwnerID: "c1", Section: types.SectionWorkExperience, Text: "x", Vector: []float32{-1, 0}},
	}))

	got, err := NewScorer(vs, scorerConfig(t)).Score(ctx, "cv", "c1", map[string][]float32{
		types.SectionRequiredSkills:   {1, 0},
		types.SectionResponsibilities: {1, 0},
	})
	require.NoError(t, err)
	assert.Len(t, got.Evidence[types.SectionRequiredSkills], 1)
	assert.InDelta(t, 1.0, got.Sections[types.SectionRequiredSkills], 1e-9)
	assert.Equal(t, 0.0, got.Sections[types.SectionResponsibilities])
	assert.InDelta(t, 0.75, got.VectorScore, 1e-9)
}

func TestScorer_WithIndexedRecords(t *testing.T) {
	ctx := context.Background()
	vs := store.NewMemory()
	ix := NewIndexer(embedding.NewHashBackend(128), vs, 0, nil)
	strong := testCV("strong")
	weak := &types.CVRecord{ID: "weak", Sections: map[string]string{types.SectionSkills: "watercolor painting"}}

	_, err := ix.EnsureEmbedded(ctx, "Acme", "DE", testJD(), []*types.CVRecord{strong, weak}, false)
	require.NoError(t, err)
	jdVecs, err := ix.JDVectors(ctx, "Acme", "DE", "jd1")
	require.NoError(t, err)

	s := NewScorer(vs, scorerConfig(t))
	strongScore, err := s.Score(ctx, store.CVCollection("Acme", "DE"), "strong", jdVecs)
	require.NoError(t, err)
	weakScore, err := s.Score(ctx, store.CVCollection("Acme", "DE"), "weak", jdVecs)
	require.NoError(t, err)
	assert.Greater(t, strongScore.VectorScore, weakScore.VectorScore)
}
