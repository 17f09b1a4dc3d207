// Package retrieval embeds CV and JD sections into the vector store and
// scores candidates by section-level similarity.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/cv-ranker/internal/embedding"
	"github.com/jonathan/cv-ranker/internal/ingestion"
	"github.com/jonathan/cv-ranker/internal/logging"
	"github.com/jonathan/cv-ranker/internal/store"
	"github.com/jonathan/cv-ranker/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel CV embedding.
const DefaultConcurrency = 4

// Indexer makes sure the vector store holds embeddings for a job's records.
// EnsureEmbedded is safe to call concurrently; duplicate work ends in the
// same upserted vectors.
type Indexer struct {
	backend     embedding.Backend
	vectors     store.VectorStore
	concurrency int
	logger      *zap.Logger
}

// NewIndexer creates an indexer. concurrency <= 0 uses DefaultConcurrency.
func NewIndexer(backend embedding.Backend, vectors store.VectorStore, concurrency int, logger *zap.Logger) *Indexer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Indexer{
		backend:     backend,
		vectors:     vectors,
		concurrency: concurrency,
		logger:      logging.OrNop(logger),
	}
}

// IndexStats reports what EnsureEmbedded did.
type IndexStats struct {
	// Embedded is true when any record was (re)embedded.
	Embedded    bool          `json:"embedded"`
	JDEmbedded  bool          `json:"jd_embedded"`
	CVsEmbedded int           `json:"cvs_embedded"`
	Vectors     int           `json:"vectors_written"`
	Duration    time.Duration `json:"duration"`
}

// EnsureEmbedded embeds the JD sections and every CV that has no vectors
// yet. With force, every record is re-embedded. An embedding failure aborts
// with an EmbeddingUnavailableError and leaves earlier upserts in place.
func (ix *Indexer) EnsureEmbedded(ctx context.Context, company, job string, jd *types.JobDescription, cvs []*types.CVRecord, force bool) (IndexStats, error) {
	start := time.Now()
	var stats IndexStats
	jdCollection := store.JDCollection(company, job)
	cvCollection := store.CVCollection(company, job)

	jdCount, err := ix.vectors.Count(ctx, jdCollection)
	if err != nil {
		return stats, fmt.Errorf("failed to count JD vectors: %w", err)
	}
	if force || jdCount == 0 {
		entries, err := ix.embedJD(ctx, jd)
		if err != nil {
			return stats, err
		}
		if err := ix.vectors.Upsert(ctx, jdCollection, entries); err != nil {
			return stats, fmt.Errorf("failed to store JD vectors: %w", err)
		}
		stats.JDEmbedded = true
		stats.Vectors += len(entries)
	}

	pending, err := ix.pendingCVs(ctx, cvCollection, cvs, force)
	if err != nil {
		return stats, err
	}
	if len(pending) > 0 {
		ix.logger.Info("embedding CVs on demand",
			zap.String("company", company),
			zap.String("job", job),
			zap.Int("pending", len(pending)),
			zap.Int("total", len(cvs)))

		written := make([]int, len(pending))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(ix.concurrency)
		for i, cv := range pending {
			g.Go(func() error {
				entries, err := ix.embedCV(gctx, cv)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					return nil
				}
				if err := ix.vectors.Upsert(gctx, cvCollection, entries); err != nil {
					return fmt.Errorf("failed to store vectors for CV %s: %w", cv.ID, err)
				}
				written[i] = len(entries)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}
		for _, n := range written {
			stats.Vectors += n
			if n > 0 {
				stats.CVsEmbedded++
			}
		}
	}

	stats.Embedded = stats.JDEmbedded || stats.CVsEmbedded > 0
	stats.Duration = time.Since(start)
	if stats.Embedded {
		ix.logger.Info("embeddings ready",
			zap.String("company", company),
			zap.String("job", job),
			zap.Bool("jd_embedded", stats.JDEmbedded),
			zap.Int("cvs_embedded", stats.CVsEmbedded),
			zap.Int("vectors", stats.Vectors),
			zap.Duration("duration", stats.Duration))
	}
	return stats, nil
}

// pendingCVs returns the CVs with no vectors in the collection.
func (ix *Indexer) pendingCVs(ctx context.Context, collection string, cvs []*types.CVRecord, force bool) ([]*types.CVRecord, error) {
	if force {
		return cvs, nil
	}
	owners, err := ix.vectors.OwnerIDs(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded CVs: %w", err)
	}
	have := make(map[string]bool, len(owners))
	for _, id := range owners {
		have[id] = true
	}
	var pending []*types.CVRecord
	for _, cv := range cvs {
		if !have[cv.ID] {
			pending = append(pending, cv)
		}
	}
	return pending, nil
}

// embedJD produces one vector per non-empty JD section.
func (ix *Indexer) embedJD(ctx context.Context, jd *types.JobDescription) ([]store.VectorEntry, error) {
	var entries []store.VectorEntry
	for _, section := range types.JDSectionOrder {
		text := ingestion.CleanText(jd.Section(section))
		if text == "" {
			continue
		}
		vec, err := ix.embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed JD section %s: %w", section, err)
		}
		entries = append(entries, store.VectorEntry{
			Key:     store.ChunkKey(jd.ID, section, 0),
			OwnerID: jd.ID,
			Section: section,
			Text:    text,
			Vector:  vec,
		})
	}
	if len(entries) == 0 {
		return nil, &types.MalformedRecordError{Kind: ingestion.KindJD, ID: jd.ID, Field: "sections", Reason: "no text to embed"}
	}
	return entries, nil
}

// embedCV produces one vector per item line of every non-empty CV section.
func (ix *Indexer) embedCV(ctx context.Context, cv *types.CVRecord) ([]store.VectorEntry, error) {
	var entries []store.VectorEntry
	for _, section := range types.CVSectionOrder {
		for i, item := range ingestion.SplitItems(cv.Section(section)) {
			vec, err := ix.embed(ctx, item)
			if err != nil {
				return nil, fmt.Errorf("failed to embed CV %s section %s: %w", cv.ID, section, err)
			}
			entries = append(entries, store.VectorEntry{
				Key:     store.ChunkKey(cv.ID, section, i),
				OwnerID: cv.ID,
				Section: section,
				Text:    item,
				Vector:  vec,
			})
		}
	}
	return entries, nil
}

func (ix *Indexer) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := ix.backend.Embed(ctx, text)
	if err == nil {
		return vec, nil
	}
	if types.IsEmbeddingUnavailable(err) || ctx.Err() != nil {
		return nil, err
	}
	return nil, &types.EmbeddingUnavailableError{Model: ix.backend.Model(), Cause: err}
}

// JDVectors loads the stored JD section vectors keyed by section.
func (ix *Indexer) JDVectors(ctx context.Context, company, job, jdID string) (map[string][]float32, error) {
	entries, err := ix.vectors.Vectors(ctx, store.JDCollection(company, job), jdID)
	if err != nil {
		return nil, fmt.Errorf("failed to load JD vectors: %w", err)
	}
	out := make(map[string][]float32, len(entries))
	for _, e := range entries {
		if _, ok := out[e.Section]; !ok {
			out[e.Section] = e.Vector
		}
	}
	return out, nil
}
