package pipeline

import (
	"context"
	"fmt"

	"github.com/jonathan/cv-ranker/internal/retrieval"
	"github.com/jonathan/cv-ranker/internal/store"
	"go.uber.org/zap"
)

// JobStatus is the data check of one (company, job) key.
type JobStatus struct {
	Company    string `json:"company"`
	Job        string `json:"job"`
	HasJD      bool   `json:"has_jd"`
	CVs        int    `json:"cvs"`
	EmbeddedCV int    `json:"embedded_cvs"`
	JDVectors  int    `json:"jd_vectors"`
	CVVectors  int    `json:"cv_vectors"`
	Ready      bool   `json:"ready"`
}

// Status reports which records and vectors exist for a job without changing anything.
func (s *Searcher) Status(ctx context.Context, company, job string) (*JobStatus, error) {
	hasJD, cvs, err := s.catalog.Counts(ctx, company, job)
	if err != nil {
		return nil, err
	}
	st := &JobStatus{Company: company, Job: job, HasJD: hasJD, CVs: cvs}

	if st.JDVectors, err = s.vectors.Count(ctx, store.JDCollection(company, job)); err != nil {
		return nil, fmt.Errorf("failed to count JD vectors: %w", err)
	}
	cvCollection := store.CVCollection(company, job)
	if st.CVVectors, err = s.vectors.Count(ctx, cvCollection); err != nil {
		return nil, fmt.Errorf("failed to count CV vectors: %w", err)
	}
	owners, err := s.vectors.OwnerIDs(ctx, cvCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded CVs: %w", err)
	}
	st.EmbeddedCV = len(owners)
	st.Ready = hasJD && cvs > 0 && st.JDVectors > 0 && st.EmbeddedCV >= cvs
	return st, nil
}

// Embed runs ensure-embedded for a job outside of a search. With force every
// record is re-embedded.
func (s *Searcher) Embed(ctx context.Context, company, job string, force bool) (retrieval.IndexStats, error) {
	jd, err := s.catalog.LoadJD(ctx, company, job)
	if err != nil {
		return retrieval.IndexStats{}, err
	}
	cvs, skipped, err := s.catalog.LoadCVs(ctx, company, job)
	if err != nil {
		return retrieval.IndexStats{}, err
	}
	if len(skipped) > 0 {
		s.logger.Warn("malformed CVs left unembedded",
			zap.String("company", company),
			zap.String("job", job),
			zap.Int("skipped", len(skipped)))
	}
	return s.indexer.EnsureEmbedded(ctx, company, job, jd, cvs, force)
}
