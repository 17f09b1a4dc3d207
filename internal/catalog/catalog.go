// Package catalog stores and loads typed CV and JD records for a
// (company, job) key on top of a document store.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonathan/cv-ranker/internal/ingestion"
	"github.com/jonathan/cv-ranker/internal/logging"
	"github.com/jonathan/cv-ranker/internal/schemas"
	"github.com/jonathan/cv-ranker/internal/store"
	"github.com/jonathan/cv-ranker/internal/types"
	rootschemas "github.com/jonathan/cv-ranker/schemas"
	"go.uber.org/zap"
)

// Catalog reads and writes records for jobs.
type Catalog struct {
	docs   store.DocumentStore
	logger *zap.Logger
}

// New creates a catalog over a document store.
func New(docs store.DocumentStore, logger *zap.Logger) *Catalog {
	return &Catalog{docs: docs, logger: logging.OrNop(logger)}
}

// SaveJD validates a raw JD document and stores it as the JD of (company, job).
func (c *Catalog) SaveJD(ctx context.Context, company, job string, raw []byte) (*types.JobDescription, error) {
	id := store.JDID(company, job)
	if err := schemas.ValidateDocument(rootschemas.JDRecord, raw); err != nil {
		return nil, schemas.AsMalformedRecord(ingestion.KindJD, id, err)
	}
	jd, err := ingestion.ParseJD(raw)
	if err != nil {
		return nil, err
	}
	jd.ID = id
	if jd.Company == "" {
		jd.Company = company
	}
	if jd.JobTitle == "" {
		jd.JobTitle = job
	}

	data, err := json.Marshal(jd)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job description: %w", err)
	}
	if err := c.docs.Put(ctx, store.JDCollection(company, job), id, data); err != nil {
		return nil, err
	}
	return jd, nil
}

// SaveCV validates a raw CV document and stores it under (company, job).
func (c *Catalog) SaveCV(ctx context.Context, company, job string, raw []byte) (*types.CVRecord, error) {
	if err := schemas.ValidateDocument(rootschemas.CVRecord, raw); err != nil {
		return nil, schemas.AsMalformedRecord(ingestion.KindCV, "(new)", err)
	}
	cv, err := ingestion.ParseCV(raw)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(cv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cv: %w", err)
	}
	if err := c.docs.Put(ctx, store.CVCollection(company, job), cv.ID, data); err != nil {
		return nil, err
	}
	return cv, nil
}

// LoadJD returns the JD of (company, job), or a DataNotFoundError.
func (c *Catalog) LoadJD(ctx context.Context, company, job string) (*types.JobDescription, error) {
	raw, err := c.docs.Get(ctx, store.JDCollection(company, job), store.JDID(company, job))
	if errors.Is(err, store.ErrNotFound) {
		return nil, &types.DataNotFoundError{Company: company, Job: job, What: "job description"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job description: %w", err)
	}
	jd, err := ingestion.ParseJD(raw)
	if err != nil {
		return nil, err
	}
	return jd, nil
}

// LoadCVs returns every rankable CV of (company, job) ordered by id. Records
// that fail to decode are reported as skipped instead of failing the load.
// An empty collection is a DataNotFoundError.
func (c *Catalog) LoadCVs(ctx context.Context, company, job string) ([]*types.CVRecord, []types.SkippedRecord, error) {
	docs, err := c.docs.List(ctx, store.CVCollection(company, job))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list cvs: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil, &types.DataNotFoundError{Company: company, Job: job, What: "CV set"}
	}

	cvs := make([]*types.CVRecord, 0, len(docs))
	var skipped []types.SkippedRecord
	seen := make(map[string]bool, len(docs))
	for _, doc := range docs {
		cv, err := ingestion.ParseCV(doc.Data)
		if err != nil {
			c.logger.Warn("skipping malformed cv record",
				zap.String("company", company),
				zap.String("job", job),
				zap.String("id", doc.ID),
				zap.Error(err))
			skipped = append(skipped, types.SkippedRecord{ID: doc.ID, Reason: err.Error()})
			continue
		}
		if seen[cv.ID] {
			continue
		}
		seen[cv.ID] = true
		cvs = append(cvs, cv)
	}
	return cvs, skipped, nil
}

// Counts reports how many CV documents a job holds and whether its JD exists.
func (c *Catalog) Counts(ctx context.Context, company, job string) (hasJD bool, cvs int, err error) {
	_, err = c.docs.Get(ctx, store.JDCollection(company, job), store.JDID(company, job))
	switch {
	case err == nil:
		hasJD = true
	case errors.Is(err, store.ErrNotFound):
	default:
		return false, 0, fmt.Errorf("failed to check job description: %w", err)
	}
	docs, err := c.docs.List(ctx, store.CVCollection(company, job))
	if err != nil {
		return false, 0, fmt.Errorf("failed to list cvs: %w", err)
	}
	return hasJD, len(docs), nil
}
