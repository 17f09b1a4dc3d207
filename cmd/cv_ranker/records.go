package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jonathan/cv-ranker/internal/catalog"
	"go.uber.org/zap"
)

// importSummary counts what importRecords stored.
type importSummary struct {
	Company string   `json:"company"`
	Job     string   `json:"job"`
	CVs     int      `json:"cvs"`
	Skipped []string `json:"skipped,omitempty"`
}

// recordFiles lists the *.json files of dir in name order.
func recordFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// importRecords stores the JD file and every CV file under cvDir. A JD that
// fails validation is fatal; malformed CVs are logged and skipped.
func importRecords(ctx context.Context, cat *catalog.Catalog, logger *zap.Logger, company, job, jdPath, cvDir string) (importSummary, error) {
	summary := importSummary{Company: company, Job: job}

	if jdPath != "" {
		raw, err := readFile(jdPath)
		if err != nil {
			return summary, err
		}
		if _, err := cat.SaveJD(ctx, company, job, raw); err != nil {
			return summary, fmt.Errorf("failed to import JD %s: %w", jdPath, err)
		}
	}

	if cvDir == "" {
		return summary, nil
	}
	files, err := recordFiles(cvDir)
	if err != nil {
		return summary, err
	}
	for _, path := range files {
		raw, err := readFile(path)
		if err != nil {
			return summary, err
		}
		cv, err := cat.SaveCV(ctx, company, job, raw)
		if err != nil {
			logger.Warn("skipping CV file", zap.String("path", path), zap.Error(err))
			summary.Skipped = append(summary.Skipped, filepath.Base(path))
			continue
		}
		logger.Debug("imported CV", zap.String("path", path), zap.String("cv_id", cv.ID))
		summary.CVs++
	}
	return summary, nil
}
