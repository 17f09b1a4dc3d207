package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jonathan/cv-ranker/internal/catalog"
	"github.com/jonathan/cv-ranker/internal/config"
	"github.com/jonathan/cv-ranker/internal/db"
	"github.com/jonathan/cv-ranker/internal/embedding"
	"github.com/jonathan/cv-ranker/internal/logging"
	"github.com/jonathan/cv-ranker/internal/pipeline"
	"github.com/jonathan/cv-ranker/internal/rerank"
	"github.com/jonathan/cv-ranker/internal/skills"
	"github.com/jonathan/cv-ranker/internal/sqlite"
	"github.com/jonathan/cv-ranker/internal/store"
	"go.uber.org/zap"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    store.Store
	catalog  *catalog.Catalog
	searcher *pipeline.Searcher
	closers  []io.Closer
}

// loadConfig reads the --config file and environment, then applies the
// persistent logging flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if debugLogs {
		cfg.Logging.Debug = true
	}
	return cfg, nil
}

// openStore connects the configured document and vector store.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return store.NewMemory(), nil
	case config.StoreSQLite:
		return sqlite.Open(cfg.SQLitePath)
	case config.StorePostgres:
		return db.Connect(ctx, cfg.DatabaseURL, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}

// newApp wires the store, embedder, reranker and searcher for cfg.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := logging.New(cfg.Logging.JSON, cfg.Logging.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	a.store = st
	a.closers = append(a.closers, st)

	embedder, embedCloser, err := embedding.New(ctx, cfg.Embedding, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, embedCloser)

	reranker, rerankCloser, err := rerank.New(ctx, cfg.Rerank, cfg.Scoring, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, rerankCloser)

	taxonomy, err := skills.LoadTaxonomy(cfg.Taxonomy)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.catalog = catalog.New(st, logger)
	a.searcher, err = pipeline.NewSearcher(pipeline.Deps{
		Catalog:  a.catalog,
		Vectors:  st,
		Embedder: embedder,
		Taxonomy: taxonomy,
		Reranker: reranker,
		Scoring:  cfg.Scoring,
		Logger:   logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create searcher: %w", err)
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("failed to close resources", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// writeJSON prints v as indented JSON.
func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// readFile reads a record file given on the command line.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return data, nil
}
