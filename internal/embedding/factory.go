package embedding

import (
	"context"
	"fmt"
	"io"

	"github.com/jonathan/cv-ranker/internal/config"
	"go.uber.org/zap"
)

// New builds the configured backend, wrapped with rate limiting, retries and
// a memo cache. The returned closer releases backend resources; it is never nil.
func New(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (Backend, io.Closer, error) {
	var (
		base   Backend
		closer io.Closer = nopCloser{}
	)

	switch cfg.Provider {
	case config.EmbeddingOllama:
		opts := []OllamaOption{WithModel(cfg.Model), WithDimensions(cfg.Dimensions)}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		base = NewOllamaBackend(opts...)
	case config.EmbeddingGemini:
		g, err := NewGeminiBackend(ctx, cfg.APIKey, cfg.Model, cfg.Dimensions)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gemini embedder: %w", err)
		}
		base, closer = g, g
	case config.EmbeddingHugot:
		path := cfg.ModelPath
		if path == "" {
			p, err := PrepareHugotModel(cfg.Model, "")
			if err != nil {
				return nil, nil, err
			}
			path = p
		}
		h, err := NewHugotBackend(path, cfg.Model, cfg.Dimensions)
		if err != nil {
			return nil, nil, err
		}
		base, closer = h, h
	case config.EmbeddingHash:
		base = NewHashBackend(cfg.Dimensions)
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}

	wrapped := WithRateLimit(base, cfg.RequestsPerSecond, cfg.Burst)
	wrapped = WithRetry(wrapped, cfg.Retries, cfg.RetryBackoff, logger)
	return WithMemo(wrapped, 0), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
