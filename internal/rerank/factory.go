package rerank

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/cv-ranker/internal/config"
	"github.com/jonathan/cv-ranker/internal/llm"
	"go.uber.org/zap"
)

// New builds the adapter for the configured provider. A disabled or "none"
// provider yields an adapter without an encoder. The closer is never nil.
func New(ctx context.Context, cfg config.RerankConfig, scoring config.ScoringConfig, logger *zap.Logger) (*Adapter, io.Closer, error) {
	if !cfg.Enabled {
		return NewAdapter(nil, scoring, logger), nopCloser{}, nil
	}

	switch cfg.Provider {
	case config.RerankNone, "":
		return NewAdapter(nil, scoring, logger), nopCloser{}, nil
	case config.RerankHTTP:
		encoder := NewHTTPCrossEncoder(cfg.URL, cfg.Model, cfg.Timeout)
		return NewAdapter(encoder, scoring, logger), nopCloser{}, nil
	case config.RerankLLM:
		llmCfg := llm.DefaultConfig()
		if strings.HasPrefix(cfg.Model, "gemini") {
			llmCfg.Model = cfg.Model
		}
		llmCfg.Schema = JudgeSchema
		client, err := llm.NewGemini(ctx, cfg.APIKey, llmCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create LLM judge: %w", err)
		}
		return NewAdapter(NewLLMJudge(client, cfg.Concurrency), scoring, logger), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown rerank provider %q", cfg.Provider)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
