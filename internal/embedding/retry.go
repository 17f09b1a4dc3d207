package embedding

import (
	"context"
	"time"

	"github.com/jonathan/cv-ranker/internal/logging"
	"github.com/jonathan/cv-ranker/internal/types"
	"go.uber.org/zap"
)

// Retrying retries failed embedding calls and reports exhaustion as
// EmbeddingUnavailable. It is the only place failures are retried; the
// ranking pipeline itself treats every embedding error as final.
type Retrying struct {
	Backend
	retries int
	backoff time.Duration
	logger  *zap.Logger
}

// WithRetry wraps b with up to retries additional attempts, sleeping backoff,
// 2*backoff, ... between them.
func WithRetry(b Backend, retries int, backoff time.Duration, logger *zap.Logger) Backend {
	return &Retrying{
		Backend: b,
		retries: retries,
		backoff: backoff,
		logger:  logging.OrNop(logger),
	}
}

// Embed calls the wrapped backend until it succeeds or attempts run out.
func (r *Retrying) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			wait := r.backoff * time.Duration(1<<(attempt-1))
			r.logger.Debug("retrying embedding",
				zap.String("model", r.Model()),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, &types.EmbeddingUnavailableError{Model: r.Model(), Cause: ctx.Err()}
			case <-time.After(wait):
			}
		}
		vec, err := r.Backend.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if types.IsEmbeddingUnavailable(lastErr) {
		return nil, lastErr
	}
	return nil, &types.EmbeddingUnavailableError{Model: r.Model(), Cause: lastErr}
}
