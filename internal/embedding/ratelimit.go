package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to the wrapped backend.
type RateLimited struct {
	Backend
	limiter *rate.Limiter
}

// WithRateLimit wraps b so that at most rps calls per second reach it. A
// non-positive rps returns b unchanged.
func WithRateLimit(b Backend, rps float64, burst int) Backend {
	if rps <= 0 {
		return b
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		Backend: b,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Embed waits for a token and then delegates.
func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.Backend.Embed(ctx, text)
}
