package embedding

import (
	"context"
	"sync"
)

// Memo caches vectors by exact text. Backends are deterministic per model, so
// a cached vector is always the one a fresh call would return.
type Memo struct {
	Backend
	mu    sync.RWMutex
	cache map[string][]float32
	max   int
}

// WithMemo wraps b with an in-process cache holding at most max entries. When
// full, new vectors are returned but not stored.
func WithMemo(b Backend, max int) *Memo {
	if max <= 0 {
		max = 10000
	}
	return &Memo{Backend: b, cache: make(map[string][]float32), max: max}
}

// Embed returns the cached vector for text or computes and stores it.
func (m *Memo) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.RLock()
	vec, ok := m.cache[text]
	m.mu.RUnlock()
	if ok {
		return vec, nil
	}

	vec, err := m.Backend.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if len(m.cache) < m.max {
		m.cache[text] = vec
	}
	m.mu.Unlock()
	return vec, nil
}

// Len returns the number of cached vectors.
func (m *Memo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cache)
}
