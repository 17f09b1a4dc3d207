package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashBackend is an offline embedder that hashes word tokens and character
// trigrams into a fixed number of buckets. It needs no model.
type HashBackend struct {
	dimensions int
}

// NewHashBackend returns a hashing embedder producing vectors of the given size.
func NewHashBackend(dimensions int) *HashBackend {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &HashBackend{dimensions: dimensions}
}

// Embed hashes text into a unit-length vector. Text without tokens maps to
// the first basis vector.
func (b *HashBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, b.dimensions)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		vec[0] = 1
		return vec, nil
	}
	for _, tok := range tokens {
		b.add(vec, "w:"+tok, 1)
		padded := "#" + tok + "#"
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			b.add(vec, "c:"+string(runes[i:i+3]), 0.5)
		}
	}
	return Normalize(vec), nil
}

func (b *HashBackend) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(b.dimensions))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

// Model returns the backend name.
func (b *HashBackend) Model() string {
	return "hash"
}

// Dimensions returns the vector size.
func (b *HashBackend) Dimensions() int {
	return b.dimensions
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
}
