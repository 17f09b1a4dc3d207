// Package embedding provides the text embedding backends used by retrieval
// and by the semantic skill matcher.
package embedding

import (
	"context"
	"math"
)

// Backend turns text into a vector. Implementations must be deterministic for
// identical text and model version, and must return an error rather than a
// zero vector when they fail.
type Backend interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Model returns the name of the embedding model.
	Model() string
	// Dimensions returns the expected vector size.
	Dimensions() int
}

// CosineSimilarity returns the cosine similarity of a and b, or 0 when the
// vectors differ in length or either is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	denominator := math.Sqrt(normA) * math.Sqrt(normB)
	if denominator == 0 {
		return 0
	}
	return dot / denominator
}

// Normalize scales v to unit length in place and returns it.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
