// Package mock provides a deterministic embedder for tests. No network,
// no model files; the same text always yields the same vector.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder derives pseudo-random unit vectors from a hash of the input.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder producing 384-dimensional vectors, the size
// of the MiniLM family commonly used for local embedding.
func New() *Embedder {
	return &Embedder{dimensions: 384}
}

// Embed hashes the text and expands the hash into a unit vector. Identical
// inputs map to identical embeddings, so exact-match similarity is 1.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))

	embedding := make([]float32, e.dimensions)
	seed := h.Sum64()
	for i := range embedding {
		// LCG step, then scale into [-1, 1].
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
