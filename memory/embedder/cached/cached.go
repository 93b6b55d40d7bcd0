// Package cached wraps an Embedder with a ristretto read-through cache so
// repeated texts skip the underlying model call.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/unimem/unimem/memory"
)

// Embedder memoizes Embed results keyed on the input text.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

var _ memory.Embedder = (*Embedder)(nil)

// New wraps inner with a cache holding up to maxEntries embeddings. A
// non-positive maxEntries defaults to 4096.
func New(inner memory.Embedder, maxEntries int64) (*Embedder, error) {
	if inner == nil {
		return nil, fmt.Errorf("cached: inner embedder is required")
	}
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cached: create cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, computing and storing it on a
// miss. Cached slices must not be mutated by callers; a copy is returned.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			out := make([]float32, len(vec))
			copy(out, vec)
			return out, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	stored := make([]float32, len(vec))
	copy(stored, vec)
	e.cache.Set(text, stored, 1)
	return vec, nil
}

// Dimensions reports the wrapped embedder's output size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until pending cache writes are applied. Tests use it to make
// Set visible before asserting hits.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close releases the cache's background goroutines.
func (e *Embedder) Close() {
	e.cache.Close()
}
