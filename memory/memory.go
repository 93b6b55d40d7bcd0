package memory

import "context"

// Provider is the primary, vector-backed storage interface.
// Implementations: chromem.Provider (embedded), or a hosted vector database
// in production deployments.
//
// All operations are namespaced by userID. An empty userID addresses the
// shared global namespace.
type Provider interface {
	// Add embeds content and stores it, returning the new record ID.
	Add(ctx context.Context, userID string, content string, metadata map[string]any) (string, error)

	// Search retrieves records by semantic similarity, highest first.
	// filters restricts results to records whose metadata matches every
	// given key/value pair; pass nil for no filtering.
	Search(ctx context.Context, userID string, query string, limit int, filters map[string]string) ([]SearchResult, error)

	// GetAll returns every record for the user in insertion order.
	GetAll(ctx context.Context, userID string) ([]Record, error)

	// DeleteAll removes every record for the user.
	DeleteAll(ctx context.Context, userID string) error

	// Reset wipes every record across all users.
	Reset(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Fallback is the local store interface used when no Provider is available.
// Implementation: local.Store (single-user JSON file with lexical search).
type Fallback interface {
	// Store appends a record and returns its ID.
	Store(ctx context.Context, content string, metadata map[string]any) (string, error)

	// Search returns lexical matches ranked by substring frequency.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)

	// GetAll returns every record in insertion order.
	GetAll(ctx context.Context) ([]Record, error)

	// Clear removes every record.
	Clear(ctx context.Context) error

	// Count reports the number of persisted records.
	Count(ctx context.Context) (int, error)

	// Corrupted reports whether a load ever discarded an unparseable file.
	Corrupted() bool
}

// Embedder converts text to vector embeddings.
// Implementations: openai.Embedder (API-based), mock.Embedder (testing and
// offline use). Embedder is an implementation detail of the Provider; the
// Client never interacts with it directly.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// FactExtractor distills added content into discrete facts before storage.
// Implementations are best-effort: Add falls back to storing raw content on
// any extraction error.
type FactExtractor interface {
	Extract(ctx context.Context, content string) ([]string, error)
}
