// Package chromem implements the primary memory Provider on top of
// chromem-go, a pure Go embedded vector database.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/unimem/unimem/memory"
)

// Provider stores memories as embedded documents, one chromem collection
// per user for namespace isolation. chromem does not enumerate documents,
// so an in-process index mirrors every record to serve GetAll.
type Provider struct {
	db       *chromem.DB
	embedder memory.Embedder
	base     string

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	records     map[string][]memory.Record // per user, insertion order
	byID        map[string]memory.Record
}

// Option configures a Provider.
type Option func(*Provider)

// WithCollectionBase overrides the prefix used for per-user collection
// names. The default is "user", yielding names like "user_alice".
func WithCollectionBase(base string) Option {
	return func(p *Provider) {
		if base != "" {
			p.base = base
		}
	}
}

// New creates a Provider backed by an in-memory chromem database.
func New(embedder memory.Embedder, opts ...Option) (*Provider, error) {
	if embedder == nil {
		return nil, fmt.Errorf("chromem: embedder is required")
	}
	p := &Provider{
		db:          chromem.NewDB(),
		embedder:    embedder,
		base:        "user",
		collections: make(map[string]*chromem.Collection),
		records:     make(map[string][]memory.Record),
		byID:        make(map[string]memory.Record),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Provider) collectionName(userID string) string {
	if userID == "" {
		return p.base
	}
	return p.base + "_" + userID
}

// getOrCreateCollection returns the collection for a user, creating it on
// first use.
func (p *Provider) getOrCreateCollection(userID string) (*chromem.Collection, error) {
	p.mu.RLock()
	col, exists := p.collections[userID]
	p.mu.RUnlock()
	if exists {
		return col, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Double-check after acquiring the write lock.
	if col, exists := p.collections[userID]; exists {
		return col, nil
	}

	col, err := p.db.CreateCollection(p.collectionName(userID), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: create collection: %w", err)
	}
	p.collections[userID] = col
	return col, nil
}

// Add embeds content and stores it under the user's collection.
func (p *Provider) Add(ctx context.Context, userID string, content string, metadata map[string]any) (string, error) {
	embedding, err := p.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("chromem: embed content: %w", err)
	}

	col, err := p.getOrCreateCollection(userID)
	if err != nil {
		return "", err
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	rec := memory.Record{
		ID:        uuid.New().String(),
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}

	doc := chromem.Document{
		ID:        rec.ID,
		Content:   content,
		Embedding: embedding,
		Metadata:  docMetadata(userID, rec),
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("chromem: add document: %w", err)
	}

	p.mu.Lock()
	p.records[userID] = append(p.records[userID], rec)
	p.byID[rec.ID] = rec
	p.mu.Unlock()

	slog.Debug("chromem: stored memory", "id", rec.ID, "user", userID)
	return rec.ID, nil
}

// Search embeds the query and returns the nearest memories, highest
// similarity first. filters restrict on document metadata equality.
func (p *Provider) Search(ctx context.Context, userID string, query string, limit int, filters map[string]string) ([]memory.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	embedding, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("chromem: embed query: %w", err)
	}

	col, err := p.getOrCreateCollection(userID)
	if err != nil {
		return nil, err
	}

	where := map[string]string{"owner_id": userID}
	for k, v := range filters {
		where[k] = v
	}

	// chromem requires nResults <= collection size; shrink until it fits.
	var results []chromem.Result
	for n := limit; n >= 1; n-- {
		results, err = col.QueryEmbedding(ctx, embedding, n, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if n == 1 {
				return nil, nil // empty collection
			}
			continue
		}
		return nil, fmt.Errorf("chromem: query: %w", err)
	}

	out := make([]memory.SearchResult, 0, len(results))
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, res := range results {
		sr := memory.SearchResult{
			ID:      res.ID,
			Content: res.Content,
			Score:   float64(res.Similarity),
		}
		if rec, ok := p.byID[res.ID]; ok {
			sr.Metadata = rec.Metadata
			sr.CreatedAt = rec.CreatedAt
		}
		out = append(out, sr)
	}
	return out, nil
}

// GetAll returns the user's records in insertion order.
func (p *Provider) GetAll(_ context.Context, userID string) ([]memory.Record, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	records := p.records[userID]
	out := make([]memory.Record, len(records))
	copy(out, records)
	return out, nil
}

// DeleteAll drops the user's collection and index entries.
func (p *Provider) DeleteAll(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.collections[userID]; exists {
		if err := p.db.DeleteCollection(p.collectionName(userID)); err != nil {
			return fmt.Errorf("chromem: delete collection: %w", err)
		}
		delete(p.collections, userID)
	}
	for _, rec := range p.records[userID] {
		delete(p.byID, rec.ID)
	}
	delete(p.records, userID)
	return nil
}

// Reset wipes every collection and the index.
func (p *Provider) Reset(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.db.Reset(); err != nil {
		return fmt.Errorf("chromem: reset: %w", err)
	}
	p.collections = make(map[string]*chromem.Collection)
	p.records = make(map[string][]memory.Record)
	p.byID = make(map[string]memory.Record)
	return nil
}

// Close releases resources. chromem keeps everything in memory, so there is
// nothing to flush.
func (p *Provider) Close() error {
	return nil
}

// docMetadata flattens a record into chromem's string-valued document
// metadata so filters can match on it.
func docMetadata(userID string, rec memory.Record) map[string]string {
	md := map[string]string{
		"owner_id":   userID,
		"created_at": rec.CreatedAt.Format(time.RFC3339),
	}
	for k, v := range rec.Metadata {
		if s, ok := v.(string); ok {
			md[k] = s
			continue
		}
		if b, err := json.Marshal(v); err == nil {
			md[k] = string(b)
		}
	}
	return md
}

// isInsufficientDocsError reports whether the query failed because it asked
// for more results than the collection holds.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
