package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Backend identifies which storage path a Client is using.
type Backend string

const (
	// BackendVector means the primary vector provider is active.
	BackendVector Backend = "vector"

	// BackendLocal means the client fell back to the local JSON store.
	BackendLocal Backend = "local"
)

// Client is the per-process memory handle. It routes every operation to the
// vector Provider when one was constructed, and to the Fallback store
// otherwise. Construct it once at startup and pass it to whichever layer
// needs it.
type Client struct {
	provider    Provider
	fallback    Fallback
	extractor   FactExtractor
	defaultUser string
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithDefaultUser sets the user ID substituted when callers pass an empty
// one. Defaults to "default-user".
func WithDefaultUser(userID string) Option {
	return func(c *Client) {
		if userID != "" {
			c.defaultUser = userID
		}
	}
}

// WithExtractor enables LLM fact extraction on Add.
func WithExtractor(e FactExtractor) Option {
	return func(c *Client) {
		c.extractor = e
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Client. provider may be nil, in which case every
// operation uses the fallback store; fallback must not be nil.
func NewClient(provider Provider, fallback Fallback, opts ...Option) *Client {
	c := &Client{
		provider:    provider,
		fallback:    fallback,
		defaultUser: "default-user",
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend reports which storage path this client uses.
func (c *Client) Backend() Backend {
	if c.provider != nil {
		return BackendVector
	}
	return BackendLocal
}

// Add stores content as one or more memories and returns their IDs. When a
// fact extractor is configured, each extracted fact becomes its own record;
// extraction failure stores the raw content instead.
func (c *Client) Add(ctx context.Context, userID string, content string, metadata map[string]any) ([]string, error) {
	if content == "" {
		return nil, fmt.Errorf("memory: empty content")
	}
	userID = c.user(userID)
	if metadata == nil {
		metadata = map[string]any{}
	}

	contents := []string{content}
	if c.extractor != nil {
		facts, err := c.extractor.Extract(ctx, content)
		switch {
		case err != nil:
			c.logger.Warn("fact extraction failed, storing raw content", "err", err)
		case len(facts) > 0:
			contents = facts
		}
	}

	ids := make([]string, 0, len(contents))
	for _, text := range contents {
		id, err := c.add(ctx, userID, text, metadata)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	c.logger.Debug("stored memories", "user", userID, "count", len(ids), "backend", c.Backend())
	return ids, nil
}

func (c *Client) add(ctx context.Context, userID, content string, metadata map[string]any) (string, error) {
	if c.provider != nil {
		return c.provider.Add(ctx, userID, content, metadata)
	}
	return c.fallback.Store(ctx, content, metadata)
}

// Search returns ranked matches for query. limit <= 0 means 5. filters only
// apply on the vector backend; the local store ignores them.
func (c *Client) Search(ctx context.Context, userID string, query string, limit int, filters map[string]string) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	if c.provider != nil {
		return c.provider.Search(ctx, c.user(userID), query, limit, filters)
	}
	return c.fallback.Search(ctx, query, limit)
}

// GetAll returns every stored record for the user in insertion order.
func (c *Client) GetAll(ctx context.Context, userID string) ([]Record, error) {
	if c.provider != nil {
		return c.provider.GetAll(ctx, c.user(userID))
	}
	return c.fallback.GetAll(ctx)
}

// DeleteAll removes every record for the user. On the local backend this
// clears the whole single-user store.
func (c *Client) DeleteAll(ctx context.Context, userID string) error {
	if c.provider != nil {
		return c.provider.DeleteAll(ctx, c.user(userID))
	}
	return c.fallback.Clear(ctx)
}

// Clear wipes every record on the active backend, across all users.
func (c *Client) Clear(ctx context.Context) error {
	if c.provider != nil {
		return c.provider.Reset(ctx)
	}
	return c.fallback.Clear(ctx)
}

// HasExtractor reports whether adds pass through fact extraction.
func (c *Client) HasExtractor() bool {
	return c.extractor != nil
}

// GetContext searches for topic and formats the top hits as a numbered
// context block ready for prompt injection.
func (c *Client) GetContext(ctx context.Context, userID string, topic string, limit int) (string, error) {
	if limit <= 0 {
		limit = 3
	}
	results, err := c.Search(ctx, userID, topic, limit, nil)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return fmt.Sprintf("No memory found for: %s", topic), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Relevant context for '%s':", topic)
	for i, r := range results {
		if r.Content == "" {
			continue
		}
		fmt.Fprintf(&b, "\n%d. %s", i+1, r.Content)
	}
	return b.String(), nil
}

// Stats summarizes the state of the active backend.
type Stats struct {
	Backend        Backend `json:"backend"`
	Count          int     `json:"count"`
	CorruptedStore bool    `json:"corrupted_store"`
}

// Stats reports record count and health for the user's namespace.
func (c *Client) Stats(ctx context.Context, userID string) (Stats, error) {
	s := Stats{Backend: c.Backend()}
	if c.provider != nil {
		records, err := c.provider.GetAll(ctx, c.user(userID))
		if err != nil {
			return s, err
		}
		s.Count = len(records)
		return s, nil
	}
	n, err := c.fallback.Count(ctx)
	if err != nil {
		return s, err
	}
	s.Count = n
	s.CorruptedStore = c.fallback.Corrupted()
	return s, nil
}

// Close releases provider resources.
func (c *Client) Close() error {
	if c.provider != nil {
		return c.provider.Close()
	}
	return nil
}

func (c *Client) user(userID string) string {
	if userID == "" {
		return c.defaultUser
	}
	return userID
}
