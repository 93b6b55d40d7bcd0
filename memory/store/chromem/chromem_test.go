package chromem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unimem/unimem/memory/embedder/mock"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(mock.New())
	require.NoError(t, err)
	return p
}

func TestNewRequiresEmbedder(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestAddAndSearch(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	id, err := p.Add(ctx, "alice", "prefers dark roast coffee", nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	results, err := p.Search(ctx, "alice", "prefers dark roast coffee", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.Equal(t, "prefers dark roast coffee", results[0].Content)
	// The mock embedder is deterministic, so an exact-match query has
	// cosine similarity 1.
	assert.InDelta(t, 1.0, results[0].Score, 1e-4)
	assert.False(t, results[0].CreatedAt.IsZero())
}

func TestSearchEmptyCollection(t *testing.T) {
	p := newTestProvider(t)

	results, err := p.Search(context.Background(), "nobody", "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchLimitShrinksToCollectionSize(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.Add(ctx, "alice", "first memory", nil)
	require.NoError(t, err)
	_, err = p.Add(ctx, "alice", "second memory", nil)
	require.NoError(t, err)

	// Asking for more results than stored must not error.
	results, err := p.Search(ctx, "alice", "memory", 10, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestUserIsolation(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.Add(ctx, "alice", "alice's secret", nil)
	require.NoError(t, err)
	_, err = p.Add(ctx, "bob", "bob's secret", nil)
	require.NoError(t, err)

	results, err := p.Search(ctx, "alice", "secret", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alice's secret", results[0].Content)
}

func TestGetAllInsertionOrder(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	contents := []string{"one", "two", "three"}
	for _, c := range contents {
		_, err := p.Add(ctx, "alice", c, nil)
		require.NoError(t, err)
	}

	records, err := p.GetAll(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, contents[i], rec.Content)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	md := map[string]any{"source": "chat", "turn": 7}
	id, err := p.Add(ctx, "alice", "likes hiking", md)
	require.NoError(t, err)

	results, err := p.Search(ctx, "alice", "likes hiking", 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.Equal(t, "chat", results[0].Metadata["source"])

	records, err := p.GetAll(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, md, records[0].Metadata)
}

func TestSearchWithFilters(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.Add(ctx, "alice", "meeting notes from monday", map[string]any{"source": "calendar"})
	require.NoError(t, err)
	_, err = p.Add(ctx, "alice", "meeting notes from friday", map[string]any{"source": "chat"})
	require.NoError(t, err)

	results, err := p.Search(ctx, "alice", "meeting notes", 5, map[string]string{"source": "chat"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "meeting notes from friday", results[0].Content)
}

func TestDeleteAll(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.Add(ctx, "alice", "ephemeral", nil)
	require.NoError(t, err)
	_, err = p.Add(ctx, "bob", "surviving", nil)
	require.NoError(t, err)

	require.NoError(t, p.DeleteAll(ctx, "alice"))

	records, err := p.GetAll(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, records)

	// Deleting again is a no-op.
	require.NoError(t, p.DeleteAll(ctx, "alice"))

	// Other users are untouched.
	records, err = p.GetAll(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	// The user can store again after a wipe.
	_, err = p.Add(ctx, "alice", "fresh start", nil)
	require.NoError(t, err)
}

func TestReset(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.Add(ctx, "alice", "one", nil)
	require.NoError(t, err)
	_, err = p.Add(ctx, "bob", "two", nil)
	require.NoError(t, err)

	require.NoError(t, p.Reset(ctx))

	for _, user := range []string{"alice", "bob"} {
		records, err := p.GetAll(ctx, user)
		require.NoError(t, err)
		assert.Empty(t, records)
	}

	_, err = p.Add(ctx, "alice", "after reset", nil)
	require.NoError(t, err)
}
