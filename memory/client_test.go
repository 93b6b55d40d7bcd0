package memory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider records calls so tests can assert routing and user
// defaulting without a real vector store.
type fakeProvider struct {
	records   map[string][]Record
	nextID    int
	lastQuery string
	lastUser  string
	resetHit  bool
	closed    bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{records: make(map[string][]Record)}
}

func (f *fakeProvider) Add(_ context.Context, userID, content string, metadata map[string]any) (string, error) {
	f.nextID++
	id := "vec_" + strconv.Itoa(f.nextID)
	f.lastUser = userID
	f.records[userID] = append(f.records[userID], Record{
		ID: id, Content: content, Metadata: metadata, CreatedAt: time.Now(),
	})
	return id, nil
}

func (f *fakeProvider) Search(_ context.Context, userID, query string, limit int, _ map[string]string) ([]SearchResult, error) {
	f.lastQuery = query
	f.lastUser = userID
	var out []SearchResult
	for _, rec := range f.records[userID] {
		out = append(out, SearchResult{ID: rec.ID, Content: rec.Content, Score: 0.9})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeProvider) GetAll(_ context.Context, userID string) ([]Record, error) {
	f.lastUser = userID
	return f.records[userID], nil
}

func (f *fakeProvider) DeleteAll(_ context.Context, userID string) error {
	f.lastUser = userID
	delete(f.records, userID)
	return nil
}

func (f *fakeProvider) Reset(_ context.Context) error {
	f.resetHit = true
	f.records = make(map[string][]Record)
	return nil
}

func (f *fakeProvider) Close() error {
	f.closed = true
	return nil
}

// fakeFallback is an in-memory stand-in for the JSON-file store.
type fakeFallback struct {
	records   []Record
	corrupted bool
}

func (f *fakeFallback) Store(_ context.Context, content string, metadata map[string]any) (string, error) {
	id := fmt.Sprintf("local_%d", len(f.records)+1)
	f.records = append(f.records, Record{ID: id, Content: content, Metadata: metadata, CreatedAt: time.Now()})
	return id, nil
}

func (f *fakeFallback) Search(_ context.Context, query string, limit int) ([]SearchResult, error) {
	var out []SearchResult
	for _, rec := range f.records {
		out = append(out, SearchResult{ID: rec.ID, Content: rec.Content, Score: 0.5})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeFallback) GetAll(_ context.Context) ([]Record, error) { return f.records, nil }

func (f *fakeFallback) Clear(_ context.Context) error {
	f.records = nil
	return nil
}

func (f *fakeFallback) Count(_ context.Context) (int, error) { return len(f.records), nil }

func (f *fakeFallback) Corrupted() bool { return f.corrupted }

// fakeExtractor returns canned facts or an error.
type fakeExtractor struct {
	facts []string
	err   error
}

func (f *fakeExtractor) Extract(context.Context, string) ([]string, error) {
	return f.facts, f.err
}

func TestBackendSelection(t *testing.T) {
	local := NewClient(nil, &fakeFallback{})
	assert.Equal(t, BackendLocal, local.Backend())

	vector := NewClient(newFakeProvider(), &fakeFallback{})
	assert.Equal(t, BackendVector, vector.Backend())
}

func TestAddRoutesToProvider(t *testing.T) {
	provider := newFakeProvider()
	c := NewClient(provider, &fakeFallback{})

	ids, err := c.Add(context.Background(), "alice", "a fact", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"vec_1"}, ids)
	assert.Equal(t, "alice", provider.lastUser)
}

func TestAddDefaultsUser(t *testing.T) {
	provider := newFakeProvider()
	c := NewClient(provider, &fakeFallback{}, WithDefaultUser("team"))

	_, err := c.Add(context.Background(), "", "a fact", nil)
	require.NoError(t, err)
	assert.Equal(t, "team", provider.lastUser)
}

func TestAddEmptyContent(t *testing.T) {
	c := NewClient(nil, &fakeFallback{})
	_, err := c.Add(context.Background(), "", "", nil)
	assert.Error(t, err)
}

func TestAddWithExtractorStoresEachFact(t *testing.T) {
	fallback := &fakeFallback{}
	c := NewClient(nil, fallback, WithExtractor(&fakeExtractor{
		facts: []string{"User lives in Lisbon", "User prefers tea"},
	}))

	ids, err := c.Add(context.Background(), "", "long rambling chat transcript", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"local_1", "local_2"}, ids)
	require.Len(t, fallback.records, 2)
	assert.Equal(t, "User lives in Lisbon", fallback.records[0].Content)
}

func TestAddExtractorFailureStoresRaw(t *testing.T) {
	fallback := &fakeFallback{}
	c := NewClient(nil, fallback, WithExtractor(&fakeExtractor{err: errors.New("api down")}))

	ids, err := c.Add(context.Background(), "", "the raw content", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"local_1"}, ids)
	require.Len(t, fallback.records, 1)
	assert.Equal(t, "the raw content", fallback.records[0].Content)
}

func TestAddExtractorNoFactsStoresRaw(t *testing.T) {
	fallback := &fakeFallback{}
	c := NewClient(nil, fallback, WithExtractor(&fakeExtractor{}))

	_, err := c.Add(context.Background(), "", "hi there", nil)
	require.NoError(t, err)
	require.Len(t, fallback.records, 1)
	assert.Equal(t, "hi there", fallback.records[0].Content)
}

func TestSearchDefaultLimit(t *testing.T) {
	fallback := &fakeFallback{}
	c := NewClient(nil, fallback)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		_, err := c.Add(ctx, "", fmt.Sprintf("memory %d", i), nil)
		require.NoError(t, err)
	}

	results, err := c.Search(ctx, "", "memory", 0, nil)
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestDeleteAllRouting(t *testing.T) {
	provider := newFakeProvider()
	c := NewClient(provider, &fakeFallback{})
	ctx := context.Background()

	_, err := c.Add(ctx, "alice", "gone soon", nil)
	require.NoError(t, err)
	require.NoError(t, c.DeleteAll(ctx, "alice"))
	records, err := c.GetAll(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestClearResetsProvider(t *testing.T) {
	provider := newFakeProvider()
	c := NewClient(provider, &fakeFallback{})

	require.NoError(t, c.Clear(context.Background()))
	assert.True(t, provider.resetHit)
}

func TestGetContextFormatting(t *testing.T) {
	fallback := &fakeFallback{}
	c := NewClient(nil, fallback)
	ctx := context.Background()

	_, err := c.Add(ctx, "", "The auth service rotates JWT keys", nil)
	require.NoError(t, err)
	_, err = c.Add(ctx, "", "Auth tokens expire after one hour", nil)
	require.NoError(t, err)

	block, err := c.GetContext(ctx, "", "auth", 3)
	require.NoError(t, err)
	assert.Equal(t,
		"Relevant context for 'auth':\n1. The auth service rotates JWT keys\n2. Auth tokens expire after one hour",
		block)
}

func TestGetContextNoResults(t *testing.T) {
	c := NewClient(nil, &fakeFallback{})
	block, err := c.GetContext(context.Background(), "", "anything", 3)
	require.NoError(t, err)
	assert.Equal(t, "No memory found for: anything", block)
}

func TestStatsLocal(t *testing.T) {
	fallback := &fakeFallback{corrupted: true}
	c := NewClient(nil, fallback)
	ctx := context.Background()

	_, err := c.Add(ctx, "", "one", nil)
	require.NoError(t, err)

	stats, err := c.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, stats.Backend)
	assert.Equal(t, 1, stats.Count)
	assert.True(t, stats.CorruptedStore)
}

func TestStatsVector(t *testing.T) {
	provider := newFakeProvider()
	c := NewClient(provider, &fakeFallback{})
	ctx := context.Background()

	_, err := c.Add(ctx, "alice", "one", nil)
	require.NoError(t, err)

	stats, err := c.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, BackendVector, stats.Backend)
	assert.Equal(t, 1, stats.Count)
	assert.False(t, stats.CorruptedStore)
}

func TestCloseDelegates(t *testing.T) {
	provider := newFakeProvider()
	c := NewClient(provider, &fakeFallback{})
	require.NoError(t, c.Close())
	assert.True(t, provider.closed)

	local := NewClient(nil, &fakeFallback{})
	require.NoError(t, local.Close())
}
