// Package local implements the fallback memory store: a single JSON file
// with lexical substring search. It has no external dependencies and is
// used only when the vector provider cannot be constructed.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/unimem/unimem/memory"
)

// FileName is the store file created inside the data directory.
const FileName = "memories.json"

// idPrefix is the prefix of every locally assigned record ID.
const idPrefix = "local_"

// Store is a file-backed record store. Every operation re-reads the full
// file; writes rewrite it through a temporary file and an atomic rename.
// A mutex serializes mutations, so concurrent callers within one process
// cannot lose updates. Cross-process writers are not coordinated.
type Store struct {
	path string

	mu        sync.Mutex
	corrupted bool
}

// New creates a Store rooted at dataDir, creating the directory if needed.
// The store file itself is created lazily on first write.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("local: init directory %s: %w", dataDir, err)
	}
	return &Store{path: filepath.Join(dataDir, FileName)}, nil
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// Store appends a record with the given content and metadata and persists
// the whole file. It returns the new record's ID, which carries a numeric
// suffix strictly greater than any suffix already on disk.
func (s *Store) Store(_ context.Context, content string, metadata map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	if metadata == nil {
		metadata = map[string]any{}
	}
	rec := memory.Record{
		ID:        idPrefix + strconv.Itoa(maxSuffix(records)+1),
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	records = append(records, rec)
	if err := s.save(records); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Search returns every record whose lower-cased content contains the
// lower-cased query, scored by occurrences(query) / wordCount(content) and
// sorted by descending score. Ties keep insertion order. At most limit
// results are returned; limit <= 0 means 5. An empty query matches nothing.
func (s *Store) Search(_ context.Context, query string, limit int) ([]memory.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	q := strings.ToLower(query)
	if q == "" {
		return nil, nil
	}

	s.mu.Lock()
	records := s.load()
	s.mu.Unlock()

	var matches []memory.SearchResult
	for _, rec := range records {
		content := strings.ToLower(rec.Content)
		if !strings.Contains(content, q) {
			continue
		}
		var score float64
		if words := len(strings.Fields(content)); words > 0 {
			score = float64(strings.Count(content, q)) / float64(words)
		}
		matches = append(matches, memory.SearchResult{
			ID:        rec.ID,
			Content:   rec.Content,
			Score:     score,
			Metadata:  rec.Metadata,
			CreatedAt: rec.CreatedAt,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// GetAll returns every record in file (= insertion) order.
func (s *Store) GetAll(_ context.Context) ([]memory.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

// Count reports the number of persisted records.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.load()), nil
}

// Clear overwrites the store with an empty array.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save([]memory.Record{})
}

// Corrupted reports whether any load discarded an unparseable store file.
func (s *Store) Corrupted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corrupted
}

// load reads the full record file. A missing file is an empty store. An
// unparseable file is also treated as empty ("fail open"), but unlike the
// missing-file case it is logged and remembered so /api/stats can surface
// the data loss. Callers must hold s.mu.
func (s *Store) load() []memory.Record {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		slog.Warn("local: unreadable store file, treating as empty", "path", s.path, "err", err)
		s.corrupted = true
		return nil
	}
	var records []memory.Record
	if err := json.Unmarshal(b, &records); err != nil {
		slog.Warn("local: corrupt store file, treating as empty", "path", s.path, "err", err)
		s.corrupted = true
		return nil
	}
	return records
}

// save serializes records and atomically replaces the store file, so a
// crash mid-write never leaves a truncated file behind.
func (s *Store) save(records []memory.Record) error {
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("local: marshal records: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("local: write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("local: atomic rename %s: %w", s.path, err)
	}
	return nil
}

// maxSuffix returns the largest numeric suffix among locally assigned IDs,
// or 0 for an empty store. Deriving the next ID from the maximum rather
// than the record count keeps IDs unique even after partial clears or
// hand-edited files.
func maxSuffix(records []memory.Record) int {
	max := 0
	for _, rec := range records {
		if !strings.HasPrefix(rec.ID, idPrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(rec.ID, idPrefix))
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max
}
