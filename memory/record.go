package memory

import (
	"encoding/json"
	"time"
)

// Record is one stored memory entry.
//
// The JSON shape is the on-disk contract of the fallback store file: a
// single array of objects with keys "id", "content", "metadata" and
// "timestamp". Timestamps serialize as RFC 3339 strings.
type Record struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"timestamp"`
}

// recordJSON is the wire form of Record. The timestamp field is kept as a
// plain string on decode so that files written by older tools (which stored
// free-form timestamp strings) still load instead of failing the whole
// array parse.
type recordJSON struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp string         `json:"timestamp"`
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		ID:        r.ID,
		Content:   r.Content,
		Metadata:  r.Metadata,
		Timestamp: r.CreatedAt.Format(time.RFC3339),
	})
}

// UnmarshalJSON implements json.Unmarshaler. Unparseable timestamps decode
// to the zero time rather than rejecting the record.
func (r *Record) UnmarshalJSON(b []byte) error {
	var w recordJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	r.ID = w.ID
	r.Content = w.Content
	r.Metadata = w.Metadata
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	if t, err := time.Parse(time.RFC3339, w.Timestamp); err == nil {
		r.CreatedAt = t
	} else if t, err := time.Parse(time.RFC3339Nano, w.Timestamp); err == nil {
		r.CreatedAt = t
	} else {
		r.CreatedAt = time.Time{}
	}
	return nil
}

// SearchResult is one ranked hit from Search.
//
// For the vector provider Score is cosine similarity in [0, 1]. For the
// fallback store it is the substring-frequency heuristic
// occurrences(query) / wordCount(content). Scores from the two backends are
// not comparable with each other.
type SearchResult struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Score     float64        `json:"score"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitzero"`
}
