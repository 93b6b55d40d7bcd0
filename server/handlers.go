package server

import (
	"context"
	"strings"
	"time"

	"github.com/unimem/unimem/memory"
)

// Version is reported by the health, stats, and banner endpoints.
const Version = "0.1.0"

// Handler serves the memory API. All endpoints delegate to a memory.Client
// and publish change events to the hub.
type Handler struct {
	client  *memory.Client
	hub     *Hub
	started time.Time
}

// NewHandler creates a Handler around the given client.
func NewHandler(client *memory.Client, hub *Hub) *Handler {
	return &Handler{
		client:  client,
		hub:     hub,
		started: time.Now(),
	}
}

type healthRequest struct{}

type healthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
	Timestamp string            `json:"timestamp"`
}

// Health reports service liveness and which backend is active.
func (h *Handler) Health(_ context.Context, _ healthRequest) (*healthResponse, error) {
	extractor := "disabled"
	if h.client.HasExtractor() {
		extractor = "enabled"
	}
	return &healthResponse{
		Status:  "ok",
		Version: Version,
		Services: map[string]string{
			"backend":   string(h.client.Backend()),
			"extractor": extractor,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

type addRequest struct {
	Content  string         `json:"content"`
	UserID   string         `json:"user_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type addResponse struct {
	MemoryID  string   `json:"memory_id"`
	MemoryIDs []string `json:"memory_ids"`
	UserID    string   `json:"user_id"`
	Message   string   `json:"message"`
}

// AddMemory stores new content, possibly split into several facts.
func (h *Handler) AddMemory(ctx context.Context, req addRequest) (*addResponse, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, MissingField("content")
	}

	ids, err := h.client.Add(ctx, req.UserID, req.Content, req.Metadata)
	if err != nil {
		return nil, InternalWithError("failed to store memory", err)
	}

	for _, id := range ids {
		h.hub.Broadcast(Event{Type: "add", ID: id, UserID: req.UserID, Content: req.Content})
	}

	resp := &addResponse{
		MemoryIDs: ids,
		UserID:    req.UserID,
		Message:   "Memory stored successfully",
	}
	if len(ids) > 0 {
		resp.MemoryID = ids[0]
	}
	return resp, nil
}

type searchRequest struct {
	Query   string            `json:"query"`
	UserID  string            `json:"user_id,omitempty"`
	Limit   int               `json:"limit,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
}

// SearchMemories returns ranked matches. No hits is an empty array, not an
// error.
func (h *Handler) SearchMemories(ctx context.Context, req searchRequest) (*[]memory.SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, MissingField("query")
	}

	results, err := h.client.Search(ctx, req.UserID, req.Query, req.Limit, req.Filters)
	if err != nil {
		return nil, InternalWithError("search failed", err)
	}
	if results == nil {
		results = []memory.SearchResult{}
	}
	return &results, nil
}

type listRequest struct {
	UserID string `query:"user_id"`
	Limit  int    `query:"limit"`
}

type listResponse struct {
	Memories []memory.Record `json:"memories"`
	Count    int             `json:"count"`
}

// ListMemories returns the user's records in insertion order.
func (h *Handler) ListMemories(ctx context.Context, req listRequest) (*listResponse, error) {
	records, err := h.client.GetAll(ctx, req.UserID)
	if err != nil {
		return nil, InternalWithError("failed to list memories", err)
	}
	if req.Limit > 0 && len(records) > req.Limit {
		records = records[:req.Limit]
	}
	if records == nil {
		records = []memory.Record{}
	}
	return &listResponse{Memories: records, Count: len(records)}, nil
}

type deleteRequest struct {
	UserID string `query:"user_id"`
}

type deleteResponse struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// DeleteMemories removes every record for the user.
func (h *Handler) DeleteMemories(ctx context.Context, req deleteRequest) (*deleteResponse, error) {
	if err := h.client.DeleteAll(ctx, req.UserID); err != nil {
		return nil, InternalWithError("failed to delete memories", err)
	}
	h.hub.Broadcast(Event{Type: "delete", UserID: req.UserID})
	return &deleteResponse{UserID: req.UserID, Message: "Memories deleted"}, nil
}

type clearRequest struct{}

type clearResponse struct {
	Message string `json:"message"`
}

// ClearMemories wipes the whole backend, across all users.
func (h *Handler) ClearMemories(ctx context.Context, _ clearRequest) (*clearResponse, error) {
	if err := h.client.Clear(ctx); err != nil {
		return nil, InternalWithError("failed to clear memories", err)
	}
	h.hub.Broadcast(Event{Type: "delete"})
	return &clearResponse{Message: "All memories cleared"}, nil
}

type contextRequest struct {
	Topic  string `query:"topic"`
	UserID string `query:"user_id"`
	Limit  int    `query:"limit"`
}

type contextResponse struct {
	Topic   string `json:"topic"`
	Context string `json:"context"`
}

// GetContext formats the top matches for a topic as a prompt-ready block.
func (h *Handler) GetContext(ctx context.Context, req contextRequest) (*contextResponse, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, MissingField("topic")
	}

	block, err := h.client.GetContext(ctx, req.UserID, req.Topic, req.Limit)
	if err != nil {
		return nil, InternalWithError("failed to build context", err)
	}
	return &contextResponse{Topic: req.Topic, Context: block}, nil
}

type statsRequest struct {
	UserID string `query:"user_id"`
}

type statsResponse struct {
	Backend        string  `json:"backend"`
	Count          int     `json:"count"`
	CorruptedStore bool    `json:"corrupted_store"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	Version        string  `json:"version"`
}

// GetStats reports backend health and record counts.
func (h *Handler) GetStats(ctx context.Context, req statsRequest) (*statsResponse, error) {
	stats, err := h.client.Stats(ctx, req.UserID)
	if err != nil {
		return nil, InternalWithError("failed to gather stats", err)
	}
	return &statsResponse{
		Backend:        string(stats.Backend),
		Count:          stats.Count,
		CorruptedStore: stats.CorruptedStore,
		UptimeSeconds:  time.Since(h.started).Seconds(),
		Version:        Version,
	}, nil
}
