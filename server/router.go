package server

import (
	"encoding/json"
	"net/http"
)

// NewRouter wires the API routes and middleware.
func NewRouter(handler *Handler, hub *Hub) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/health", Wrap(handler.Health))

	mux.Handle("POST /api/memories", Wrap(handler.AddMemory))
	mux.Handle("POST /api/memories/search", Wrap(handler.SearchMemories))
	mux.Handle("GET /api/memories", Wrap(handler.ListMemories))
	mux.Handle("DELETE /api/memories", Wrap(handler.DeleteMemories))
	mux.Handle("POST /api/memories/clear", Wrap(handler.ClearMemories))
	mux.Handle("GET /api/memories/events", hub)

	mux.Handle("GET /api/context", Wrap(handler.GetContext))
	mux.Handle("GET /api/stats", Wrap(handler.GetStats))

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"service": "unimem",
			"version": Version,
			"health":  "/api/health",
		})
	})

	return corsMiddleware(mux)
}

// corsMiddleware allows any origin; the API carries no credentials.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
