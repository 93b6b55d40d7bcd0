// Package memory provides storage and retrieval of agent memories.
//
// A memory is a short piece of text with arbitrary metadata. Memories are
// namespaced by UserID for multi-user support.
//
// Architecture:
//   - Provider: vector-backed primary storage (chromem-go for the embedded
//     case, swappable for a hosted vector database in production)
//   - Embedder: text-to-vector conversion (OpenAI API, or a deterministic
//     mock for offline use and tests)
//   - Fallback: local JSON-file store with lexical search, used when no
//     Provider can be constructed
//   - Client: the single per-process handle that routes between them
//
// The fallback path is deliberately dependency-free: it reads and rewrites
// one JSON file and scores matches by substring frequency. It trades
// sophistication for working everywhere, including air-gapped machines.
package memory
