// Package index implements the terminal pipeline stage: loading
// embeddings into the vector index and deduplicating against ids already
// resident there.
package index

import "context"

// Entry is one chunk ready for insertion into the vector index.
type Entry struct {
	ChunkID          string
	Vector           []float32
	Text             string // chunk content, stored alongside the vector
	DocID            string
	DocProcessedPath string
	ChunkHash        string
	Timestamp        string
}

// Hit is one ranked result from a similarity query.
type Hit struct {
	ChunkID string
	DocID   string
	Score   float32
	Text    string
}

// VectorIndex is the surface the pipeline consumes from the vector
// database. The Qdrant implementation is the production backend; tests
// substitute an in-memory one.
type VectorIndex interface {
	// EnsureCollection creates the collection if absent. Idempotent.
	EnsureCollection(ctx context.Context) error
	// ListChunkIDs returns the chunk ids already resident in the index.
	ListChunkIDs(ctx context.Context) (map[string]struct{}, error)
	// Upsert inserts entries, keyed by chunk id. Re-inserting an existing
	// id overwrites rather than duplicates.
	Upsert(ctx context.Context, entries []Entry) error
	// Query returns the k nearest chunks to vector.
	Query(ctx context.Context, vector []float32, k int) ([]Hit, error)
}
