package index

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantIndex backs VectorIndex with a Qdrant collection over gRPC.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dim        uint64
}

// NewQdrantIndex connects to Qdrant and validates reachability with a
// health check, retrying with exponential backoff before failing fast.
func NewQdrantIndex(host string, port int, collection string, dim int) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	idx := &QdrantIndex{
		client:     client,
		collection: collection,
		dim:        uint64(dim),
	}

	if err := idx.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return idx, nil
}

func (q *QdrantIndex) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		result, err := q.client.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if result == nil || result.Title == "" {
			return fmt.Errorf("health check returned invalid response")
		}
		return nil
	}, backoff.WithContext(b, ctx))
}

// Close closes the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}

// EnsureCollection creates the collection with cosine distance if it does
// not exist yet. Safe to call on every run.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	collections, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range collections {
		if name == q.collection {
			return nil
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.dim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// ListChunkIDs scrolls the whole collection and returns the chunk ids
// already resident. Only the chunk_id payload field is transferred.
func (q *QdrantIndex) ListChunkIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	var offset *qdrant.PointId
	batchSize := uint32(256)

	for {
		results, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude("chunk_id"),
		})
		if err != nil {
			return nil, fmt.Errorf("scroll chunk ids: %w", err)
		}

		for _, point := range results {
			if id := point.Payload["chunk_id"].GetStringValue(); id != "" {
				ids[id] = struct{}{}
			}
		}

		if uint32(len(results)) < batchSize {
			return ids, nil
		}
		offset = results[len(results)-1].Id
	}
}

// Upsert inserts entries keyed by a deterministic UUID of the chunk id,
// so repeating an insert can never duplicate a chunk.
func (q *QdrantIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		if uint64(len(e.Vector)) != q.dim {
			return fmt.Errorf("%w: entry %s has %d dims, want %d", ErrDimensionMismatch, e.ChunkID, len(e.Vector), q.dim)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(e.ChunkID)),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"chunk_id":           e.ChunkID,
				"doc_id":             e.DocID,
				"doc_processed_path": e.DocProcessedPath,
				"chunk_hash":         e.ChunkHash,
				"timestamp":          e.Timestamp,
				"content":            e.Text,
			}),
		}
	}

	return q.upsertWithRetry(ctx, points)
}

func (q *QdrantIndex) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         points,
		})
		return err
	}, backoff.WithContext(b, ctx))
}

// Query returns the k nearest chunks to vector by cosine similarity.
func (q *QdrantIndex) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if uint64(len(vector)) != q.dim {
		return nil, fmt.Errorf("%w: query has %d dims, want %d", ErrDimensionMismatch, len(vector), q.dim)
	}

	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ChunkID: r.Payload["chunk_id"].GetStringValue(),
			DocID:   r.Payload["doc_id"].GetStringValue(),
			Score:   r.Score,
			Text:    r.Payload["content"].GetStringValue(),
		})
	}
	return hits, nil
}

// pointID derives a stable UUID from a chunk id. Qdrant point ids must be
// UUIDs or integers; a name-based UUID keeps them reproducible across
// runs.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}
