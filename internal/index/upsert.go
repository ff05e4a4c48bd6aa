package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caselaw-pt/lexpipe/internal/ledger"
)

// Upserter loads pending (embedding, chunk, metadata) triples into the
// vector index in fixed-size batches, skipping chunk ids already
// resident. This is the terminal dedup gate: even if earlier stages
// reprocessed a chunk, the index never holds two entries for one id.
type Upserter struct {
	index     VectorIndex
	batchSize int
	logger    *slog.Logger
}

// NewUpserter creates an upsert stage over the given index.
func NewUpserter(idx VectorIndex, batchSize int, logger *slog.Logger) *Upserter {
	if batchSize <= 0 {
		batchSize = 128
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Upserter{index: idx, batchSize: batchSize, logger: logger}
}

// Run inserts every embedding-ledger row whose chunk id is not yet in the
// index. records and vectors are positionally paired (ledger order ==
// array order); texts maps chunk id to chunk content. Returns the number
// of entries inserted; nothing pending is a logged no-op, not an error.
func (u *Upserter) Run(ctx context.Context, records []ledger.EmbeddingRecord, vectors [][]float32, texts map[string]string) (int, error) {
	if len(records) != len(vectors) {
		return 0, fmt.Errorf("embedding ledger has %d rows but vector array has %d", len(records), len(vectors))
	}

	if err := u.index.EnsureCollection(ctx); err != nil {
		return 0, fmt.Errorf("ensure collection: %w", err)
	}

	resident, err := u.index.ListChunkIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list resident ids: %w", err)
	}

	var pending []Entry
	for i, rec := range records {
		if _, ok := resident[rec.ChunkID]; ok {
			continue
		}
		pending = append(pending, Entry{
			ChunkID:          rec.ChunkID,
			Vector:           vectors[i],
			Text:             texts[rec.ChunkID],
			DocID:            rec.DocID,
			DocProcessedPath: rec.DocProcessedPath,
			ChunkHash:        rec.ChunkHash,
			Timestamp:        rec.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	if len(pending) == 0 {
		u.logger.Info("nothing new to insert")
		return 0, nil
	}

	inserted := 0
	for start := 0; start < len(pending); start += u.batchSize {
		end := min(start+u.batchSize, len(pending))
		batch := pending[start:end]
		if err := u.index.Upsert(ctx, batch); err != nil {
			return inserted, fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
		inserted += len(batch)
	}

	u.logger.Info("insertion complete", "inserted", inserted, "already_resident", len(records)-len(pending))
	return inserted, nil
}
