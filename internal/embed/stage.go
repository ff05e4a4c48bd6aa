package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caselaw-pt/lexpipe/internal/chunk"
	"github.com/caselaw-pt/lexpipe/internal/ledger"
)

// Stage embeds every chunk whose content hash is not yet in the embedding
// ledger. Vectors are appended to the array and metadata rows to the
// ledger in matching order; the two must never diverge.
type Stage struct {
	chunkDir  string
	chunked   *ledger.Ledger
	embedded  *ledger.Ledger
	store     *VectorStore
	embedder  Embedder
	batchSize int
	logger    *slog.Logger
}

// New creates an embed stage. batchSize drives flushing by a running
// counter across all pending chunks, so a flush can land mid-document.
func New(chunkDir string, chunked, embedded *ledger.Ledger, store *VectorStore, embedder Embedder, batchSize int, logger *slog.Logger) *Stage {
	if batchSize <= 0 {
		batchSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{
		chunkDir:  chunkDir,
		chunked:   chunked,
		embedded:  embedded,
		store:     store,
		embedder:  embedder,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run embeds all pending chunks and returns how many vectors were added.
func (s *Stage) Run(ctx context.Context) (int, error) {
	if err := s.checkParity(); err != nil {
		return 0, err
	}

	if s.chunked.Len() == 0 {
		s.logger.Info("no chunks to embed")
		return 0, nil
	}

	// chunk_id -> ledger entry, for hash and processed-path lookups
	byChunkID := make(map[string]ledger.ChunkRecord, s.chunked.Len())
	for _, row := range s.chunked.Rows() {
		rec, err := ledger.ChunkFromFields(row)
		if err != nil {
			return 0, fmt.Errorf("read chunked ledger row: %w", err)
		}
		byChunkID[rec.ChunkID] = rec
	}

	chunks, err := chunk.ReadAll(s.chunkDir)
	if err != nil {
		return 0, fmt.Errorf("load chunks: %w", err)
	}

	var (
		texts   []string
		pending []ledger.EmbeddingRecord
		seen    = make(map[string]struct{}) // hashes queued this run
		total   = 0
	)

	flush := func() error {
		if len(texts) == 0 {
			return nil
		}
		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		if len(vectors) != len(pending) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(pending))
		}

		if err := s.store.Append(vectors); err != nil {
			return err
		}
		for _, rec := range pending {
			if err := s.embedded.Append(rec.Fields()); err != nil {
				return fmt.Errorf("append embedding ledger: %w", err)
			}
		}
		if err := s.checkParity(); err != nil {
			return err
		}

		total += len(pending)
		s.logger.Info("embedded batch", "chunks", len(pending), "total", total)
		texts = texts[:0]
		pending = pending[:0]
		return nil
	}

	for _, c := range chunks {
		meta, ok := byChunkID[c.ChunkID]
		if !ok {
			s.logger.Warn("chunk has no ledger entry, skipping", "chunk", c.ChunkID)
			continue
		}
		if s.embedded.Contains(meta.Hash) {
			continue
		}
		if _, queued := seen[meta.Hash]; queued {
			continue
		}
		seen[meta.Hash] = struct{}{}

		texts = append(texts, c.Content)
		pending = append(pending, ledger.EmbeddingRecord{
			DocID:            c.DocID,
			DocProcessedPath: meta.DocProcessedPath,
			ChunkID:          c.ChunkID,
			ChunkHash:        meta.Hash,
			Timestamp:        time.Now().UTC(),
		})

		if len(texts) == s.batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// checkParity verifies the critical invariant that the embedding ledger
// and the vector array have the same number of rows.
func (s *Stage) checkParity() error {
	rows, err := s.store.Rows()
	if err != nil {
		return err
	}
	if rows != s.embedded.Len() {
		return fmt.Errorf("%w: ledger has %d rows, array has %d", ErrVectorParity, s.embedded.Len(), rows)
	}
	return nil
}
