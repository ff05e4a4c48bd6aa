package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caselaw-pt/lexpipe/internal/ledger"
)

// Stage chunks every processed document not yet in the chunked ledger.
// Resumability is whole-document: there is no partial-document resume.
type Stage struct {
	processed *ledger.Ledger
	chunked   *ledger.Ledger
	writer    *FileWriter
	chunker   *Chunker
	logger    *slog.Logger
}

// New creates a chunk stage.
func New(processed, chunked *ledger.Ledger, writer *FileWriter, chunker *Chunker, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{
		processed: processed,
		chunked:   chunked,
		writer:    writer,
		chunker:   chunker,
		logger:    logger,
	}
}

// Run chunks all pending documents and returns the number of chunks
// created.
func (s *Stage) Run() (int, error) {
	total := 0
	for _, row := range s.processed.Rows() {
		rec, err := ledger.ProcessedFromFields(row)
		if err != nil {
			return total, fmt.Errorf("read processed ledger row: %w", err)
		}

		if s.chunked.Contains(rec.ID) {
			s.logger.Debug("already chunked", "doc", rec.ID)
			continue
		}

		text, err := os.ReadFile(rec.TargetPath)
		if err != nil {
			s.logger.Warn("processed file unreadable", "doc", rec.ID, "path", rec.TargetPath, "error", err)
			continue
		}

		chunks := s.chunker.Split(string(text))
		if len(chunks) == 0 {
			s.logger.Warn("document produced no chunks", "doc", rec.ID)
			continue
		}

		fileChunks := make([]FileChunk, len(chunks))
		for i, c := range chunks {
			fileChunks[i] = FileChunk{
				DocID:      rec.ID,
				ChunkID:    fmt.Sprintf("%s_%d", rec.ID, c.Index),
				ChunkIndex: c.Index,
				Tokens:     c.TokenCount,
				Content:    c.Content,
			}
		}
		if err := s.writer.Append(fileChunks); err != nil {
			return total, fmt.Errorf("write chunks for %s: %w", rec.ID, err)
		}

		for i, fc := range fileChunks {
			sum := sha256.Sum256([]byte(fc.Content))
			entry := ledger.ChunkRecord{
				DocID:            fc.DocID,
				ChunkID:          fc.ChunkID,
				ChunkIndex:       fc.ChunkIndex,
				Timestamp:        time.Now().UTC(),
				DocProcessedPath: rec.TargetPath,
				Hash:             hex.EncodeToString(sum[:]),
			}
			if err := s.chunked.Append(entry.Fields()); err != nil {
				return total, fmt.Errorf("append chunked ledger (chunk %d of %s): %w", i, rec.ID, err)
			}
		}

		s.logger.Info("chunked document", "doc", rec.ID, "chunks", len(chunks))
		total += len(chunks)
	}
	return total, nil
}
