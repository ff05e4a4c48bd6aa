package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/caselaw-pt/lexpipe/internal/ledger"
)

// Stage converts every raw document not yet in the processed ledger into
// normalized plain text under processedDir.
type Stage struct {
	raw          *ledger.Ledger
	processed    *ledger.Ledger
	processedDir string
	logger       *slog.Logger
}

// New creates an extract stage.
func New(raw, processed *ledger.Ledger, processedDir string, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{
		raw:          raw,
		processed:    processed,
		processedDir: processedDir,
		logger:       logger,
	}
}

// Run processes all pending raw documents and returns how many were
// extracted. Resumability is keyed on document id: a document already in
// the processed ledger is skipped regardless of its current source bytes.
func (s *Stage) Run() (int, error) {
	if err := os.MkdirAll(s.processedDir, 0o755); err != nil {
		return 0, fmt.Errorf("create processed dir: %w", err)
	}

	count := 0
	for _, row := range s.raw.Rows() {
		rec, err := ledger.RawFromFields(row)
		if err != nil {
			return count, fmt.Errorf("read raw ledger row: %w", err)
		}

		if s.processed.Contains(rec.ID) {
			continue
		}

		targetPath := filepath.Join(s.processedDir, rec.ID+".txt")

		text, err := Decode(rec.FilePath)
		if err != nil {
			s.logger.Warn("extraction failed", "id", rec.ID, "path", rec.FilePath, "error", err)
			continue
		}
		text = Clean(text)

		if err := os.WriteFile(targetPath, []byte(text), 0o644); err != nil {
			return count, fmt.Errorf("write processed text: %w", err)
		}

		sum := sha256.Sum256([]byte(text))
		out := ledger.ProcessedRecord{
			ID:         rec.ID,
			SourcePath: rec.FilePath,
			TargetPath: targetPath,
			Timestamp:  time.Now().UTC(),
			SourceHash: rec.Hash,
			TargetHash: hex.EncodeToString(sum[:]),
		}
		if err := s.processed.Append(out.Fields()); err != nil {
			return count, fmt.Errorf("append processed ledger: %w", err)
		}

		s.logger.Info("extracted document", "id", rec.ID, "target", targetPath)
		count++
	}
	return count, nil
}
