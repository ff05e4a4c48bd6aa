// Package fetch implements the first pipeline stage: pulling candidate
// documents from source adapters, deduplicating by content hash against
// the raw ledger, and persisting new raw bytes.
package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/caselaw-pt/lexpipe/internal/ledger"
	"github.com/caselaw-pt/lexpipe/internal/source"
)

const (
	// minBodySize rejects truncated downloads and error stubs.
	minBodySize = 64

	// minPDFSize matches the threshold used when probing candidate PDF
	// URLs: anything smaller is an error page, not a document.
	minPDFSize = 20_000
)

var pdfMagic = []byte("%PDF")

// Stage fetches from all configured adapters and records new documents in
// the raw ledger. Adapters run concurrently; ledger appends and file
// writes are serialized through the stage.
type Stage struct {
	ledger   *ledger.Ledger
	rawDir   string
	adapters []source.Adapter
	workers  int
	logger   *slog.Logger

	mu sync.Mutex // guards dedup-check + file write + ledger append
}

// New creates a fetch stage writing under rawDir.
func New(led *ledger.Ledger, rawDir string, adapters []source.Adapter, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{
		ledger:   led,
		rawDir:   rawDir,
		adapters: adapters,
		workers:  4,
		logger:   logger,
	}
}

// Run fetches up to limit items per source (0 means unbounded) and returns
// the count of newly stored documents. Adapter failures are logged per
// source and do not abort the other sources.
func (s *Stage) Run(ctx context.Context, limit int) (int, error) {
	workers := s.workers
	if len(s.adapters) < workers {
		workers = len(s.adapters)
	}
	if workers < 1 {
		return 0, nil
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return 0, fmt.Errorf("create fetch pool: %w", err)
	}
	defer pool.Release()

	var newDocs atomic.Int64
	var wg sync.WaitGroup

	for _, adapter := range s.adapters {
		adapter := adapter
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()

			s.logger.Info("checking source", "source", adapter.Name())
			err := adapter.Fetch(ctx, limit, func(item source.Item) error {
				stored, err := s.store(adapter.Name(), item)
				if err != nil {
					return err
				}
				if stored {
					newDocs.Add(1)
				}
				return nil
			})
			if err != nil {
				s.logger.Warn("source fetch failed", "source", adapter.Name(), "error", err)
			}
		})
		if err != nil {
			wg.Done()
			return int(newDocs.Load()), fmt.Errorf("submit fetch task: %w", err)
		}
	}

	wg.Wait()
	return int(newDocs.Load()), nil
}

// store validates and persists one item. Returns true when the item was
// new and recorded. Identical content already in the ledger is skipped
// without touching the filesystem; invalid bodies are rejected without a
// ledger row so a future run retries them.
func (s *Stage) store(sourceName string, item source.Item) (bool, error) {
	if !validBody(item) {
		s.logger.Warn("rejecting invalid download", "source", sourceName, "url", item.URL, "size", len(item.Body))
		return false, nil
	}

	sum := sha256.Sum256(item.Body)
	contentHash := hex.EncodeToString(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledger.Contains(contentHash) {
		s.logger.Debug("skipping known content", "source", sourceName, "url", item.URL, "hash", contentHash)
		return false, nil
	}

	// The document id is a stable hash of the source-specific identifier,
	// deliberately independent of content so logically distinct documents
	// never collide in the ledger index.
	idSum := sha256.Sum256([]byte(item.ID))
	id := hex.EncodeToString(idSum[:]) + item.Ext

	dir := filepath.Join(s.rawDir, sanitize(sourceName))
	path := filepath.Join(dir, id)
	if _, err := os.Stat(path); err == nil {
		// An unrelated item already owns this path: disambiguate by
		// prefixing the content hash rather than overwriting.
		path = filepath.Join(dir, contentHash[:12]+"_"+id)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create raw dir: %w", err)
	}
	if err := os.WriteFile(path, item.Body, 0o644); err != nil {
		return false, fmt.Errorf("write raw document: %w", err)
	}

	rec := ledger.RawRecord{
		ID:        id,
		Title:     item.Title,
		Source:    sourceName,
		URL:       item.URL,
		Timestamp: time.Now().UTC(),
		FilePath:  path,
		Hash:      contentHash,
	}
	if err := s.ledger.Append(rec.Fields()); err != nil {
		return false, fmt.Errorf("append raw ledger: %w", err)
	}

	s.logger.Info("stored new document", "source", sourceName, "id", id, "title", item.Title)
	return true, nil
}

// validBody applies minimum-size and magic-byte checks before a download
// is allowed into the ledger.
func validBody(item source.Item) bool {
	if item.Ext == ".pdf" {
		return len(item.Body) >= minPDFSize && bytes.HasPrefix(item.Body, pdfMagic)
	}
	return len(item.Body) >= minBodySize
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
