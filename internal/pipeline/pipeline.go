// Package pipeline wires the five stages together. Each stage method
// opens its ledgers fresh so it is independently re-runnable and only
// acts on units not yet recorded; Run executes them strictly in order.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caselaw-pt/lexpipe/internal/chunk"
	"github.com/caselaw-pt/lexpipe/internal/config"
	"github.com/caselaw-pt/lexpipe/internal/embed"
	"github.com/caselaw-pt/lexpipe/internal/extract"
	"github.com/caselaw-pt/lexpipe/internal/fetch"
	"github.com/caselaw-pt/lexpipe/internal/index"
	"github.com/caselaw-pt/lexpipe/internal/ledger"
	"github.com/caselaw-pt/lexpipe/internal/source"
)

// Result contains statistics for one full pipeline run.
type Result struct {
	NewDocuments int
	Extracted    int
	Chunks       int
	Embedded     int
	Inserted     int
	Duration     time.Duration
}

// Pipeline holds the shared resources the stages need. The embedder and
// index are constructed once by the caller and reused across stages.
type Pipeline struct {
	cfg       *config.Config
	adapters  []source.Adapter
	tokenizer chunk.Tokenizer
	embedder  embed.Embedder
	index     index.VectorIndex
	logger    *slog.Logger
}

// New creates a pipeline over the given configuration and collaborators.
func New(cfg *config.Config, adapters []source.Adapter, tok chunk.Tokenizer, embedder embed.Embedder, idx index.VectorIndex, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:       cfg,
		adapters:  adapters,
		tokenizer: tok,
		embedder:  embedder,
		index:     idx,
		logger:    logger,
	}
}

// Fetch runs the fetch stage and returns the count of newly stored
// documents.
func (p *Pipeline) Fetch(ctx context.Context, limit int) (int, error) {
	raw, err := ledger.OpenRaw(p.cfg.RawLedgerPath())
	if err != nil {
		return 0, err
	}
	stage := fetch.New(raw, p.cfg.RawDir(), p.adapters, p.logger)
	return stage.Run(ctx, limit)
}

// Extract runs the extract stage and returns the count of documents
// converted to normalized text.
func (p *Pipeline) Extract() (int, error) {
	raw, err := ledger.OpenRaw(p.cfg.RawLedgerPath())
	if err != nil {
		return 0, err
	}
	processed, err := ledger.OpenProcessed(p.cfg.ProcessedLedgerPath())
	if err != nil {
		return 0, err
	}
	stage := extract.New(raw, processed, p.cfg.ProcessedDir(), p.logger)
	return stage.Run()
}

// Chunk runs the chunk stage and returns the count of chunks created.
func (p *Pipeline) Chunk() (int, error) {
	processed, err := ledger.OpenProcessed(p.cfg.ProcessedLedgerPath())
	if err != nil {
		return 0, err
	}
	chunked, err := ledger.OpenChunked(p.cfg.ChunkedLedgerPath())
	if err != nil {
		return 0, err
	}
	writer, err := chunk.NewFileWriter(p.cfg.ChunkDir())
	if err != nil {
		return 0, err
	}
	chunker := chunk.NewChunker(p.tokenizer, p.cfg.MaxTokens)
	stage := chunk.New(processed, chunked, writer, chunker, p.logger)
	return stage.Run()
}

// Embed runs the embed stage and returns the count of vectors added.
func (p *Pipeline) Embed(ctx context.Context) (int, error) {
	chunked, err := ledger.OpenChunked(p.cfg.ChunkedLedgerPath())
	if err != nil {
		return 0, err
	}
	embedded, err := ledger.OpenEmbedded(p.cfg.EmbeddedLedgerPath())
	if err != nil {
		return 0, err
	}
	store, err := embed.OpenVectorStore(p.cfg.VectorsPath(), embed.Dimension)
	if err != nil {
		return 0, err
	}
	stage := embed.New(p.cfg.ChunkDir(), chunked, embedded, store, p.embedder, p.cfg.EmbedBatch, p.logger)
	return stage.Run(ctx)
}

// Upsert runs the upsert stage and returns the count of entries inserted
// into the vector index.
func (p *Pipeline) Upsert(ctx context.Context) (int, error) {
	embedded, err := ledger.OpenEmbedded(p.cfg.EmbeddedLedgerPath())
	if err != nil {
		return 0, err
	}
	if embedded.Len() == 0 {
		p.logger.Info("no embeddings to upsert")
		return 0, nil
	}

	records := make([]ledger.EmbeddingRecord, 0, embedded.Len())
	for _, row := range embedded.Rows() {
		rec, err := ledger.EmbeddingFromFields(row)
		if err != nil {
			return 0, fmt.Errorf("read embedding ledger row: %w", err)
		}
		records = append(records, rec)
	}

	store, err := embed.OpenVectorStore(p.cfg.VectorsPath(), embed.Dimension)
	if err != nil {
		return 0, err
	}
	vectors, err := store.Load()
	if err != nil {
		return 0, err
	}

	chunks, err := chunk.ReadAll(p.cfg.ChunkDir())
	if err != nil {
		return 0, fmt.Errorf("load chunk content: %w", err)
	}
	texts := make(map[string]string, len(chunks))
	for _, c := range chunks {
		texts[c.ChunkID] = c.Content
	}

	upserter := index.NewUpserter(p.index, p.cfg.UpsertBatch, p.logger)
	return upserter.Run(ctx, records, vectors, texts)
}

// Run executes Fetch through Upsert in order, continuing even when a
// stage finds nothing to do.
func (p *Pipeline) Run(ctx context.Context, limit int) (*Result, error) {
	start := time.Now()
	result := &Result{}

	var err error
	if result.NewDocuments, err = p.Fetch(ctx, limit); err != nil {
		return result, fmt.Errorf("fetch stage: %w", err)
	}
	if result.Extracted, err = p.Extract(); err != nil {
		return result, fmt.Errorf("extract stage: %w", err)
	}
	if result.Chunks, err = p.Chunk(); err != nil {
		return result, fmt.Errorf("chunk stage: %w", err)
	}
	if result.Embedded, err = p.Embed(ctx); err != nil {
		return result, fmt.Errorf("embed stage: %w", err)
	}
	if result.Inserted, err = p.Upsert(ctx); err != nil {
		return result, fmt.Errorf("upsert stage: %w", err)
	}

	result.Duration = time.Since(start)
	p.logger.Info("pipeline complete",
		"new_documents", result.NewDocuments,
		"extracted", result.Extracted,
		"chunks", result.Chunks,
		"embedded", result.Embedded,
		"inserted", result.Inserted,
		"duration", result.Duration,
	)
	return result, nil
}
