package index

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caselaw-pt/lexpipe/internal/ledger"
)

// memIndex is an in-memory VectorIndex for tests.
type memIndex struct {
	entries     map[string]Entry
	ensured     int
	upsertCalls int
}

func newMemIndex() *memIndex {
	return &memIndex{entries: make(map[string]Entry)}
}

func (m *memIndex) EnsureCollection(ctx context.Context) error {
	m.ensured++
	return nil
}

func (m *memIndex) ListChunkIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{}, len(m.entries))
	for id := range m.entries {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (m *memIndex) Upsert(ctx context.Context, entries []Entry) error {
	m.upsertCalls++
	for _, e := range entries {
		m.entries[e.ChunkID] = e
	}
	return nil
}

func (m *memIndex) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	return nil, nil
}

func makeInput(n int) ([]ledger.EmbeddingRecord, [][]float32, map[string]string) {
	records := make([]ledger.EmbeddingRecord, n)
	vectors := make([][]float32, n)
	texts := make(map[string]string, n)
	for i := range records {
		chunkID := fmt.Sprintf("doc-a_%d", i)
		records[i] = ledger.EmbeddingRecord{
			DocID:            "doc-a",
			DocProcessedPath: "data/processed/doc-a.txt",
			ChunkID:          chunkID,
			ChunkHash:        fmt.Sprintf("hash-%d", i),
			Timestamp:        time.Now().UTC(),
		}
		vectors[i] = []float32{float32(i), 1}
		texts[chunkID] = fmt.Sprintf("conteúdo %d", i)
	}
	return records, vectors, texts
}

// TestRun_InsertsOnlyMissingIDs: ten ledger rows, three ids already
// resident, exactly seven inserted.
func TestRun_InsertsOnlyMissingIDs(t *testing.T) {
	idx := newMemIndex()
	for _, id := range []string{"doc-a_0", "doc-a_4", "doc-a_9"} {
		idx.entries[id] = Entry{ChunkID: id}
	}

	records, vectors, texts := makeInput(10)
	up := NewUpserter(idx, 128, slog.Default())

	inserted, err := up.Run(context.Background(), records, vectors, texts)
	require.NoError(t, err)
	assert.Equal(t, 7, inserted)
	assert.Len(t, idx.entries, 10)

	// Payload carried through intact for a freshly inserted id.
	e := idx.entries["doc-a_3"]
	assert.Equal(t, "doc-a", e.DocID)
	assert.Equal(t, "hash-3", e.ChunkHash)
	assert.Equal(t, "conteúdo 3", e.Text)
	assert.Equal(t, []float32{3, 1}, e.Vector)
}

func TestRun_NothingPendingIsNoOp(t *testing.T) {
	idx := newMemIndex()
	records, vectors, texts := makeInput(4)

	up := NewUpserter(idx, 128, slog.Default())
	inserted, err := up.Run(context.Background(), records, vectors, texts)
	require.NoError(t, err)
	require.Equal(t, 4, inserted)

	inserted, err = up.Run(context.Background(), records, vectors, texts)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 1, idx.upsertCalls, "no upsert call when everything is resident")
}

func TestRun_BatchesInserts(t *testing.T) {
	idx := newMemIndex()
	records, vectors, texts := makeInput(10)

	up := NewUpserter(idx, 4, slog.Default())
	inserted, err := up.Run(context.Background(), records, vectors, texts)
	require.NoError(t, err)
	assert.Equal(t, 10, inserted)
	assert.Equal(t, 3, idx.upsertCalls) // 4 + 4 + 2
}

// TestRun_RejectsMismatchedRowCounts: the ledger/array parity violation
// must fail before touching the index.
func TestRun_RejectsMismatchedRowCounts(t *testing.T) {
	idx := newMemIndex()
	records, vectors, _ := makeInput(5)

	up := NewUpserter(idx, 128, slog.Default())
	_, err := up.Run(context.Background(), records, vectors[:4], nil)
	assert.Error(t, err)
	assert.Equal(t, 0, idx.ensured)
	assert.Equal(t, 0, idx.upsertCalls)
}
