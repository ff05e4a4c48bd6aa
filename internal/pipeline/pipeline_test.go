package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caselaw-pt/lexpipe/internal/config"
	"github.com/caselaw-pt/lexpipe/internal/embed"
	"github.com/caselaw-pt/lexpipe/internal/index"
	"github.com/caselaw-pt/lexpipe/internal/source"
)

type fakeAdapter struct {
	items []source.Item
}

func (f *fakeAdapter) Name() string { return "teste" }

func (f *fakeAdapter) Fetch(ctx context.Context, limit int, emit func(source.Item) error) error {
	for i, item := range f.items {
		if limit > 0 && i >= limit {
			return nil
		}
		if err := emit(item); err != nil {
			return err
		}
	}
	return nil
}

type wordTokenizer struct{}

func (wordTokenizer) Count(text string) int { return len(strings.Fields(text)) }

// fakeEmbedder produces vectors at the production dimension so the stage
// can reuse the real vector store format.
type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, embed.Dimension)
		v[0] = float32(len(text))
		out[i] = v
	}
	return out, nil
}

type memIndex struct {
	entries map[string]index.Entry
}

func (m *memIndex) EnsureCollection(ctx context.Context) error { return nil }

func (m *memIndex) ListChunkIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{}, len(m.entries))
	for id := range m.entries {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (m *memIndex) Upsert(ctx context.Context, entries []index.Entry) error {
	for _, e := range entries {
		m.entries[e.ChunkID] = e
	}
	return nil
}

func (m *memIndex) Query(ctx context.Context, vector []float32, k int) ([]index.Hit, error) {
	return nil, nil
}

func htmlDoc(paragraphs ...string) []byte {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, p := range paragraphs {
		b.WriteString("<p>" + p + "</p>")
	}
	// Padding so the body clears the minimum-size validation.
	b.WriteString("<!-- " + strings.Repeat("x", 100) + " --></body></html>")
	return []byte(b.String())
}

func sentence(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "palavra"
	}
	return strings.Join(words, " ") + "."
}

// TestRun_EndToEnd pushes two documents through all five stages against
// in-memory collaborators and checks the counts at every boundary, then
// verifies a second full run changes nothing.
func TestRun_EndToEnd(t *testing.T) {
	cfg := &config.Config{
		DataDir:     t.TempDir(),
		MaxTokens:   50,
		EmbedBatch:  8,
		UpsertBatch: 8,
	}
	adapter := &fakeAdapter{items: []source.Item{
		{ID: "/jstj/1", URL: "https://example.test/1", Title: "Acórdão 1", Ext: ".html",
			Body: htmlDoc(sentence(40) + " " + sentence(40))},
		{ID: "/jstj/2", URL: "https://example.test/2", Title: "Acórdão 2", Ext: ".html",
			Body: htmlDoc(sentence(20))},
	}}
	embedder := &fakeEmbedder{}
	idx := &memIndex{entries: make(map[string]index.Entry)}

	p := New(cfg, []source.Adapter{adapter}, wordTokenizer{}, embedder, idx, slog.Default())

	result, err := p.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, result.NewDocuments)
	assert.Equal(t, 2, result.Extracted)
	// Doc 1: two 40-word sentences at a 50-token budget repack into two
	// chunks; doc 2 fits in one.
	assert.Equal(t, 3, result.Chunks)
	assert.Equal(t, 3, result.Embedded)
	assert.Equal(t, 3, result.Inserted)
	assert.Len(t, idx.entries, 3)

	for _, e := range idx.entries {
		assert.NotEmpty(t, e.Text)
		assert.Len(t, e.Vector, embed.Dimension)
		assert.NotEmpty(t, e.ChunkHash)
	}

	// Second run: every stage sees its work already recorded.
	result, err = p.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, result.NewDocuments)
	assert.Equal(t, 0, result.Extracted)
	assert.Equal(t, 0, result.Chunks)
	assert.Equal(t, 0, result.Embedded)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 1, embedder.calls)
	assert.Len(t, idx.entries, 3)
}

// TestRun_NewDocumentJoinsExistingData: a later run with one extra
// document only processes that document.
func TestRun_NewDocumentJoinsExistingData(t *testing.T) {
	cfg := &config.Config{
		DataDir:     t.TempDir(),
		MaxTokens:   100,
		EmbedBatch:  8,
		UpsertBatch: 8,
	}
	adapter := &fakeAdapter{items: []source.Item{
		{ID: "/jstj/1", Ext: ".html", Body: htmlDoc(sentence(30))},
	}}
	idx := &memIndex{entries: make(map[string]index.Entry)}
	p := New(cfg, []source.Adapter{adapter}, wordTokenizer{}, &fakeEmbedder{}, idx, slog.Default())

	result, err := p.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.Inserted)

	adapter.items = append(adapter.items, source.Item{
		ID: "/jstj/2", Ext: ".html", Body: htmlDoc(sentence(25)),
	})
	result, err = p.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NewDocuments)
	assert.Equal(t, 1, result.Extracted)
	assert.Equal(t, 1, result.Chunks)
	assert.Equal(t, 1, result.Embedded)
	assert.Equal(t, 1, result.Inserted)
	assert.Len(t, idx.entries, 2)
}
