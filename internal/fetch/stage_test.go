package fetch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caselaw-pt/lexpipe/internal/ledger"
	"github.com/caselaw-pt/lexpipe/internal/source"
)

// fakeAdapter yields a fixed item list.
type fakeAdapter struct {
	name  string
	items []source.Item
}

func (f *fakeAdapter) Name() string { return f.name }

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

func body(s string) []byte {
	// Pad to clear the minimum-size validation.
	return []byte(s + strings.Repeat(" conteúdo", 20))
}

func newStage(t *testing.T, adapters ...source.Adapter) (*Stage, *ledger.Ledger, string) {
	t.Helper()
	dir := t.TempDir()
	led, err := ledger.OpenRaw(filepath.Join(dir, "metadata.csv"))
	require.NoError(t, err)
	return New(led, filepath.Join(dir, "raw"), adapters, slog.Default()), led, dir
}

func TestRun_StoresNewDocuments(t *testing.T) {
	adapter := &fakeAdapter{name: "DGSI-STJ", items: []source.Item{
		{ID: "/jstj/doc1", URL: "https://example.test/1", Title: "Acórdão 1", Ext: ".html", Body: body("um")},
		{ID: "/jstj/doc2", URL: "https://example.test/2", Title: "Acórdão 2", Ext: ".html", Body: body("dois")},
	}}
	stage, led, _ := newStage(t, adapter)

	n, err := stage.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, led.Len())

	// Raw bytes landed where the ledger says they did.
	rec, err := ledger.RawFromFields(led.Rows()[0])
	require.NoError(t, err)
	assert.FileExists(t, rec.FilePath)
	assert.Equal(t, "DGSI-STJ", rec.Source)
}

// TestRun_ContentDedupAcrossURLs: two distinct URLs returning
// byte-identical content produce exactly one ledger entry.
func TestRun_ContentDedupAcrossURLs(t *testing.T) {
	same := body("idêntico")
	adapter := &fakeAdapter{name: "DGSI-STJ", items: []source.Item{
		{ID: "/jstj/mirror-a", URL: "https://example.test/a", Title: "A", Ext: ".html", Body: same},
		{ID: "/jstj/mirror-b", URL: "https://example.test/b", Title: "B", Ext: ".html", Body: same},
	}}
	stage, led, _ := newStage(t, adapter)

	n, err := stage.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, led.Len())
}

// TestRun_SecondRunIsNoOp: refetching the same items yields zero new
// documents and an unchanged ledger.
func TestRun_SecondRunIsNoOp(t *testing.T) {
	items := make([]source.Item, 5)
	for i := range items {
		items[i] = source.Item{
			ID:    strings.Repeat("x", i+1),
			URL:   "https://example.test",
			Title: "doc",
			Ext:   ".html",
			Body:  body(strings.Repeat("y", i+1)),
		}
	}
	adapter := &fakeAdapter{name: "TC", items: items}
	stage, led, _ := newStage(t, adapter)

	n, err := stage.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = stage.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 5, led.Len())
}

func TestRun_RespectsLimit(t *testing.T) {
	items := make([]source.Item, 10)
	for i := range items {
		items[i] = source.Item{
			ID:   strings.Repeat("z", i+1),
			Ext:  ".html",
			Body: body(strings.Repeat("w", i+1)),
		}
	}
	stage, led, _ := newStage(t, &fakeAdapter{name: "TC", items: items})

	n, err := stage.Run(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, led.Len())
}

// TestRun_RejectsInvalidPDF: bodies failing the magic-byte or
// minimum-size check are not recorded, so a later run can retry them.
func TestRun_RejectsInvalidPDF(t *testing.T) {
	adapter := &fakeAdapter{name: "TC-PDF", items: []source.Item{
		{ID: "relatorio.pdf", Ext: ".pdf", Body: []byte("<html>not found</html>")},
	}}
	stage, led, _ := newStage(t, adapter)

	n, err := stage.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, led.Len())
}

func TestRun_RejectsTinyBodies(t *testing.T) {
	adapter := &fakeAdapter{name: "S", items: []source.Item{
		{ID: "stub", Ext: ".html", Body: []byte("404")},
	}}
	stage, led, _ := newStage(t, adapter)

	n, err := stage.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, led.Len())
}

func TestRun_MultipleSourcesConcurrently(t *testing.T) {
	a := &fakeAdapter{name: "A", items: []source.Item{
		{ID: "a1", Ext: ".html", Body: body("a um")},
		{ID: "a2", Ext: ".html", Body: body("a dois")},
	}}
	b := &fakeAdapter{name: "B", items: []source.Item{
		{ID: "b1", Ext: ".html", Body: body("b um")},
	}}
	stage, led, _ := newStage(t, a, b)

	n, err := stage.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, led.Len())
}
