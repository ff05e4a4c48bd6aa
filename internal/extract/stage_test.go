package extract

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caselaw-pt/lexpipe/internal/ledger"
)

func TestStage_Run(t *testing.T) {
	dir := t.TempDir()
	rawDir := filepath.Join(dir, "raw")
	require.NoError(t, os.MkdirAll(rawDir, 0o755))

	writeRaw := func(name, content string) string {
		path := filepath.Join(rawDir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	htmlPath := writeRaw("a.html", "<html><body><p>Texto do acórdão.</p>\n\n\n<p>2</p></body></html>")
	txtPath := writeRaw("b.txt", "Diploma legal.\n\n\n\nArtigo 1.")
	badPath := writeRaw("c.xyz", "cannot decode this")

	raw, err := ledger.OpenRaw(filepath.Join(dir, "metadata.csv"))
	require.NoError(t, err)
	for i, rec := range []ledger.RawRecord{
		{ID: "a.html", Source: "S", FilePath: htmlPath, Hash: "h1"},
		{ID: "b.txt", Source: "S", FilePath: txtPath, Hash: "h2"},
		{ID: "c.xyz", Source: "S", FilePath: badPath, Hash: "h3"},
	} {
		rec.Title = "doc"
		rec.URL = "https://example.test"
		rec.Timestamp = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, raw.Append(rec.Fields()))
	}

	processed, err := ledger.OpenProcessed(filepath.Join(dir, "metadata_processed.csv"))
	require.NoError(t, err)

	stage := New(raw, processed, filepath.Join(dir, "processed"), slog.Default())
	n, err := stage.Run()
	require.NoError(t, err)

	// The unsupported format is skipped, not fatal.
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, processed.Len())
	assert.True(t, processed.Contains("a.html"))
	assert.True(t, processed.Contains("b.txt"))
	assert.False(t, processed.Contains("c.xyz"))

	// Cleanup collapsed the blank-line run and kept a target hash.
	rec, err := ledger.ProcessedFromFields(processed.Rows()[1])
	require.NoError(t, err)
	text, err := os.ReadFile(rec.TargetPath)
	require.NoError(t, err)
	assert.Equal(t, "Diploma legal.\n\nArtigo 1.", string(text))
	assert.Equal(t, "h2", rec.SourceHash)
	assert.NotEmpty(t, rec.TargetHash)

	// Second run: everything already processed.
	n, err = stage.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 2, processed.Len())
}
