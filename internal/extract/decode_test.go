package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDecode_HTML(t *testing.T) {
	page := `<html>
<head><title>Acórdão</title><script>var tracking = true;</script></head>
<body>
<nav>Início | Pesquisa</nav>
<p>Primeiro parágrafo do acórdão.</p>
<p>Segundo parágrafo.</p>
<footer>dgsi.pt</footer>
</body>
</html>`
	path := writeFile(t, "doc.html", page)

	text, err := Decode(path)
	require.NoError(t, err)

	assert.Contains(t, text, "Primeiro parágrafo do acórdão.")
	assert.Contains(t, text, "Segundo parágrafo.")
	assert.NotContains(t, text, "tracking", "script content must be stripped")
	assert.NotContains(t, text, "Pesquisa", "nav content must be stripped")
	assert.NotContains(t, text, "dgsi.pt", "footer content must be stripped")
}

func TestDecode_Markdown(t *testing.T) {
	md := "# Lei de Bases\n\nArtigo primeiro do diploma.\n\n- alínea um\n- alínea dois\n"
	path := writeFile(t, "lei.md", md)

	text, err := Decode(path)
	require.NoError(t, err)

	assert.Contains(t, text, "Lei de Bases")
	assert.Contains(t, text, "Artigo primeiro do diploma.")
	assert.Contains(t, text, "alínea um")
	assert.NotContains(t, text, "#", "markdown syntax must not leak into plain text")
}

func TestDecode_TextPassthrough(t *testing.T) {
	path := writeFile(t, "nota.txt", "texto simples\n")

	text, err := Decode(path)
	require.NoError(t, err)
	assert.Equal(t, "texto simples\n", text)
}

func TestDecode_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "doc.docx", "binary-ish")

	_, err := Decode(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
