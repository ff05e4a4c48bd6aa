package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "collapses blank line runs",
			in:   "first\n\n\n\nsecond",
			want: "first\n\nsecond",
		},
		{
			name: "drops carriage returns",
			in:   "first\r\nsecond\r\n",
			want: "first\nsecond",
		},
		{
			name: "strips bare page numbers",
			in:   "conclusão\n\n12\n\nfundamentação",
			want: "conclusão\n\nfundamentação",
		},
		{
			name: "strips pagina lines case-insensitively",
			in:   "texto\n\nPágina 3\n\nmais texto",
			want: "texto\n\nmais texto",
		},
		{
			name: "strips dash-bracketed numerals",
			in:   "texto\n\n— 7 —\n\nmais texto",
			want: "texto\n\nmais texto",
		},
		{
			name: "trims surrounding whitespace",
			in:   "\n\n  acórdão  \n\n",
			want: "acórdão",
		},
		{
			name: "keeps numbers inside prose",
			in:   "artigo 13 da constituição",
			want: "artigo 13 da constituição",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestClean_Deterministic(t *testing.T) {
	in := "a\n\n\n1\n\nb\r\n\r\nPágina 9\nc"
	assert.Equal(t, Clean(in), Clean(Clean(in)))
}
