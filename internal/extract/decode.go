// Package extract implements the second pipeline stage: converting raw
// fetched documents into normalized plain text.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

// Decode converts the file at path to plain text, dispatching on the file
// extension. Unsupported extensions fail with ErrUnsupportedFormat.
func Decode(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return decodePDF(path)
	case ".html", ".htm":
		return decodeHTML(path)
	case ".md":
		return decodeMarkdown(path)
	case ".txt":
		return decodeText(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func decodePDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// skippedTags are stripped wholesale: their text is boilerplate, not
// document content.
var skippedTags = map[string]bool{
	"script": true, "style": true, "nav": true, "header": true, "footer": true,
}

func decodeHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	root, err := html.Parse(f)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t)
				sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return sb.String(), nil
}

func decodeMarkdown(path string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var sb strings.Builder
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			switch n.Kind() {
			case ast.KindText:
				t := n.(*ast.Text)
				sb.Write(t.Segment.Value(src))
				if t.SoftLineBreak() || t.HardLineBreak() {
					sb.WriteString("\n")
				}
			case ast.KindCodeBlock, ast.KindFencedCodeBlock:
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					sb.Write(seg.Value(src))
				}
			}
			return ast.WalkContinue, nil
		}
		if n.Type() == ast.TypeBlock {
			sb.WriteString("\n\n")
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("walk markdown: %w", err)
	}
	return sb.String(), nil
}

func decodeText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	// Tolerate invalid encodings rather than failing the item.
	return strings.ToValidUTF8(string(b), ""), nil
}
