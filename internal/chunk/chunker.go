package chunk

import "strings"

// Chunk is one token-bounded slice of a document, in original order.
type Chunk struct {
	Index      int
	TokenCount int
	Content    string
}

// Chunker packs paragraphs into chunks of at most maxTokens tokens using
// greedy bin-packing.
type Chunker struct {
	tok       Tokenizer
	maxTokens int
}

// NewChunker creates a chunker with the given tokenizer and budget.
func NewChunker(tok Tokenizer, maxTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = 500
	}
	return &Chunker{tok: tok, maxTokens: maxTokens}
}

// Split packs the text's paragraphs into chunks. Paragraphs are delimited
// by blank lines; a paragraph over the budget is repacked sentence by
// sentence, and a single sentence over the budget is kept whole, yielding
// an oversized chunk rather than an error.
func (c *Chunker) Split(text string) []Chunk {
	var contents []string
	var current []string
	currentTokens := 0

	for _, para := range splitParagraphs(text) {
		paraTokens := c.tok.Count(para)

		if paraTokens > c.maxTokens {
			for _, sent := range splitSentences(para) {
				sentTokens := c.tok.Count(sent)
				if currentTokens+sentTokens > c.maxTokens && len(current) > 0 {
					contents = append(contents, strings.Join(current, "\n"))
					current = nil
					currentTokens = 0
				}
				current = append(current, sent)
				currentTokens += sentTokens
			}
			continue
		}

		if currentTokens+paraTokens > c.maxTokens && len(current) > 0 {
			contents = append(contents, strings.Join(current, "\n\n"))
			current = nil
			currentTokens = 0
		}
		current = append(current, para)
		currentTokens += paraTokens
	}

	if len(current) > 0 {
		contents = append(contents, strings.Join(current, "\n\n"))
	}

	chunks := make([]Chunk, len(contents))
	for i, content := range contents {
		chunks[i] = Chunk{
			Index:      i,
			TokenCount: c.tok.Count(content),
			Content:    content,
		}
	}
	return chunks
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitSentences(para string) []string {
	var out []string
	for _, s := range strings.Split(para, ". ") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
