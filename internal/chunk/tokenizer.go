// Package chunk implements the third pipeline stage: splitting normalized
// text into token-bounded chunks.
package chunk

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokenizer units in a text. The chunk budget is
// expressed in these units.
type Tokenizer interface {
	Count(text string) int
}

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer returns a Tokenizer over the cl100k_base encoding,
// the same encoding the embedding model's tokenizer family uses.
func NewTiktokenTokenizer() (Tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load cl100k_base encoding: %w", err)
	}
	return &tiktokenTokenizer{enc: enc}, nil
}

func (t *tiktokenTokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
