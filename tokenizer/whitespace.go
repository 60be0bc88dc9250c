package tokenizer

import "strings"

// Whitespace is the simplified whole-word tokenizer.
// It lowercases text, splits on whitespace and looks each word up as-is.
// Words missing from the vocabulary map to [UNK]; there is no subword fallback.
type Whitespace struct {
	*encoder
}

var _ Tokenizer = (*Whitespace)(nil)

// NewWhitespace creates a whitespace tokenizer. A maxLength of 0 selects DefaultMaxLength.
func NewWhitespace(vocab *Vocab, maxLength int) (*Whitespace, error) {
	w := &Whitespace{}
	enc, err := newEncoder(vocab, maxLength, func(text string) []int64 {
		words := strings.Fields(strings.ToLower(text))
		ids := make([]int64, len(words))
		for i, word := range words {
			ids[i] = vocab.lookup(word)
		}
		return ids
	})
	if err != nil {
		return nil, err
	}
	w.encoder = enc
	return w, nil
}
