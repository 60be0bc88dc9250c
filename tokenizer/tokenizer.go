// Package tokenizer turns text into fixed-length token id sequences.
//
// Two implementations share the Tokenizer interface:
//
//   - WordPiece: BERT-compatible basic + subword tokenization used with real models
//   - Whitespace: lowercase whole-word lookup, useful as a test double
//
// Every Encoding is exactly MaxLength() positions long. Positions after the
// last real token hold the [PAD] id and a zero attention mask.
package tokenizer

import "errors"

// DefaultMaxLength is the sequence length used when none is configured.
const DefaultMaxLength = 512

var (
	// ErrVocabRequired is returned when a tokenizer is built without a vocabulary.
	ErrVocabRequired = errors.New("vocabulary required")

	// ErrMissingSpecialToken is returned when a vocabulary lacks a reserved token.
	ErrMissingSpecialToken = errors.New("vocabulary is missing a reserved token")

	// ErrMaxLengthTooSmall is returned when the sequence length cannot hold the markers.
	ErrMaxLengthTooSmall = errors.New("max length must be at least 3")
)

// Tokenizer converts text into model input.
// Implementations must be safe for concurrent use.
type Tokenizer interface {
	// Encode tokenizes a single text as [CLS] text [SEP].
	Encode(text string) Encoding

	// EncodePair tokenizes a text pair as [CLS] a [SEP] b [SEP].
	// Type ids are 0 for the first segment and 1 for the second.
	EncodePair(a, b string) Encoding

	// MaxLength returns the fixed sequence length of every Encoding.
	MaxLength() int
}

// Encoding is the model input produced for one text or text pair.
type Encoding struct {
	IDs           []int64
	AttentionMask []int64
	TypeIDs       []int64
}

// Len returns the number of non-padding positions.
func (e Encoding) Len() int {
	n := 0
	for _, m := range e.AttentionMask {
		if m == 1 {
			n++
		}
	}
	return n
}

// pieceSplitter splits one word-level text into vocabulary ids.
type pieceSplitter func(text string) []int64

// encoder holds the assembly logic shared by all tokenizers.
type encoder struct {
	vocab     *Vocab
	maxLength int
	split     pieceSplitter
}

func newEncoder(vocab *Vocab, maxLength int, split pieceSplitter) (*encoder, error) {
	if vocab == nil {
		return nil, ErrVocabRequired
	}
	if maxLength == 0 {
		maxLength = DefaultMaxLength
	}
	if maxLength < 3 {
		return nil, ErrMaxLengthTooSmall
	}
	return &encoder{vocab: vocab, maxLength: maxLength, split: split}, nil
}

func (e *encoder) MaxLength() int {
	return e.maxLength
}

func (e *encoder) Encode(text string) Encoding {
	ids := e.split(text)
	if limit := e.maxLength - 2; len(ids) > limit {
		ids = ids[:limit]
	}

	enc := e.newEncoding()
	pos := 0
	enc.IDs[pos] = e.vocab.cls
	pos++
	pos += copy(enc.IDs[pos:], ids)
	enc.IDs[pos] = e.vocab.sep
	pos++
	for i := 0; i < pos; i++ {
		enc.AttentionMask[i] = 1
	}
	return enc
}

func (e *encoder) EncodePair(a, b string) Encoding {
	first := e.split(a)
	second := e.split(b)
	first, second = truncateLongestFirst(first, second, e.maxLength-3)

	enc := e.newEncoding()
	pos := 0
	enc.IDs[pos] = e.vocab.cls
	pos++
	pos += copy(enc.IDs[pos:], first)
	enc.IDs[pos] = e.vocab.sep
	pos++
	boundary := pos
	pos += copy(enc.IDs[pos:], second)
	enc.IDs[pos] = e.vocab.sep
	pos++
	for i := 0; i < pos; i++ {
		enc.AttentionMask[i] = 1
		if i >= boundary {
			enc.TypeIDs[i] = 1
		}
	}
	return enc
}

func (e *encoder) newEncoding() Encoding {
	enc := Encoding{
		IDs:           make([]int64, e.maxLength),
		AttentionMask: make([]int64, e.maxLength),
		TypeIDs:       make([]int64, e.maxLength),
	}
	if e.vocab.pad != 0 {
		for i := range enc.IDs {
			enc.IDs[i] = e.vocab.pad
		}
	}
	return enc
}

// truncateLongestFirst removes tokens from the longer sequence until both fit in budget.
func truncateLongestFirst(a, b []int64, budget int) ([]int64, []int64) {
	for len(a)+len(b) > budget {
		if len(a) >= len(b) {
			a = a[:len(a)-1]
		} else {
			b = b[:len(b)-1]
		}
	}
	return a, b
}
