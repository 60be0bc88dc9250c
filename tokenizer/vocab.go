package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Reserved tokens every vocabulary must contain.
const (
	PadToken     = "[PAD]"
	UnknownToken = "[UNK]"
	StartToken   = "[CLS]"
	EndToken     = "[SEP]"
)

// Vocab maps tokens to ids. It is immutable after loading.
type Vocab struct {
	ids    map[string]int64
	tokens []string
	pad    int64
	unk    int64
	cls    int64
	sep    int64
}

// LoadVocab reads a vocabulary file with one token per line.
// The id of a token is its zero-based line number.
func LoadVocab(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary: %w", err)
	}
	defer f.Close()

	return ReadVocab(f)
}

// ReadVocab reads a vocabulary from r with one token per line.
func ReadVocab(r io.Reader) (*Vocab, error) {
	var tokens []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		tokens = append(tokens, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return NewVocab(tokens)
}

// NewVocab builds a vocabulary from an ordered token list.
// Duplicate tokens keep their first id.
func NewVocab(tokens []string) (*Vocab, error) {
	v := &Vocab{
		ids:    make(map[string]int64, len(tokens)),
		tokens: tokens,
	}
	for i, tok := range tokens {
		if _, exists := v.ids[tok]; !exists {
			v.ids[tok] = int64(i)
		}
	}

	for _, special := range []struct {
		token string
		dst   *int64
	}{
		{PadToken, &v.pad},
		{UnknownToken, &v.unk},
		{StartToken, &v.cls},
		{EndToken, &v.sep},
	} {
		id, ok := v.ids[special.token]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingSpecialToken, special.token)
		}
		*special.dst = id
	}

	return v, nil
}

// Size returns the number of entries in the vocabulary.
func (v *Vocab) Size() int {
	return len(v.tokens)
}

// ID returns the id of token and whether it exists.
func (v *Vocab) ID(token string) (int64, bool) {
	id, ok := v.ids[token]
	return id, ok
}

// Token returns the token for id, or the unknown token when out of range.
func (v *Vocab) Token(id int64) string {
	if id < 0 || int(id) >= len(v.tokens) {
		return UnknownToken
	}
	return v.tokens[id]
}

// UnknownID returns the id used for out-of-vocabulary tokens.
func (v *Vocab) UnknownID() int64 {
	return v.unk
}

// PadID returns the padding id.
func (v *Vocab) PadID() int64 {
	return v.pad
}

// lookup returns the id of token, falling back to the unknown id.
func (v *Vocab) lookup(token string) int64 {
	if id, ok := v.ids[token]; ok {
		return id
	}
	return v.unk
}
