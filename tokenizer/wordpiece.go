package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	// continuationPrefix marks a subword that continues the previous piece.
	continuationPrefix = "##"

	// maxRunesPerWord is the longest word split into pieces; longer words become [UNK].
	maxRunesPerWord = 100
)

// WordPiece is a BERT-compatible tokenizer.
//
// Text goes through basic tokenization (control character removal, CJK
// isolation, optional lowercasing with accent stripping, punctuation splitting)
// followed by greedy longest-match-first subword splitting against the vocabulary.
type WordPiece struct {
	*encoder
	lowercase bool
}

var _ Tokenizer = (*WordPiece)(nil)

// WordPieceOption configures a WordPiece tokenizer.
type WordPieceOption func(*WordPiece)

// WithCasePreserved disables lowercasing and accent stripping for cased models.
func WithCasePreserved() WordPieceOption {
	return func(w *WordPiece) {
		w.lowercase = false
	}
}

// NewWordPiece creates a WordPiece tokenizer. A maxLength of 0 selects DefaultMaxLength.
func NewWordPiece(vocab *Vocab, maxLength int, opts ...WordPieceOption) (*WordPiece, error) {
	w := &WordPiece{lowercase: true}
	for _, opt := range opts {
		opt(w)
	}
	enc, err := newEncoder(vocab, maxLength, w.pieceIDs)
	if err != nil {
		return nil, err
	}
	w.encoder = enc
	return w, nil
}

// Tokens returns the subword strings for text without markers or padding.
func (w *WordPiece) Tokens(text string) []string {
	ids := w.pieceIDs(text)
	tokens := make([]string, len(ids))
	for i, id := range ids {
		tokens[i] = w.vocab.Token(id)
	}
	return tokens
}

func (w *WordPiece) pieceIDs(text string) []int64 {
	words := w.basicTokens(text)
	ids := make([]int64, 0, len(words))
	for _, word := range words {
		ids = w.appendPieces(ids, word)
	}
	return ids
}

// basicTokens performs the pre-subword stage of BERT tokenization.
func (w *WordPiece) basicTokens(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar || isControl(r):
			continue
		case isWhitespace(r):
			b.WriteByte(' ')
		case isCJK(r):
			b.WriteByte(' ')
			b.WriteRune(r)
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}

	var out []string
	for _, tok := range strings.Fields(b.String()) {
		if w.lowercase {
			tok = stripAccents(strings.ToLower(tok))
		}
		out = append(out, splitPunctuation(tok)...)
	}
	return out
}

// appendPieces appends the subword ids of one word using greedy longest match.
func (w *WordPiece) appendPieces(ids []int64, word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxRunesPerWord {
		return append(ids, w.vocab.unk)
	}

	start := len(ids)
	for begin := 0; begin < len(runes); {
		end := len(runes)
		found := int64(-1)
		for end > begin {
			piece := string(runes[begin:end])
			if begin > 0 {
				piece = continuationPrefix + piece
			}
			if id, ok := w.vocab.ids[piece]; ok {
				found = id
				break
			}
			end--
		}
		if found < 0 {
			return append(ids[:start], w.vocab.unk)
		}
		ids = append(ids, found)
		begin = end
	}
	return ids
}

func stripAccents(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func splitPunctuation(s string) []string {
	var out []string
	var current []rune
	for _, r := range s {
		if isPunctuation(r) {
			if len(current) > 0 {
				out = append(out, string(current))
				current = current[:0]
			}
			out = append(out, string(r))
			continue
		}
		current = append(current, r)
	}
	if len(current) > 0 {
		out = append(out, string(current))
	}
	return out
}

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.In(r, unicode.Cc, unicode.Cf)
}

// isPunctuation treats all non-alphanumeric ASCII as punctuation, as BERT does.
func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}
