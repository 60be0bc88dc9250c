// Package normalize rewrites domain vocabulary in queries into plain language.
//
// A term table maps loanwords (e.g. "sabr") to their common meaning
// ("patience"). Lookup tries the exact word, then the word with a known
// plural suffix removed, then the word with a known clitic prefix removed.
// A Normalizer is immutable and safe for concurrent use.
package normalize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

// minStemLength is the shortest remainder accepted after removing an affix.
const minStemLength = 3

// pluralSuffixes are tried longest first.
var pluralSuffixes = []string{"aat", "een", "oon", "es", "at", "in", "un", "s"}

// cliticPrefixes are tried longest first.
var cliticPrefixes = []string{"bil-", "wal-", "fil-", "al-", "el-", "bi-", "wa-", "li-", "al"}

// Normalizer maps query words through a term table.
type Normalizer struct {
	terms  map[string]string
	logger *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// New creates a Normalizer over terms. Keys are matched case-insensitively.
func New(terms map[string]string, opts ...Option) *Normalizer {
	n := &Normalizer{
		terms:  make(map[string]string, len(terms)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With("component", "normalizer")

	for term, meaning := range terms {
		key := strings.ToLower(strings.TrimSpace(term))
		meaning = strings.TrimSpace(meaning)
		if key == "" || meaning == "" {
			continue
		}
		n.terms[key] = meaning
	}
	return n
}

// Load reads a JSON object of term to meaning from path.
// It never fails: a missing or corrupt file yields an identity normalizer
// and a logged warning.
func Load(path string, opts ...Option) *Normalizer {
	terms, err := readTerms(path)
	n := New(terms, opts...)
	if err != nil {
		n.logger.Warn("term table unavailable, queries will not be normalized", "path", path, "err", err)
	} else {
		n.logger.Debug("loaded term table", "path", path, "terms", n.Len())
	}
	return n
}

func readTerms(path string) (map[string]string, error) {
	if path == "" {
		return nil, fmt.Errorf("no term table configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var terms map[string]string
	if err := json.Unmarshal(data, &terms); err != nil {
		return nil, fmt.Errorf("parse term table: %w", err)
	}
	return terms, nil
}

// Len returns the number of terms in the table.
func (n *Normalizer) Len() int {
	return len(n.terms)
}

// Lookup returns the meaning of word using exact, plural-stripped and
// prefix-stripped matching, in that order.
func (n *Normalizer) Lookup(word string) (string, bool) {
	key := strings.ToLower(trimPunctuation(word))
	if key == "" {
		return "", false
	}
	if meaning, ok := n.lookupInflected(key); ok {
		return meaning, true
	}
	for _, prefix := range cliticPrefixes {
		rest, found := strings.CutPrefix(key, prefix)
		if !found || utf8.RuneCountInString(rest) < minStemLength {
			continue
		}
		if meaning, ok := n.lookupInflected(rest); ok {
			return meaning, true
		}
	}
	return "", false
}

func (n *Normalizer) lookupInflected(key string) (string, bool) {
	if meaning, ok := n.terms[key]; ok {
		return meaning, true
	}
	for _, suffix := range pluralSuffixes {
		stem, found := strings.CutSuffix(key, suffix)
		if !found || utf8.RuneCountInString(stem) < minStemLength {
			continue
		}
		if meaning, ok := n.terms[stem]; ok {
			return meaning, true
		}
	}
	return "", false
}

// Normalize rewrites query for the embedding model.
//
// A single mapped word becomes "What is <meaning>?" and a single unmapped
// word becomes "What do the texts teach about <word>?". In longer queries
// each mapped word is annotated as "word (meaning)". With an empty term
// table the trimmed query is returned unchanged.
func (n *Normalizer) Normalize(query string) string {
	query = strings.TrimSpace(query)
	if query == "" || len(n.terms) == 0 {
		return query
	}

	words := strings.Fields(query)
	if len(words) == 1 {
		word := trimPunctuation(words[0])
		if word == "" {
			return query
		}
		if meaning, ok := n.Lookup(word); ok {
			return "What is " + meaning + "?"
		}
		return "What do the texts teach about " + word + "?"
	}

	out := make([]string, len(words))
	for i, word := range words {
		meaning, ok := n.Lookup(word)
		if !ok || strings.EqualFold(meaning, trimPunctuation(word)) {
			out[i] = word
			continue
		}
		out[i] = word + " (" + meaning + ")"
	}
	return strings.Join(out, " ")
}

func trimPunctuation(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return (unicode.IsPunct(r) && r != '-' && r != '\'') || unicode.IsSymbol(r)
	})
}
