package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry is a commentary value: either literal text or a redirect to another key.
//
// In JSON a literal is an object {"text": "..."} and a redirect is a bare
// string holding the target key. Redirects let consecutive passages share
// one commentary without repeating it.
type Entry struct {
	text     string
	target   string
	redirect bool
}

// Literal creates an entry holding text.
func Literal(text string) Entry {
	return Entry{text: text}
}

// Redirect creates an entry pointing at key.
func Redirect(key string) Entry {
	return Entry{target: key, redirect: true}
}

// IsRedirect reports whether the entry points at another key.
func (e Entry) IsRedirect() bool {
	return e.redirect
}

// Text returns the literal text, or "" for redirects.
func (e Entry) Text() string {
	return e.text
}

// Target returns the redirect key, or "" for literals.
func (e Entry) Target() string {
	return e.target
}

type literalJSON struct {
	Text string `json:"text"`
}

// UnmarshalJSON decodes a bare string as a redirect and an object as a literal.
// A JSON null decodes as an empty literal.
func (e *Entry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0:
		return fmt.Errorf("%w: empty value", ErrInvalidEntry)
	case bytes.Equal(data, []byte("null")):
		*e = Literal("")
	case data[0] == '"':
		var key string
		if err := json.Unmarshal(data, &key); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEntry, err)
		}
		*e = Redirect(key)
	case data[0] == '{':
		var lit literalJSON
		if err := json.Unmarshal(data, &lit); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEntry, err)
		}
		*e = Literal(lit.Text)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidEntry, truncateBytes(data, 40))
	}
	return nil
}

// MarshalJSON encodes the entry in the form UnmarshalJSON accepts.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.redirect {
		return json.Marshal(e.target)
	}
	return json.Marshal(literalJSON{Text: e.text})
}

func truncateBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
