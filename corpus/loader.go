// Package corpus loads source documents for indexing.
//
// Two corpora exist: scripture verses with translation and commentary, and
// narration collections merged into one id space. Commentary values are
// Entry tagged unions resolved with a bounded redirect walk.
package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/poiesic/mizan/core"
)

// Loader produces the source documents of one corpus.
type Loader interface {
	// Load reads every document. Documents without primary text are dropped.
	Load(ctx context.Context) ([]*core.SourceDocument, error)

	// Label names the auxiliary section in composite documents.
	Label() string
}

// Composite labels used by the built-in loaders.
const (
	CommentaryLabel = "Commentary"
	NarratorLabel   = "Narrated by"
)

// readJSON decodes the JSON file at path into v.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// flexString accepts JSON strings, numbers and null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
