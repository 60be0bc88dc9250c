package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/poiesic/mizan/core"
)

// DefaultCollectionNames lists the six narration collections in load order.
var DefaultCollectionNames = []string{"bukhari", "muslim", "abudawud", "tirmidhi", "nasai", "ibnmajah"}

// CollectionSource names one narration file.
type CollectionSource struct {
	Name string
	Path string
}

// DefaultCollections returns the six standard collections as <dir>/<name>.json.
func DefaultCollections(dir string) []CollectionSource {
	out := make([]CollectionSource, len(DefaultCollectionNames))
	for i, name := range DefaultCollectionNames {
		out[i] = CollectionSource{Name: name, Path: filepath.Join(dir, name+".json")}
	}
	return out
}

// NarrationLoader merges narration collections into one id space.
//
// Each file is a JSON array of {id, narrator, text, book?, chapter?, grade?}.
// Documents receive global ids 1..N from a single counter running across the
// collections in order; the collection's own id is kept as NativeID.
type NarrationLoader struct {
	Collections []CollectionSource

	// MaxTextLength overrides the package MaxTextLength when positive.
	MaxTextLength int

	Logger *slog.Logger
}

var _ Loader = (*NarrationLoader)(nil)

type narrationJSON struct {
	ID       flexString `json:"id"`
	Narrator string     `json:"narrator"`
	Text     string     `json:"text"`
	Book     flexString `json:"book"`
	Chapter  flexString `json:"chapter"`
	Grade    string     `json:"grade"`
}

// Label returns NarratorLabel.
func (l *NarrationLoader) Label() string {
	return NarratorLabel
}

// Load reads every collection in order. A missing or malformed file fails the load.
func (l *NarrationLoader) Load(ctx context.Context) ([]*core.SourceDocument, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "narration-loader")

	if len(l.Collections) == 0 {
		return nil, ErrNoCollections
	}
	maxLen := l.MaxTextLength
	if maxLen <= 0 {
		maxLen = MaxTextLength
	}

	var docs []*core.SourceDocument
	next := 1
	for _, src := range l.Collections {
		if src.Path == "" {
			return nil, fmt.Errorf("%w: collection %s", ErrPathRequired, src.Name)
		}
		var records []narrationJSON
		if err := readJSON(src.Path, &records); err != nil {
			return nil, fmt.Errorf("load collection %s: %w", src.Name, err)
		}

		loaded := 0
		for _, r := range records {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			primary := Truncate(r.Text, maxLen)
			if primary == "" {
				continue
			}
			native := strings.TrimSpace(string(r.ID))

			meta := map[string]string{
				core.MetaCollection: src.Name,
				core.MetaNativeID:   native,
				core.MetaDisplay:    strings.TrimSpace(src.Name + " " + native),
			}
			narrator := Truncate(r.Narrator, maxLen)
			for key, value := range map[string]string{
				core.MetaNarrator: narrator,
				core.MetaBook:     strings.TrimSpace(string(r.Book)),
				core.MetaChapter:  strings.TrimSpace(string(r.Chapter)),
				core.MetaGrade:    strings.TrimSpace(r.Grade),
			} {
				if value != "" {
					meta[key] = value
				}
			}

			docs = append(docs, &core.SourceDocument{
				ID:            strconv.Itoa(next),
				NativeID:      native,
				PrimaryText:   primary,
				AuxiliaryText: narrator,
				Metadata:      meta,
			})
			next++
			loaded++
		}
		logger.Debug("loaded collection", "collection", src.Name, "documents", loaded, "records", len(records))
	}

	logger.Info("loaded narrations", "documents", len(docs), "collections", len(l.Collections))
	return docs, nil
}
