package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/poiesic/mizan/core"
)

// DefaultScriptureCollection is the collection name stamped on verse metadata.
const DefaultScriptureCollection = "quran"

// ScriptureLoader assembles verse documents from four files:
//
//   - VersesPath: JSON array of {chapter, verse, text} with the original text
//   - TranslationPath: JSON object "chapter:verse" -> translated text
//   - CommentaryPath: JSON object "chapter:verse" -> Entry (optional)
//   - ChaptersPath: JSON array of {number, name, translit} (optional)
//
// The document id is "chapter:verse". The translation is the primary text;
// a verse without translation falls back to its original text.
type ScriptureLoader struct {
	VersesPath      string
	TranslationPath string
	CommentaryPath  string
	ChaptersPath    string

	// Collection overrides DefaultScriptureCollection.
	Collection string

	// MaxTextLength overrides the package MaxTextLength when positive.
	MaxTextLength int

	Logger *slog.Logger
}

var _ Loader = (*ScriptureLoader)(nil)

type verseJSON struct {
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Text    string `json:"text"`
}

type chapterJSON struct {
	Number   int    `json:"number"`
	Name     string `json:"name"`
	Translit string `json:"translit"`
}

// Label returns CommentaryLabel.
func (l *ScriptureLoader) Label() string {
	return CommentaryLabel
}

// Load reads the verse files and returns one document per verse with text.
func (l *ScriptureLoader) Load(ctx context.Context) ([]*core.SourceDocument, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scripture-loader")

	if l.VersesPath == "" {
		return nil, fmt.Errorf("%w: verses", ErrPathRequired)
	}
	var verses []verseJSON
	if err := readJSON(l.VersesPath, &verses); err != nil {
		return nil, fmt.Errorf("load verses: %w", err)
	}

	translation := map[string]string{}
	if l.TranslationPath != "" {
		if err := readJSON(l.TranslationPath, &translation); err != nil {
			return nil, fmt.Errorf("load translation: %w", err)
		}
	}

	commentary := map[string]Entry{}
	if l.CommentaryPath != "" {
		if err := readJSON(l.CommentaryPath, &commentary); err != nil {
			return nil, fmt.Errorf("load commentary: %w", err)
		}
	}

	chapters := map[int]chapterJSON{}
	if l.ChaptersPath != "" {
		var list []chapterJSON
		if err := readJSON(l.ChaptersPath, &list); err != nil {
			return nil, fmt.Errorf("load chapters: %w", err)
		}
		for _, c := range list {
			chapters[c.Number] = c
		}
	}

	collection := l.Collection
	if collection == "" {
		collection = DefaultScriptureCollection
	}
	maxLen := l.MaxTextLength
	if maxLen <= 0 {
		maxLen = MaxTextLength
	}

	docs := make([]*core.SourceDocument, 0, len(verses))
	skipped, unresolved := 0, 0
	for _, v := range verses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := strconv.Itoa(v.Chapter) + ":" + strconv.Itoa(v.Verse)

		original := Truncate(v.Text, maxLen)
		primary := Truncate(translation[key], maxLen)
		if primary == "" {
			primary = original
		}
		if primary == "" {
			skipped++
			continue
		}

		var aux string
		if _, ok := commentary[key]; ok {
			text, err := Resolve(commentary, key)
			if err != nil {
				unresolved++
				logger.Debug("commentary unresolved", "key", key, "err", err)
			}
			aux = Truncate(text, maxLen)
		}

		meta := map[string]string{
			core.MetaCollection: collection,
			core.MetaChapter:    strconv.Itoa(v.Chapter),
			core.MetaVerse:      strconv.Itoa(v.Verse),
			core.MetaDisplay:    key,
		}
		if original != "" {
			meta[core.MetaArabic] = original
		}
		if c, ok := chapters[v.Chapter]; ok {
			name := c.Translit
			if name == "" {
				name = c.Name
			}
			if name != "" {
				meta[core.MetaChapterName] = name
				meta[core.MetaDisplay] = name + " " + key
			}
		}

		docs = append(docs, &core.SourceDocument{
			ID:            key,
			NativeID:      key,
			PrimaryText:   primary,
			AuxiliaryText: aux,
			Metadata:      meta,
		})
	}

	logger.Info("loaded scripture", "documents", len(docs), "skipped", skipped, "unresolved_commentary", unresolved)
	return docs, nil
}
