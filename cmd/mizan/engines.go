package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/mizan"
	"github.com/poiesic/mizan/ai"
	"github.com/poiesic/mizan/config"
	"github.com/poiesic/mizan/corpus"
	"github.com/poiesic/mizan/normalize"
	"github.com/poiesic/mizan/search"
	"github.com/poiesic/mizan/storage"
	"github.com/poiesic/mizan/storage/badger"
)

const (
	corpusScripture  = "scripture"
	corpusNarrations = "narrations"
	corpusAll        = "all"
)

// corpusNames expands a --corpus value.
func corpusNames(value string, allowAll bool) ([]string, error) {
	switch value {
	case corpusScripture, corpusNarrations:
		return []string{value}, nil
	case corpusAll:
		if allowAll {
			return []string{corpusScripture, corpusNarrations}, nil
		}
	}
	return nil, fmt.Errorf("unknown corpus %q", value)
}

func corpusLoader(cfg *config.Config, name string) (corpus.Loader, string) {
	logger := slog.Default()
	if name == corpusNarrations {
		return cfg.NarrationLoader(logger), cfg.Narrations.IndexPath
	}
	return cfg.ScriptureLoader(logger), cfg.Scripture.IndexPath
}

// openCache opens the configured embedding cache, or returns nil when it is disabled.
func openCache(cfg *config.Config, disabled bool) (storage.EmbeddingCache, error) {
	if disabled || !cfg.CacheEnabled() {
		return nil, nil
	}
	cache, err := badger.OpenEmbeddingCache(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache %s: %w", cfg.CachePath, err)
	}
	return cache, nil
}

type engineParams struct {
	provider ai.AIProvider
	cache    storage.EmbeddingCache
	progress io.Writer
	search   []search.Option
}

func newEngine(cfg *config.Config, name string, p engineParams) (*mizan.Engine, error) {
	loader, indexPath := corpusLoader(cfg, name)
	jobConfig, err := cfg.IndexingConfig()
	if err != nil {
		return nil, err
	}

	searchOpts := []search.Option{
		search.WithNormalizer(normalize.Load(cfg.TermsPath)),
		search.WithRerankMultiplier(cfg.SearchMultiplier()),
		search.WithRerankContextChars(cfg.Search.RerankContextChars),
		search.WithSmartThreshold(cfg.Search.SmartThreshold),
		search.WithMinQueryLength(cfg.Search.MinQueryLength),
	}

	opts := []mizan.Option{
		mizan.WithIndexPath(indexPath),
		mizan.WithIndexingConfig(jobConfig),
		mizan.WithSearchOptions(append(searchOpts, p.search...)...),
	}
	if p.provider != nil {
		opts = append(opts, mizan.WithProvider(p.provider))
	} else {
		opts = append(opts, mizan.WithAIConfig(cfg.AI()))
	}
	if p.cache != nil {
		opts = append(opts, mizan.WithCache(p.cache))
	}
	if p.progress != nil {
		opts = append(opts, mizan.WithProgress(p.progress))
	}
	return mizan.NewEngine(name, loader, opts...)
}
