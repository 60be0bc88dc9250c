package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/poiesic/mizan/ai"
	"github.com/poiesic/mizan/corpus"
	"github.com/poiesic/mizan/indexing"
)

// Disabled as a path turns the optional component off.
const Disabled = "-"

// CacheEnabled reports whether an embedding cache path is configured.
func (c *Config) CacheEnabled() bool {
	return c.CachePath != "" && c.CachePath != Disabled
}

// AI returns the provider configuration. Unset fields keep ai.DefaultConfig values.
func (c *Config) AI() *ai.Config {
	opts := []ai.ConfigOption{}
	if c.Models.Backend != "" {
		opts = append(opts, ai.WithBackend(ai.Backend(c.Models.Backend)))
	}
	if c.Models.EmbeddingDir != "" {
		opts = append(opts, ai.WithEmbeddingModelDir(c.Models.EmbeddingDir))
	}
	switch c.Models.RerankerDir {
	case "":
	case Disabled:
		opts = append(opts, ai.WithRerankerModelDir(""))
	default:
		opts = append(opts, ai.WithRerankerModelDir(c.Models.RerankerDir))
	}
	if c.Models.MaxSequenceLength > 0 {
		opts = append(opts, ai.WithMaxSequenceLength(c.Models.MaxSequenceLength))
	}
	if c.Models.PoolSize > 0 {
		opts = append(opts, ai.WithPoolSize(c.Models.PoolSize))
	}
	if c.Models.EmbeddingHost != "" {
		opts = append(opts, ai.WithEmbeddingHost(c.Models.EmbeddingHost))
	}
	if c.Models.EmbeddingModel != "" {
		opts = append(opts, ai.WithEmbeddingModel(c.Models.EmbeddingModel))
	}
	if c.Models.APIToken != "" {
		opts = append(opts, ai.WithAPIToken(c.Models.APIToken))
	}
	return ai.NewConfig(opts...)
}

// IndexingConfig returns the indexing job settings.
func (c *Config) IndexingConfig() (*indexing.Config, error) {
	cfg := indexing.DefaultConfig()
	if c.Indexing.BatchSize > 0 {
		cfg.BatchSize = c.Indexing.BatchSize
	}
	if c.Indexing.ReportInterval > 0 {
		cfg.ReportInterval = c.Indexing.ReportInterval
	}
	if c.Indexing.MaxAttempts > 0 {
		cfg.MaxAttempts = c.Indexing.MaxAttempts
	}
	if c.Indexing.RetryDelay != "" {
		d, err := time.ParseDuration(c.Indexing.RetryDelay)
		if err != nil {
			return nil, fmt.Errorf("%w: retry_delay: %w", ErrInvalidConfig, err)
		}
		cfg.RetryDelay = d
	}
	cfg.BatchesPerSecond = c.Indexing.BatchesPerSecond
	return cfg, nil
}

// ScriptureLoader returns a loader over the configured verse files.
func (c *Config) ScriptureLoader(logger *slog.Logger) *corpus.ScriptureLoader {
	return &corpus.ScriptureLoader{
		VersesPath:      c.Scripture.Verses,
		TranslationPath: c.Scripture.Translation,
		CommentaryPath:  optional(c.Scripture.Commentary),
		ChaptersPath:    optional(c.Scripture.Chapters),
		Logger:          logger,
	}
}

// NarrationLoader returns a loader over the configured collections in order.
func (c *Config) NarrationLoader(logger *slog.Logger) *corpus.NarrationLoader {
	sources := make([]corpus.CollectionSource, len(c.Narrations.Collections))
	for i, name := range c.Narrations.Collections {
		sources[i] = corpus.CollectionSource{Name: name, Path: filepath.Join(c.Narrations.Dir, name+".json")}
	}
	return &corpus.NarrationLoader{Collections: sources, Logger: logger}
}

// SearchMultiplier maps RerankMultiplier to the searcher convention where
// zero reranks the whole index.
func (c *Config) SearchMultiplier() int {
	if c.Search.RerankMultiplier == WholeIndex {
		return 0
	}
	return c.Search.RerankMultiplier
}

func optional(path string) string {
	if path == Disabled {
		return ""
	}
	return path
}
