// Package config loads mizan settings from YAML or TOML files, a .env file
// and MIZAN_* environment variables, in increasing order of priority.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/mizan/corpus"
)

// Config is the root application configuration.
type Config struct {
	// DataDir anchors every relative default path.
	DataDir string `yaml:"data_dir" toml:"data_dir"`

	// CachePath is the badger directory of the embedding cache. "-" disables the cache.
	CachePath string `yaml:"cache_path" toml:"cache_path"`

	// TermsPath is the JSON term table used for query normalization.
	TermsPath string `yaml:"terms_path" toml:"terms_path"`

	Log        LogConfig       `yaml:"log" toml:"log"`
	Models     ModelsConfig    `yaml:"models" toml:"models"`
	Scripture  ScriptureConfig `yaml:"scripture" toml:"scripture"`
	Narrations NarrationConfig `yaml:"narrations" toml:"narrations"`
	Search     SearchConfig    `yaml:"search" toml:"search"`
	Indexing   IndexingConfig  `yaml:"indexing" toml:"indexing"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" toml:"format" validate:"omitempty,oneof=text json"`
}

// ModelsConfig selects the embedding backend and model files.
type ModelsConfig struct {
	Backend           string `yaml:"backend" toml:"backend" validate:"omitempty,oneof=local openai"`
	EmbeddingDir      string `yaml:"embedding_dir" toml:"embedding_dir"`
	RerankerDir       string `yaml:"reranker_dir" toml:"reranker_dir"`
	MaxSequenceLength int    `yaml:"max_sequence_length" toml:"max_sequence_length" validate:"omitempty,min=3,max=8192"`
	PoolSize          int    `yaml:"pool_size" toml:"pool_size" validate:"min=0"`
	EmbeddingHost     string `yaml:"embedding_host" toml:"embedding_host" validate:"omitempty,url"`
	EmbeddingModel    string `yaml:"embedding_model" toml:"embedding_model"`
	APIToken          string `yaml:"api_token" toml:"api_token"`
}

// ScriptureConfig locates the verse corpus files and its index.
type ScriptureConfig struct {
	Verses      string `yaml:"verses" toml:"verses" validate:"required"`
	Translation string `yaml:"translation" toml:"translation" validate:"required"`
	IndexPath   string `yaml:"index_path" toml:"index_path" validate:"required"`

	// Commentary and Chapters are optional and have no default.
	Commentary string `yaml:"commentary" toml:"commentary"`
	Chapters   string `yaml:"chapters" toml:"chapters"`
}

// NarrationConfig locates the narration collections and their index.
type NarrationConfig struct {
	// Dir holds one <name>.json file per collection.
	Dir string `yaml:"dir" toml:"dir" validate:"required"`

	// Collections lists collection names in id assignment order.
	Collections []string `yaml:"collections" toml:"collections" validate:"required,min=1,dive,required"`

	IndexPath string `yaml:"index_path" toml:"index_path" validate:"required"`
}

// SearchConfig tunes query handling.
type SearchConfig struct {
	// RerankMultiplier sizes the rerank candidate set as limit * multiplier.
	// WholeIndex reranks every record.
	RerankMultiplier   int     `yaml:"rerank_multiplier" toml:"rerank_multiplier" validate:"min=-1"`
	RerankContextChars int     `yaml:"rerank_context_chars" toml:"rerank_context_chars" validate:"min=0"`
	SmartThreshold     float32 `yaml:"smart_threshold" toml:"smart_threshold" validate:"min=0,max=1"`
	MinQueryLength     int     `yaml:"min_query_length" toml:"min_query_length" validate:"min=0"`
}

// IndexingConfig tunes index builds.
type IndexingConfig struct {
	BatchSize        int     `yaml:"batch_size" toml:"batch_size" validate:"min=1"`
	ReportInterval   int     `yaml:"report_interval" toml:"report_interval" validate:"min=1"`
	MaxAttempts      int     `yaml:"max_attempts" toml:"max_attempts" validate:"min=1,max=10"`
	RetryDelay       string  `yaml:"retry_delay" toml:"retry_delay" validate:"duration"`
	BatchesPerSecond float64 `yaml:"batches_per_second" toml:"batches_per_second" validate:"min=0"`
}

// WholeIndex as a rerank multiplier reranks every record.
const WholeIndex = -1

// DefaultDataDir is used when neither the file nor the environment sets DataDir.
const DefaultDataDir = "data"

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{DataDir: DefaultDataDir}
	applyDefaults(cfg)
	return cfg
}

// Load reads the config file at path, applies environment overrides and
// defaults, then validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return nil
}

// Save writes cfg to path in the format selected by its extension.
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	case ".toml":
		data, err = toml.Marshal(cfg)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	under := func(p *string, parts ...string) {
		if *p == "" {
			*p = filepath.Join(append([]string{cfg.DataDir}, parts...)...)
		}
	}

	under(&cfg.CachePath, "cache")
	under(&cfg.TermsPath, "terms.json")

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	if cfg.Models.Backend == "" {
		cfg.Models.Backend = "local"
	}
	under(&cfg.Models.EmbeddingDir, "models", "embedder")
	under(&cfg.Models.RerankerDir, "models", "reranker")

	under(&cfg.Scripture.Verses, "scripture", "verses.json")
	under(&cfg.Scripture.Translation, "scripture", "translation.json")
	under(&cfg.Scripture.IndexPath, "index", "scripture.json")

	under(&cfg.Narrations.Dir, "narrations")
	if len(cfg.Narrations.Collections) == 0 {
		cfg.Narrations.Collections = slices.Clone(corpus.DefaultCollectionNames)
	}
	under(&cfg.Narrations.IndexPath, "index", "narrations.json")

	if cfg.Search.RerankMultiplier == 0 {
		cfg.Search.RerankMultiplier = 4
	}
	if cfg.Search.RerankContextChars == 0 {
		cfg.Search.RerankContextChars = 500
	}
	if cfg.Search.MinQueryLength == 0 {
		cfg.Search.MinQueryLength = 2
	}

	if cfg.Indexing.BatchSize == 0 {
		cfg.Indexing.BatchSize = 32
	}
	if cfg.Indexing.ReportInterval == 0 {
		cfg.Indexing.ReportInterval = 200
	}
	if cfg.Indexing.MaxAttempts == 0 {
		cfg.Indexing.MaxAttempts = 1
	}
	if cfg.Indexing.RetryDelay == "" {
		cfg.Indexing.RetryDelay = (500 * time.Millisecond).String()
	}
}
