package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "MIZAN_"

// LoadDotEnv loads variables from the given .env files, or ./.env when none
// are named. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			slog.Default().Warn("ignoring malformed environment override", "var", EnvPrefix+name, "err", err)
			return
		}
		*dst = n
	}

	str("DATA_DIR", &cfg.DataDir)
	str("CACHE_PATH", &cfg.CachePath)
	str("TERMS_PATH", &cfg.TermsPath)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	str("BACKEND", &cfg.Models.Backend)
	str("EMBEDDING_MODEL_DIR", &cfg.Models.EmbeddingDir)
	str("RERANKER_MODEL_DIR", &cfg.Models.RerankerDir)
	str("EMBEDDING_HOST", &cfg.Models.EmbeddingHost)
	str("EMBEDDING_MODEL", &cfg.Models.EmbeddingModel)
	str("API_TOKEN", &cfg.Models.APIToken)
	num("POOL_SIZE", &cfg.Models.PoolSize)
	num("MAX_SEQUENCE_LENGTH", &cfg.Models.MaxSequenceLength)

	str("SCRIPTURE_INDEX", &cfg.Scripture.IndexPath)
	str("NARRATIONS_DIR", &cfg.Narrations.Dir)
	str("NARRATIONS_INDEX", &cfg.Narrations.IndexPath)

	num("RERANK_MULTIPLIER", &cfg.Search.RerankMultiplier)
	num("BATCH_SIZE", &cfg.Indexing.BatchSize)
}
