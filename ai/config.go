// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Backend selects where embeddings are computed.
type Backend string

const (
	// BackendLocal runs BERT models in-process.
	BackendLocal Backend = "local"

	// BackendOpenAI calls an OpenAI-compatible embeddings endpoint.
	BackendOpenAI Backend = "openai"
)

// ParseBackend converts a config or flag value to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendLocal, BackendOpenAI:
		return b, nil
	case "":
		return BackendLocal, nil
	default:
		return "", fmt.Errorf("ai config: unknown backend %q", s)
	}
}

// Config holds configuration for AI service providers.
type Config struct {
	// Backend selects the embedding implementation.
	// Default: BackendLocal
	Backend Backend

	// EmbeddingModelDir holds vocab.txt, config.json and model.safetensors
	// of the embedding model. Required for the local backend.
	EmbeddingModelDir string

	// RerankerModelDir holds the cross-encoder files. Empty disables reranking.
	RerankerModelDir string

	// MaxSequenceLength is the fixed token length fed to local models.
	// Default: 512
	MaxSequenceLength int

	// PoolSize is the number of workers running local inference concurrently.
	// Default: runtime.NumCPU()
	PoolSize int

	// EmbeddingHost is the base URL for the remote embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// EmbeddingModel is the remote model identifier.
	// Example: "nomic-embed-text", "text-embedding-3-small"
	EmbeddingModel string

	// APIToken authenticates against the remote service.
	// Local OpenAI-compatible servers accept any value.
	APIToken string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithBackend sets the embedding backend.
func WithBackend(backend Backend) ConfigOption {
	return func(c *Config) {
		c.Backend = backend
	}
}

// WithEmbeddingModelDir sets the local embedding model directory.
func WithEmbeddingModelDir(dir string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModelDir = dir
	}
}

// WithRerankerModelDir sets the local cross-encoder directory.
func WithRerankerModelDir(dir string) ConfigOption {
	return func(c *Config) {
		c.RerankerModelDir = dir
	}
}

// WithMaxSequenceLength sets the token length used by local models.
func WithMaxSequenceLength(n int) ConfigOption {
	return func(c *Config) {
		c.MaxSequenceLength = n
	}
}

// WithPoolSize sets the number of concurrent inference workers.
func WithPoolSize(size int) ConfigOption {
	return func(c *Config) {
		c.PoolSize = size
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the remote embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithAPIToken sets the token sent to the remote service.
func WithAPIToken(token string) ConfigOption {
	return func(c *Config) {
		c.APIToken = token
	}
}

// DefaultConfig returns a Config for in-process models under ./models.
func DefaultConfig() *Config {
	poolSize := runtime.NumCPU()
	if poolSize < 1 {
		poolSize = 1
	}
	return &Config{
		Backend:           BackendLocal,
		EmbeddingModelDir: "models/embedder",
		RerankerModelDir:  "models/reranker",
		MaxSequenceLength: 512,
		PoolSize:          poolSize,
		EmbeddingHost:     "http://localhost:11434/v1",
		EmbeddingModel:    "nomic-embed-text",
		APIToken:          "none",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithBackend(BackendOpenAI),
//	    WithEmbeddingHost("http://localhost:11434"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to the embedding host if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	if c.Backend == "" {
		c.Backend = BackendLocal
	}
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/") + "/v1"
	}
	if c.MaxSequenceLength == 0 {
		c.MaxSequenceLength = 512
	}
	if c.PoolSize < 1 {
		c.PoolSize = 1
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.MaxSequenceLength < 3 {
		return errors.New("ai config: MaxSequenceLength must be at least 3")
	}
	switch c.Backend {
	case BackendLocal:
		if c.EmbeddingModelDir == "" {
			return errors.New("ai config: EmbeddingModelDir is required for the local backend")
		}
	case BackendOpenAI:
		if c.EmbeddingHost == "" {
			return errors.New("ai config: EmbeddingHost is required for the openai backend")
		}
		if c.EmbeddingModel == "" {
			return errors.New("ai config: EmbeddingModel is required for the openai backend")
		}
	default:
		return fmt.Errorf("ai config: unknown backend %q", c.Backend)
	}
	return nil
}
