package nn

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config mirrors the fields of a BERT config.json that the forward pass needs.
type Config struct {
	VocabSize             int               `json:"vocab_size"`
	HiddenSize            int               `json:"hidden_size"`
	NumHiddenLayers       int               `json:"num_hidden_layers"`
	NumAttentionHeads     int               `json:"num_attention_heads"`
	IntermediateSize      int               `json:"intermediate_size"`
	HiddenAct             string            `json:"hidden_act"`
	MaxPositionEmbeddings int               `json:"max_position_embeddings"`
	TypeVocabSize         int               `json:"type_vocab_size"`
	LayerNormEps          float64           `json:"layer_norm_eps"`
	ID2Label              map[string]string `json:"id2label,omitempty"`
}

// LoadConfig reads a config.json file and applies BERT defaults for absent fields.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read model config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HiddenAct == "" {
		c.HiddenAct = "gelu"
	}
	if c.TypeVocabSize == 0 {
		c.TypeVocabSize = 2
	}
	if c.LayerNormEps == 0 {
		c.LayerNormEps = 1e-12
	}
	if c.MaxPositionEmbeddings == 0 {
		c.MaxPositionEmbeddings = 512
	}
}

// Validate checks that the dimensions describe a usable encoder.
func (c Config) Validate() error {
	switch {
	case c.VocabSize <= 0:
		return fmt.Errorf("%w: vocab_size must be positive", ErrInvalidConfig)
	case c.HiddenSize <= 0:
		return fmt.Errorf("%w: hidden_size must be positive", ErrInvalidConfig)
	case c.NumHiddenLayers < 0:
		return fmt.Errorf("%w: num_hidden_layers must not be negative", ErrInvalidConfig)
	case c.NumAttentionHeads <= 0 || c.HiddenSize%c.NumAttentionHeads != 0:
		return fmt.Errorf("%w: hidden_size %d not divisible by %d heads", ErrInvalidConfig, c.HiddenSize, c.NumAttentionHeads)
	case c.IntermediateSize <= 0:
		return fmt.Errorf("%w: intermediate_size must be positive", ErrInvalidConfig)
	}
	if _, ok := activations[c.HiddenAct]; !ok {
		return fmt.Errorf("%w: unsupported hidden_act %q", ErrInvalidConfig, c.HiddenAct)
	}
	return nil
}
