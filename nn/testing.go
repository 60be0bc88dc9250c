package nn

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
)

// RandomWeights builds a randomly initialized checkpoint for cfg.
// A positive numLabels adds a pooler and classification head.
// The result is deterministic for a given seed; it is intended for tests.
func RandomWeights(cfg Config, numLabels int, seed uint64) map[string]*Tensor {
	cfg.applyDefaults()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	h := cfg.HiddenSize
	out := make(map[string]*Tensor)

	random := func(name string, shape ...int) {
		t := &Tensor{Shape: shape}
		t.Data = make([]float32, t.Len())
		for i := range t.Data {
			t.Data[i] = float32(rng.NormFloat64() * 0.2)
		}
		out[name] = t
	}
	constant := func(name string, v float32, dim int) {
		t := &Tensor{Shape: []int{dim}, Data: make([]float32, dim)}
		for i := range t.Data {
			t.Data[i] = v
		}
		out[name] = t
	}
	dense := func(prefix string, in, outDim int) {
		random(prefix+".weight", outDim, in)
		random(prefix+".bias", outDim)
	}
	norm := func(prefix string) {
		constant(prefix+".weight", 1, h)
		constant(prefix+".bias", 0, h)
	}

	random("embeddings.word_embeddings.weight", cfg.VocabSize, h)
	random("embeddings.position_embeddings.weight", cfg.MaxPositionEmbeddings, h)
	random("embeddings.token_type_embeddings.weight", cfg.TypeVocabSize, h)
	norm("embeddings.LayerNorm")
	for i := 0; i < cfg.NumHiddenLayers; i++ {
		p := "encoder.layer." + strconv.Itoa(i) + "."
		dense(p+"attention.self.query", h, h)
		dense(p+"attention.self.key", h, h)
		dense(p+"attention.self.value", h, h)
		dense(p+"attention.output.dense", h, h)
		norm(p + "attention.output.LayerNorm")
		dense(p+"intermediate.dense", h, cfg.IntermediateSize)
		dense(p+"output.dense", cfg.IntermediateSize, h)
		norm(p + "output.LayerNorm")
	}
	if numLabels > 0 {
		dense("pooler.dense", h, h)
		dense("classifier", h, numLabels)
	}
	return out
}

// WriteTestModel writes config.json and model.safetensors with random weights into dir.
func WriteTestModel(dir string, cfg Config, numLabels int, seed uint64) error {
	cfg.applyDefaults()
	if numLabels > 0 {
		cfg.ID2Label = make(map[string]string, numLabels)
		for i := 0; i < numLabels; i++ {
			cfg.ID2Label[strconv.Itoa(i)] = fmt.Sprintf("LABEL_%d", i)
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), data, 0o644); err != nil {
		return fmt.Errorf("write model config: %w", err)
	}
	return WriteSafetensors(filepath.Join(dir, WeightsFile), RandomWeights(cfg, numLabels, seed))
}
