// Package nn runs BERT-family encoder models in pure Go.
//
// Models are loaded from a directory holding a HuggingFace config.json and
// model.safetensors. The forward pass covers the embedding layer, the
// transformer stack, the optional pooler and an optional sequence
// classification head. A loaded model is read-only and safe for concurrent use.
package nn

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"github.com/poiesic/mizan/tokenizer"
)

// File names expected inside a model directory.
const (
	ConfigFile  = "config.json"
	WeightsFile = "model.safetensors"
)

type encoderLayer struct {
	query, key, value linear
	attnOutput        linear
	attnNorm          layerNorm
	intermediate      linear
	output            linear
	outputNorm        layerNorm
}

// BERT is a loaded encoder.
type BERT struct {
	cfg        Config
	act        func(float32) float32
	wordEmb    []float32
	posEmb     []float32
	typeEmb    []float32
	embNorm    layerNorm
	layers     []encoderLayer
	pooler     *linear
	classifier *linear
}

// LoadBERT loads config.json and model.safetensors from dir.
func LoadBERT(dir string) (*BERT, error) {
	cfg, err := LoadConfig(filepath.Join(dir, ConfigFile))
	if err != nil {
		return nil, err
	}
	tensors, err := LoadSafetensors(filepath.Join(dir, WeightsFile))
	if err != nil {
		return nil, err
	}
	return NewBERT(cfg, tensors)
}

// NewBERT assembles a model from already decoded weights.
// Tensor names may carry a "bert." prefix; LayerNorm parameters may use
// either weight/bias or the older gamma/beta naming.
func NewBERT(cfg Config, tensors map[string]*Tensor) (*BERT, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := weights{tensors: tensors}
	h := cfg.HiddenSize

	m := &BERT{cfg: cfg, act: activations[cfg.HiddenAct]}
	m.wordEmb = w.get("embeddings.word_embeddings.weight", cfg.VocabSize, h)
	m.posEmb = w.get("embeddings.position_embeddings.weight", cfg.MaxPositionEmbeddings, h)
	m.typeEmb = w.get("embeddings.token_type_embeddings.weight", cfg.TypeVocabSize, h)
	m.embNorm = w.norm("embeddings.LayerNorm", h, cfg.LayerNormEps)

	m.layers = make([]encoderLayer, cfg.NumHiddenLayers)
	for i := range m.layers {
		p := "encoder.layer." + strconv.Itoa(i) + "."
		m.layers[i] = encoderLayer{
			query:        w.linear(p+"attention.self.query", h, h),
			key:          w.linear(p+"attention.self.key", h, h),
			value:        w.linear(p+"attention.self.value", h, h),
			attnOutput:   w.linear(p+"attention.output.dense", h, h),
			attnNorm:     w.norm(p+"attention.output.LayerNorm", h, cfg.LayerNormEps),
			intermediate: w.linear(p+"intermediate.dense", h, cfg.IntermediateSize),
			output:       w.linear(p+"output.dense", cfg.IntermediateSize, h),
			outputNorm:   w.norm(p+"output.LayerNorm", h, cfg.LayerNormEps),
		}
	}
	if w.err != nil {
		return nil, w.err
	}

	if w.has("pooler.dense.weight") {
		pooler := w.linear("pooler.dense", h, h)
		m.pooler = &pooler
	}
	if w.has("classifier.weight") {
		t, _ := w.lookup("classifier.weight")
		if len(t.Shape) != 2 {
			return nil, fmt.Errorf("%w: classifier.weight has shape %v", ErrShapeMismatch, t.Shape)
		}
		classifier := w.linear("classifier", h, t.Shape[0])
		m.classifier = &classifier
	}
	if w.err != nil {
		return nil, w.err
	}
	return m, nil
}

// Config returns the model configuration.
func (m *BERT) Config() Config {
	return m.cfg
}

// HiddenSize returns the width of the token representations.
func (m *BERT) HiddenSize() int {
	return m.cfg.HiddenSize
}

// NumLabels returns the classifier width, or 0 when the model has no classification head.
func (m *BERT) NumLabels() int {
	if m.classifier == nil {
		return 0
	}
	return m.classifier.out
}

// Forward returns the final hidden state of every non-padding token.
// Only the unpadded prefix of the encoding is computed.
func (m *BERT) Forward(enc tokenizer.Encoding) ([][]float32, error) {
	x, n, err := m.forward(enc)
	if err != nil {
		return nil, err
	}
	h := m.cfg.HiddenSize
	out := make([][]float32, n)
	for i := range out {
		out[i] = x[i*h : (i+1)*h : (i+1)*h]
	}
	return out, nil
}

// Classify runs the pooler and classification head over the [CLS] token and returns raw logits.
func (m *BERT) Classify(enc tokenizer.Encoding) ([]float32, error) {
	if m.classifier == nil {
		return nil, ErrNoClassifier
	}
	x, _, err := m.forward(enc)
	if err != nil {
		return nil, err
	}
	cls := x[:m.cfg.HiddenSize]
	if m.pooler != nil {
		cls = m.pooler.apply(cls, 1)
		for i, v := range cls {
			cls[i] = float32(math.Tanh(float64(v)))
		}
	}
	return m.classifier.apply(cls, 1), nil
}

func (m *BERT) forward(enc tokenizer.Encoding) ([]float32, int, error) {
	n := enc.Len()
	if n == 0 {
		return nil, 0, fmt.Errorf("%w: empty encoding", ErrInputOutOfRange)
	}
	if n > m.cfg.MaxPositionEmbeddings {
		return nil, 0, fmt.Errorf("%w: %d tokens exceed %d positions", ErrInputOutOfRange, n, m.cfg.MaxPositionEmbeddings)
	}

	h := m.cfg.HiddenSize
	x := make([]float32, n*h)
	for i := 0; i < n; i++ {
		id, typ := int(enc.IDs[i]), 0
		if enc.TypeIDs != nil {
			typ = int(enc.TypeIDs[i])
		}
		if id < 0 || id >= m.cfg.VocabSize {
			return nil, 0, fmt.Errorf("%w: token id %d", ErrInputOutOfRange, id)
		}
		if typ < 0 || typ >= m.cfg.TypeVocabSize {
			return nil, 0, fmt.Errorf("%w: token type %d", ErrInputOutOfRange, typ)
		}
		row := x[i*h : (i+1)*h]
		copy(row, m.wordEmb[id*h:(id+1)*h])
		addInPlace(row, m.posEmb[i*h:(i+1)*h])
		addInPlace(row, m.typeEmb[typ*h:(typ+1)*h])
	}
	m.embNorm.apply(x, n)

	for i := range m.layers {
		x = m.layers[i].apply(x, n, m.cfg.NumAttentionHeads, m.act)
	}
	return x, n, nil
}

func (l *encoderLayer) apply(x []float32, n, heads int, act func(float32) float32) []float32 {
	h := l.query.out
	dh := h / heads
	scale := float32(1 / math.Sqrt(float64(dh)))

	q := l.query.apply(x, n)
	k := l.key.apply(x, n)
	v := l.value.apply(x, n)

	ctx := make([]float32, n*h)
	scores := make([]float32, n)
	for hd := 0; hd < heads; hd++ {
		off := hd * dh
		for i := 0; i < n; i++ {
			qi := q[i*h+off : i*h+off+dh]
			for j := 0; j < n; j++ {
				kj := k[j*h+off : j*h+off+dh]
				var dot float32
				for d, qv := range qi {
					dot += qv * kj[d]
				}
				scores[j] = dot * scale
			}
			softmaxInPlace(scores)
			dst := ctx[i*h+off : i*h+off+dh]
			for j, p := range scores {
				vj := v[j*h+off : j*h+off+dh]
				for d, vv := range vj {
					dst[d] += p * vv
				}
			}
		}
	}

	attn := l.attnOutput.apply(ctx, n)
	addInPlace(attn, x)
	l.attnNorm.apply(attn, n)

	inter := l.intermediate.apply(attn, n)
	for i, val := range inter {
		inter[i] = act(val)
	}
	out := l.output.apply(inter, n)
	addInPlace(out, attn)
	l.outputNorm.apply(out, n)
	return out
}

// weights resolves checkpoint tensors and records the first lookup failure.
type weights struct {
	tensors map[string]*Tensor
	err     error
}

func (w *weights) lookup(name string) (*Tensor, bool) {
	if t, ok := w.tensors[name]; ok {
		return t, true
	}
	t, ok := w.tensors["bert."+name]
	return t, ok
}

func (w *weights) has(name string) bool {
	_, ok := w.lookup(name)
	return ok
}

func (w *weights) get(name string, shape ...int) []float32 {
	if w.err != nil {
		return nil
	}
	t, ok := w.lookup(name)
	if !ok {
		w.err = fmt.Errorf("%w: %s", ErrMissingTensor, name)
		return nil
	}
	if !sameShape(t.Shape, shape) {
		w.err = fmt.Errorf("%w: %s has shape %v, want %v", ErrShapeMismatch, name, t.Shape, shape)
		return nil
	}
	return t.Data
}

func (w *weights) linear(prefix string, in, out int) linear {
	return linear{
		w:   w.get(prefix+".weight", out, in),
		b:   w.get(prefix+".bias", out),
		in:  in,
		out: out,
	}
}

func (w *weights) norm(prefix string, dim int, eps float64) layerNorm {
	gamma, beta := prefix+".weight", prefix+".bias"
	if !w.has(gamma) && w.has(prefix+".gamma") {
		gamma, beta = prefix+".gamma", prefix+".beta"
	}
	return layerNorm{gamma: w.get(gamma, dim), beta: w.get(beta, dim), eps: eps}
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
