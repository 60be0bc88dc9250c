package local

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/mizan/ai"
	"github.com/poiesic/mizan/core"
	"github.com/poiesic/mizan/nn"
	"github.com/poiesic/mizan/tokenizer"
)

// Embedder implements ai.Embedder with an in-process BERT encoder.
// Token vectors are mean-pooled over the attention mask and L2-normalized.
type Embedder struct {
	model  *nn.BERT
	tok    tokenizer.Tokenizer
	pool   *ants.Pool
	logger *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

func newEmbedder(model *nn.BERT, tok tokenizer.Tokenizer, pool *ants.Pool, logger *slog.Logger) *Embedder {
	return &Embedder{
		model:  model,
		tok:    tok,
		pool:   pool,
		logger: logger.With("component", "local-embedder"),
	}
}

// EmbedText embeds a single text. Inference failure yields a zero vector.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text), nil
}

// EmbedTexts embeds texts concurrently on the worker pool.
// A text whose inference fails gets a zero vector; the batch itself only
// fails when ctx is done.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	out := make([][]float32, len(texts))
	var wg sync.WaitGroup
	for i, text := range texts {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			out[i] = e.embed(text)
		}
		if err := e.pool.Submit(task); err != nil {
			// Pool released or overloaded; run on the caller.
			task()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Dimension returns the hidden size of the encoder.
func (e *Embedder) Dimension() int {
	return e.model.HiddenSize()
}

// embed never fails: errors and panics are logged and produce a zero vector.
func (e *Embedder) embed(text string) (vec []float32) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("embedding panicked, using zero vector", "panic", r, "length", len(text))
			vec = make([]float32, e.Dimension())
		}
	}()

	hidden, err := e.model.Forward(e.tok.Encode(text))
	if err != nil {
		e.logger.Warn("embedding failed, using zero vector", "err", err, "length", len(text))
		return make([]float32, e.Dimension())
	}
	return meanPool(hidden, e.Dimension())
}

// meanPool averages token vectors and normalizes the result to unit length.
func meanPool(hidden [][]float32, dim int) []float32 {
	pooled := make([]float32, dim)
	if len(hidden) == 0 {
		return pooled
	}
	for _, row := range hidden {
		for i, v := range row {
			pooled[i] += v
		}
	}
	inv := 1 / float32(len(hidden))
	for i := range pooled {
		pooled[i] *= inv
	}
	return core.NormalizeVector(pooled)
}
