package local

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/mizan/ai"
	"github.com/poiesic/mizan/nn"
	"github.com/poiesic/mizan/tokenizer"
)

// Reranker implements ai.Reranker with an in-process BERT cross-encoder.
type Reranker struct {
	model  *nn.BERT
	tok    tokenizer.Tokenizer
	logger *slog.Logger
}

var _ ai.Reranker = (*Reranker)(nil)

func newReranker(model *nn.BERT, tok tokenizer.Tokenizer, logger *slog.Logger) (*Reranker, error) {
	if model.NumLabels() == 0 {
		return nil, nn.ErrNoClassifier
	}
	return &Reranker{
		model:  model,
		tok:    tok,
		logger: logger.With("component", "local-reranker"),
	}, nil
}

// Score encodes the pair as [CLS] query [SEP] passage [SEP] and converts the
// classifier output to a probability. A single-logit head uses the sigmoid;
// a multi-class head uses the softmax probability of the last class.
func (r *Reranker) Score(ctx context.Context, query, passage string) (score float32, err error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("rerank scoring panicked", "panic", rec)
			score, err = 0, fmt.Errorf("rerank scoring panicked: %v", rec)
		}
	}()

	logits, err := r.model.Classify(r.tok.EncodePair(query, passage))
	if err != nil {
		return 0, err
	}
	return probability(logits), nil
}

func probability(logits []float32) float32 {
	switch len(logits) {
	case 0:
		return 0
	case 1:
		return nn.Sigmoid(logits[0])
	default:
		probs := nn.Softmax(logits)
		return probs[len(probs)-1]
	}
}
