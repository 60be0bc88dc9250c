package local

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/mizan/ai"
)

// Provider implements ai.AIProvider with in-process models.
type Provider struct {
	embedder  *Embedder
	reranker  *Reranker
	pool      *ants.Pool
	modelName string
	logger    *slog.Logger
}

// NewProvider loads the embedding model and, when RerankerModelDir is set,
// the cross-encoder. A missing or corrupt model is an initialization error.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	return newProvider(config, slog.Default())
}

func newProvider(config *ai.Config, logger *slog.Logger) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger = logger.With("component", "local-provider")

	model, tok, err := loadModel(config.EmbeddingModelDir, config.MaxSequenceLength)
	if err != nil {
		return nil, fmt.Errorf("load embedding model from %s: %w", config.EmbeddingModelDir, err)
	}
	logger.Info("loaded embedding model", "dir", config.EmbeddingModelDir,
		"dimension", model.HiddenSize(), "layers", model.Config().NumHiddenLayers)

	pool, err := ants.NewPool(config.PoolSize)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		embedder:  newEmbedder(model, tok, pool, logger),
		pool:      pool,
		modelName: modelName(config.EmbeddingModelDir, model.HiddenSize()),
		logger:    logger,
	}

	if config.RerankerModelDir != "" {
		rmodel, rtok, err := loadModel(config.RerankerModelDir, config.MaxSequenceLength)
		if err != nil {
			pool.Release()
			return nil, fmt.Errorf("load reranker model from %s: %w", config.RerankerModelDir, err)
		}
		reranker, err := newReranker(rmodel, rtok, logger)
		if err != nil {
			pool.Release()
			return nil, fmt.Errorf("load reranker model from %s: %w", config.RerankerModelDir, err)
		}
		p.reranker = reranker
		logger.Info("loaded reranker model", "dir", config.RerankerModelDir, "labels", rmodel.NumLabels())
	}

	return p, nil
}

func modelName(dir string, dim int) string {
	return fmt.Sprintf("local:%s:%d", filepath.Base(filepath.Clean(dir)), dim)
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Reranker returns the cross-encoder, or nil when none was configured.
func (p *Provider) Reranker() ai.Reranker {
	if p.reranker == nil {
		return nil
	}
	return p.reranker
}

// ModelName identifies the embedding model by directory name and dimension.
func (p *Provider) ModelName() string {
	return p.modelName
}

// Close releases the worker pool.
func (p *Provider) Close() error {
	p.logger.Debug("closing local provider")
	p.pool.Release()
	return nil
}
