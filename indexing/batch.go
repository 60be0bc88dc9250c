package indexing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/mizan/ai"
	"github.com/poiesic/mizan/core"
	"github.com/poiesic/mizan/storage"
)

// BatchProcessor embeds batches of source documents.
type BatchProcessor struct {
	embedder    ai.Embedder
	cache       storage.EmbeddingCache
	model       string
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

// BatchResult holds the records produced for one batch.
type BatchResult struct {
	Records   []core.VectorRecord
	CacheHits int
}

// NewBatchProcessor creates a new batch processor.
// cache may be nil. model scopes cache entries.
// maxAttempts: maximum number of attempts for each embedding call
// retryDelay: base delay for exponential backoff
func NewBatchProcessor(embedder ai.Embedder, cache storage.EmbeddingCache, model string, maxAttempts int, retryDelay time.Duration, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		embedder:    embedder,
		cache:       cache,
		model:       model,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		logger:      logger,
	}
}

// Process builds the composite document for each input under label and
// embeds the ones missing from the cache with a single EmbedTexts call.
// Vectors are normalized before they are returned or cached. Cache errors
// are logged and otherwise ignored.
func (bp *BatchProcessor) Process(ctx context.Context, docs []*core.SourceDocument, label string) (*BatchResult, error) {
	if len(docs) == 0 {
		return &BatchResult{}, nil
	}

	composites := make([]string, len(docs))
	ids := make([]core.ID, len(docs))
	for i, doc := range docs {
		composites[i] = doc.Composite(label)
		ids[i] = core.IDFromContent(composites[i])
	}

	vectors := make([][]float32, len(docs))
	hits := 0
	if bp.cache != nil {
		cached, err := bp.cache.GetEmbeddings(ctx, bp.model, ids...)
		if err != nil {
			bp.logger.Warn("embedding cache read failed", "err", err)
		}
		for i, id := range ids {
			if v, ok := cached[id]; ok {
				vectors[i] = v
				hits++
			}
		}
	}

	var missing []int
	for i, v := range vectors {
		if v == nil {
			missing = append(missing, i)
		}
	}

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for j, i := range missing {
			texts[j] = composites[i]
		}

		var embeddings [][]float32
		err := RetryWithBackoff(ctx, func() error {
			var err error
			embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
			return err
		}, bp.maxAttempts, bp.retryDelay)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxAttempts, err)
		}
		if len(embeddings) != len(texts) {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(texts), len(embeddings))
		}

		fresh := make(map[core.ID][]float32, len(missing))
		for j, i := range missing {
			vectors[i] = core.NormalizeVector(embeddings[j])
			// Zero vectors stand in for texts the embedder failed on; they are
			// retried on the next run instead of being cached.
			if core.Magnitude(vectors[i]) == 0 {
				continue
			}
			fresh[ids[i]] = vectors[i]
		}
		if bp.cache != nil && len(fresh) > 0 {
			if err := bp.cache.PutEmbeddings(ctx, bp.model, fresh); err != nil {
				bp.logger.Warn("embedding cache write failed", "err", err)
			}
		}
	}

	records := make([]core.VectorRecord, len(docs))
	for i, doc := range docs {
		records[i] = core.VectorRecord{
			ID:        doc.ID,
			Embedding: vectors[i],
			Document:  composites[i],
			Metadata:  doc.Metadata,
		}
	}
	return &BatchResult{Records: records, CacheHits: hits}, nil
}
