package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Local implementations substitute a zero vector for a text whose inference
	// fails instead of failing the whole batch.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the length of the vectors produced.
	Dimension() int
}

// Reranker scores how relevant a passage is to a query.
// Implementations must be thread-safe for concurrent use.
type Reranker interface {
	// Score returns a relevance probability in [0, 1].
	Score(ctx context.Context, query, passage string) (float32, error)
}

// AIProvider aggregates the model services for initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Reranker returns the cross-encoder, or nil when reranking is not configured.
	Reranker() Reranker

	// ModelName identifies the embedding model. Persisted indexes are stamped
	// with it so vectors from a different model are never mixed.
	ModelName() string

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
