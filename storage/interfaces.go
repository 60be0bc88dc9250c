package storage

import (
	"context"

	"github.com/poiesic/mizan/core"
)

// EmbeddingCache stores document embeddings.
//
// Entries are scoped by model name: vectors computed by one model are never
// returned for another. Keys are content ids, see core.IDFromContent.
// Implementations must be thread-safe and support concurrent access.
type EmbeddingCache interface {
	// GetEmbeddings returns the cached vectors among ids.
	// Missing ids are absent from the result; that is not an error.
	GetEmbeddings(ctx context.Context, model string, ids ...core.ID) (map[core.ID][]float32, error)

	// PutEmbeddings stores vectors, replacing existing entries.
	PutEmbeddings(ctx context.Context, model string, embeddings map[core.ID][]float32) error

	// CountEmbeddings returns the number of vectors cached for model.
	CountEmbeddings(ctx context.Context, model string) (int, error)

	// DeleteEmbeddings removes every vector cached for model and returns how many there were.
	DeleteEmbeddings(ctx context.Context, model string) (int, error)

	// Close closes the storage backend and releases resources.
	Close() error
}
