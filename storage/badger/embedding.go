package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/mizan/core"
	"github.com/poiesic/mizan/storage"
)

// EmbeddingRepository implements storage.EmbeddingCache for BadgerDB.
type EmbeddingRepository struct {
	backend     *Backend
	ownsBackend bool
}

var _ storage.EmbeddingCache = (*EmbeddingRepository)(nil)

// NewEmbeddingRepository creates an EmbeddingRepository on an open backend.
// Closing the repository leaves the backend open.
func NewEmbeddingRepository(backend *Backend) (*EmbeddingRepository, error) {
	if backend == nil {
		return nil, errors.New("badger: backend required")
	}
	return &EmbeddingRepository{
		backend: backend,
	}, nil
}

// OpenEmbeddingCache opens a BadgerDB database at path and returns a cache
// owning it. Closing the cache closes the database.
func OpenEmbeddingCache(path string) (storage.EmbeddingCache, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	return &EmbeddingRepository{backend: backend, ownsBackend: true}, nil
}

// Close releases resources.
func (r *EmbeddingRepository) Close() error {
	if r.ownsBackend && !r.backend.IsClosed() {
		return r.backend.Close()
	}
	return nil
}

func (r *EmbeddingRepository) check(ctx context.Context, model string) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if model == "" {
		return fmt.Errorf("%w: model name required", storage.ErrInvalidQuery)
	}
	return ctx.Err()
}

// GetEmbeddings returns the cached vectors among ids.
func (r *EmbeddingRepository) GetEmbeddings(ctx context.Context, model string, ids ...core.ID) (map[core.ID][]float32, error) {
	if err := r.check(ctx, model); err != nil {
		return nil, err
	}

	out := make(map[core.ID][]float32, len(ids))
	err := r.backend.View(func(tx *badger.Txn) error {
		for _, id := range ids {
			item, err := tx.Get(makeEmbeddingKey(model, id))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			err = item.Value(func(val []byte) error {
				vector, err := storage.UnmarshalEmbedding(val)
				if err != nil {
					return err
				}
				out[id] = vector
				return nil
			})
			if err != nil {
				return fmt.Errorf("read embedding %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PutEmbeddings stores vectors, replacing existing entries.
func (r *EmbeddingRepository) PutEmbeddings(ctx context.Context, model string, embeddings map[core.ID][]float32) error {
	if err := r.check(ctx, model); err != nil {
		return err
	}
	if len(embeddings) == 0 {
		return nil
	}

	return r.backend.Write(func(wb *badger.WriteBatch) error {
		for id, vector := range embeddings {
			if err := wb.Set(makeEmbeddingKey(model, id), storage.MarshalEmbedding(vector)); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountEmbeddings returns the number of vectors cached for model.
func (r *EmbeddingRepository) CountEmbeddings(ctx context.Context, model string) (int, error) {
	if err := r.check(ctx, model); err != nil {
		return 0, err
	}

	count := 0
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEmbeddingModelPrefix(model)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// DeleteEmbeddings removes every vector cached for model.
func (r *EmbeddingRepository) DeleteEmbeddings(ctx context.Context, model string) (int, error) {
	count, err := r.CountEmbeddings(ctx, model)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	if err := r.backend.DropPrefix(makeEmbeddingModelPrefix(model)); err != nil {
		return 0, err
	}
	r.backend.logger.Info("dropped cached embeddings", "model", model, "count", count)
	return count, nil
}
