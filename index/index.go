package index

import (
	"fmt"
	"maps"
	"sync"

	"github.com/poiesic/mizan/core"
)

// Index is an ordered collection of vector records.
//
// Embeddings live in one contiguous buffer of Len()*Dimension() floats with
// ids, documents and metadata in parallel slices. Add is safe to call while
// other goroutines search, but the index is meant to be filled once and then
// only read.
type Index struct {
	mu        sync.RWMutex
	dim       int
	vectors   []float32
	ids       []string
	documents []string
	metadata  []map[string]string
	stamp     Stamp
}

// New creates an empty index. A zero dimension is fixed by the first Add.
func New(dimension int) *Index {
	return &Index{dim: dimension}
}

// Add appends a record. The embedding is copied.
func (x *Index) Add(rec core.VectorRecord) error {
	if rec.ID == "" {
		return ErrEmptyID
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dim == 0 {
		x.dim = len(rec.Embedding)
	}
	if x.dim == 0 || len(rec.Embedding) != x.dim {
		return fmt.Errorf("%w: record %s has %d, index has %d", ErrDimensionMismatch, rec.ID, len(rec.Embedding), x.dim)
	}

	x.vectors = append(x.vectors, rec.Embedding...)
	x.ids = append(x.ids, rec.ID)
	x.documents = append(x.documents, rec.Document)
	x.metadata = append(x.metadata, maps.Clone(rec.Metadata))
	return nil
}

// Len returns the number of records.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Dimension returns the embedding dimension, or 0 for an empty index created without one.
func (x *Index) Dimension() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// Stamp returns the version stamp the index was loaded or saved with.
func (x *Index) Stamp() Stamp {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.stamp
}

// IsStale reports whether the index holds fewer records than expected.
// A stale index is rebuilt from scratch; there is no incremental update.
func (x *Index) IsStale(expected int) bool {
	return x.Len() < expected
}

// Record returns the record at position i. The embedding shares the index buffer
// and must not be modified.
func (x *Index) Record(i int) (core.VectorRecord, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if i < 0 || i >= len(x.ids) {
		return core.VectorRecord{}, false
	}
	return x.record(i), true
}

func (x *Index) record(i int) core.VectorRecord {
	return core.VectorRecord{
		ID:        x.ids[i],
		Embedding: x.vectors[i*x.dim : (i+1)*x.dim : (i+1)*x.dim],
		Document:  x.documents[i],
		Metadata:  x.metadata[i],
	}
}

// Records returns a snapshot of all records in insertion order.
func (x *Index) Records() []core.VectorRecord {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]core.VectorRecord, len(x.ids))
	for i := range out {
		out[i] = x.record(i)
	}
	return out
}

// Collections counts records per Metadata[core.MetaCollection].
func (x *Index) Collections() map[string]int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make(map[string]int)
	for _, meta := range x.metadata {
		out[meta[core.MetaCollection]]++
	}
	return out
}
