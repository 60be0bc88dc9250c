package index

import (
	"container/heap"
	"fmt"
	"slices"

	"github.com/poiesic/mizan/core"
)

// Hit is one first-stage match.
type Hit struct {
	Position int
	ID       string
	Score    float32
}

// Filter selects records by metadata. A nil Filter accepts everything.
type Filter func(metadata map[string]string) bool

// CollectionFilter accepts records whose collection is one of names.
// It returns nil when names is empty.
func CollectionFilter(names ...string) Filter {
	if len(names) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}
	return func(metadata map[string]string) bool {
		_, ok := allowed[metadata[core.MetaCollection]]
		return ok
	}
}

// Search returns the k records most similar to query, best first.
//
// Similarity is the cosine between query and each stored vector. Stored
// vectors are unit length (or zero), so the query is normalized once and a
// dot product suffices. Equal scores are ordered by position. A k <= 0
// returns every accepted record.
func (x *Index) Search(query []float32, k int, filter Filter) ([]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	n := len(x.ids)
	if n == 0 {
		return []Hit{}, nil
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), x.dim)
	}
	if k <= 0 || k > n {
		k = n
	}

	q := core.NormalizeVector(query)
	h := make(hitHeap, 0, k)
	for i := 0; i < n; i++ {
		if filter != nil && !filter(x.metadata[i]) {
			continue
		}
		hit := Hit{Position: i, Score: clamp(core.Dot(q, x.vectors[i*x.dim:(i+1)*x.dim]))}
		if len(h) < k {
			heap.Push(&h, hit)
			continue
		}
		if better(hit, h[0]) {
			h[0] = hit
			heap.Fix(&h, 0)
		}
	}

	hits := []Hit(h)
	slices.SortFunc(hits, func(a, b Hit) int {
		if better(a, b) {
			return -1
		}
		if better(b, a) {
			return 1
		}
		return 0
	})
	for i := range hits {
		hits[i].ID = x.ids[hits[i].Position]
	}
	return hits, nil
}

// better orders by score descending, then position ascending.
func better(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Position < b.Position
}

func clamp(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// hitHeap is a min-heap with the worst hit at the root.
type hitHeap []Hit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(v any) {
	*h = append(*h, v.(Hit))
}

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
