package mock

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/poiesic/mizan/ai"
)

// MockReranker is a test double for ai.Reranker.
type MockReranker struct {
	// ScoreFunc is called by Score if set.
	// If nil, scores by word overlap between query and passage.
	ScoreFunc func(ctx context.Context, query, passage string) (float32, error)

	callCount atomic.Int64
}

var _ ai.Reranker = (*MockReranker)(nil)

// NewMockReranker creates a mock reranker with default overlap scoring.
func NewMockReranker() *MockReranker {
	return &MockReranker{}
}

// Score returns the fraction of distinct query words present in the passage.
// It is safe for concurrent use as long as ScoreFunc is.
func (m *MockReranker) Score(ctx context.Context, query, passage string) (float32, error) {
	m.callCount.Add(1)

	if m.ScoreFunc != nil {
		return m.ScoreFunc(ctx, query, passage)
	}

	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return 0, nil
	}
	haystack := strings.ToLower(passage)
	seen := make(map[string]bool, len(words))
	hits := 0
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		if strings.Contains(haystack, w) {
			hits++
		}
	}
	return float32(hits) / float32(len(seen)), nil
}

// CallCount returns the number of times Score was called.
func (m *MockReranker) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and custom function.
func (m *MockReranker) Reset() {
	m.callCount.Store(0)
	m.ScoreFunc = nil
}
