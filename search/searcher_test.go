package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/mizan/ai/mock"
	"github.com/poiesic/mizan/core"
	"github.com/poiesic/mizan/index"
	"github.com/poiesic/mizan/normalize"
)

// buildIndex adds n records whose angle to the x axis grows by 10 degrees per
// record, so cosine order against (1, 0) equals insertion order.
func buildIndex(t *testing.T, n int) *index.Index {
	t.Helper()
	x := index.New(2)
	for i := range n {
		angle := float64(i) * 10 * math.Pi / 180
		collection := "bukhari"
		if i%2 == 1 {
			collection = "muslim"
		}
		require.NoError(t, x.Add(core.VectorRecord{
			ID:        fmt.Sprintf("d%d", i),
			Embedding: []float32{float32(math.Cos(angle)), float32(math.Sin(angle))},
			Document:  fmt.Sprintf("text %d\n\nCommentary: note %d", i, i),
			Metadata:  map[string]string{core.MetaCollection: collection},
		}))
	}
	return x
}

func newProvider(reranker *mock.MockReranker) *mock.MockProvider {
	embedder := &mock.MockEmbedder{
		Dim: 2,
		EmbedTextFunc: func(_ context.Context, _ string) ([]float32, error) {
			return []float32{1, 0}, nil
		},
	}
	return mock.NewMockProviderWithServices(embedder, reranker).(*mock.MockProvider)
}

// reverseScores scores d0 lowest and d9 highest.
func reverseScores(_ context.Context, _, passage string) (float32, error) {
	var n int
	_, err := fmt.Sscanf(passage, "text %d", &n)
	if err != nil {
		return 0, err
	}
	return float32(n+1) / 10, nil
}

func ids(results []*core.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

func TestNewSearcher(t *testing.T) {
	idx := buildIndex(t, 2)
	provider := newProvider(mock.NewMockReranker())

	t.Run("valid configuration", func(t *testing.T) {
		s, err := NewSearcher(idx, provider)
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, DefaultRerankMultiplier, s.rerankMultiplier)
		assert.Equal(t, DefaultLabel, s.label)
		assert.NotNil(t, s.pool)
	})

	t.Run("with custom logger", func(t *testing.T) {
		logger := slog.Default()
		s, err := NewSearcher(idx, provider, WithLogger(logger))
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, logger, s.logger)
	})

	t.Run("without reranker has no pool", func(t *testing.T) {
		s, err := NewSearcher(idx, newProvider(nil))
		require.NoError(t, err)
		defer s.Close()
		assert.Nil(t, s.reranker)
		assert.Nil(t, s.pool)
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := NewSearcher(idx, provider, WithRerankMultiplier(-1))
		assert.Error(t, err)
		_, err = NewSearcher(idx, provider, WithSmartThreshold(1.5))
		assert.Error(t, err)
		_, err = NewSearcher(idx, provider, WithPoolSize(0))
		assert.Error(t, err)
		_, err = NewSearcher(idx, provider, WithRerankContextChars(-1))
		assert.Error(t, err)
	})

	t.Run("nil index", func(t *testing.T) {
		_, err := NewSearcher(nil, provider)
		assert.Equal(t, ErrIndexRequired, err)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewSearcher(idx, nil)
		assert.Equal(t, ErrAIProviderRequired, err)
	})
}

func TestSearch_EmptyIndex(t *testing.T) {
	provider := newProvider(mock.NewMockReranker())
	s, err := NewSearcher(index.New(2), provider)
	require.NoError(t, err)
	defer s.Close()

	resp, err := s.Search(context.Background(), core.SearchRequest{Text: "patience"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.NotNil(t, resp.Results)
	assert.Equal(t, core.MethodVector, resp.Method)
	assert.Equal(t, 0, provider.GetMockEmbedder().CallCount())
}

func TestSearch_InvalidRequest(t *testing.T) {
	s, err := NewSearcher(buildIndex(t, 3), newProvider(nil))
	require.NoError(t, err)
	defer s.Close()

	tests := []struct {
		name string
		req  core.SearchRequest
		want error
	}{
		{name: "empty", req: core.SearchRequest{Text: ""}, want: core.ErrQueryTooShort},
		{name: "single rune", req: core.SearchRequest{Text: "  a "}, want: core.ErrQueryTooShort},
		{name: "limit too large", req: core.SearchRequest{Text: "mercy", Limit: 51}, want: core.ErrInvalidLimit},
		{name: "negative limit", req: core.SearchRequest{Text: "mercy", Limit: -1}, want: core.ErrInvalidLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Search(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, core.ErrInvalidRequest)
		})
	}
}

func TestSearch_RerankDisabled(t *testing.T) {
	reranker := &mock.MockReranker{ScoreFunc: reverseScores}
	s, err := NewSearcher(buildIndex(t, 10), newProvider(reranker))
	require.NoError(t, err)
	defer s.Close()

	resp, err := s.Search(context.Background(), core.SearchRequest{Text: "patience", Limit: 3, Rerank: boolPtr(false)})
	require.NoError(t, err)

	assert.Equal(t, core.MethodVector, resp.Method)
	assert.Equal(t, []string{"d0", "d1", "d2"}, ids(resp.Results))
	assert.Equal(t, 3, resp.Metadata.Candidates)
	assert.Equal(t, 0, reranker.CallCount())
	for i, r := range resp.Results {
		assert.Equal(t, i+1, r.Rank)
		assert.Nil(t, r.RerankScore)
		assert.Equal(t, r.InitialScore, r.Score)
	}
}

func TestSearch_RerankReordersCandidates(t *testing.T) {
	reranker := &mock.MockReranker{ScoreFunc: reverseScores}
	s, err := NewSearcher(buildIndex(t, 10), newProvider(reranker))
	require.NoError(t, err)
	defer s.Close()

	resp, err := s.Search(context.Background(), core.SearchRequest{Text: "patience", Limit: 2})
	require.NoError(t, err)

	// Limit 2 with multiplier 4 reranks the eight nearest documents.
	assert.Equal(t, core.MethodVectorRerank, resp.Method)
	assert.Equal(t, 8, resp.Metadata.Candidates)
	assert.Equal(t, 8, reranker.CallCount())
	assert.Equal(t, []string{"d7", "d6"}, ids(resp.Results))

	top := resp.Results[0]
	require.NotNil(t, top.RerankScore)
	assert.InDelta(t, 0.8, *top.RerankScore, 1e-6)
	assert.Equal(t, *top.RerankScore, top.Score)
	assert.Equal(t, 80, top.Relevance)
	assert.InDelta(t, 1-top.InitialScore, top.Distance, 1e-6)
	assert.Equal(t, "bukhari", resp.Results[1].Metadata[core.MetaCollection])
}

func TestSearch_RerankIsIdempotent(t *testing.T) {
	// Constant scores force every comparison to fall back to initial rank.
	reranker := &mock.MockReranker{ScoreFunc: func(context.Context, string, string) (float32, error) {
		return 0.5, nil
	}}
	s, err := NewSearcher(buildIndex(t, 12), newProvider(reranker), WithPoolSize(4))
	require.NoError(t, err)
	defer s.Close()

	req := core.SearchRequest{Text: "patience", Limit: 5}
	first, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	second, err := s.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"d0", "d1", "d2", "d3", "d4"}, ids(first.Results))
	assert.Equal(t, ids(first.Results), ids(second.Results))
}

func TestSearch_RerankWholeIndex(t *testing.T) {
	reranker := &mock.MockReranker{ScoreFunc: reverseScores}
	s, err := NewSearcher(buildIndex(t, 10), newProvider(reranker), WithRerankMultiplier(0))
	require.NoError(t, err)
	defer s.Close()

	resp, err := s.Search(context.Background(), core.SearchRequest{Text: "patience", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 10, resp.Metadata.Candidates)
	assert.Equal(t, []string{"d9"}, ids(resp.Results))
}

func TestSearch_FailingCandidateScoresZero(t *testing.T) {
	reranker := &mock.MockReranker{ScoreFunc: func(ctx context.Context, q, passage string) (float32, error) {
		switch {
		case strings.HasPrefix(passage, "text 0"):
			return 0, errors.New("model exploded")
		case strings.HasPrefix(passage, "text 1"):
			panic("boom")
		case strings.HasPrefix(passage, "text 2"):
			return float32(math.NaN()), nil
		case strings.HasPrefix(passage, "text 3"):
			return 7, nil
		}
		return 0.3, nil
	}}
	s, err := NewSearcher(buildIndex(t, 8), newProvider(reranker))
	require.NoError(t, err)
	defer s.Close()

	resp, err := s.Search(context.Background(), core.SearchRequest{Text: "patience", Limit: 7})
	require.NoError(t, err)

	require.Len(t, resp.Results, 7)
	assert.Equal(t, "d3", resp.Results[0].ID)
	assert.Equal(t, float32(1), resp.Results[0].Score)
	assert.Equal(t, []string{"d4", "d5", "d6", "d7"}, ids(resp.Results)[1:5])
	// Failures score 0 and keep their initial order at the bottom.
	assert.Equal(t, []string{"d0", "d1"}, ids(resp.Results)[5:])
	for _, r := range resp.Results[5:] {
		require.NotNil(t, r.RerankScore)
		assert.Zero(t, *r.RerankScore)
	}
}

func TestSearch_CandidatesWithinLimitSkipRerank(t *testing.T) {
	reranker := &mock.MockReranker{ScoreFunc: reverseScores}
	s, err := NewSearcher(buildIndex(t, 3), newProvider(reranker))
	require.NoError(t, err)
	defer s.Close()

	resp, err := s.Search(context.Background(), core.SearchRequest{Text: "patience", Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, core.MethodVector, resp.Method)
	assert.Equal(t, []string{"d0", "d1", "d2"}, ids(resp.Results))
	assert.Equal(t, 0, reranker.CallCount())
}

func TestSearch_SmartThreshold(t *testing.T) {
	reranker := &mock.MockReranker{ScoreFunc: reverseScores}

	t.Run("confident first stage skips rerank", func(t *testing.T) {
		s, err := NewSearcher(buildIndex(t, 10), newProvider(reranker), WithSmartThreshold(0.95))
		require.NoError(t, err)
		defer s.Close()

		resp, err := s.Search(context.Background(), core.SearchRequest{Text: "patience", Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, core.MethodVector, resp.Method)
		assert.Equal(t, []string{"d0", "d1"}, ids(resp.Results))
	})

	t.Run("weak first stage reranks", func(t *testing.T) {
		s, err := NewSearcher(buildIndex(t, 10), newProvider(reranker), WithSmartThreshold(0.99))
		require.NoError(t, err)
		defer s.Close()

		// The best muslim record sits at 10 degrees, below the threshold.
		resp, err := s.Search(context.Background(), core.SearchRequest{Text: "patience", Limit: 2, SourceFilter: []string{"muslim"}})
		require.NoError(t, err)
		assert.Equal(t, core.MethodVectorRerank, resp.Method)
		assert.Equal(t, []string{"d9", "d7"}, ids(resp.Results))
	})
}

func TestSearch_SourceFilter(t *testing.T) {
	s, err := NewSearcher(buildIndex(t, 10), newProvider(nil))
	require.NoError(t, err)
	defer s.Close()

	resp, err := s.Search(context.Background(), core.SearchRequest{Text: "patience", Limit: 3, SourceFilter: []string{"muslim"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d3", "d5"}, ids(resp.Results))
	for _, r := range resp.Results {
		assert.Equal(t, "muslim", r.Metadata[core.MetaCollection])
	}
}

func TestSearch_Normalization(t *testing.T) {
	var mu sync.Mutex
	var embedded []string
	embedder := &mock.MockEmbedder{Dim: 2, EmbedTextFunc: func(_ context.Context, text string) ([]float32, error) {
		mu.Lock()
		embedded = append(embedded, text)
		mu.Unlock()
		return []float32{1, 0}, nil
	}}
	provider := mock.NewMockProviderWithServices(embedder, nil)
	s, err := NewSearcher(buildIndex(t, 2), provider,
		WithNormalizer(normalize.New(map[string]string{"sabr": "patience"})))
	require.NoError(t, err)
	defer s.Close()

	resp, err := s.Search(context.Background(), core.SearchRequest{Text: "  sabr in hardship "})
	require.NoError(t, err)
	assert.Equal(t, "sabr in hardship", resp.Query)
	assert.Equal(t, "sabr (patience) in hardship", resp.NormalizedQuery)
	assert.Equal(t, []string{"sabr (patience) in hardship"}, embedded)
}

func TestSearch_EmbeddingFailure(t *testing.T) {
	embedder := &mock.MockEmbedder{Dim: 2, EmbedTextFunc: func(context.Context, string) ([]float32, error) {
		return nil, errors.New("no model")
	}}
	s, err := NewSearcher(buildIndex(t, 2), mock.NewMockProviderWithServices(embedder, nil))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Search(context.Background(), core.SearchRequest{Text: "patience"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestSearch_DimensionMismatch(t *testing.T) {
	embedder := &mock.MockEmbedder{Dim: 3}
	s, err := NewSearcher(buildIndex(t, 2), mock.NewMockProviderWithServices(embedder, nil))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Search(context.Background(), core.SearchRequest{Text: "patience"})
	assert.ErrorIs(t, err, ErrRetrievalFailed)
	assert.ErrorIs(t, err, index.ErrDimensionMismatch)
}

func TestSearch_CancelledDuringRerank(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reranker := &mock.MockReranker{ScoreFunc: func(context.Context, string, string) (float32, error) {
		cancel()
		return 0.5, nil
	}}
	s, err := NewSearcher(buildIndex(t, 10), newProvider(reranker))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Search(ctx, core.SearchRequest{Text: "patience", Limit: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingMonitor struct {
	stages     []string
	normalized string
	retrieved  int
	response   *core.SearchResponse
}

func (m *recordingMonitor) Start(string) { m.stages = append(m.stages, "start") }
func (m *recordingMonitor) AfterNormalization(n string) {
	m.stages = append(m.stages, "normalize")
	m.normalized = n
}
func (m *recordingMonitor) AfterEmbedding(time.Duration) { m.stages = append(m.stages, "embed") }
func (m *recordingMonitor) AfterRetrieval(c []*core.Candidate, _ time.Duration) {
	m.stages = append(m.stages, "retrieve")
	m.retrieved = len(c)
}
func (m *recordingMonitor) AfterRerank([]*core.Candidate, time.Duration) {
	m.stages = append(m.stages, "rerank")
}
func (m *recordingMonitor) Finish(resp *core.SearchResponse) {
	m.stages = append(m.stages, "finish")
	m.response = resp
}

func TestSearchWithMonitor(t *testing.T) {
	t.Run("with rerank", func(t *testing.T) {
		s, err := NewSearcher(buildIndex(t, 10), newProvider(&mock.MockReranker{ScoreFunc: reverseScores}))
		require.NoError(t, err)
		defer s.Close()

		monitor := &recordingMonitor{}
		resp, err := s.SearchWithMonitor(context.Background(), core.SearchRequest{Text: "patience", Limit: 2}, monitor)
		require.NoError(t, err)

		assert.Equal(t, []string{"start", "normalize", "embed", "retrieve", "rerank", "finish"}, monitor.stages)
		assert.Equal(t, "patience", monitor.normalized)
		assert.Equal(t, 8, monitor.retrieved)
		assert.Same(t, resp, monitor.response)
	})

	t.Run("without rerank", func(t *testing.T) {
		s, err := NewSearcher(buildIndex(t, 10), newProvider(nil))
		require.NoError(t, err)
		defer s.Close()

		monitor := &recordingMonitor{}
		_, err = s.SearchWithMonitor(context.Background(), core.SearchRequest{Text: "patience", Limit: 2}, monitor)
		require.NoError(t, err)
		assert.Equal(t, []string{"start", "normalize", "embed", "retrieve", "finish"}, monitor.stages)
	})

	t.Run("invalid request never starts", func(t *testing.T) {
		s, err := NewSearcher(buildIndex(t, 1), newProvider(nil))
		require.NoError(t, err)
		defer s.Close()

		monitor := &recordingMonitor{}
		_, err = s.SearchWithMonitor(context.Background(), core.SearchRequest{Text: "x"}, monitor)
		assert.Error(t, err)
		assert.Empty(t, monitor.stages)
	})
}
