package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/mizan/ai"
	"github.com/poiesic/mizan/core"
	"github.com/poiesic/mizan/corpus"
	"github.com/poiesic/mizan/index"
	"github.com/poiesic/mizan/normalize"
)

const (
	// DefaultRerankMultiplier sizes the candidate set as limit * multiplier.
	DefaultRerankMultiplier = 4

	// DefaultLabel names the auxiliary section of composite documents.
	DefaultLabel = corpus.CommentaryLabel
)

// Searcher runs two-stage retrieval over a vector index.
type Searcher struct {
	index              *index.Index
	embedder           ai.Embedder
	reranker           ai.Reranker
	normalizer         *normalize.Normalizer
	label              string
	rerankMultiplier   int
	rerankContextChars int
	smartThreshold     float32
	minQueryLength     int
	poolSize           int
	pool               *ants.Pool
	logger             *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithNormalizer sets the query term normalizer.
// A nil normalizer leaves queries unchanged.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Searcher) error {
		if n != nil {
			s.normalizer = n
		}
		return nil
	}
}

// WithLabel sets the label separating primary and auxiliary text in documents.
func WithLabel(label string) Option {
	return func(s *Searcher) error {
		s.label = label
		return nil
	}
}

// WithRerankMultiplier sets how many candidates per requested result are
// fetched for reranking. Zero reranks the whole index.
func WithRerankMultiplier(m int) Option {
	return func(s *Searcher) error {
		if m < 0 {
			return fmt.Errorf("rerank multiplier must not be negative: %d", m)
		}
		s.rerankMultiplier = m
		return nil
	}
}

// WithRerankContextChars bounds the auxiliary text passed to the reranker.
func WithRerankContextChars(n int) Option {
	return func(s *Searcher) error {
		if n < 0 {
			return fmt.Errorf("rerank context must not be negative: %d", n)
		}
		s.rerankContextChars = n
		return nil
	}
}

// WithSmartThreshold skips reranking when the best first-stage score reaches
// threshold. Zero disables the check.
func WithSmartThreshold(threshold float32) Option {
	return func(s *Searcher) error {
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("smart threshold must be in [0, 1]: %v", threshold)
		}
		s.smartThreshold = threshold
		return nil
	}
}

// WithMinQueryLength sets the minimum number of runes in a query.
func WithMinQueryLength(n int) Option {
	return func(s *Searcher) error {
		s.minQueryLength = n
		return nil
	}
}

// WithPoolSize sets the number of concurrent reranker calls.
// Default is runtime.NumCPU().
func WithPoolSize(size int) Option {
	return func(s *Searcher) error {
		if size < 1 {
			return fmt.Errorf("pool size must be positive: %d", size)
		}
		s.poolSize = size
		return nil
	}
}

// NewSearcher creates a new searcher over idx.
func NewSearcher(idx *index.Index, provider ai.AIProvider, opts ...Option) (*Searcher, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		index:              idx,
		embedder:           provider.Embedder(),
		reranker:           provider.Reranker(),
		normalizer:         normalize.New(nil),
		label:              DefaultLabel,
		rerankMultiplier:   DefaultRerankMultiplier,
		rerankContextChars: DefaultRerankContextChars,
		minQueryLength:     core.DefaultMinQueryLength,
		poolSize:           runtime.NumCPU(),
		logger:             slog.Default().With("component", "searcher"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.reranker != nil {
		pool, err := ants.NewPool(s.poolSize)
		if err != nil {
			return nil, fmt.Errorf("create rerank pool: %w", err)
		}
		s.pool = pool
	}

	return s, nil
}

// Close releases the rerank worker pool.
func (s *Searcher) Close() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// Search finds the documents most relevant to req.
func (s *Searcher) Search(ctx context.Context, req core.SearchRequest) (*core.SearchResponse, error) {
	return s.SearchWithMonitor(ctx, req, nil)
}

// SearchWithMonitor searches like Search and reports each stage to monitor.
func (s *Searcher) SearchWithMonitor(ctx context.Context, req core.SearchRequest, monitor SearchMonitor) (*core.SearchResponse, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	start := time.Now()

	if err := core.ValidateSearchRequest(&req, s.minQueryLength); err != nil {
		return nil, err
	}
	monitor.Start(req.Text)

	query := core.Query{Raw: req.Text, Normalized: s.normalizer.Normalize(req.Text)}
	monitor.AfterNormalization(query.Normalized)

	resp := &core.SearchResponse{
		Query:           query.Raw,
		NormalizedQuery: query.Normalized,
		Method:          core.MethodVector,
		Results:         []*core.Result{},
	}
	if s.index.Len() == 0 {
		resp.Metadata.Timings.TotalMs = time.Since(start).Milliseconds()
		monitor.Finish(resp)
		return resp, nil
	}

	stageStart := time.Now()
	embedding, err := s.embedder.EmbedText(ctx, query.Normalized)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query.Normalized, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	query.Embedding = embedding
	resp.Metadata.Timings.EmbeddingMs = time.Since(stageStart).Milliseconds()
	monitor.AfterEmbedding(time.Since(stageStart))

	rerank := req.RerankEnabled() && s.reranker != nil
	candidateLimit := req.Limit
	if rerank {
		candidateLimit = req.Limit * s.rerankMultiplier
	}

	stageStart = time.Now()
	hits, err := s.index.Search(query.Embedding, candidateLimit, index.CollectionFilter(req.SourceFilter...))
	if err != nil {
		s.logger.Error("error querying index", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, err)
	}
	candidates := make([]*core.Candidate, len(hits))
	for i, h := range hits {
		candidates[i] = &core.Candidate{Position: h.Position, ID: h.ID, InitialScore: h.Score}
	}
	resp.Metadata.Candidates = len(candidates)
	resp.Metadata.Timings.RetrievalMs = time.Since(stageStart).Milliseconds()
	monitor.AfterRetrieval(candidates, time.Since(stageStart))

	if rerank && s.smartThreshold > 0 && len(candidates) > 0 && candidates[0].InitialScore >= s.smartThreshold {
		s.logger.Debug("skipping rerank", "best", candidates[0].InitialScore, "threshold", s.smartThreshold)
		rerank = false
	}

	if rerank && len(candidates) > req.Limit {
		stageStart = time.Now()
		if err := s.rerank(ctx, query.Normalized, candidates); err != nil {
			return nil, err
		}
		resp.Method = core.MethodVectorRerank
		resp.Metadata.Timings.RerankMs = time.Since(stageStart).Milliseconds()
		monitor.AfterRerank(candidates, time.Since(stageStart))
	}

	resp.Results = Assemble(candidates, s.index, req.Limit)
	resp.Metadata.Timings.TotalMs = time.Since(start).Milliseconds()
	monitor.Finish(resp)
	return resp, nil
}

// rerank scores every candidate with the cross-encoder and reorders them by
// rerank score. Candidates arrive in first-stage order, so the stable sort
// breaks ties by initial rank.
func (s *Searcher) rerank(ctx context.Context, query string, candidates []*core.Candidate) error {
	scores := make([]float32, len(candidates))
	var wg sync.WaitGroup
	for i, c := range candidates {
		passage := s.passage(c)
		task := func() {
			defer wg.Done()
			scores[i] = s.score(ctx, query, passage, c.ID)
		}
		wg.Add(1)
		if err := s.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	for i, c := range candidates {
		score := scores[i]
		c.RerankScore = &score
	}
	slices.SortStableFunc(candidates, func(a, b *core.Candidate) int {
		switch {
		case *a.RerankScore > *b.RerankScore:
			return -1
		case *a.RerankScore < *b.RerankScore:
			return 1
		}
		return 0
	})
	return nil
}

// score returns the clamped reranker score, or 0 when scoring fails.
func (s *Searcher) score(ctx context.Context, query, passage, id string) (score float32) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("reranker panicked", "id", id, "panic", r)
			score = 0
		}
	}()
	if ctx.Err() != nil {
		return 0
	}
	v, err := s.reranker.Score(ctx, query, passage)
	if err != nil {
		s.logger.Warn("error scoring candidate", "id", id, "err", err)
		return 0
	}
	if math.IsNaN(float64(v)) {
		return 0
	}
	return min(max(v, 0), 1)
}

func (s *Searcher) passage(c *core.Candidate) string {
	rec, ok := s.index.Record(c.Position)
	if !ok {
		return ""
	}
	return rerankPassage(rec.Document, s.label, s.rerankContextChars)
}
