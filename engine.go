// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mizan is an offline semantic retrieval engine over scripture and
// narration corpora.
//
// An Engine owns one corpus: its documents, its vector index and the models
// used to query it. Init loads the models and either loads the persisted
// index or rebuilds it when the file is missing, stale or was written by a
// different model or format version.
package mizan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/poiesic/mizan/ai"
	"github.com/poiesic/mizan/ai/local"
	"github.com/poiesic/mizan/ai/openai"
	"github.com/poiesic/mizan/core"
	"github.com/poiesic/mizan/corpus"
	"github.com/poiesic/mizan/index"
	"github.com/poiesic/mizan/indexing"
	"github.com/poiesic/mizan/search"
	"github.com/poiesic/mizan/storage"
)

// Engine answers queries against one corpus.
type Engine struct {
	name       string
	loader     corpus.Loader
	indexPath  string
	aiConfig   *ai.Config
	provider   ai.AIProvider
	ownsModels bool
	cache      storage.EmbeddingCache
	jobConfig  *indexing.Config
	searchOpts []search.Option
	progress   io.Writer
	baseLogger *slog.Logger
	logger     *slog.Logger

	group singleflight.Group
	// buildMu serializes initialization and rebuilds so only one indexing
	// pass runs per corpus.
	buildMu sync.Mutex

	mu      sync.RWMutex
	state   *engineState
	initErr error
	closed  bool
}

type engineState struct {
	index    *index.Index
	searcher *search.Searcher
	report   *indexing.Report
}

// Option configures an Engine.
type Option func(*Engine)

// WithAIConfig builds the provider from cfg during Init. The engine owns and
// closes that provider.
func WithAIConfig(cfg *ai.Config) Option {
	return func(e *Engine) {
		e.aiConfig = cfg
	}
}

// WithProvider uses an existing provider. The caller keeps ownership.
func WithProvider(provider ai.AIProvider) Option {
	return func(e *Engine) {
		e.provider = provider
	}
}

// WithIndexPath sets where the index is loaded from and saved to.
// Empty keeps the index in memory only.
func WithIndexPath(path string) Option {
	return func(e *Engine) {
		e.indexPath = path
	}
}

// WithCache sets the embedding cache used by rebuilds. The caller keeps ownership.
func WithCache(cache storage.EmbeddingCache) Option {
	return func(e *Engine) {
		e.cache = cache
	}
}

// WithIndexingConfig tunes index rebuilds.
func WithIndexingConfig(cfg *indexing.Config) Option {
	return func(e *Engine) {
		e.jobConfig = cfg
	}
}

// WithSearchOptions passes options to the searcher built by Init.
func WithSearchOptions(opts ...search.Option) Option {
	return func(e *Engine) {
		e.searchOpts = append(e.searchOpts, opts...)
	}
}

// WithProgress sets where rebuild progress is written.
func WithProgress(w io.Writer) Option {
	return func(e *Engine) {
		e.progress = w
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an uninitialized engine named name over loader.
func NewEngine(name string, loader corpus.Loader, opts ...Option) (*Engine, error) {
	if loader == nil {
		return nil, ErrLoaderRequired
	}
	e := &Engine{
		name:   name,
		loader: loader,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.provider == nil && e.aiConfig == nil {
		return nil, ErrProviderRequired
	}
	e.baseLogger = e.logger.With("corpus", name)
	e.logger = e.baseLogger.With("component", "engine")
	return e, nil
}

// NewProvider builds the provider selected by cfg.Backend.
func NewProvider(cfg *ai.Config) (ai.AIProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case ai.BackendOpenAI:
		return openai.NewProvider(cfg)
	default:
		return local.NewProvider(cfg)
	}
}

// Name returns the corpus name.
func (e *Engine) Name() string {
	return e.name
}

// Init loads models and the index once. Concurrent callers share one
// initialization; a caller whose context ends stops waiting without
// cancelling it. Search calls Init on first use. After a failure every query
// returns the error until a later Init succeeds.
func (e *Engine) Init(ctx context.Context) error {
	return e.run(ctx, "init", false)
}

// Rebuild re-indexes the corpus regardless of the persisted index. It waits
// for an initialization or rebuild already in progress.
func (e *Engine) Rebuild(ctx context.Context) (*indexing.Report, error) {
	if err := e.run(ctx, "rebuild", true); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return nil, ErrEngineClosed
	}
	return e.state.report, nil
}

func (e *Engine) run(ctx context.Context, key string, force bool) error {
	e.mu.RLock()
	closed, ready := e.closed, e.state != nil
	e.mu.RUnlock()
	if closed {
		return ErrEngineClosed
	}
	if ready && !force {
		return nil
	}

	ch := e.group.DoChan(key, func() (any, error) {
		return nil, e.initialize(context.WithoutCancel(ctx), force)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (e *Engine) initialize(ctx context.Context, force bool) error {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	e.mu.RLock()
	ready := e.state != nil
	e.mu.RUnlock()
	if ready && !force {
		return nil
	}

	provider, err := e.acquireProvider()
	if err != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.initErr = fmt.Errorf("%w: %s: %w", ErrInitFailed, e.name, err)
		return e.initErr
	}
	state, err := e.open(ctx, provider, force)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		if state != nil {
			state.searcher.Close()
		}
		return ErrEngineClosed
	}
	if err != nil {
		e.initErr = fmt.Errorf("%w: %s: %w", ErrInitFailed, e.name, err)
		e.logger.Error("initialization failed", "err", err)
		if e.state == nil {
			e.releaseModels()
		}
		return e.initErr
	}
	if e.state != nil {
		e.state.searcher.Close()
	}
	e.state = state
	e.initErr = nil
	return nil
}

// acquireProvider returns the configured provider, creating it on first use.
func (e *Engine) acquireProvider() (ai.AIProvider, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrEngineClosed
	}
	if e.provider != nil {
		return e.provider, nil
	}
	provider, err := NewProvider(e.aiConfig)
	if err != nil {
		return nil, fmt.Errorf("create AI provider: %w", err)
	}
	e.provider = provider
	e.ownsModels = true
	return provider, nil
}

func (e *Engine) open(ctx context.Context, provider ai.AIProvider, force bool) (*engineState, error) {
	docs, err := e.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	e.logger.Info("loaded corpus", "documents", len(docs))

	state := &engineState{}
	if !force {
		state.index = e.loadIndex(provider, len(docs))
	}
	if state.index == nil {
		idx, report, err := e.build(ctx, provider, docs)
		if err != nil {
			return nil, err
		}
		state.index = idx
		state.report = report
	}

	opts := append([]search.Option{
		search.WithLabel(e.loader.Label()),
		search.WithLogger(e.baseLogger.With("component", "searcher")),
	}, e.searchOpts...)
	searcher, err := search.NewSearcher(state.index, provider, opts...)
	if err != nil {
		return nil, fmt.Errorf("create searcher: %w", err)
	}
	state.searcher = searcher
	return state, nil
}

// loadIndex returns the persisted index, or nil when it must be rebuilt.
func (e *Engine) loadIndex(provider ai.AIProvider, expected int) *index.Index {
	if e.indexPath == "" {
		return nil
	}
	idx, err := index.Load(e.indexPath, index.CurrentStamp(provider.ModelName()))
	switch {
	case err != nil:
		e.logger.Info("rebuilding index", "path", e.indexPath, "reason", err)
		return nil
	case idx.IsStale(expected):
		e.logger.Info("rebuilding stale index", "path", e.indexPath, "records", idx.Len(), "documents", expected)
		return nil
	}
	if dim := provider.Embedder().Dimension(); dim > 0 && idx.Len() > 0 && idx.Dimension() != dim {
		e.logger.Info("rebuilding index", "path", e.indexPath, "reason", index.ErrDimensionMismatch)
		return nil
	}
	e.logger.Info("loaded index", "path", e.indexPath, "records", idx.Len())
	return idx
}

func (e *Engine) build(ctx context.Context, provider ai.AIProvider, docs []*core.SourceDocument) (*index.Index, *indexing.Report, error) {
	opts := []indexing.Option{
		indexing.WithIndexPath(e.indexPath),
		indexing.WithLogger(e.baseLogger),
	}
	if e.jobConfig != nil {
		opts = append(opts, indexing.WithConfig(e.jobConfig))
	}
	if e.cache != nil {
		opts = append(opts, indexing.WithCache(e.cache))
	}
	if e.progress != nil {
		opts = append(opts, indexing.WithProgress(e.progress))
	}
	job, err := indexing.NewJob(provider.Embedder(), provider.ModelName(), opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create indexing job: %w", err)
	}
	idx, report, err := job.Run(ctx, docs, e.loader.Label())
	if err != nil {
		return nil, nil, fmt.Errorf("build index: %w", err)
	}
	if report.PersistErr != nil {
		e.logger.Warn("index built but not saved", "path", e.indexPath, "err", report.PersistErr)
	}
	return idx, report, nil
}

// Search answers req, initializing the engine first if no Init has completed.
// It never panics; a panic inside the query pipeline is reported as
// ErrQueryFailed.
func (e *Engine) Search(ctx context.Context, req core.SearchRequest) (*core.SearchResponse, error) {
	return e.SearchWithMonitor(ctx, req, nil)
}

// SearchWithMonitor answers req and reports each stage to monitor.
func (e *Engine) SearchWithMonitor(ctx context.Context, req core.SearchRequest, monitor search.SearchMonitor) (resp *core.SearchResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("query panicked", "panic", r)
			resp, err = nil, fmt.Errorf("%w: %v", ErrQueryFailed, r)
		}
	}()

	state, err := e.current()
	if errors.Is(err, ErrNotInitialized) {
		if err := e.run(ctx, "init", false); err != nil {
			return nil, err
		}
		state, err = e.current()
	}
	if err != nil {
		return nil, err
	}
	return state.searcher.SearchWithMonitor(ctx, req, monitor)
}

func (e *Engine) current() (*engineState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch {
	case e.closed:
		return nil, ErrEngineClosed
	case e.state != nil:
		return e.state, nil
	case e.initErr != nil:
		return nil, e.initErr
	}
	return nil, ErrNotInitialized
}

// Index returns the loaded index, or nil before a successful Init.
func (e *Engine) Index() *index.Index {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return nil
	}
	return e.state.index
}

// Report returns the report of the last rebuild, or nil when the index was loaded from disk.
func (e *Engine) Report() *indexing.Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return nil
	}
	return e.state.report
}

// Close releases the searcher and any provider the engine created.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.state != nil {
		e.state.searcher.Close()
		e.state = nil
	}
	return e.releaseModels()
}

// releaseModels closes an owned provider. Callers hold e.mu.
func (e *Engine) releaseModels() error {
	if !e.ownsModels || e.provider == nil {
		return nil
	}
	err := e.provider.Close()
	if err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}
	e.provider = nil
	e.ownsModels = false
	return err
}
