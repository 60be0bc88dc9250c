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

package indexing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/poiesic/mizan/ai"
	"github.com/poiesic/mizan/core"
	"github.com/poiesic/mizan/index"
	"github.com/poiesic/mizan/storage"
)

// Config holds configuration for an indexing run.
type Config struct {
	// BatchSize is the number of documents embedded per call
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxAttempts is the number of tries per batch. In-process models fail
	// deterministically, so one attempt is the default.
	MaxAttempts int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// BatchesPerSecond throttles embedding calls. Zero disables throttling.
	BatchesPerSecond float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      32,
		ReportInterval: 200,
		MaxAttempts:    1,
		RetryDelay:     500 * time.Millisecond,
	}
}

func (c *Config) normalize() {
	d := DefaultConfig()
	if c.BatchSize < 1 {
		c.BatchSize = d.BatchSize
	}
	if c.ReportInterval < 1 {
		c.ReportInterval = d.ReportInterval
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
}

// Report summarizes a finished run.
type Report struct {
	RunID string

	// Documents is the number of input documents.
	Documents int
	// Skipped counts documents without an id or primary text.
	Skipped int
	// Indexed is the number of records in the resulting index.
	Indexed int

	FailedBatches   int
	FailedDocuments int
	CacheHits       int

	Elapsed time.Duration

	// IndexPath is where the index was saved, empty when persistence is off.
	IndexPath string
	// PersistErr is set when saving failed. The returned index is still usable.
	PersistErr error
}

// Job builds vector indexes. A Job runs at most once at a time.
type Job struct {
	embedder  ai.Embedder
	cache     storage.EmbeddingCache
	model     string
	config    *Config
	progress  io.Writer
	indexPath string
	logger    *slog.Logger
	mu        sync.Mutex
}

// Option configures a Job.
type Option func(*Job) error

// WithConfig replaces the default configuration.
func WithConfig(config *Config) Option {
	return func(j *Job) error {
		if config != nil {
			c := *config
			c.normalize()
			j.config = &c
		}
		return nil
	}
}

// WithCache reads and writes vectors through cache.
func WithCache(cache storage.EmbeddingCache) Option {
	return func(j *Job) error {
		j.cache = cache
		return nil
	}
}

// WithProgress writes progress lines to w (typically os.Stderr).
func WithProgress(w io.Writer) Option {
	return func(j *Job) error {
		j.progress = w
		return nil
	}
}

// WithIndexPath saves the index to path when a run completes.
func WithIndexPath(path string) Option {
	return func(j *Job) error {
		j.indexPath = path
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) error {
		if logger == nil {
			logger = slog.Default()
		}
		j.logger = logger.With("component", "indexing")
		return nil
	}
}

// NewJob creates an indexing job. model names the embedding model; it stamps
// the saved index and scopes cache entries.
func NewJob(embedder ai.Embedder, model string, opts ...Option) (*Job, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if model == "" {
		return nil, ErrModelRequired
	}

	j := &Job{
		embedder: embedder,
		model:    model,
		config:   DefaultConfig(),
		logger:   slog.Default().With("component", "indexing"),
	}
	for _, opt := range opts {
		if err := opt(j); err != nil {
			return nil, err
		}
	}
	return j, nil
}

// Run embeds docs in batches and returns the populated index.
//
// label names the auxiliary section of composite documents. A batch whose
// embedding call fails is skipped and counted in the report. Run only
// returns an error when it cannot start or ctx ends; a failure to save the
// index is reported in Report.PersistErr.
func (j *Job) Run(ctx context.Context, docs []*core.SourceDocument, label string) (*index.Index, *Report, error) {
	if !j.mu.TryLock() {
		return nil, nil, ErrJobRunning
	}
	defer j.mu.Unlock()

	report := &Report{RunID: uuid.NewString(), Documents: len(docs), IndexPath: j.indexPath}
	logger := j.logger.With("run_id", report.RunID)

	eligible := make([]*core.SourceDocument, 0, len(docs))
	for _, doc := range docs {
		if core.ValidateSourceDocument(doc) != nil || strings.TrimSpace(doc.PrimaryText) == "" {
			report.Skipped++
			continue
		}
		eligible = append(eligible, doc)
	}

	logger.Info("indexing started",
		"documents", len(eligible),
		"skipped", report.Skipped,
		"batch_size", j.config.BatchSize,
		"model", j.model)

	var limiter *rate.Limiter
	if j.config.BatchesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(j.config.BatchesPerSecond), 1)
	}

	processor := NewBatchProcessor(j.embedder, j.cache, j.model, j.config.MaxAttempts, j.config.RetryDelay, logger)
	tracker := NewProgressTracker(j.progress, len(eligible), j.config.ReportInterval, WithProgressLogger(logger))
	tracker.Start()

	idx := index.New(j.embedder.Dimension())
	for start := 0; start < len(eligible); start += j.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, report, err
			}
		}

		batch := eligible[start:min(start+j.config.BatchSize, len(eligible))]
		result, err := processor.Process(ctx, batch, label)
		if err == nil {
			err = addAll(idx, result.Records)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, report, ctx.Err()
			}
			report.FailedBatches++
			report.FailedDocuments += len(batch)
			logger.Warn("batch skipped", "first", batch[0].ID, "size", len(batch), "err", err)
		} else {
			report.CacheHits += result.CacheHits
		}
		tracker.Increment(len(batch))
	}
	tracker.Finish()

	report.Indexed = idx.Len()
	report.Elapsed = tracker.Elapsed()

	if j.indexPath != "" {
		if err := idx.Save(j.indexPath, index.CurrentStamp(j.model)); err != nil {
			report.PersistErr = fmt.Errorf("save index: %w", err)
			logger.Error("failed to persist index", "path", j.indexPath, "err", err)
		}
	}

	logger.Info("indexing complete",
		"indexed", report.Indexed,
		"failed_batches", report.FailedBatches,
		"cache_hits", report.CacheHits,
		"elapsed", report.Elapsed.Round(time.Millisecond))
	return idx, report, nil
}

// addAll appends records only if every one fits the index dimension, so a
// batch is either fully indexed or fully skipped.
func addAll(idx *index.Index, records []core.VectorRecord) error {
	dim := idx.Dimension()
	for _, rec := range records {
		if dim == 0 {
			dim = len(rec.Embedding)
		}
		if len(rec.Embedding) != dim || dim == 0 {
			return fmt.Errorf("%w: record %s has %d, want %d", index.ErrDimensionMismatch, rec.ID, len(rec.Embedding), dim)
		}
	}
	for _, rec := range records {
		if err := idx.Add(rec); err != nil {
			return err
		}
	}
	return nil
}
