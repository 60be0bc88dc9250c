package indexing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/mizan/ai/mock"
	"github.com/poiesic/mizan/core"
	"github.com/poiesic/mizan/index"
	"github.com/poiesic/mizan/storage/badger"
)

const testModel = "mock-embedder:8"

func makeDocs(n int) []*core.SourceDocument {
	docs := make([]*core.SourceDocument, n)
	for i := range docs {
		docs[i] = &core.SourceDocument{
			ID:          fmt.Sprint(i + 1),
			PrimaryText: fmt.Sprintf("narration number %d", i+1),
			Metadata:    map[string]string{core.MetaCollection: "bukhari"},
		}
		if i%2 == 0 {
			docs[i].AuxiliaryText = "Abu Hurairah"
		}
	}
	return docs
}

func newEmbedder() *mock.MockEmbedder {
	return &mock.MockEmbedder{Dim: 8}
}

func fastConfig() *Config {
	return &Config{BatchSize: 32, ReportInterval: 200, MaxAttempts: 1, RetryDelay: time.Millisecond}
}

func TestJob_Run(t *testing.T) {
	embedder := newEmbedder()
	var progress bytes.Buffer
	job, err := NewJob(embedder, testModel, WithConfig(fastConfig()), WithProgress(&progress))
	require.NoError(t, err)

	docs := makeDocs(70)
	docs = append(docs,
		&core.SourceDocument{ID: "empty", PrimaryText: "   "},
		&core.SourceDocument{PrimaryText: "no id"},
		nil,
	)

	idx, report, err := job.Run(context.Background(), docs, "Narrated by")
	require.NoError(t, err)

	assert.Equal(t, 70, idx.Len())
	assert.Equal(t, 8, idx.Dimension())
	assert.Equal(t, 73, report.Documents)
	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, 70, report.Indexed)
	assert.Zero(t, report.FailedBatches)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, embedder.CallCount(), "70 documents in batches of 32")
	assert.Contains(t, progress.String(), "Indexed 70/70")

	first, ok := idx.Record(0)
	require.True(t, ok)
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "narration number 1\n\nNarrated by: Abu Hurairah", first.Document)
	assert.Equal(t, "bukhari", first.Metadata[core.MetaCollection])

	second, _ := idx.Record(1)
	assert.Equal(t, "narration number 2", second.Document)

	for _, rec := range idx.Records() {
		assert.InDelta(t, 1.0, core.Magnitude(rec.Embedding), 1e-5)
	}
}

func TestJob_NormalizesVectors(t *testing.T) {
	embedder := newEmbedder()
	embedder.Dim = 3
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1, 2, 2}
		}
		return out, nil
	}
	job, err := NewJob(embedder, testModel)
	require.NoError(t, err)

	idx, _, err := job.Run(context.Background(), makeDocs(2), "Narrated by")
	require.NoError(t, err)
	rec, _ := idx.Record(0)
	assert.InDeltaSlice(t, []float32{1.0 / 3, 2.0 / 3, 2.0 / 3}, rec.Embedding, 1e-6)
}

func TestJob_SkipsFailedBatch(t *testing.T) {
	embedder := newEmbedder()
	var calls atomic.Int32
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 2 {
			return nil, errors.New("inference failed")
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.DeterministicVector(text, 8)
		}
		return out, nil
	}
	job, err := NewJob(embedder, testModel, WithConfig(fastConfig()))
	require.NoError(t, err)

	idx, report, err := job.Run(context.Background(), makeDocs(70), "Narrated by")
	require.NoError(t, err)
	assert.Equal(t, 38, idx.Len())
	assert.Equal(t, 1, report.FailedBatches)
	assert.Equal(t, 32, report.FailedDocuments)

	rec, ok := idx.Record(32)
	require.True(t, ok)
	assert.Equal(t, "65", rec.ID, "documents 33..64 are absent")
}

func TestJob_RetriesBatch(t *testing.T) {
	embedder := newEmbedder()
	var calls atomic.Int32
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("temporary")
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.DeterministicVector(text, 8)
		}
		return out, nil
	}
	cfg := fastConfig()
	cfg.MaxAttempts = 2
	job, err := NewJob(embedder, testModel, WithConfig(cfg))
	require.NoError(t, err)

	idx, report, err := job.Run(context.Background(), makeDocs(10), "Narrated by")
	require.NoError(t, err)
	assert.Equal(t, 10, idx.Len())
	assert.Zero(t, report.FailedBatches)
	assert.Equal(t, int32(2), calls.Load())
}

func TestJob_CountMismatchSkipsBatch(t *testing.T) {
	embedder := newEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		return [][]float32{mock.DeterministicVector("x", 8)}, nil
	}
	job, err := NewJob(embedder, testModel)
	require.NoError(t, err)

	idx, report, err := job.Run(context.Background(), makeDocs(5), "Narrated by")
	require.NoError(t, err)
	assert.Zero(t, idx.Len())
	assert.Equal(t, 1, report.FailedBatches)
}

func TestJob_DimensionMismatchSkipsBatch(t *testing.T) {
	embedder := newEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1, 0}
		}
		return out, nil
	}
	job, err := NewJob(embedder, testModel)
	require.NoError(t, err)

	idx, report, err := job.Run(context.Background(), makeDocs(3), "Narrated by")
	require.NoError(t, err)
	assert.Zero(t, idx.Len())
	assert.Equal(t, 1, report.FailedBatches)
}

func TestJob_UsesCache(t *testing.T) {
	cache, err := badger.NewMemoryEmbeddingCache()
	require.NoError(t, err)
	defer cache.Close()

	embedder := newEmbedder()
	job, err := NewJob(embedder, testModel, WithCache(cache), WithConfig(fastConfig()))
	require.NoError(t, err)

	docs := makeDocs(40)
	first, report, err := job.Run(context.Background(), docs, "Narrated by")
	require.NoError(t, err)
	assert.Zero(t, report.CacheHits)

	count, err := cache.CountEmbeddings(context.Background(), testModel)
	require.NoError(t, err)
	assert.Equal(t, 40, count)

	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("embedder must not be called")
	}
	second, report, err := job.Run(context.Background(), docs, "Narrated by")
	require.NoError(t, err)
	assert.Equal(t, 40, report.CacheHits)
	assert.Zero(t, report.FailedBatches)
	assert.Equal(t, first.Records(), second.Records())

	// A changed document is a cache miss.
	docs[0].PrimaryText = "edited narration"
	_, report, err = job.Run(context.Background(), docs, "Narrated by")
	require.NoError(t, err)
	assert.Equal(t, 1, report.FailedBatches)
	assert.Equal(t, 8, report.CacheHits, "second batch is fully cached")
}

func TestJob_DoesNotCacheZeroVectors(t *testing.T) {
	cache, err := badger.NewMemoryEmbeddingCache()
	require.NoError(t, err)
	defer cache.Close()

	embedder := newEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		vectors[0] = make([]float32, 8)
		for i := 1; i < len(texts); i++ {
			vectors[i] = mock.DeterministicVector(texts[i], 8)
		}
		return vectors, nil
	}
	job, err := NewJob(embedder, testModel, WithCache(cache), WithConfig(fastConfig()))
	require.NoError(t, err)

	docs := makeDocs(3)
	_, report, err := job.Run(context.Background(), docs, "Narrated by")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Indexed)

	count, err := cache.CountEmbeddings(context.Background(), testModel)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "the failed text is not cached")

	embedder.EmbedTextsFunc = nil
	idx, report, err := job.Run(context.Background(), docs, "Narrated by")
	require.NoError(t, err)
	assert.Equal(t, 2, report.CacheHits)

	first, ok := idx.Record(0)
	require.True(t, ok)
	assert.InDelta(t, 1, core.Magnitude(first.Embedding), 1e-5)
}

func TestJob_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "narrations.json")
	job, err := NewJob(newEmbedder(), testModel, WithIndexPath(path))
	require.NoError(t, err)

	idx, report, err := job.Run(context.Background(), makeDocs(5), "Narrated by")
	require.NoError(t, err)
	require.NoError(t, report.PersistErr)
	assert.Equal(t, path, report.IndexPath)

	loaded, err := index.Load(path, index.CurrentStamp(testModel))
	require.NoError(t, err)
	assert.Equal(t, idx.Records(), loaded.Records())
}

func TestJob_PersistFailureKeepsIndex(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	job, err := NewJob(newEmbedder(), testModel, WithIndexPath(filepath.Join(blocker, "index.json")))
	require.NoError(t, err)

	idx, report, err := job.Run(context.Background(), makeDocs(5), "Narrated by")
	require.NoError(t, err)
	assert.Error(t, report.PersistErr)
	assert.Equal(t, 5, idx.Len())
}

func TestJob_EmptyCorpus(t *testing.T) {
	job, err := NewJob(newEmbedder(), testModel)
	require.NoError(t, err)

	idx, report, err := job.Run(context.Background(), nil, "Commentary")
	require.NoError(t, err)
	assert.Zero(t, idx.Len())
	assert.Zero(t, report.Indexed)

	hits, err := idx.Search(mock.DeterministicVector("query", 8), 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestJob_RejectsConcurrentRun(t *testing.T) {
	embedder := newEmbedder()
	entered := make(chan struct{})
	release := make(chan struct{})
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		close(entered)
		<-release
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.DeterministicVector(text, 8)
		}
		return out, nil
	}
	job, err := NewJob(embedder, testModel)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, _, err := job.Run(context.Background(), makeDocs(3), "Narrated by")
		done <- err
	}()

	<-entered
	_, _, err = job.Run(context.Background(), makeDocs(3), "Narrated by")
	assert.ErrorIs(t, err, ErrJobRunning)

	close(release)
	require.NoError(t, <-done)
}

func TestJob_Cancelled(t *testing.T) {
	embedder := newEmbedder()
	ctx, cancel := context.WithCancel(context.Background())
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		cancel()
		return nil, ctx.Err()
	}
	job, err := NewJob(embedder, testModel, WithConfig(fastConfig()))
	require.NoError(t, err)

	idx, _, err := job.Run(ctx, makeDocs(70), "Narrated by")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, idx)
	assert.Equal(t, 1, embedder.CallCount())
}

func TestJob_Throttled(t *testing.T) {
	cfg := fastConfig()
	cfg.BatchSize = 2
	cfg.BatchesPerSecond = 1000
	job, err := NewJob(newEmbedder(), testModel, WithConfig(cfg))
	require.NoError(t, err)

	idx, _, err := job.Run(context.Background(), makeDocs(6), "Narrated by")
	require.NoError(t, err)
	assert.Equal(t, 6, idx.Len())
}

func TestNewJob_Errors(t *testing.T) {
	_, err := NewJob(nil, testModel)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewJob(newEmbedder(), "")
	assert.ErrorIs(t, err, ErrModelRequired)
}

func TestConfig_Normalize(t *testing.T) {
	job, err := NewJob(newEmbedder(), testModel, WithConfig(&Config{}))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), job.config)
}
