package local

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/mizan/ai"
	"github.com/poiesic/mizan/core"
	"github.com/poiesic/mizan/nn"
)

var testVocab = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]",
	"what", "is", "patience", "mercy", "charity", "the", "of", "god",
	"prayer", "fasting", "night", "day", "light", "##s", ".", "?",
}

// writeModel creates a tiny random BERT model directory.
func writeModel(t *testing.T, labels, maxPositions int, seed uint64) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, VocabFile), []byte(strings.Join(testVocab, "\n")), 0o644))
	cfg := nn.Config{
		VocabSize:             len(testVocab),
		HiddenSize:            8,
		NumHiddenLayers:       1,
		NumAttentionHeads:     2,
		IntermediateSize:      16,
		MaxPositionEmbeddings: maxPositions,
	}
	require.NoError(t, nn.WriteTestModel(dir, cfg, labels, seed))
	return dir
}

func newTestProvider(t *testing.T, embedDir, rerankDir string, maxLen int) *Provider {
	t.Helper()
	cfg := ai.NewConfig(
		ai.WithEmbeddingModelDir(embedDir),
		ai.WithRerankerModelDir(rerankDir),
		ai.WithMaxSequenceLength(maxLen),
		ai.WithPoolSize(4),
	)
	p, err := newProvider(cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestEmbedder_UnitNormAndDeterminism(t *testing.T) {
	p := newTestProvider(t, writeModel(t, 0, 32, 1), "", 32)
	e := p.Embedder()
	ctx := context.Background()

	assert.Equal(t, 8, e.Dimension())

	texts := []string{"what is patience?", "the mercy of god", "prayer at night", "what is patience?"}
	vecs, err := e.EmbedTexts(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))

	for i, v := range vecs {
		require.Len(t, v, 8)
		assert.InDelta(t, 1.0, core.Magnitude(v), 1e-5, "text %d", i)
	}
	assert.Equal(t, vecs[0], vecs[3])
	assert.NotEqual(t, vecs[0], vecs[1])

	single, err := e.EmbedText(ctx, "the mercy of god")
	require.NoError(t, err)
	assert.InDeltaSlice(t, vecs[1], single, 1e-6)
}

func TestEmbedder_PaddingLengthDoesNotMatter(t *testing.T) {
	dir := writeModel(t, 0, 64, 2)
	short := newTestProvider(t, dir, "", 16)
	long := newTestProvider(t, dir, "", 64)

	a, err := short.Embedder().EmbedText(context.Background(), "fasting by day")
	require.NoError(t, err)
	b, err := long.Embedder().EmbedText(context.Background(), "fasting by day")
	require.NoError(t, err)
	assert.InDeltaSlice(t, a, b, 1e-6)
}

func TestEmbedder_FailureYieldsZeroVectorForThatTextOnly(t *testing.T) {
	// The tokenizer allows 32 positions but the model only embeds 6,
	// so long texts fail inside the forward pass.
	p := newTestProvider(t, writeModel(t, 0, 6, 3), "", 32)

	long := "the mercy of god is the light of the night and the day"
	vecs, err := p.Embedder().EmbedTexts(context.Background(), []string{"patience", long, "mercy"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	assert.InDelta(t, 1.0, core.Magnitude(vecs[0]), 1e-5)
	assert.Equal(t, make([]float32, 8), vecs[1])
	assert.InDelta(t, 1.0, core.Magnitude(vecs[2]), 1e-5)
}

func TestEmbedder_CancelledContext(t *testing.T) {
	p := newTestProvider(t, writeModel(t, 0, 32, 4), "", 32)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Embedder().EmbedTexts(ctx, []string{"patience"})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = p.Embedder().EmbedText(ctx, "patience")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmbedder_ConcurrentCallers(t *testing.T) {
	p := newTestProvider(t, writeModel(t, 0, 32, 5), "", 32)
	e := p.Embedder()

	want, err := e.EmbedText(context.Background(), "charity")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][][]float32, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = e.EmbedTexts(context.Background(), []string{"charity", "prayer"})
		}()
	}
	wg.Wait()

	for i, r := range results {
		require.Len(t, r, 2, "caller %d", i)
		assert.InDeltaSlice(t, want, r[0], 1e-6)
	}
}

func TestReranker_Probabilities(t *testing.T) {
	for _, labels := range []int{1, 3} {
		t.Run(fmt.Sprintf("%d labels", labels), func(t *testing.T) {
			p := newTestProvider(t, writeModel(t, 0, 32, 6), writeModel(t, labels, 32, 7), 32)
			r := p.Reranker()
			require.NotNil(t, r)

			ctx := context.Background()
			s1, err := r.Score(ctx, "what is patience?", "patience is light")
			require.NoError(t, err)
			s2, err := r.Score(ctx, "what is patience?", "patience is light")
			require.NoError(t, err)

			assert.Equal(t, s1, s2)
			assert.GreaterOrEqual(t, s1, float32(0))
			assert.LessOrEqual(t, s1, float32(1))
		})
	}
}

func TestProbability(t *testing.T) {
	assert.Equal(t, float32(0), probability(nil))
	assert.InDelta(t, 0.5, probability([]float32{0}), 1e-6)
	assert.InDelta(t, 0.5, probability([]float32{2, 2}), 1e-6)
	assert.Greater(t, probability([]float32{-3, 3}), float32(0.99))
}

func TestNewProvider_Errors(t *testing.T) {
	t.Run("missing embedding model", func(t *testing.T) {
		_, err := NewProvider(ai.NewConfig(ai.WithEmbeddingModelDir(t.TempDir()), ai.WithRerankerModelDir("")))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("reranker without classification head", func(t *testing.T) {
		cfg := ai.NewConfig(
			ai.WithEmbeddingModelDir(writeModel(t, 0, 32, 8)),
			ai.WithRerankerModelDir(writeModel(t, 0, 32, 9)),
		)
		_, err := NewProvider(cfg)
		assert.ErrorIs(t, err, nn.ErrNoClassifier)
	})

	t.Run("vocabulary larger than model", func(t *testing.T) {
		dir := writeModel(t, 0, 32, 10)
		extra := strings.Join(append(append([]string{}, testVocab...), "extra"), "\n")
		require.NoError(t, os.WriteFile(filepath.Join(dir, VocabFile), []byte(extra), 0o644))
		_, err := NewProvider(ai.NewConfig(ai.WithEmbeddingModelDir(dir), ai.WithRerankerModelDir("")))
		assert.Error(t, err)
	})
}

func TestProvider_ModelNameAndOptionalReranker(t *testing.T) {
	dir := writeModel(t, 0, 32, 11)
	p := newTestProvider(t, dir, "", 32)

	assert.Nil(t, p.Reranker())
	assert.Equal(t, "local:"+filepath.Base(dir)+":8", p.ModelName())
}

func TestLoadModel_CasePreserved(t *testing.T) {
	dir := writeModel(t, 0, 32, 12)
	require.NoError(t, os.WriteFile(filepath.Join(dir, TokenizerConfigFile), []byte(`{"do_lower_case": false}`), 0o644))

	_, tok, err := loadModel(dir, 16)
	require.NoError(t, err)

	// "Mercy" is not in the cased vocabulary, so it maps to [UNK] (id 1).
	enc := tok.Encode("Mercy")
	assert.Equal(t, []int64{2, 1, 3}, enc.IDs[:3])
}
