package pipeline

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmbedder(t *testing.T) EmbedFunc {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping embedder test in short mode (requires model download)")
	}

	embedder, err := DefaultEmbedder()
	require.NoError(t, err)
	require.NotNil(t, embedder)
	return embedder
}

func TestDefaultEmbedder(t *testing.T) {
	t.Run("Generate embedding for text", func(t *testing.T) {
		embedder := newTestEmbedder(t)

		embedding, err := embedder("Spaced repetition strengthens recall.")
		require.NoError(t, err)
		assert.Equal(t, EmbeddingDim, len(embedding))

		hasNonZero := false
		for _, val := range embedding {
			if val != 0 {
				hasNonZero = true
				break
			}
		}
		assert.True(t, hasNonZero, "Embedding should contain non-zero values")
	})

	t.Run("Same text produces same embedding", func(t *testing.T) {
		embedder := newTestEmbedder(t)

		text := "Deterministic embedding test"
		first, err := embedder(text)
		require.NoError(t, err)
		second, err := embedder(text)
		require.NoError(t, err)

		require.Equal(t, len(first), len(second))
		for i := range first {
			assert.InDelta(t, first[i], second[i], 0.0001)
		}
	})

	t.Run("Similar texts have similar embeddings", func(t *testing.T) {
		embedder := newTestEmbedder(t)

		dog, err := embedder("The dog is happy")
		require.NoError(t, err)
		puppy, err := embedder("The puppy is joyful")
		require.NoError(t, err)
		physics, err := embedder("Quantum physics is complex")
		require.NoError(t, err)

		assert.Greater(t, embeddingCosine(dog, puppy), embeddingCosine(dog, physics),
			"Semantically similar texts should have higher similarity")
	})

	t.Run("Empty text returns error", func(t *testing.T) {
		embedder := newTestEmbedder(t)

		_, err := embedder("   ")
		assert.Error(t, err)
	})

	t.Run("Handle long text", func(t *testing.T) {
		embedder := newTestEmbedder(t)

		longText := strings.Repeat("This sentence pads the input well past the model's context window. ", 100)
		embedding, err := embedder(longText)
		require.NoError(t, err)
		assert.Equal(t, EmbeddingDim, len(embedding))
	})
}

func embeddingCosine(a []float32, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
