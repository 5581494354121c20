package pipeline

import (
	"strings"
	"testing"

	"github.com/siherrmann/recall/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsOCR(t *testing.T) {
	t.Run("No pages", func(t *testing.T) {
		assert.False(t, NeedsOCR(nil))
	})

	t.Run("Text pages", func(t *testing.T) {
		pages := []model.PageText{
			{PageNumber: 1, Text: strings.Repeat("Plenty of extracted text. ", 10)},
		}
		assert.False(t, NeedsOCR(pages))
	})

	t.Run("Scanned pages", func(t *testing.T) {
		pages := []model.PageText{
			{PageNumber: 1, Text: "  \n "},
			{PageNumber: 2, Text: "Fig. 3"},
		}
		assert.True(t, NeedsOCR(pages))
	})

	t.Run("Mixed pages below average", func(t *testing.T) {
		pages := []model.PageText{
			{PageNumber: 1, Text: strings.Repeat("x", 60)},
			{PageNumber: 2, Text: ""},
			{PageNumber: 3, Text: ""},
		}
		assert.True(t, NeedsOCR(pages))
	})
}

func TestDefaultChunkerValidation(t *testing.T) {
	pages := []model.PageText{{PageNumber: 1, Text: "Some text."}}

	t.Run("Invalid target", func(t *testing.T) {
		_, err := DefaultChunker(0, 0)(pages)
		assert.Error(t, err)
	})

	t.Run("Overlap not below target", func(t *testing.T) {
		_, err := DefaultChunker(100, 100)(pages)
		assert.Error(t, err)
	})

	t.Run("Negative overlap", func(t *testing.T) {
		_, err := DefaultChunker(100, -1)(pages)
		assert.Error(t, err)
	})
}

func TestDefaultChunkerEmptyInput(t *testing.T) {
	chunker := DefaultChunker(DefaultTargetChars, DefaultOverlapChars)

	t.Run("No pages", func(t *testing.T) {
		chunks, err := chunker([]model.PageText{})
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("Whitespace only", func(t *testing.T) {
		chunks, err := chunker([]model.PageText{{PageNumber: 1, Text: "  \n\t "}})
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})
}

func TestDefaultChunkerSinglePage(t *testing.T) {
	chunker := DefaultChunker(DefaultTargetChars, DefaultOverlapChars)

	pages := []model.PageText{
		{PageNumber: 1, Text: "Alpha beta gamma. Delta epsilon zeta."},
	}
	chunks, err := chunker(pages)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, "Alpha beta gamma. Delta epsilon zeta.", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].CharStart)
	assert.Equal(t, len(chunks[0].Content), chunks[0].CharEnd)
	assert.Equal(t, len(chunks[0].Content)/4, chunks[0].TokenCount)
	require.NotNil(t, chunks[0].PageNumber)
	assert.Equal(t, 1, *chunks[0].PageNumber)
}

func TestDefaultChunkerOverlap(t *testing.T) {
	chunker := DefaultChunker(40, 20)

	pages := []model.PageText{
		{PageNumber: 1, Text: "Alpha beta gamma. Delta epsilon zeta. Eta theta iota."},
	}
	chunks, err := chunker(pages)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Alpha beta gamma. Delta epsilon zeta.", chunks[0].Content)
	assert.Equal(t, "Delta epsilon zeta. Eta theta iota.", chunks[1].Content)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 1, chunks[1].ChunkIndex)
	// The overlapping sentence keeps its original offsets.
	assert.Equal(t, 18, chunks[1].CharStart)
}

func TestDefaultChunkerHardSplit(t *testing.T) {
	chunker := DefaultChunker(10, 0)

	pages := []model.PageText{
		{PageNumber: 1, Text: "abcdefghijklmnopqrstuvwxyz"},
	}
	chunks, err := chunker(pages)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "abcdefghij", chunks[0].Content)
	assert.Equal(t, "klmnopqrst", chunks[1].Content)
	assert.Equal(t, "uvwxyz", chunks[2].Content)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.LessOrEqual(t, len(chunk.Content), 10)
	}
}

func TestDefaultChunkerPageAttribution(t *testing.T) {
	chunker := DefaultChunker(25, 0)

	pages := []model.PageText{
		{PageNumber: 1, Text: "First page sentence."},
		{PageNumber: 2, Text: "Second page sentence."},
	}
	chunks, err := chunker(pages)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	require.NotNil(t, chunks[0].PageNumber)
	assert.Equal(t, 1, *chunks[0].PageNumber)
	assert.Equal(t, "First page sentence.", chunks[0].Content)

	require.NotNil(t, chunks[1].PageNumber)
	assert.Equal(t, 2, *chunks[1].PageNumber)
	assert.Equal(t, "Second page sentence.", chunks[1].Content)
}

func TestDefaultChunkerParagraphBreaks(t *testing.T) {
	chunker := DefaultChunker(30, 0)

	pages := []model.PageText{
		{PageNumber: 1, Text: "Heading without punctuation\n\nBody sentence follows here."},
	}
	chunks, err := chunker(pages)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Heading without punctuation", chunks[0].Content)
	assert.Equal(t, "Body sentence follows here.", chunks[1].Content)
}

func TestDefaultChunkerDeterministic(t *testing.T) {
	chunker := DefaultChunker(DefaultTargetChars, DefaultOverlapChars)

	pages := []model.PageText{}
	for i := 1; i <= 5; i++ {
		pages = append(pages, model.PageText{
			PageNumber: i,
			Text:       strings.Repeat("A fact worth remembering. ", 40),
		})
	}

	first, err := chunker(pages)
	require.NoError(t, err)
	second, err := chunker(pages)
	require.NoError(t, err)

	require.Greater(t, len(first), 1)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Content, second[i].Content)
		assert.Equal(t, first[i].CharStart, second[i].CharStart)
		assert.Equal(t, first[i].CharEnd, second[i].CharEnd)
	}
}
