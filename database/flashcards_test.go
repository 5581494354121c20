package database

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/recall/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlashcardsNewFlashcardsDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewFlashcardsDBHandler", func(t *testing.T) {
		_, err := NewDocumentsDBHandler(database, true)
		require.NoError(t, err)
		_, err = NewChunksDBHandler(database, testEmbeddingDim, true)
		require.NoError(t, err)

		flashcardsDbHandler, err := NewFlashcardsDBHandler(database, true)
		assert.NoError(t, err, "Expected NewFlashcardsDBHandler to not return an error")
		require.NotNil(t, flashcardsDbHandler, "Expected NewFlashcardsDBHandler to return a non-nil instance")
	})

	t.Run("Invalid call NewFlashcardsDBHandler with nil database", func(t *testing.T) {
		_, err := NewFlashcardsDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating FlashcardsDBHandler with nil database")
	})
}

func initFlashcardsEnv(t *testing.T) (*DocumentsDBHandler, *ChunksDBHandler, *FlashcardsDBHandler) {
	t.Helper()
	database := initDB(t)

	documentsDbHandler, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err)
	chunksDbHandler, err := NewChunksDBHandler(database, testEmbeddingDim, true)
	require.NoError(t, err)
	flashcardsDbHandler, err := NewFlashcardsDBHandler(database, true)
	require.NoError(t, err)

	return documentsDbHandler, chunksDbHandler, flashcardsDbHandler
}

func TestFlashcardsInsertAndGet(t *testing.T) {
	documentsDbHandler, chunksDbHandler, flashcardsDbHandler := initFlashcardsEnv(t)

	doc := insertTestDocument(t, documentsDbHandler, "cards")
	chunk := &model.Chunk{DocumentID: doc.ID, ChunkIndex: 0, Content: "Card chunk", TokenCount: 2}
	err := chunksDbHandler.InsertChunk(chunk)
	require.NoError(t, err)

	t.Run("Insert flashcard", func(t *testing.T) {
		card := &model.Flashcard{
			DocumentID: doc.ID,
			ChunkID:    &chunk.ID,
			Question:   "What does a pointer hold?",
			Answer:     "The address of a value.",
		}

		err := flashcardsDbHandler.InsertFlashcard(card)
		assert.NoError(t, err, "Expected InsertFlashcard to not return an error")
		assert.NotEmpty(t, card.ID, "Expected inserted card to have an ID")
		assert.Equal(t, model.DefaultEaseFactor, card.EaseFactor, "Expected default ease factor")
		assert.Zero(t, card.IntervalDays, "Expected zero interval for new card")
		assert.Zero(t, card.Repetitions, "Expected zero repetitions for new card")
		assert.Nil(t, card.NextReview, "Expected no scheduled review for new card")

		retrieved, err := flashcardsDbHandler.SelectFlashcard(card.ID)
		assert.NoError(t, err)
		assert.Equal(t, card.Question, retrieved.Question)
		require.NotNil(t, retrieved.ChunkID)
		assert.Equal(t, chunk.ID, *retrieved.ChunkID)
	})

	t.Run("Insert manual flashcard without chunk", func(t *testing.T) {
		card := &model.Flashcard{
			DocumentID: doc.ID,
			Question:   "Manual question",
			Answer:     "Manual answer",
		}
		err := flashcardsDbHandler.InsertFlashcard(card)
		assert.NoError(t, err)
		assert.Nil(t, card.ChunkID, "Expected manual card to have no chunk")
	})

	t.Run("Get nonexistent flashcard", func(t *testing.T) {
		_, err := flashcardsDbHandler.SelectFlashcard(uuid.New())
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("Deleting the chunk keeps the card", func(t *testing.T) {
		card := &model.Flashcard{
			DocumentID: doc.ID,
			ChunkID:    &chunk.ID,
			Question:   "Orphan question",
			Answer:     "Orphan answer",
		}
		err := flashcardsDbHandler.InsertFlashcard(card)
		require.NoError(t, err)

		err = chunksDbHandler.DeleteChunk(chunk.ID)
		require.NoError(t, err)

		retrieved, err := flashcardsDbHandler.SelectFlashcard(card.ID)
		assert.NoError(t, err, "Expected card to survive chunk deletion")
		assert.Nil(t, retrieved.ChunkID, "Expected chunk reference to be nulled")
	})

	// Cleanup
	documentsDbHandler.DeleteDocument(doc.ID)
}

func TestFlashcardsDue(t *testing.T) {
	documentsDbHandler, _, flashcardsDbHandler := initFlashcardsEnv(t)

	doc := insertTestDocument(t, documentsDbHandler, "due")
	otherDoc := insertTestDocument(t, documentsDbHandler, "due-other")
	today := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	newCard := &model.Flashcard{DocumentID: doc.ID, Question: "New?", Answer: "Yes"}
	err := flashcardsDbHandler.InsertFlashcard(newCard)
	require.NoError(t, err)

	dueCard := &model.Flashcard{DocumentID: doc.ID, Question: "Due?", Answer: "Yes"}
	err = flashcardsDbHandler.InsertFlashcard(dueCard)
	require.NoError(t, err)
	past := today.AddDate(0, 0, -3)
	dueCard.EaseFactor = 2.5
	dueCard.IntervalDays = 1
	dueCard.Repetitions = 1
	dueCard.NextReview = &past
	err = flashcardsDbHandler.UpdateFlashcardReview(dueCard)
	require.NoError(t, err)

	futureCard := &model.Flashcard{DocumentID: otherDoc.ID, Question: "Future?", Answer: "No"}
	err = flashcardsDbHandler.InsertFlashcard(futureCard)
	require.NoError(t, err)
	future := today.AddDate(0, 0, 6)
	futureCard.EaseFactor = 2.5
	futureCard.IntervalDays = 6
	futureCard.Repetitions = 2
	futureCard.NextReview = &future
	err = flashcardsDbHandler.UpdateFlashcardReview(futureCard)
	require.NoError(t, err)

	t.Run("Due selection includes new and overdue cards", func(t *testing.T) {
		due, err := flashcardsDbHandler.SelectDueFlashcards(today, nil, 10)
		assert.NoError(t, err)
		require.Len(t, due, 2, "Expected new and overdue cards only")
		assert.Equal(t, newCard.ID, due[0].ID, "Expected never-reviewed card first")
		assert.Equal(t, dueCard.ID, due[1].ID)
	})

	t.Run("Due selection scoped to a document", func(t *testing.T) {
		due, err := flashcardsDbHandler.SelectDueFlashcards(today, &otherDoc.ID, 10)
		assert.NoError(t, err)
		assert.Empty(t, due, "Expected no due cards for the other document")
	})

	t.Run("Due selection respects limit", func(t *testing.T) {
		due, err := flashcardsDbHandler.SelectDueFlashcards(today, nil, 1)
		assert.NoError(t, err)
		assert.Len(t, due, 1)
	})

	t.Run("Stats count total and due per document", func(t *testing.T) {
		stats, err := flashcardsDbHandler.SelectFlashcardStatsByDocument(today)
		assert.NoError(t, err)
		require.Len(t, stats, 2)

		byID := map[uuid.UUID]*model.DocumentCardStats{}
		for _, s := range stats {
			byID[s.DocumentID] = s
		}
		require.Contains(t, byID, doc.ID)
		assert.Equal(t, 2, byID[doc.ID].TotalCards)
		assert.Equal(t, 2, byID[doc.ID].DueCards)
		require.Contains(t, byID, otherDoc.ID)
		assert.Equal(t, 1, byID[otherDoc.ID].TotalCards)
		assert.Equal(t, 0, byID[otherDoc.ID].DueCards)
	})

	// Cleanup
	documentsDbHandler.DeleteDocument(doc.ID)
	documentsDbHandler.DeleteDocument(otherDoc.ID)
}

func TestFlashcardsUpdate(t *testing.T) {
	documentsDbHandler, _, flashcardsDbHandler := initFlashcardsEnv(t)

	doc := insertTestDocument(t, documentsDbHandler, "card-update")
	card := &model.Flashcard{DocumentID: doc.ID, Question: "Original question", Answer: "Original answer"}
	err := flashcardsDbHandler.InsertFlashcard(card)
	require.NoError(t, err)

	t.Run("Update review state", func(t *testing.T) {
		next := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
		card.EaseFactor = 2.65
		card.IntervalDays = 6
		card.Repetitions = 2
		card.NextReview = &next

		err := flashcardsDbHandler.UpdateFlashcardReview(card)
		assert.NoError(t, err, "Expected UpdateFlashcardReview to not return an error")
		assert.Equal(t, 2.65, card.EaseFactor)
		assert.Equal(t, 6, card.IntervalDays)
		require.NotNil(t, card.NextReview)
		assert.Equal(t, next.Format("2006-01-02"), card.NextReview.Format("2006-01-02"))
	})

	t.Run("Update content keeps empty fields", func(t *testing.T) {
		updated, err := flashcardsDbHandler.UpdateFlashcardContent(card.ID, "Edited question", "")
		assert.NoError(t, err)
		assert.Equal(t, "Edited question", updated.Question)
		assert.Equal(t, "Original answer", updated.Answer, "Expected empty answer to keep the old value")
	})

	t.Run("Update content of nonexistent card", func(t *testing.T) {
		_, err := flashcardsDbHandler.UpdateFlashcardContent(uuid.New(), "q", "a")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("Delete flashcard", func(t *testing.T) {
		err := flashcardsDbHandler.DeleteFlashcard(card.ID)
		assert.NoError(t, err)

		_, err = flashcardsDbHandler.SelectFlashcard(card.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	// Cleanup
	documentsDbHandler.DeleteDocument(doc.ID)
}
