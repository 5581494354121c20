package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/recall/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConceptsNewConceptsDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewConceptsDBHandler", func(t *testing.T) {
		conceptsDbHandler, err := NewConceptsDBHandler(database, true)
		assert.NoError(t, err, "Expected NewConceptsDBHandler to not return an error")
		require.NotNil(t, conceptsDbHandler, "Expected NewConceptsDBHandler to return a non-nil instance")
	})

	t.Run("Invalid call NewConceptsDBHandler with nil database", func(t *testing.T) {
		_, err := NewConceptsDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating ConceptsDBHandler with nil database")
	})
}

func TestConceptsUpsert(t *testing.T) {
	database := initDB(t)

	conceptsDbHandler, err := NewConceptsDBHandler(database, true)
	require.NoError(t, err)

	t.Run("Upsert creates a new concept", func(t *testing.T) {
		description := "A typed pointer in Go"
		concept := &model.Concept{
			Name:        "Pointer Types",
			Category:    model.CategoryProgramming,
			Description: &description,
		}

		created, err := conceptsDbHandler.UpsertConcept(concept)
		assert.NoError(t, err, "Expected UpsertConcept to not return an error")
		assert.True(t, created, "Expected first upsert to create")
		assert.NotEmpty(t, concept.ID)
		assert.Equal(t, "pointer types", concept.NormalizedName, "Expected normalized name to be derived")
		assert.Equal(t, float64(0), concept.Mastery, "Expected new concept to start at zero mastery")

		// Cleanup
		conceptsDbHandler.DeleteConcept(concept.ID)
	})

	t.Run("Upsert reuses by normalized name", func(t *testing.T) {
		first := &model.Concept{Name: "Hash Tables", Category: model.CategoryProgramming}
		created, err := conceptsDbHandler.UpsertConcept(first)
		require.NoError(t, err)
		require.True(t, created)

		// Different casing and spacing, same identity
		second := &model.Concept{Name: "  hash   TABLES ", Category: model.CategoryProgramming}
		created, err = conceptsDbHandler.UpsertConcept(second)
		assert.NoError(t, err)
		assert.False(t, created, "Expected second upsert to reuse")
		assert.Equal(t, first.ID, second.ID, "Expected the same concept row")

		// Cleanup
		conceptsDbHandler.DeleteConcept(first.ID)
	})

	t.Run("Upsert fills missing description but never overwrites", func(t *testing.T) {
		concept := &model.Concept{Name: "Binary Search", Category: model.CategoryProgramming}
		_, err := conceptsDbHandler.UpsertConcept(concept)
		require.NoError(t, err)
		require.Nil(t, concept.Description)

		filled := "Halving search over sorted data"
		again := &model.Concept{Name: "Binary Search", Category: model.CategoryProgramming, Description: &filled}
		_, err = conceptsDbHandler.UpsertConcept(again)
		assert.NoError(t, err)
		require.NotNil(t, again.Description)
		assert.Equal(t, filled, *again.Description, "Expected empty description to be filled")

		other := "Different wording"
		third := &model.Concept{Name: "Binary Search", Category: model.CategoryProgramming, Description: &other}
		_, err = conceptsDbHandler.UpsertConcept(third)
		assert.NoError(t, err)
		require.NotNil(t, third.Description)
		assert.Equal(t, filled, *third.Description, "Expected existing description to be kept")

		// Cleanup
		conceptsDbHandler.DeleteConcept(concept.ID)
	})
}

func TestConceptsGet(t *testing.T) {
	database := initDB(t)

	conceptsDbHandler, err := NewConceptsDBHandler(database, true)
	require.NoError(t, err)

	concept := &model.Concept{Name: "Recursion", Category: model.CategoryProgramming}
	_, err = conceptsDbHandler.UpsertConcept(concept)
	require.NoError(t, err)

	t.Run("Get concept by ID", func(t *testing.T) {
		retrieved, err := conceptsDbHandler.SelectConcept(concept.ID)
		assert.NoError(t, err)
		assert.Equal(t, concept.Name, retrieved.Name)
	})

	t.Run("Get concept by normalized name", func(t *testing.T) {
		retrieved, err := conceptsDbHandler.SelectConceptByNormalizedName("recursion")
		assert.NoError(t, err)
		assert.Equal(t, concept.ID, retrieved.ID)
	})

	t.Run("Get nonexistent concept", func(t *testing.T) {
		_, err := conceptsDbHandler.SelectConcept(uuid.New())
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("Get concepts by IDs", func(t *testing.T) {
		concepts, err := conceptsDbHandler.SelectConceptsByIDs([]uuid.UUID{concept.ID})
		assert.NoError(t, err)
		require.Len(t, concepts, 1)
		assert.Equal(t, concept.ID, concepts[0].ID)
	})

	t.Run("Get concepts by empty ID list", func(t *testing.T) {
		concepts, err := conceptsDbHandler.SelectConceptsByIDs(nil)
		assert.NoError(t, err)
		assert.Empty(t, concepts)
	})

	// Cleanup
	conceptsDbHandler.DeleteConcept(concept.ID)
}

func TestConceptsGetAll(t *testing.T) {
	database := initDB(t)

	conceptsDbHandler, err := NewConceptsDBHandler(database, true)
	require.NoError(t, err)

	names := map[string]model.ConceptCategory{
		"Limits":        model.CategoryMathematics,
		"Derivatives":   model.CategoryMathematics,
		"Load Balancer": model.CategoryEngineering,
	}
	var created []*model.Concept
	for name, category := range names {
		concept := &model.Concept{Name: name, Category: category}
		_, err = conceptsDbHandler.UpsertConcept(concept)
		require.NoError(t, err)
		created = append(created, concept)
	}

	t.Run("Get all concepts", func(t *testing.T) {
		concepts, err := conceptsDbHandler.SelectAllConcepts(nil, 100)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, len(concepts), len(names))
	})

	t.Run("Get all concepts filtered by category", func(t *testing.T) {
		category := model.CategoryMathematics
		concepts, err := conceptsDbHandler.SelectAllConcepts(&category, 100)
		assert.NoError(t, err)
		for _, concept := range concepts {
			assert.Equal(t, model.CategoryMathematics, concept.Category, "Expected only the filtered category")
		}
	})

	// Cleanup
	for _, concept := range created {
		conceptsDbHandler.DeleteConcept(concept.ID)
	}
}

func TestConceptsMasteryFromChunk(t *testing.T) {
	database := initDB(t)

	documentsDbHandler, err := NewDocumentsDBHandler(database, true)
	require.NoError(t, err)
	chunksDbHandler, err := NewChunksDBHandler(database, testEmbeddingDim, true)
	require.NoError(t, err)
	conceptsDbHandler, err := NewConceptsDBHandler(database, true)
	require.NoError(t, err)
	edgesDbHandler, err := NewEdgesDBHandler(database, true)
	require.NoError(t, err)

	doc := insertTestDocument(t, documentsDbHandler, "mastery")
	chunk := &model.Chunk{DocumentID: doc.ID, ChunkIndex: 0, Content: "Mastery chunk", TokenCount: 2}
	err = chunksDbHandler.InsertChunk(chunk)
	require.NoError(t, err)

	concept := &model.Concept{Name: "Interfaces", Category: model.CategoryProgramming}
	_, err = conceptsDbHandler.UpsertConcept(concept)
	require.NoError(t, err)

	_, err = edgesDbHandler.UpsertExtractedFrom(concept.ID, chunk.ID, 1.0)
	require.NoError(t, err)

	t.Run("Correct review moves mastery toward one", func(t *testing.T) {
		updated, err := conceptsDbHandler.UpdateConceptMasteryFromChunk(chunk.ID, 1)
		assert.NoError(t, err)
		assert.Equal(t, 1, updated, "Expected one concept to be updated")

		retrieved, err := conceptsDbHandler.SelectConcept(concept.ID)
		require.NoError(t, err)
		assert.InDelta(t, 0.2, retrieved.Mastery, 1e-9, "Expected 0*0.8 + 1*0.2")
		assert.Equal(t, 1, retrieved.ReviewCount)
	})

	t.Run("Incorrect review decays mastery", func(t *testing.T) {
		_, err := conceptsDbHandler.UpdateConceptMasteryFromChunk(chunk.ID, 0)
		assert.NoError(t, err)

		retrieved, err := conceptsDbHandler.SelectConcept(concept.ID)
		require.NoError(t, err)
		assert.InDelta(t, 0.16, retrieved.Mastery, 1e-9, "Expected 0.2*0.8 + 0*0.2")
		assert.Equal(t, 2, retrieved.ReviewCount)
	})

	t.Run("Chunk without provenance updates nothing", func(t *testing.T) {
		updated, err := conceptsDbHandler.UpdateConceptMasteryFromChunk(uuid.New(), 1)
		assert.NoError(t, err)
		assert.Zero(t, updated, "Expected no concepts for unknown chunk")
	})

	// Cleanup
	conceptsDbHandler.DeleteConcept(concept.ID)
	documentsDbHandler.DeleteDocument(doc.ID)
}
