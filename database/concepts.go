package database

import (
	"context"
	dbsql "database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/siherrmann/recall/helper"
	"github.com/siherrmann/recall/model"
	"github.com/siherrmann/recall/sql"
)

// ConceptsDBHandlerFunctions defines the interface for Concepts database operations.
type ConceptsDBHandlerFunctions interface {
	UpsertConcept(concept *model.Concept) (created bool, err error)
	InsertConcept(concept *model.Concept) error
	SelectConcept(id uuid.UUID) (*model.Concept, error)
	SelectConceptByNormalizedName(normalizedName string) (*model.Concept, error)
	SelectAllConcepts(category *model.ConceptCategory, limit int) ([]*model.Concept, error)
	SelectConceptsByIDs(ids []uuid.UUID) ([]*model.Concept, error)
	SelectConceptsByDocument(documentID uuid.UUID) ([]*model.Concept, error)
	UpdateConceptMasteryFromChunk(chunkID uuid.UUID, correctness float64) (int, error)
	DeleteConcept(id uuid.UUID) error
}

// ConceptsDBHandler handles concept-related database operations
type ConceptsDBHandler struct {
	db *helper.Database
}

// NewConceptsDBHandler creates a new concepts database handler.
// It initializes the database connection and loads concept-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewConceptsDBHandler(db *helper.Database, force bool) (*ConceptsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	conceptsDbHandler := &ConceptsDBHandler{
		db: db,
	}

	err := sql.LoadConceptsSql(conceptsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load concepts sql", err)
	}

	err = conceptsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ConceptsDBHandler")

	return conceptsDbHandler, nil
}

// CreateTable creates the 'concepts' table in the database.
// If the table already exists, it does not create it again.
func (h *ConceptsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_concepts();`)
	if err != nil {
		log.Panicf("error initializing concepts table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table concepts")

	return nil
}

func scanConcept(row interface{ Scan(...any) error }, concept *model.Concept) error {
	return row.Scan(
		&concept.ID,
		&concept.Name,
		&concept.NormalizedName,
		&concept.Category,
		&concept.Description,
		&concept.Mastery,
		&concept.ReviewCount,
		&concept.CreatedAt,
	)
}

// UpsertConcept inserts a concept or reuses the existing one with the same
// normalized name. On reuse a missing description is filled in but an
// existing one is never overwritten. The returned flag reports whether a
// new row was created.
func (h *ConceptsDBHandler) UpsertConcept(concept *model.Concept) (bool, error) {
	if concept.NormalizedName == "" {
		concept.NormalizedName = model.NormalizeConceptName(concept.Name)
	}

	var created bool
	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_concept($1, $2, $3, $4)`,
		concept.Name,
		concept.NormalizedName,
		string(concept.Category),
		concept.Description,
	)

	err := row.Scan(
		&concept.ID,
		&concept.Name,
		&concept.NormalizedName,
		&concept.Category,
		&concept.Description,
		&concept.Mastery,
		&concept.ReviewCount,
		&concept.CreatedAt,
		&created,
	)
	if err != nil {
		return false, helper.NewError("scan", err)
	}

	return created, nil
}

// InsertConcept inserts a new concept without conflict handling
func (h *ConceptsDBHandler) InsertConcept(concept *model.Concept) error {
	if concept.NormalizedName == "" {
		concept.NormalizedName = model.NormalizeConceptName(concept.Name)
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_concept($1, $2, $3, $4)`,
		concept.Name,
		concept.NormalizedName,
		string(concept.Category),
		concept.Description,
	)

	err := scanConcept(row, concept)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectConcept retrieves a concept by ID
func (h *ConceptsDBHandler) SelectConcept(id uuid.UUID) (*model.Concept, error) {
	concept := &model.Concept{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_concept($1)`,
		id,
	)

	err := scanConcept(row, concept)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, model.ErrNotFound
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return concept, nil
}

// SelectConceptByNormalizedName retrieves a concept by its normalized name
func (h *ConceptsDBHandler) SelectConceptByNormalizedName(normalizedName string) (*model.Concept, error) {
	concept := &model.Concept{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_concept_by_normalized_name($1)`,
		normalizedName,
	)

	err := scanConcept(row, concept)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, model.ErrNotFound
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return concept, nil
}

// SelectAllConcepts retrieves all concepts, optionally filtered by category
func (h *ConceptsDBHandler) SelectAllConcepts(category *model.ConceptCategory, limit int) ([]*model.Concept, error) {
	var categoryString *string
	if category != nil {
		s := string(*category)
		categoryString = &s
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_all_concepts($1, $2)`,
		categoryString,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectConcepts(rows)
}

// SelectConceptsByIDs retrieves all concepts with the given IDs
func (h *ConceptsDBHandler) SelectConceptsByIDs(ids []uuid.UUID) ([]*model.Concept, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	idStrings := make([]string, 0, len(ids))
	for _, id := range ids {
		idStrings = append(idStrings, id.String())
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_concepts_by_ids($1::uuid[])`,
		pq.Array(idStrings),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectConcepts(rows)
}

// SelectConceptsByDocument retrieves all concepts extracted from any chunk
// of the given document
func (h *ConceptsDBHandler) SelectConceptsByDocument(documentID uuid.UUID) ([]*model.Concept, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_concepts_by_document($1)`,
		documentID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectConcepts(rows)
}

// UpdateConceptMasteryFromChunk applies one review outcome to every concept
// extracted from the given chunk and returns the number of concepts touched.
// Correctness is 1 for a correct answer and 0 otherwise.
func (h *ConceptsDBHandler) UpdateConceptMasteryFromChunk(chunkID uuid.UUID, correctness float64) (int, error) {
	var updated int
	err := h.db.Instance.QueryRow(
		`SELECT update_concept_mastery_from_chunk($1, $2)`,
		chunkID,
		correctness,
	).Scan(&updated)
	if err != nil {
		return 0, helper.NewError("exec", err)
	}

	return updated, nil
}

// DeleteConcept deletes a concept by ID
func (h *ConceptsDBHandler) DeleteConcept(id uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_concept($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func collectConcepts(rows *dbsql.Rows) ([]*model.Concept, error) {
	var concepts []*model.Concept
	for rows.Next() {
		concept := &model.Concept{}
		err := scanConcept(rows, concept)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		concepts = append(concepts, concept)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return concepts, nil
}
