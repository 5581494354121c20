package database

import (
	"context"
	dbsql "database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/recall/helper"
	"github.com/siherrmann/recall/model"
	"github.com/siherrmann/recall/sql"
)

// EdgesDBHandlerFunctions defines the interface for relationship database operations.
type EdgesDBHandlerFunctions interface {
	UpsertRelationship(rel *model.Relationship, chunkID uuid.UUID) (reinforced bool, err error)
	InsertRelationship(rel *model.Relationship) error
	SelectRelationship(id uuid.UUID) (*model.Relationship, error)
	SelectRelationshipsForConcept(conceptID uuid.UUID) ([]*model.Relationship, error)
	SelectAllRelationships(limit int) ([]*model.Relationship, error)
	DeleteRelationship(id uuid.UUID) error
	UpsertExtractedFrom(conceptID uuid.UUID, chunkID uuid.UUID, confidence float64) (bool, error)
	SelectExtractedFromByConcept(conceptID uuid.UUID) ([]*model.ExtractedFrom, error)
	MergeChunkExtraction(chunkID uuid.UUID, concepts []*model.ConceptCandidate, relationships []*model.RelationshipCandidate) (*model.MergeResult, error)
}

// EdgesDBHandler handles relationship and provenance database operations
type EdgesDBHandler struct {
	db *helper.Database
}

// NewEdgesDBHandler creates a new edges database handler.
// It initializes the database connection and loads relationship-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEdgesDBHandler(db *helper.Database, force bool) (*EdgesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	edgesDbHandler := &EdgesDBHandler{
		db: db,
	}

	err := sql.LoadEdgesSql(edgesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load edges sql", err)
	}

	err = edgesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EdgesDBHandler")

	return edgesDbHandler, nil
}

// CreateTable creates the 'relationships', 'relationship_sources' and
// 'extracted_from' tables in the database.
// If the tables already exist, it does not create them again.
func (h *EdgesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_edges();`)
	if err != nil {
		log.Panicf("error initializing edges tables: %#v", err)
	}

	h.db.Logger.Info("Checked/created tables relationships, relationship_sources, extracted_from")

	return nil
}

func scanRelationship(row interface{ Scan(...any) error }, rel *model.Relationship) error {
	return row.Scan(
		&rel.ID,
		&rel.SourceID,
		&rel.TargetID,
		&rel.RelType,
		&rel.Label,
		&rel.Weight,
		&rel.TimesSeen,
		&rel.CreatedAt,
	)
}

// UpsertRelationship inserts an edge or reinforces the existing one with the
// same (source, target, type, label) key. The weight bump only happens when
// chunkID has not evidenced this edge before, so re-merging the same chunk
// is a no-op. The returned flag reports whether the chunk was a new source.
func (h *EdgesDBHandler) UpsertRelationship(rel *model.Relationship, chunkID uuid.UUID) (bool, error) {
	var reinforced bool
	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_relationship($1, $2, $3, $4, $5, $6)`,
		rel.SourceID,
		rel.TargetID,
		string(rel.RelType),
		rel.Label,
		rel.Weight,
		chunkID,
	)

	err := row.Scan(
		&rel.ID,
		&rel.SourceID,
		&rel.TargetID,
		&rel.RelType,
		&rel.Label,
		&rel.Weight,
		&rel.TimesSeen,
		&rel.CreatedAt,
		&reinforced,
	)
	if err != nil {
		return false, helper.NewError("scan", err)
	}

	return reinforced, nil
}

// InsertRelationship inserts a new edge without conflict handling
func (h *EdgesDBHandler) InsertRelationship(rel *model.Relationship) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_relationship($1, $2, $3, $4, $5)`,
		rel.SourceID,
		rel.TargetID,
		string(rel.RelType),
		rel.Label,
		rel.Weight,
	)

	err := scanRelationship(row, rel)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectRelationship retrieves an edge by ID
func (h *EdgesDBHandler) SelectRelationship(id uuid.UUID) (*model.Relationship, error) {
	rel := &model.Relationship{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_relationship($1)`,
		id,
	)

	err := scanRelationship(row, rel)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, model.ErrNotFound
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return rel, nil
}

// SelectRelationshipsForConcept retrieves all edges touching a concept in
// either direction, strongest first
func (h *EdgesDBHandler) SelectRelationshipsForConcept(conceptID uuid.UUID) ([]*model.Relationship, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_relationships_for_concept($1)`,
		conceptID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectRelationships(rows)
}

// SelectAllRelationships retrieves all edges up to limit
func (h *EdgesDBHandler) SelectAllRelationships(limit int) ([]*model.Relationship, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_all_relationships($1)`,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectRelationships(rows)
}

// DeleteRelationship deletes an edge by ID
func (h *EdgesDBHandler) DeleteRelationship(id uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_relationship($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// UpsertExtractedFrom records provenance linking a concept to a chunk.
// Re-recording the same pair is a no-op; the returned flag reports whether
// a new row was written.
func (h *EdgesDBHandler) UpsertExtractedFrom(conceptID uuid.UUID, chunkID uuid.UUID, confidence float64) (bool, error) {
	var inserted bool
	err := h.db.Instance.QueryRow(
		`SELECT upsert_extracted_from($1, $2, $3)`,
		conceptID,
		chunkID,
		confidence,
	).Scan(&inserted)
	if err != nil {
		return false, helper.NewError("exec", err)
	}

	return inserted, nil
}

// SelectExtractedFromByConcept retrieves the provenance rows of a concept
func (h *EdgesDBHandler) SelectExtractedFromByConcept(conceptID uuid.UUID) ([]*model.ExtractedFrom, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_extracted_from_by_concept($1)`,
		conceptID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var provenance []*model.ExtractedFrom
	for rows.Next() {
		ef := &model.ExtractedFrom{}
		err := rows.Scan(&ef.ConceptID, &ef.ChunkID, &ef.Confidence, &ef.CreatedAt)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		provenance = append(provenance, ef)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return provenance, nil
}

// MergeChunkExtraction merges one chunk's extracted concepts and
// relationships into the graph in a single transaction. Candidates must
// already be normalized and validated; relationship endpoints reference
// candidate concepts by normalized name. Either the whole chunk lands or
// none of it does.
func (h *EdgesDBHandler) MergeChunkExtraction(chunkID uuid.UUID, concepts []*model.ConceptCandidate, relationships []*model.RelationshipCandidate) (*model.MergeResult, error) {
	tx, err := h.db.Instance.Begin()
	if err != nil {
		return nil, helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	result := &model.MergeResult{}
	conceptIDs := make(map[string]uuid.UUID, len(concepts))

	for _, candidate := range concepts {
		var description *string
		if candidate.Description != "" {
			description = &candidate.Description
		}

		concept := &model.Concept{}
		var created bool
		row := tx.QueryRow(
			`SELECT * FROM upsert_concept($1, $2, $3, $4)`,
			candidate.Name,
			candidate.NormalizedName,
			string(candidate.Category),
			description,
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
			return nil, helper.NewError("upsert concept", err)
		}

		conceptIDs[concept.NormalizedName] = concept.ID
		if created {
			result.ConceptsCreated++
		} else {
			result.ConceptsReused++
		}

		var inserted bool
		err = tx.QueryRow(
			`SELECT upsert_extracted_from($1, $2, $3)`,
			concept.ID,
			chunkID,
			candidate.Confidence,
		).Scan(&inserted)
		if err != nil {
			return nil, helper.NewError("upsert extracted_from", err)
		}
		if inserted {
			result.ProvenanceAdded++
		}
	}

	for _, candidate := range relationships {
		sourceID, ok := conceptIDs[candidate.Source]
		if !ok {
			continue
		}
		targetID, ok := conceptIDs[candidate.Target]
		if !ok {
			continue
		}

		rel := &model.Relationship{}
		var reinforced bool
		row := tx.QueryRow(
			`SELECT * FROM upsert_relationship($1, $2, $3, $4, $5, $6)`,
			sourceID,
			targetID,
			string(candidate.Type),
			candidate.Label,
			candidate.Weight,
			chunkID,
		)

		err := row.Scan(
			&rel.ID,
			&rel.SourceID,
			&rel.TargetID,
			&rel.RelType,
			&rel.Label,
			&rel.Weight,
			&rel.TimesSeen,
			&rel.CreatedAt,
			&reinforced,
		)
		if err != nil {
			return nil, helper.NewError("upsert relationship", err)
		}
		if reinforced {
			result.RelationshipsAdded++
		}
	}

	err = tx.Commit()
	if err != nil {
		return nil, helper.NewError("commit transaction", err)
	}

	return result, nil
}

func collectRelationships(rows *dbsql.Rows) ([]*model.Relationship, error) {
	var relationships []*model.Relationship
	for rows.Next() {
		rel := &model.Relationship{}
		err := scanRelationship(rows, rel)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		relationships = append(relationships, rel)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return relationships, nil
}
