package database

import (
	"context"
	dbsql "database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/recall/helper"
	"github.com/siherrmann/recall/model"
	"github.com/siherrmann/recall/sql"
)

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	InsertChunk(chunk *model.Chunk) error
	SelectChunk(id uuid.UUID) (*model.Chunk, error)
	SelectChunksByDocument(documentID uuid.UUID) ([]*model.Chunk, error)
	SelectEmbeddedChunksByDocument(documentID uuid.UUID, limit int) ([]*model.Chunk, error)
	UpdateChunkEmbedding(id uuid.UUID, embedding []float32) error
	SelectChunksBySimilarity(embedding []float32, limit int, threshold float64, documentID *uuid.UUID) ([]*model.Chunk, error)
	DeleteChunk(id uuid.UUID) error
}

// ChunksDBHandler handles chunk-related database operations
type ChunksDBHandler struct {
	db           *helper.Database
	embeddingDim int
}

// NewChunksDBHandler creates a new chunks database handler.
// The embedding dimension is fixed at table creation time and must match
// the embedder that fills the vectors.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	chunksDbHandler := &ChunksDBHandler{
		db:           db,
		embeddingDim: embeddingDim,
	}

	err := sql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler")

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists, it does not create it again.
func (h *ChunksDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, h.embeddingDim)
	if err != nil {
		log.Panicf("error initializing chunks table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

func scanChunk(row interface{ Scan(...any) error }, chunk *model.Chunk) error {
	return row.Scan(
		&chunk.ID,
		&chunk.DocumentID,
		&chunk.ChunkIndex,
		&chunk.Content,
		&chunk.PageNumber,
		&chunk.CharStart,
		&chunk.CharEnd,
		&chunk.TokenCount,
		&chunk.Embedded,
		&chunk.CreatedAt,
	)
}

// InsertChunk inserts a new chunk without an embedding
func (h *ChunksDBHandler) InsertChunk(chunk *model.Chunk) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_chunk($1, $2, $3, $4, $5, $6, $7)`,
		chunk.DocumentID,
		chunk.ChunkIndex,
		chunk.Content,
		chunk.PageNumber,
		chunk.CharStart,
		chunk.CharEnd,
		chunk.TokenCount,
	)

	err := scanChunk(row, chunk)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectChunk retrieves a chunk by ID
func (h *ChunksDBHandler) SelectChunk(id uuid.UUID) (*model.Chunk, error) {
	chunk := &model.Chunk{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_chunk($1)`,
		id,
	)

	err := scanChunk(row, chunk)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, model.ErrNotFound
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return chunk, nil
}

// SelectChunksByDocument retrieves all chunks of a document in order
func (h *ChunksDBHandler) SelectChunksByDocument(documentID uuid.UUID) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_chunks_by_document($1)`,
		documentID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var chunks []*model.Chunk
	for rows.Next() {
		chunk := &model.Chunk{}
		err := scanChunk(rows, chunk)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		chunks = append(chunks, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// SelectEmbeddedChunksByDocument retrieves up to limit embedded chunks of a
// document in chunk order
func (h *ChunksDBHandler) SelectEmbeddedChunksByDocument(documentID uuid.UUID, limit int) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_embedded_chunks_by_document($1, $2)`,
		documentID,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var chunks []*model.Chunk
	for rows.Next() {
		chunk := &model.Chunk{}
		err := scanChunk(rows, chunk)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		chunks = append(chunks, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// UpdateChunkEmbedding sets the embedding vector of a chunk
func (h *ChunksDBHandler) UpdateChunkEmbedding(id uuid.UUID, embedding []float32) error {
	if len(embedding) != h.embeddingDim {
		return helper.NewError("embedding validation", fmt.Errorf("expected embedding dimension %d, got %d", h.embeddingDim, len(embedding)))
	}

	var updated bool
	err := h.db.Instance.QueryRow(
		`SELECT update_chunk_embedding($1, $2)`,
		id,
		pgvector.NewVector(embedding),
	).Scan(&updated)
	if err != nil {
		return helper.NewError("exec", err)
	}
	if !updated {
		return model.ErrNotFound
	}

	return nil
}

// SelectChunksBySimilarity retrieves chunks by cosine similarity to the given
// embedding. A nil documentID searches the whole library.
func (h *ChunksDBHandler) SelectChunksBySimilarity(embedding []float32, limit int, threshold float64, documentID *uuid.UUID) ([]*model.Chunk, error) {
	if len(embedding) != h.embeddingDim {
		return nil, helper.NewError("embedding validation", fmt.Errorf("expected embedding dimension %d, got %d", h.embeddingDim, len(embedding)))
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_chunks_by_similarity($1, $2, $3, $4)`,
		pgvector.NewVector(embedding),
		limit,
		threshold,
		documentID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var chunks []*model.Chunk
	for rows.Next() {
		chunk := &model.Chunk{}
		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.ChunkIndex,
			&chunk.Content,
			&chunk.PageNumber,
			&chunk.CharStart,
			&chunk.CharEnd,
			&chunk.TokenCount,
			&chunk.Embedded,
			&chunk.CreatedAt,
			&chunk.Similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		chunks = append(chunks, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// DeleteChunk deletes a chunk by ID
func (h *ChunksDBHandler) DeleteChunk(id uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_chunk($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
