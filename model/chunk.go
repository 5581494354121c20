package model

import (
	"time"

	"github.com/google/uuid"
)

// Chunk represents a bounded, ordered slice of a document's extracted text.
// Chunks are immutable once created and deleted only by cascading document
// deletes.
type Chunk struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	PageNumber *int      `json:"page_number,omitempty"`
	CharStart  int       `json:"char_start"`
	CharEnd    int       `json:"char_end"`
	TokenCount int       `json:"token_count"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Embedded   bool      `json:"embedded"`
	CreatedAt  time.Time `json:"created_at"`
	// Result fields for similarity search
	Similarity float64 `json:"similarity,omitempty"`
}

// PageText is one page of extracted text, 1-indexed.
type PageText struct {
	PageNumber int
	Text       string
}

// Extraction is the output of the external text extractor.
type Extraction struct {
	Title     string
	Author    string
	PageCount int
	Pages     []PageText
}
