package model

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus represents the pipeline state of a document.
type DocumentStatus string

const (
	StatusPending            DocumentStatus = "pending"
	StatusExtracting         DocumentStatus = "extracting"
	StatusChunking           DocumentStatus = "chunking"
	StatusEmbedding          DocumentStatus = "embedding"
	StatusReady              DocumentStatus = "ready"
	StatusNeedsOCR           DocumentStatus = "needs_ocr"
	StatusError              DocumentStatus = "error"
	StatusExtractingConcepts DocumentStatus = "extracting_concepts"
	StatusConceptsReady      DocumentStatus = "concepts_ready"
)

// statusRank orders pipeline states for the forward-only transition check.
// Terminal classifications (needs_ocr, error) share the rank of ready so a
// resubmitted document restarts from pending.
var statusRank = map[DocumentStatus]int{
	StatusPending:            0,
	StatusExtracting:         1,
	StatusChunking:           2,
	StatusEmbedding:          3,
	StatusReady:              4,
	StatusNeedsOCR:           4,
	StatusError:              4,
	StatusExtractingConcepts: 5,
	StatusConceptsReady:      6,
}

// CanTransition reports whether moving from s to next is a forward transition.
// Re-entering pending is always allowed, it models an external resubmit.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	if next == StatusPending {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// Terminal reports whether the status requires external action to leave.
func (s DocumentStatus) Terminal() bool {
	return s == StatusNeedsOCR || s == StatusError || s == StatusConceptsReady
}

// Document represents a source document moving through the ingestion pipeline
type Document struct {
	ID           uuid.UUID      `json:"id"`
	Title        string         `json:"title"`
	Author       string         `json:"author,omitempty"`
	Source       string         `json:"source,omitempty"`
	ContentHash  string         `json:"content_hash"`
	PageCount    int            `json:"page_count"`
	Status       DocumentStatus `json:"status"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	ConceptCount int            `json:"concept_count"`
	Metadata     Metadata       `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewDocumentFromFile creates a Document for a local file. The content hash
// over the raw file bytes is the dedup key across uploads.
// The title defaults to the filename without extension.
func NewDocumentFromFile(filePath string, metadata Metadata) (*Document, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(content)

	filename := filepath.Base(filePath)
	title := filename[:len(filename)-len(filepath.Ext(filename))]
	if title == "" {
		title = filename
	}

	return &Document{
		Title:       title,
		Source:      filePath,
		ContentHash: hex.EncodeToString(sum[:]),
		Status:      StatusPending,
		Metadata:    metadata,
	}, nil
}
