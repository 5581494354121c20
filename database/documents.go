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

// DocumentsDBHandlerFunctions defines the interface for Documents database operations.
type DocumentsDBHandlerFunctions interface {
	InsertDocument(doc *model.Document) error
	SelectDocument(id uuid.UUID) (*model.Document, error)
	SelectDocumentByHash(contentHash string) (*model.Document, error)
	SelectAllDocuments(lastCreatedAt *time.Time, limit int) ([]*model.Document, error)
	SelectDocumentsByStatus(statuses ...model.DocumentStatus) ([]*model.Document, error)
	UpdateDocumentStatus(id uuid.UUID, status model.DocumentStatus, errorMessage *string) (*model.Document, error)
	UpdateDocumentExtraction(doc *model.Document) error
	UpdateDocumentConceptCount(id uuid.UUID, conceptCount int) error
	DeleteDocument(id uuid.UUID) error
}

// DocumentsDBHandler handles document-related database operations
type DocumentsDBHandler struct {
	db *helper.Database
}

// NewDocumentsDBHandler creates a new documents database handler.
// It initializes the database connection and loads document-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewDocumentsDBHandler(db *helper.Database, force bool) (*DocumentsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	documentsDbHandler := &DocumentsDBHandler{
		db: db,
	}

	err := sql.LoadDocumentsSql(documentsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load documents sql", err)
	}

	err = documentsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized DocumentsDBHandler")

	return documentsDbHandler, nil
}

// CreateTable creates the 'documents' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes and triggers.
func (h *DocumentsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_documents();`)
	if err != nil {
		log.Panicf("error initializing documents table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table documents")

	return nil
}

func scanDocument(row interface{ Scan(...any) error }, doc *model.Document) error {
	return row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Author,
		&doc.Source,
		&doc.ContentHash,
		&doc.PageCount,
		&doc.Status,
		&doc.ErrorMessage,
		&doc.ConceptCount,
		&doc.Metadata,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
}

// InsertDocument inserts a new document. A document with the same
// content hash already in the library maps to ErrDuplicateDocument.
func (h *DocumentsDBHandler) InsertDocument(doc *model.Document) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_document($1, $2, $3, $4, $5)`,
		doc.Title,
		doc.Author,
		doc.Source,
		doc.ContentHash,
		doc.Metadata,
	)

	err := scanDocument(row, doc)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return model.ErrDuplicateDocument
		}
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectDocument retrieves a document by ID
func (h *DocumentsDBHandler) SelectDocument(id uuid.UUID) (*model.Document, error) {
	doc := &model.Document{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_document($1)`,
		id,
	)

	err := scanDocument(row, doc)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, model.ErrNotFound
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return doc, nil
}

// SelectDocumentByHash retrieves a document by its content hash
func (h *DocumentsDBHandler) SelectDocumentByHash(contentHash string) (*model.Document, error) {
	doc := &model.Document{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_document_by_hash($1)`,
		contentHash,
	)

	err := scanDocument(row, doc)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, model.ErrNotFound
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return doc, nil
}

// SelectAllDocuments retrieves all documents with pagination
func (h *DocumentsDBHandler) SelectAllDocuments(lastCreatedAt *time.Time, limit int) ([]*model.Document, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_all_documents($1, $2)`,
		lastCreatedAt,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var documents []*model.Document
	for rows.Next() {
		doc := &model.Document{}
		err := scanDocument(rows, doc)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		documents = append(documents, doc)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return documents, nil
}

// SelectDocumentsByStatus retrieves all documents in any of the given statuses
func (h *DocumentsDBHandler) SelectDocumentsByStatus(statuses ...model.DocumentStatus) ([]*model.Document, error) {
	if len(statuses) == 0 {
		return nil, helper.NewError("status validation", fmt.Errorf("at least one status is required"))
	}

	statusStrings := make([]string, 0, len(statuses))
	for _, s := range statuses {
		statusStrings = append(statusStrings, string(s))
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_documents_by_status($1)`,
		pq.Array(statusStrings),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var documents []*model.Document
	for rows.Next() {
		doc := &model.Document{}
		err := scanDocument(rows, doc)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		documents = append(documents, doc)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return documents, nil
}

// UpdateDocumentStatus moves a document to the given status and stores
// the error message (cleared when nil).
func (h *DocumentsDBHandler) UpdateDocumentStatus(id uuid.UUID, status model.DocumentStatus, errorMessage *string) (*model.Document, error) {
	doc := &model.Document{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM update_document_status($1, $2, $3)`,
		id,
		string(status),
		errorMessage,
	)

	err := scanDocument(row, doc)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, model.ErrNotFound
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return doc, nil
}

// UpdateDocumentExtraction fills in the metadata discovered during text
// extraction (title, author, page count). Empty values keep the
// existing column.
func (h *DocumentsDBHandler) UpdateDocumentExtraction(doc *model.Document) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM update_document_extraction($1, $2, $3, $4)`,
		doc.ID,
		doc.Title,
		doc.Author,
		doc.PageCount,
	)

	err := scanDocument(row, doc)
	if errors.Is(err, dbsql.ErrNoRows) {
		return model.ErrNotFound
	} else if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// UpdateDocumentConceptCount updates the cached concept count
func (h *DocumentsDBHandler) UpdateDocumentConceptCount(id uuid.UUID, conceptCount int) error {
	_, err := h.db.Instance.Exec(
		`SELECT update_document_concept_count($1, $2)`,
		id,
		conceptCount,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteDocument deletes a document by ID
func (h *DocumentsDBHandler) DeleteDocument(id uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_document($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
