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

// FlashcardsDBHandlerFunctions defines the interface for Flashcards database operations.
type FlashcardsDBHandlerFunctions interface {
	InsertFlashcard(card *model.Flashcard) error
	SelectFlashcard(id uuid.UUID) (*model.Flashcard, error)
	SelectDueFlashcards(today time.Time, documentID *uuid.UUID, limit int) ([]*model.Flashcard, error)
	SelectFlashcardsByDocument(documentID uuid.UUID) ([]*model.Flashcard, error)
	UpdateFlashcardReview(card *model.Flashcard) error
	UpdateFlashcardContent(id uuid.UUID, question string, answer string) (*model.Flashcard, error)
	DeleteFlashcard(id uuid.UUID) error
	SelectFlashcardStatsByDocument(today time.Time) ([]*model.DocumentCardStats, error)
}

// FlashcardsDBHandler handles flashcard-related database operations
type FlashcardsDBHandler struct {
	db *helper.Database
}

// NewFlashcardsDBHandler creates a new flashcards database handler.
// It initializes the database connection and loads flashcard-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewFlashcardsDBHandler(db *helper.Database, force bool) (*FlashcardsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	flashcardsDbHandler := &FlashcardsDBHandler{
		db: db,
	}

	err := sql.LoadFlashcardsSql(flashcardsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load flashcards sql", err)
	}

	err = flashcardsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized FlashcardsDBHandler")

	return flashcardsDbHandler, nil
}

// CreateTable creates the 'flashcards' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes and triggers.
func (h *FlashcardsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_flashcards();`)
	if err != nil {
		log.Panicf("error initializing flashcards table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table flashcards")

	return nil
}

func scanFlashcard(row interface{ Scan(...any) error }, card *model.Flashcard) error {
	return row.Scan(
		&card.ID,
		&card.DocumentID,
		&card.ChunkID,
		&card.Question,
		&card.Answer,
		&card.EaseFactor,
		&card.IntervalDays,
		&card.Repetitions,
		&card.NextReview,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
}

// InsertFlashcard inserts a new flashcard with fresh scheduling state
func (h *FlashcardsDBHandler) InsertFlashcard(card *model.Flashcard) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_flashcard($1, $2, $3, $4)`,
		card.DocumentID,
		card.ChunkID,
		card.Question,
		card.Answer,
	)

	err := scanFlashcard(row, card)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectFlashcard retrieves a flashcard by ID
func (h *FlashcardsDBHandler) SelectFlashcard(id uuid.UUID) (*model.Flashcard, error) {
	card := &model.Flashcard{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_flashcard($1)`,
		id,
	)

	err := scanFlashcard(row, card)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, model.ErrNotFound
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return card, nil
}

// SelectDueFlashcards retrieves cards due on or before today, never-reviewed
// cards first. A nil documentID spans the whole library.
func (h *FlashcardsDBHandler) SelectDueFlashcards(today time.Time, documentID *uuid.UUID, limit int) ([]*model.Flashcard, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_due_flashcards($1, $2, $3)`,
		today.Format("2006-01-02"),
		documentID,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectFlashcards(rows)
}

// SelectFlashcardsByDocument retrieves all flashcards of a document
func (h *FlashcardsDBHandler) SelectFlashcardsByDocument(documentID uuid.UUID) ([]*model.Flashcard, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_flashcards_by_document($1)`,
		documentID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return collectFlashcards(rows)
}

// UpdateFlashcardReview persists the scheduling state after a review
func (h *FlashcardsDBHandler) UpdateFlashcardReview(card *model.Flashcard) error {
	var nextReview any
	if card.NextReview != nil {
		nextReview = card.NextReview.Format("2006-01-02")
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM update_flashcard_review($1, $2, $3, $4, $5)`,
		card.ID,
		card.EaseFactor,
		card.IntervalDays,
		card.Repetitions,
		nextReview,
	)

	err := scanFlashcard(row, card)
	if errors.Is(err, dbsql.ErrNoRows) {
		return model.ErrNotFound
	} else if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// UpdateFlashcardContent updates question and answer text. Empty values keep
// the existing column.
func (h *FlashcardsDBHandler) UpdateFlashcardContent(id uuid.UUID, question string, answer string) (*model.Flashcard, error) {
	card := &model.Flashcard{}
	row := h.db.Instance.QueryRow(
		`SELECT * FROM update_flashcard_content($1, $2, $3)`,
		id,
		question,
		answer,
	)

	err := scanFlashcard(row, card)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, model.ErrNotFound
	} else if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return card, nil
}

// DeleteFlashcard deletes a flashcard by ID
func (h *FlashcardsDBHandler) DeleteFlashcard(id uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_flashcard($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectFlashcardStatsByDocument retrieves total and due card counts per
// document, for documents that have at least one card
func (h *FlashcardsDBHandler) SelectFlashcardStatsByDocument(today time.Time) ([]*model.DocumentCardStats, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_flashcard_stats_by_document($1)`,
		today.Format("2006-01-02"),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var stats []*model.DocumentCardStats
	for rows.Next() {
		s := &model.DocumentCardStats{}
		err := rows.Scan(&s.DocumentID, &s.Title, &s.TotalCards, &s.DueCards)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		stats = append(stats, s)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return stats, nil
}

func collectFlashcards(rows *dbsql.Rows) ([]*model.Flashcard, error) {
	var cards []*model.Flashcard
	for rows.Next() {
		card := &model.Flashcard{}
		err := scanFlashcard(rows, card)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		cards = append(cards, card)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return cards, nil
}
