package model

import (
	"time"

	"github.com/google/uuid"
)

// Grade is a 4-point review grade.
type Grade int

const (
	GradeAgain Grade = 0
	GradeHard  Grade = 1
	GradeGood  Grade = 2
	GradeEasy  Grade = 3
)

// Valid reports whether g is one of the four review grades.
func (g Grade) Valid() bool {
	return g >= GradeAgain && g <= GradeEasy
}

// Correct reports whether the grade counts as a successful recall for
// mastery purposes.
func (g Grade) Correct() bool {
	return g >= GradeGood
}

// DefaultEaseFactor is the SM-2 starting ease factor for new cards.
const DefaultEaseFactor = 2.5

// MinEaseFactor is the SM-2 floor; the ease factor never drops below it.
const MinEaseFactor = 1.3

// Flashcard is a question/answer pair scheduled by SM-2. ChunkID is nil for
// manually created cards, which then update no concept mastery on review.
type Flashcard struct {
	ID           uuid.UUID  `json:"id"`
	DocumentID   uuid.UUID  `json:"document_id"`
	ChunkID      *uuid.UUID `json:"chunk_id,omitempty"`
	Question     string     `json:"question"`
	Answer       string     `json:"answer"`
	EaseFactor   float64    `json:"ease_factor"`
	IntervalDays int        `json:"interval_days"`
	Repetitions  int        `json:"repetitions"`
	NextReview   *time.Time `json:"next_review,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Due reports whether the card is due on the given day. A nil next_review
// means due now.
func (f *Flashcard) Due(today time.Time) bool {
	if f.NextReview == nil {
		return true
	}
	y, m, d := today.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return !f.NextReview.After(day)
}

// DocumentCardStats is the per-document rollup returned by the aggregator.
type DocumentCardStats struct {
	DocumentID uuid.UUID `json:"document_id"`
	Title      string    `json:"title"`
	TotalCards int       `json:"total_cards"`
	DueCards   int       `json:"due_cards"`
}
