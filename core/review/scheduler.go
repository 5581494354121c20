package review

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/recall/helper"
	"github.com/siherrmann/recall/model"
)

// FlashcardStore defines the flashcard access the scheduler needs.
type FlashcardStore interface {
	SelectFlashcard(id uuid.UUID) (*model.Flashcard, error)
	SelectDueFlashcards(today time.Time, documentID *uuid.UUID, limit int) ([]*model.Flashcard, error)
	UpdateFlashcardReview(card *model.Flashcard) error
	SelectFlashcardStatsByDocument(today time.Time) ([]*model.DocumentCardStats, error)
}

// MasteryStore propagates review outcomes to the concepts linked through a
// card's source chunk.
type MasteryStore interface {
	UpdateConceptMasteryFromChunk(chunkID uuid.UUID, correctness float64) (int, error)
}

// ReviewState is the SM-2 scheduling state of a card.
type ReviewState struct {
	EaseFactor   float64
	IntervalDays int
	Repetitions  int
}

// NextReviewState applies one SM-2 review to a card's scheduling state.
// GradeAgain resets repetitions and schedules for tomorrow; the other
// grades grow the interval 1 -> 6 -> round(interval * ease factor). The
// ease factor moves by -0.2 (again), -0.15 (hard), 0 (good) or +0.15
// (easy) and never drops below the floor.
func NextReviewState(state ReviewState, grade model.Grade) ReviewState {
	if grade == model.GradeAgain {
		ef := state.EaseFactor - 0.2
		if ef < model.MinEaseFactor {
			ef = model.MinEaseFactor
		}
		return ReviewState{
			EaseFactor:   ef,
			IntervalDays: 1,
			Repetitions:  0,
		}
	}

	ef := state.EaseFactor
	switch grade {
	case model.GradeHard:
		ef -= 0.15
	case model.GradeEasy:
		ef += 0.15
	}
	if ef < model.MinEaseFactor {
		ef = model.MinEaseFactor
	}

	repetitions := state.Repetitions + 1
	var interval int
	switch repetitions {
	case 1:
		interval = 1
	case 2:
		interval = 6
	default:
		interval = int(math.Round(float64(state.IntervalDays) * ef))
	}

	return ReviewState{
		EaseFactor:   ef,
		IntervalDays: interval,
		Repetitions:  repetitions,
	}
}

// Scheduler reviews flashcards with SM-2 and rolls review outcomes into
// concept mastery. Reviews of the same card are serialized in-process.
type Scheduler struct {
	cards   FlashcardStore
	mastery MasteryStore
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	cardLocks map[uuid.UUID]*sync.Mutex
}

// NewScheduler creates a scheduler. The mastery store may be nil, in which
// case reviews update no concept mastery.
func NewScheduler(cards FlashcardStore, mastery MasteryStore, logger *slog.Logger) (*Scheduler, error) {
	if cards == nil {
		return nil, fmt.Errorf("flashcard store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		cards:     cards,
		mastery:   mastery,
		logger:    logger,
		now:       time.Now,
		cardLocks: map[uuid.UUID]*sync.Mutex{},
	}, nil
}

// lockCard returns the per-card mutex, creating it on first review. Locks
// are kept for the scheduler's lifetime: pruning after unlock would race
// with a concurrent lockCard handing out the same mutex, and the map is
// bounded by the number of cards ever reviewed in this process.
func (s *Scheduler) lockCard(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.cardLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.cardLocks[id] = lock
	}
	return lock
}

// Review applies one graded review to a flashcard and returns the updated
// card. The grade must be 0-3; anything else returns ErrInvalidArgument
// with the card untouched. Mastery updates through the card's chunk are
// best-effort and never fail the review.
func (s *Scheduler) Review(ctx context.Context, flashcardID uuid.UUID, grade model.Grade) (*model.Flashcard, error) {
	if !grade.Valid() {
		return nil, model.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock := s.lockCard(flashcardID)
	lock.Lock()
	defer lock.Unlock()

	card, err := s.cards.SelectFlashcard(flashcardID)
	if err != nil {
		return nil, err
	}

	state := NextReviewState(ReviewState{
		EaseFactor:   card.EaseFactor,
		IntervalDays: card.IntervalDays,
		Repetitions:  card.Repetitions,
	}, grade)

	today := s.now().UTC().Truncate(24 * time.Hour)
	nextReview := today.AddDate(0, 0, state.IntervalDays)

	card.EaseFactor = state.EaseFactor
	card.IntervalDays = state.IntervalDays
	card.Repetitions = state.Repetitions
	card.NextReview = &nextReview

	err = s.cards.UpdateFlashcardReview(card)
	if err != nil {
		return nil, helper.NewError("review update", err)
	}

	if s.mastery != nil && card.ChunkID != nil {
		correctness := 0.0
		if grade.Correct() {
			correctness = 1.0
		}
		updated, err := s.mastery.UpdateConceptMasteryFromChunk(*card.ChunkID, correctness)
		if err != nil {
			s.logger.Warn(
				"Mastery update failed",
				slog.String("flashcardId", flashcardID.String()),
				slog.Any("error", err),
			)
		} else if updated > 0 {
			s.logger.Debug(
				"Updated concept mastery",
				slog.String("flashcardId", flashcardID.String()),
				slog.Int("concepts", updated),
			)
		}
	}

	return card, nil
}

// DueToday lists cards due on or before today, never-reviewed cards first.
func (s *Scheduler) DueToday(documentID *uuid.UUID, limit int) ([]*model.Flashcard, error) {
	return s.cards.SelectDueFlashcards(s.now().UTC(), documentID, limit)
}

// StatsByDocument returns per-document total and due card counts.
func (s *Scheduler) StatsByDocument() ([]*model.DocumentCardStats, error) {
	return s.cards.SelectFlashcardStatsByDocument(s.now().UTC())
}
