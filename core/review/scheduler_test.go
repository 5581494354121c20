package review

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/recall/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextReviewState(t *testing.T) {
	newCard := ReviewState{EaseFactor: model.DefaultEaseFactor, IntervalDays: 0, Repetitions: 0}

	t.Run("First good review seeds one day", func(t *testing.T) {
		state := NextReviewState(newCard, model.GradeGood)
		assert.Equal(t, 1, state.IntervalDays)
		assert.Equal(t, 1, state.Repetitions)
		assert.Equal(t, model.DefaultEaseFactor, state.EaseFactor)
	})

	t.Run("Second good review seeds six days", func(t *testing.T) {
		state := NextReviewState(ReviewState{EaseFactor: 2.5, IntervalDays: 1, Repetitions: 1}, model.GradeGood)
		assert.Equal(t, 6, state.IntervalDays)
		assert.Equal(t, 2, state.Repetitions)
	})

	t.Run("Third good review multiplies by ease factor", func(t *testing.T) {
		state := NextReviewState(ReviewState{EaseFactor: 2.5, IntervalDays: 6, Repetitions: 2}, model.GradeGood)
		assert.Equal(t, 15, state.IntervalDays, "round(6 * 2.5) = 15")
		assert.Equal(t, 3, state.Repetitions)
	})

	t.Run("Again resets repetitions", func(t *testing.T) {
		state := NextReviewState(ReviewState{EaseFactor: 2.5, IntervalDays: 15, Repetitions: 3}, model.GradeAgain)
		assert.Equal(t, 0, state.Repetitions)
		assert.Equal(t, 1, state.IntervalDays)
		assert.InDelta(t, 2.3, state.EaseFactor, 0.0001)
	})

	t.Run("Hard lowers ease factor", func(t *testing.T) {
		state := NextReviewState(ReviewState{EaseFactor: 2.5, IntervalDays: 1, Repetitions: 1}, model.GradeHard)
		assert.InDelta(t, 2.35, state.EaseFactor, 0.0001)
	})

	t.Run("Easy raises ease factor", func(t *testing.T) {
		state := NextReviewState(ReviewState{EaseFactor: 2.5, IntervalDays: 1, Repetitions: 1}, model.GradeEasy)
		assert.InDelta(t, 2.65, state.EaseFactor, 0.0001)
	})

	t.Run("Ease factor never drops below floor", func(t *testing.T) {
		state := NextReviewState(ReviewState{EaseFactor: model.MinEaseFactor, IntervalDays: 1, Repetitions: 1}, model.GradeHard)
		assert.Equal(t, model.MinEaseFactor, state.EaseFactor)

		state = NextReviewState(ReviewState{EaseFactor: model.MinEaseFactor, IntervalDays: 1, Repetitions: 1}, model.GradeAgain)
		assert.Equal(t, model.MinEaseFactor, state.EaseFactor)
	})

	t.Run("Good reviews grow the interval monotonically", func(t *testing.T) {
		state := ReviewState{EaseFactor: model.DefaultEaseFactor}
		previous := 0
		for i := 0; i < 8; i++ {
			state = NextReviewState(state, model.GradeGood)
			assert.Greater(t, state.IntervalDays, previous)
			previous = state.IntervalDays
		}
	})
}

type fakeCardStore struct {
	mu          sync.Mutex
	cards       map[uuid.UUID]*model.Flashcard
	updateErr   error
	selectDelay time.Duration
	inFlight    int32
	maxInFlight int32
	dueCards    []*model.Flashcard
	stats       []*model.DocumentCardStats
}

func newFakeCardStore() *fakeCardStore {
	return &fakeCardStore{cards: map[uuid.UUID]*model.Flashcard{}}
}

func (f *fakeCardStore) addCard(chunkID *uuid.UUID) *model.Flashcard {
	card := &model.Flashcard{
		ID:         uuid.New(),
		DocumentID: uuid.New(),
		ChunkID:    chunkID,
		Question:   "Q?",
		Answer:     "A.",
		EaseFactor: model.DefaultEaseFactor,
	}
	f.cards[card.ID] = card
	return card
}

func (f *fakeCardStore) SelectFlashcard(id uuid.UUID) (*model.Flashcard, error) {
	current := atomic.AddInt32(&f.inFlight, 1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if current <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, current) {
			break
		}
	}
	if f.selectDelay > 0 {
		time.Sleep(f.selectDelay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	card, ok := f.cards[id]
	if !ok {
		atomic.AddInt32(&f.inFlight, -1)
		return nil, model.ErrNotFound
	}
	copied := *card
	return &copied, nil
}

func (f *fakeCardStore) UpdateFlashcardReview(card *model.Flashcard) error {
	defer atomic.AddInt32(&f.inFlight, -1)
	if f.updateErr != nil {
		return f.updateErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *card
	f.cards[card.ID] = &copied
	return nil
}

func (f *fakeCardStore) SelectDueFlashcards(today time.Time, documentID *uuid.UUID, limit int) ([]*model.Flashcard, error) {
	return f.dueCards, nil
}

func (f *fakeCardStore) SelectFlashcardStatsByDocument(today time.Time) ([]*model.DocumentCardStats, error) {
	return f.stats, nil
}

type fakeMasteryStore struct {
	mu    sync.Mutex
	calls []float64
	err   error
}

func (f *fakeMasteryStore) UpdateConceptMasteryFromChunk(chunkID uuid.UUID, correctness float64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.calls = append(f.calls, correctness)
	return 1, nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *fakeCardStore, *fakeMasteryStore) {
	t.Helper()
	cards := newFakeCardStore()
	mastery := &fakeMasteryStore{}
	scheduler, err := NewScheduler(cards, mastery, nil)
	require.NoError(t, err)
	return scheduler, cards, mastery
}

func TestSchedulerReview(t *testing.T) {
	t.Run("Invalid grade", func(t *testing.T) {
		scheduler, cards, _ := newTestScheduler(t)
		card := cards.addCard(nil)

		_, err := scheduler.Review(context.Background(), card.ID, model.Grade(4))
		assert.ErrorIs(t, err, model.ErrInvalidArgument)

		_, err = scheduler.Review(context.Background(), card.ID, model.Grade(-1))
		assert.ErrorIs(t, err, model.ErrInvalidArgument)

		assert.Equal(t, 0, cards.cards[card.ID].Repetitions, "card should be untouched")
	})

	t.Run("Unknown card", func(t *testing.T) {
		scheduler, _, _ := newTestScheduler(t)

		_, err := scheduler.Review(context.Background(), uuid.New(), model.GradeGood)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("Good review schedules next day", func(t *testing.T) {
		scheduler, cards, _ := newTestScheduler(t)
		scheduler.now = func() time.Time { return time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC) }
		card := cards.addCard(nil)

		updated, err := scheduler.Review(context.Background(), card.ID, model.GradeGood)
		require.NoError(t, err)

		assert.Equal(t, 1, updated.Repetitions)
		assert.Equal(t, 1, updated.IntervalDays)
		require.NotNil(t, updated.NextReview)
		assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), *updated.NextReview)
	})

	t.Run("Mastery updated through the card's chunk", func(t *testing.T) {
		scheduler, cards, mastery := newTestScheduler(t)
		chunkID := uuid.New()
		card := cards.addCard(&chunkID)

		_, err := scheduler.Review(context.Background(), card.ID, model.GradeEasy)
		require.NoError(t, err)
		_, err = scheduler.Review(context.Background(), card.ID, model.GradeAgain)
		require.NoError(t, err)
		_, err = scheduler.Review(context.Background(), card.ID, model.GradeHard)
		require.NoError(t, err)

		assert.Equal(t, []float64{1.0, 0.0, 0.0}, mastery.calls)
	})

	t.Run("Manual card updates no mastery", func(t *testing.T) {
		scheduler, cards, mastery := newTestScheduler(t)
		card := cards.addCard(nil)

		_, err := scheduler.Review(context.Background(), card.ID, model.GradeGood)
		require.NoError(t, err)
		assert.Empty(t, mastery.calls)
	})

	t.Run("Mastery failure does not fail the review", func(t *testing.T) {
		scheduler, cards, mastery := newTestScheduler(t)
		mastery.err = fmt.Errorf("connection refused")
		chunkID := uuid.New()
		card := cards.addCard(&chunkID)

		updated, err := scheduler.Review(context.Background(), card.ID, model.GradeGood)
		require.NoError(t, err)
		assert.Equal(t, 1, updated.Repetitions)
	})

	t.Run("Update failure surfaces", func(t *testing.T) {
		scheduler, cards, _ := newTestScheduler(t)
		cards.updateErr = fmt.Errorf("connection refused")
		card := cards.addCard(nil)

		_, err := scheduler.Review(context.Background(), card.ID, model.GradeGood)
		assert.Error(t, err)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		scheduler, cards, _ := newTestScheduler(t)
		card := cards.addCard(nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := scheduler.Review(ctx, card.ID, model.GradeGood)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSchedulerReviewSerialization(t *testing.T) {
	scheduler, cards, _ := newTestScheduler(t)
	cards.selectDelay = 2 * time.Millisecond
	card := cards.addCard(nil)

	const reviewers = 10
	var wg sync.WaitGroup
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := scheduler.Review(context.Background(), card.ID, model.GradeGood)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), cards.maxInFlight, "same-card reviews must be serialized")
	assert.Equal(t, reviewers, cards.cards[card.ID].Repetitions, "no review may be lost")
}

func TestSchedulerReads(t *testing.T) {
	scheduler, cards, _ := newTestScheduler(t)
	cards.dueCards = []*model.Flashcard{cards.addCard(nil)}
	cards.stats = []*model.DocumentCardStats{{Title: "Doc", TotalCards: 3, DueCards: 1}}

	due, err := scheduler.DueToday(nil, 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	stats, err := scheduler.StatsByDocument()
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 3, stats[0].TotalCards)
}
