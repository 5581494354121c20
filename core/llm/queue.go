package llm

import (
	"context"
	"fmt"

	"github.com/siherrmann/recall/helper"
)

// DefaultQueueSize is the concurrent completion limit used when none is
// configured. Local model backends run single-threaded, so the default
// fully serializes.
const DefaultQueueSize = 1

// Queue serializes completion calls through a bounded number of slots.
// Local model backends degrade badly under concurrent load, so callers
// block until a slot frees up instead of failing.
type Queue struct {
	complete CompleteFunc
	slots    chan struct{}
}

// NewQueue wraps a completer with at most size concurrent calls. Size
// defaults to 1, full serialization.
func NewQueue(complete CompleteFunc, size int) (*Queue, error) {
	if complete == nil {
		return nil, helper.NewError("queue validation", fmt.Errorf("completer is nil"))
	}
	if size <= 0 {
		size = 1
	}

	return &Queue{
		complete: complete,
		slots:    make(chan struct{}, size),
	}, nil
}

// Complete acquires a slot and runs the wrapped completer. Waiting is
// cancellable through the context.
func (q *Queue) Complete(ctx context.Context, system string, user string) (string, error) {
	select {
	case q.slots <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-q.slots }()

	return q.complete(ctx, system, user)
}
