package model

import "errors"

// Sentinel errors surfaced to API callers. Everything else is treated as
// internal.
var (
	// ErrNotFound means the referenced document, concept, or flashcard
	// does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument means the caller passed a value outside the
	// accepted range (for example a review grade outside 0-3).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDuplicateDocument means a document with the same content hash
	// already exists.
	ErrDuplicateDocument = errors.New("duplicate document")
	// ErrLLMUnavailable means no completion service is reachable. Chunk
	// loops stop early on it instead of retrying.
	ErrLLMUnavailable = errors.New("completion service unavailable")
)
