package helper

import "fmt"

// Error wraps an underlying error with the operation context it occurred in.
type Error struct {
	Context string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("error in %v: %v", e.Context, e.Err)
}

// Unwrap exposes the wrapped error for errors.Is/errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a contextualized error
func NewError(context string, err error) error {
	return &Error{Context: context, Err: err}
}
