package domain

import "errors"

// Error kinds. Every user-facing error unwraps to exactly one of these.
var (
	ErrValidation = errors.New("validation error")
	ErrAuth       = errors.New("authentication error")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// Error is a categorized error whose message is safe to show to clients
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func NewValidationError(message string) *Error {
	return &Error{Kind: ErrValidation, Message: message}
}

func NewAuthError(message string) *Error {
	return &Error{Kind: ErrAuth, Message: message}
}

func NewForbiddenError(message string) *Error {
	return &Error{Kind: ErrForbidden, Message: message}
}

func NewNotFoundError(message string) *Error {
	return &Error{Kind: ErrNotFound, Message: message}
}

func NewConflictError(message string) *Error {
	return &Error{Kind: ErrConflict, Message: message}
}
