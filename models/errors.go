package models

import "errors"

// Domain error taxonomy. Handlers map these onto HTTP statuses; everything
// else stays a 500.

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

func NewAuthorizationError(message string) error {
	return &AuthorizationError{Message: message}
}

func IsAuthorizationError(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func NewNotFoundError(message string) error {
	return &NotFoundError{Message: message}
}

func IsNotFoundError(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// TransientIOError wraps a transport failure that survived its retry budget.
type TransientIOError struct {
	Message string
	Err     error
}

func (e *TransientIOError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *TransientIOError) Unwrap() error { return e.Err }

func NewTransientIOError(message string, err error) error {
	return &TransientIOError{Message: message, Err: err}
}

func IsTransientIOError(err error) bool {
	var te *TransientIOError
	return errors.As(err, &te)
}

var ErrUnauthenticated = errors.New("authentication required")

// ErrIncompleteChecklist is returned when submitting with unanswered items.
var ErrIncompleteChecklist = errors.New("checklist has unanswered items")
