package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound is returned when a user, question or other record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyClaimed is returned when a once-per-day claim is repeated.
	ErrAlreadyClaimed = errors.New("already claimed")
	// ErrRequirementNotMet is returned when a claim's eligibility rule fails.
	ErrRequirementNotMet = errors.New("requirement not met")
	// ErrPersistence wraps storage and transaction failures.
	ErrPersistence = errors.New("persistence error")
	// ErrUnauthorized indicates missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a uniqueness violation such as a duplicate email.
	ErrConflict = errors.New("conflict")
)

// Error carries a kind for errors.Is checks, a client-safe message and an optional cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches against the kind as well as the wrapped cause.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// Validation builds an ErrValidation error.
func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds an ErrNotFound error for the named entity.
func NotFound(entity string) error {
	return &Error{Kind: ErrNotFound, Message: entity + " not found"}
}

// AlreadyClaimed builds an ErrAlreadyClaimed error.
func AlreadyClaimed(message string) error {
	return &Error{Kind: ErrAlreadyClaimed, Message: message}
}

// RequirementNotMet builds an ErrRequirementNotMet error.
func RequirementNotMet(message string) error {
	return &Error{Kind: ErrRequirementNotMet, Message: message}
}

// Unauthorized builds an ErrUnauthorized error.
func Unauthorized(message string) error {
	return &Error{Kind: ErrUnauthorized, Message: message}
}

// Forbidden builds an ErrForbidden error.
func Forbidden(message string) error {
	return &Error{Kind: ErrForbidden, Message: message}
}

// Conflict builds an ErrConflict error.
func Conflict(message string) error {
	return &Error{Kind: ErrConflict, Message: message}
}

// Persistence wraps a storage failure. Wrapping an error that already carries
// a domain kind returns it unchanged so not-found and conflicts survive.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: ErrPersistence, Message: op, Err: err}
}

// Message returns the client-safe part of err.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// IsNotFound reports whether err is of kind ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
