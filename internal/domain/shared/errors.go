// Package shared contains error kinds, domain events and the event bus
// contracts used by every domain package. It imports nothing from the module.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is.
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState = errors.New("invalid state")

	// Engine rule violations
	ErrInsufficientGems    = errors.New("insufficient gems")
	ErrShieldCapExceeded   = errors.New("streak shield cap exceeded")
	ErrUserNotFound        = errors.New("user not found")
	ErrAlreadyGraded       = errors.New("submission already graded")
	ErrStepAlreadyComplete = errors.New("curriculum step already complete")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Infrastructure errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError carries the failing domain and operation next to an error kind.
type DomainError struct {
	Domain  string // e.g. "stats", "curriculum"
	Op      string // e.g. "ApplyDelta", "MarkComplete"
	Kind    error  // one of the kinds above
	Message string
	Err     error // underlying cause, optional
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches either the kind or the wrapped cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a domain error without a cause.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError creates a domain error around a cause.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// Validationf is shorthand for a formatted ErrValidation domain error.
func Validationf(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrValidation, fmt.Sprintf(format, args...))
}

// IsNotFound reports ErrNotFound or ErrUserNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUserNotFound)
}

// IsAlreadyExists reports ErrAlreadyExists.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation reports any input validation kind.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsConflict reports rule violations caused by the current state rather than
// by malformed input.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientGems) ||
		errors.Is(err, ErrShieldCapExceeded) ||
		errors.Is(err, ErrAlreadyGraded) ||
		errors.Is(err, ErrStepAlreadyComplete) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrInvalidState)
}

// IsRetryable reports errors worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
