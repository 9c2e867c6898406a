// Package shared contains common domain types, errors, and events that are
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation   = errors.New("validation error")
	ErrInvalidInput = errors.New("invalid input")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrInvalidChoice    = errors.New("invalid choice")
	ErrAlreadyProcessed = errors.New("already processed")

	// Catalog errors
	ErrMalformedDefinition = errors.New("malformed simulation definition")

	// Concurrency errors
	ErrConcurrencyConflict = errors.New("concurrent modification detected")

	// Persistence errors
	ErrPersistence = errors.New("persistence error")
	ErrTimeout     = errors.New("operation timeout")

	// External service errors
	ErrExternalService = errors.New("external service error")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "simulation", "profile", "catalog"
	Op      string // Operation that failed, e.g., "ApplyChoice", "Award"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidChoice checks if the error rejects a choice id.
func IsInvalidChoice(err error) bool {
	return errors.Is(err, ErrInvalidChoice)
}

// IsInvalidState checks if the error is a state violation.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsConcurrencyConflict checks if the error is a lost optimistic write.
func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsPersistence checks if the error comes from the persistent store.
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrTimeout)
}
