// internal/util/errors.go
package util

import (
	"errors"
	"fmt"
)

// Ledger error taxonomy. Every failure returned by the ledger service matches
// exactly one of these under errors.Is.
var (
	ErrInvalidInput       = errors.New("invalid input provided")
	ErrNotFound           = errors.New("resource not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAlreadyResolved    = errors.New("prediction already resolved")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError describes a rejected argument. It matches ErrInvalidInput.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidInput, e.Field, e.Reason)
}

// Is reports whether target is ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Invalid builds a ValidationError for the named field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsError is a thin wrapper over errors.Is used by the HTTP and CLI layers.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}

// Unavailable marks err as a storage failure, keeping the cause in the chain.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

// IsDomainError reports whether err is one of the expected, recoverable
// ledger conditions rather than an infrastructure failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrAlreadyResolved)
}
