// Package common defines shared constants, sentinel errors, and typed errors
// used across Shelfkeeper components. Callers should match sentinels with
// errors.Is and typed errors with errors.As.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Class sentinels for the typed errors below; errors.Is matches both
	// the sentinel and any typed instance carrying details.
	ErrorValidation   = errors.New("validation error")
	ErrorAccessDenied = errors.New("access denied")
	ErrorConflict     = errors.New("conflict")
)

// ValidationError reports malformed or missing caller input. It is always
// recoverable by correcting the request and is never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Reason)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrorValidation }

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AccessDeniedError reports a role, membership, or consistency failure.
// Reason is a machine-readable code recorded server-side; callers receive
// a generic denial so that entity existence is not leaked.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: %s", e.Reason)
}

func (e *AccessDeniedError) Is(target error) bool { return target == ErrorAccessDenied }

// NewAccessDeniedError builds an AccessDeniedError with the given reason code.
func NewAccessDeniedError(reason string) error {
	return &AccessDeniedError{Reason: reason}
}

// ConflictError reports a state conflict the caller can remediate, such as
// archiving a library that still has items. ItemCount carries the blocking
// count so the caller can surface remediation guidance.
type ConflictError struct {
	Reason    string
	ItemCount int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s (items: %d)", e.Reason, e.ItemCount)
}

func (e *ConflictError) Is(target error) bool { return target == ErrorConflict }
