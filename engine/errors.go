/*
errors.go - Centralized error taxonomy for the engine

PURPOSE:
  All error kinds in one place for consistency and discoverability. The
  taxonomy is small and deliberate:

  1. NotFound          - event, record, or excuse does not exist
  2. InvalidState      - transition not allowed from the current state
  3. ValidationFailure - bad input rejected before any persistence
  4. Conflict          - concurrent writers raced on the same unique key

  All four are recoverable at the caller's discretion. Storage-layer
  unavailability is NOT part of the taxonomy; it propagates as-is and
  aborts the enclosing transaction.

USAGE:
  Callers classify with the predicates:

    if engine.IsNotFound(err) { ... 404 ... }
    if engine.IsConflict(err) { ... retry the upsert ... }

SEE ALSO:
  - store.go: Store methods return these kinds
  - api/handlers.go: Maps the taxonomy to HTTP status codes
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when an event, attendance record, or excuse
	// request does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation is not allowed from the
	// record's current state (e.g. check-out without a prior check-in).
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation is returned when input is rejected before any
	// persistence occurs (e.g. empty daysOfWeek for a weekly pattern).
	ErrValidation = errors.New("validation failure")

	// ErrConflict is returned when a concurrent upsert raced on the same
	// unique key. Safe to retry.
	ErrConflict = errors.New("conflict")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies which kind of record was missing.
type NotFoundError struct {
	Kind string // "event", "attendance record", "excuse request", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidStateError explains why a transition was refused.
type InvalidStateError struct {
	Op     string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// ValidationError reports which input failed and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }
func IsValidation(err error) bool   { return errors.Is(err, ErrValidation) }
func IsConflict(err error) bool     { return errors.Is(err, ErrConflict) }

// IsClientError returns true if the error is due to invalid client input or
// state, as opposed to an internal failure.
func IsClientError(err error) bool {
	return IsNotFound(err) || IsInvalidState(err) || IsValidation(err) || IsConflict(err)
}
