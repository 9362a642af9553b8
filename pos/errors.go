/*
errors.go - Error taxonomy for the ledger engine

ERROR CATEGORIES:
  1. Validation - rejected before any mutation, ledger unchanged
  2. Domain state conflicts - NotFound, AlreadyCancelled, ShiftAlreadyOpen,
     NoOpenShift; surfaced to the caller, ledger unchanged
  3. Sync failures - transient, recorded as syncState=failed on the order and
     retried by the next pass; never returned to the caller that placed it

USAGE:
  if errors.Is(err, pos.ErrAlreadyCancelled) { ... }

  var verr *pos.ValidationError
  if errors.As(err, &verr) { log.Println(verr.Field) }
*/
package pos

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("order not found")
	ErrAlreadyCancelled  = errors.New("order already cancelled")
	ErrShiftAlreadyOpen  = errors.New("a shift is already open")
	ErrNoOpenShift       = errors.New("no open shift")
	ErrSyncFailure       = errors.New("sync failed")
	ErrSequenceExhausted = errors.New("daily sequence exhausted")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError names the offending input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// SyncError records why delivery of one order failed.
type SyncError struct {
	OrderID string
	Err     error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync order %s: %v", e.OrderID, e.Err)
}

// Unwrap exposes both ErrSyncFailure and the transport cause.
func (e *SyncError) Unwrap() []error { return []error{ErrSyncFailure, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the input was rejected before any mutation.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict returns true for domain-state conflicts.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyCancelled) ||
		errors.Is(err, ErrShiftAlreadyOpen) ||
		errors.Is(err, ErrNoOpenShift)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
