/*
errors.go - Centralized error types for the calculation core

PURPOSE:
  All engine error types in one place. Callers distinguish three things:
  invalid input (fail fast, surface to caller), absence of a result
  (missing settings is NOT a zero balance), and ledger-level
  inconsistency (operator remediation, never auto-repaired).

USAGE:
  if errors.Is(err, engine.ErrNoSettings) { ... }

  var inputErr *engine.InputError
  if errors.As(err, &inputErr) { ... }
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
	// ErrNoSettings is returned when a tenancy has no (or invalid) rent
	// settings. Callers must treat this as "no result", distinct from a
	// legitimately zero balance.
	ErrNoSettings = errors.New("tenancy settings absent or invalid")

	// ErrInvalidInput is the sentinel under every InputError.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTenantNotFound is returned when a referenced tenant doesn't exist.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrNoticeNotFound is returned when a referenced notice doesn't exist.
	ErrNoticeNotFound = errors.New("notice not found")

	// ErrRegenerationInFlight is returned when a ledger regeneration is
	// requested while one is already pending or processing for the tenant.
	ErrRegenerationInFlight = errors.New("ledger regeneration already in flight")

	// ErrLedgerInconsistent marks a detectable bad state (e.g. insert
	// failed after delete during reconciliation). Flagged for operator
	// remediation, never auto-repaired.
	ErrLedgerInconsistent = errors.New("obligation ledger in inconsistent state")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InputError reports an invalid field supplied to the calculation core:
// unknown frequency, bad weekday name, non-positive rent amount.
type InputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsInputError reports whether err is caused by invalid caller input.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTenantNotFound) || errors.Is(err, ErrNoticeNotFound)
}
