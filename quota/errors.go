/*
errors.go - Centralized error types for the accounting engine

PURPOSE:
  All error kinds in one place. Callers classify with errors.Is against the
  sentinels; structured types carry enough context for a field-level message
  at the API boundary.

ERROR CATEGORIES:
  1. Validation errors - bad cost expression, missing fields, end before start
  2. Conflict errors   - duplicate active enrollment for a patient+drug pair
  3. Not-found errors  - referenced entity id absent

  Division by zero is NOT an error anywhere in this engine: every ratio is
  guarded and yields zero instead (utilization with quota 0, average cost
  with no active enrollments).

USAGE:
  if errors.Is(err, quota.ErrConflict) { ... 409 ... }

SEE ALSO:
  - store/sqlite: translates constraint violations into ErrConflict
  - api: maps these to HTTP statuses
*/
package quota

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for bad input: unparseable cost expression,
	// missing required enrollment fields, end date before start date.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when creating an active enrollment for a
	// (patient, drug) pair that already has one. The store's partial unique
	// index is the canonical source of this error; no application-level
	// pre-check is trusted under concurrency.
	ErrConflict = errors.New("conflict")

	// ErrNotFound is returned when a referenced department, drug, patient, or
	// enrollment id is absent. Fatal for the single operation; report runs
	// skip orphaned references instead of aborting.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry field-level context
// =============================================================================

// ValidationError reports which field failed and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a field-level validation error.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError reports a duplicate active enrollment.
type ConflictError struct {
	PatientID PatientID
	DrugID    DrugID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("patient %d is already actively enrolled in drug %d", e.PatientID, e.DrugID)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError reports which entity was missing.
type NotFoundError struct {
	Entity string // "department", "drug", "patient", "enrollment"
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is recoverable at the call
// boundary and must be surfaced with detail, never swallowed.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
