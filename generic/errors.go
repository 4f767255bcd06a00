/*
errors.go - Centralized error taxonomy for the warehouse engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Stage functions fail fast with one of these before any mutation; the API
  layer maps the kind onto an HTTP status.

ERROR CATEGORIES:
  1. Input errors - ValidationError (malformed/missing input)
  2. Lookup errors - NotFound
  3. State errors - AlreadyExists, AlreadyInState, PreconditionFailed, Expired
  4. Rule errors - OutOfWindow, CapacityExceeded, InsufficientWeight
  5. Loan conflicts - DuplicateApplication, BookingLocked
  6. Store errors - ConcurrentModification, DuplicateIdempotencyKey

USAGE:
  Every structured error unwraps to its sentinel:

    if errors.Is(err, generic.ErrCapacityExceeded) {
        var ce *generic.CapacityExceededError
        errors.As(err, &ce) // ce.Remaining, ce.Requested
    }

SEE ALSO:
  - api/handlers.go: Kind -> HTTP status mapping
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed or missing input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a one-per-booking record is added twice.
	ErrAlreadyExists = errors.New("already exists")

	// ErrAlreadyInState is returned for a repeated transition (double accept).
	ErrAlreadyInState = errors.New("already in requested state")

	// ErrPreconditionFailed is returned when stage ordering is violated,
	// e.g. a deposit without a weighbridge record.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrOutOfWindow is returned when a stage date falls outside its window.
	ErrOutOfWindow = errors.New("date out of allowed window")

	// ErrCapacityExceeded is returned when a booking asks for more space than remains.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInsufficientWeight is returned when a shipment exceeds the stored weight.
	ErrInsufficientWeight = errors.New("insufficient weight")

	// ErrDuplicateApplication is returned when the same pledge applies twice.
	ErrDuplicateApplication = errors.New("duplicate loan application")

	// ErrBookingLocked is returned when a booking already has an approved loan.
	ErrBookingLocked = errors.New("booking locked by approved loan")

	// ErrExpired is returned when a booking has aged out.
	ErrExpired = errors.New("booking has expired")

	// ErrForbidden is returned when the actor's role may not run an operation.
	ErrForbidden = errors.New("forbidden")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateIdempotencyKey is returned when a movement with the same
	// idempotency key already exists.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrIDSpaceExhausted is returned when bounded id generation gives up.
	ErrIDSpaceExhausted = errors.New("could not generate unique identifier")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError names what was looked up.
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// CapacityExceededError provides details about a capacity shortage.
type CapacityExceededError struct {
	WarehouseID WarehouseID
	Remaining   Amount
	Requested   Amount
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: remaining %v, requested %v",
		e.Remaining.Value, e.Requested.Value)
}

func (e *CapacityExceededError) Unwrap() error {
	return ErrCapacityExceeded
}

// OutOfWindowError reports a date that falls outside [Window.From, Window.To].
type OutOfWindowError struct {
	What   string
	Date   TimePoint
	Window DateRange
}

func (e *OutOfWindowError) Error() string {
	return fmt.Sprintf("%s date %s outside window %s..%s",
		e.What, e.Date, e.Window.From, e.Window.To)
}

func (e *OutOfWindowError) Unwrap() error {
	return ErrOutOfWindow
}

// InsufficientWeightError reports a shipment larger than what is stored.
type InsufficientWeightError struct {
	Available Amount
	Requested Amount
}

func (e *InsufficientWeightError) Error() string {
	return fmt.Sprintf("insufficient weight: available %v, requested %v",
		e.Available.Value, e.Requested.Value)
}

func (e *InsufficientWeightError) Unwrap() error {
	return ErrInsufficientWeight
}

// TransitionError reports a rejected state transition. Err is one of
// ErrAlreadyInState, ErrPreconditionFailed or ErrExpired.
type TransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot move from %s to %s: %v", e.Entity, e.ID, e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Kind returns a stable, machine-readable name for err's category.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrAlreadyInState):
		return "already_in_state"
	case errors.Is(err, ErrPreconditionFailed):
		return "precondition_failed"
	case errors.Is(err, ErrOutOfWindow):
		return "out_of_window"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrInsufficientWeight):
		return "insufficient_weight"
	case errors.Is(err, ErrDuplicateApplication):
		return "duplicate_application"
	case errors.Is(err, ErrBookingLocked):
		return "booking_locked"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, ErrDuplicateIdempotencyKey):
		return "duplicate_idempotency_key"
	default:
		return "internal"
	}
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to the caller's input or the
// current state of the booking, not a server fault.
func IsClientError(err error) bool {
	k := Kind(err)
	return k != "" && k != "internal" && k != "concurrent_modification"
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
