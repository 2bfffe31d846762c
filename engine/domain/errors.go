package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the synchronization layer.
var (
	// ErrStoreUnavailable wraps connectivity failures from either backing
	// store. Nothing is retried inside the core; callers own retry policy.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConsistencyFault marks divergence between the graph node and the
	// attribute document for one identity. Distinct from plain absence: it
	// indicates a prior partial failure.
	ErrConsistencyFault = errors.New("graph and document stores disagree")

	// ErrOwnershipMismatch rejects a transfer whose car is not currently
	// stocked by the named dealership.
	ErrOwnershipMismatch = errors.New("car not stocked by that dealership")

	// ErrAlreadyAssigned rejects linking a car that already carries a
	// STOCKS or OWNS edge.
	ErrAlreadyAssigned = errors.New("car already assigned")

	ErrUnknownKind = errors.New("unknown entity kind")
)

// Validation sentinels.
var (
	ErrEmptyField     = errors.New("required field is empty")
	ErrInvalidTaxID   = errors.New("invalid tax id")
	ErrYearOutOfRange = errors.New("year out of range")
	ErrBirthInFuture  = errors.New("birth date in the future")
)

// ConsistencyError carries the identity and which side of the pair is
// missing. It unwraps to ErrConsistencyFault.
type ConsistencyError struct {
	ID      Identity
	Kind    Kind
	Missing string // "document" or "node"
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency fault: %s %s has no %s", e.Kind, e.ID, e.Missing)
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistencyFault }

// ValidationError wraps a validation sentinel with field context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
