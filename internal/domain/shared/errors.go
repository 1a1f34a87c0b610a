package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError so callers can decide between retry,
// surfacing to the user, or compensation.
type ErrorKind string

const (
	KindValidation             ErrorKind = "VALIDATION"
	KindNotFound               ErrorKind = "NOT_FOUND"
	KindInsufficientStock      ErrorKind = "INSUFFICIENT_STOCK"
	KindInvalidStateTransition ErrorKind = "INVALID_STATE_TRANSITION"
	KindTenantMismatch         ErrorKind = "TENANT_MISMATCH"
	KindConcurrencyConflict    ErrorKind = "CONCURRENCY_CONFLICT"
	KindUpstreamUnavailable    ErrorKind = "UPSTREAM_UNAVAILABLE"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError of the same kind, so that
// errors.Is(err, ErrNotFound) holds for every not-found error.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Kind == e.Kind
}

// NewDomainError creates a new domain error of the given kind
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// WithCause returns a copy of the error carrying the underlying cause
func (e *DomainError) WithCause(cause error) *DomainError {
	cp := *e
	cp.cause = cause
	return &cp
}

// NewValidationError creates a ValidationError
func NewValidationError(code, message string) *DomainError {
	return NewDomainError(KindValidation, code, message)
}

// NewNotFoundError creates a NotFoundError for the given resource
func NewNotFoundError(resource string) *DomainError {
	return NewDomainError(KindNotFound, "NOT_FOUND", resource+" not found")
}

// NewInsufficientStockError creates an InsufficientStockError
func NewInsufficientStockError(message string) *DomainError {
	return NewDomainError(KindInsufficientStock, "INSUFFICIENT_STOCK", message)
}

// NewInvalidTransitionError creates an InvalidStateTransitionError
func NewInvalidTransitionError(entity string, from, to fmt.Stringer) *DomainError {
	return NewDomainError(KindInvalidStateTransition, "INVALID_STATE",
		fmt.Sprintf("Cannot move %s from %s to %s", entity, from, to))
}

// NewInvalidStateError creates an InvalidStateTransitionError with a free-form message
func NewInvalidStateError(message string) *DomainError {
	return NewDomainError(KindInvalidStateTransition, "INVALID_STATE", message)
}

// NewConcurrencyConflictError creates a ConcurrencyConflictError
func NewConcurrencyConflictError(resource string) *DomainError {
	return NewDomainError(KindConcurrencyConflict, "OPTIMISTIC_LOCK_FAILED",
		resource+" was modified by another process, please retry")
}

// NewUpstreamUnavailableError wraps a store/transport failure
func NewUpstreamUnavailableError(cause error) *DomainError {
	return ErrUpstreamUnavailable.WithCause(cause)
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(KindNotFound, "NOT_FOUND", "Resource not found")
	ErrInvalidInput        = NewDomainError(KindValidation, "INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(KindConcurrencyConflict, "CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError(KindInvalidStateTransition, "INVALID_STATE", "Operation not allowed in current state")
	ErrInsufficientStock   = NewDomainError(KindInsufficientStock, "INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrTenantMismatch      = NewDomainError(KindTenantMismatch, "TENANT_MISMATCH", "Resource belongs to another tenant")
	ErrUpstreamUnavailable = NewDomainError(KindUpstreamUnavailable, "UPSTREAM_UNAVAILABLE", "Data store unavailable")
)

// KindOf returns the kind of a domain error, or "" for foreign errors
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err is a DomainError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether an idempotent read may be retried automatically
func IsRetryable(err error) bool {
	return IsKind(err, KindUpstreamUnavailable)
}
