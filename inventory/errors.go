/*
errors.go - Error taxonomy for the ledger

PURPOSE:
  All error types in one place. Every operation fails with one of five
  kinds, which the presentation layer maps to transport codes.

ERROR KINDS:
  1. Validation:        malformed or semantically invalid input
  2. NotFound:          absent, or owned by another tenant (indistinguishable)
  3. Forbidden:         authenticated but not allowed
  4. InsufficientStock: validation subtype carrying requested/available
  5. Server:            storage or infrastructure failure

PROPAGATION:
  None of these is retried internally. Validation and stock errors carry
  full detail for the caller. NotFound and Forbidden carry a generic
  message only. Server errors are logged in full and surfaced opaquely.

USAGE:
  if errors.Is(err, inventory.ErrInsufficientStock) {
      var stock *inventory.InsufficientStockError
      errors.As(err, &stock)
  }
*/
package inventory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrServer            = errors.New("server error")

	// ErrDuplicateLotNumber is returned by stores when the (tenant, lot
	// number) unique index rejects a write.
	ErrDuplicateLotNumber = errors.New("duplicate lot number")

	// ErrDuplicateEmail is returned by stores when a tenant or user email
	// already exists in its uniqueness scope.
	ErrDuplicateEmail = errors.New("duplicate email")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes caller-correctable input problems.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// NewFieldError builds a ValidationError for a single field.
func NewFieldError(field, message string) *ValidationError {
	return &ValidationError{Message: message, Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientStockError reports a sale line that exceeds remaining stock.
// It is a validation failure: errors.Is matches both ErrInsufficientStock
// and ErrValidation.
type InsufficientStockError struct {
	LotID     LotID
	Color     string
	Size      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s/%s: requested %d, only %d left",
		e.Color, e.Size, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock || target == ErrValidation
}

// ServerError wraps an infrastructure failure. Error() stays opaque; the
// cause is available through Unwrap for logging.
type ServerError struct {
	Op  string
	Err error
}

func NewServerError(op string, err error) *ServerError {
	return &ServerError{Op: op, Err: err}
}

func (e *ServerError) Error() string { return "internal error during " + e.Op }

func (e *ServerError) Unwrap() []error { return []error{ErrServer, e.Err} }

// =============================================================================
// KINDS
// =============================================================================

type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindInsufficientStock Kind = "insufficient_stock"
	KindServer            Kind = "server"
)

// KindOf classifies err. Anything unrecognised is a server error.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	default:
		return KindServer
	}
}

// IsClientError returns true if the caller can correct the request.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
