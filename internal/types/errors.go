package types

import (
	"errors"
	"fmt"
)

// ErrPriceUnavailable signals that the feed could not supply a price.
// Evaluation is skipped, no state changes, and the condition is retryable.
var ErrPriceUnavailable = errors.New("price unavailable")

// ErrNotRunning is returned for operations that require an active session.
var ErrNotRunning = errors.New("no active trading session")

// ValidationError rejects bad input before any state is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a named field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ExecutionError wraps an order placement failure. Engine state does not
// advance past a failed execution; the next evaluation retries naturally.
type ExecutionError struct {
	Symbol string
	Side   Side
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("order execution failed: %s %s: %v", e.Side, e.Symbol, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// PersistenceError wraps a ledger write failure. A trade whose record cannot
// be durably appended is not considered executed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
