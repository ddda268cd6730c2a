package pos

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes domain errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates malformed input.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeEmptyCart indicates a checkout of a cart with no lines.
	ErrCodeEmptyCart ErrorCode = "EMPTY_CART"

	// ErrCodeStockInsufficient indicates an operation would oversell.
	ErrCodeStockInsufficient ErrorCode = "STOCK_INSUFFICIENT"

	// ErrCodeInvalidTransition indicates an illegal status change.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeAmountTooLow indicates cash received is below the total.
	ErrCodeAmountTooLow ErrorCode = "AMOUNT_TOO_LOW"

	// ErrCodeNotFound indicates a referenced row does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeStorage indicates a local I/O failure.
	ErrCodeStorage ErrorCode = "STORAGE"
)

// Shortage describes one product that cannot cover a requested quantity.
type Shortage struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Requested float64 `json:"requested"`
	Available float64 `json:"available"`
}

// Missing returns how much stock is lacking.
func (s Shortage) Missing() float64 {
	return s.Requested - s.Available
}

// Error is a domain error with a machine-readable code.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Shortages lists every offending product (STOCK_INSUFFICIENT only).
	Shortages []Shortage

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// ShortagesOf returns the shortages attached to a STOCK_INSUFFICIENT error.
func ShortagesOf(err error) []Shortage {
	var e *Error
	if errors.As(err, &e) {
		return e.Shortages
	}
	return nil
}

// NewValidationError creates a VALIDATION error.
func NewValidationError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NewEmptyCartError creates an EMPTY_CART error.
func NewEmptyCartError() *Error {
	return &Error{Code: ErrCodeEmptyCart, Message: "cart is empty"}
}

// NewStockError creates a STOCK_INSUFFICIENT error naming every shortage.
func NewStockError(shortages ...Shortage) *Error {
	parts := make([]string, 0, len(shortages))
	for _, s := range shortages {
		parts = append(parts, fmt.Sprintf("%s (requested %g, available %g)", s.Name, s.Requested, s.Available))
	}
	return &Error{
		Code:      ErrCodeStockInsufficient,
		Message:   "insufficient stock: " + strings.Join(parts, ", "),
		Shortages: shortages,
	}
}

// NewTransitionError creates an INVALID_TRANSITION error.
func NewTransitionError(from Status, e Event) *Error {
	return &Error{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot %s a %s transaction", e, from),
		Details: map[string]string{
			"from":  string(from),
			"event": string(e),
		},
	}
}

// NewAmountTooLowError creates an AMOUNT_TOO_LOW error.
func NewAmountTooLowError(total, cashReceived int64) *Error {
	return &Error{
		Code:    ErrCodeAmountTooLow,
		Message: fmt.Sprintf("cash received %d is below total %d", cashReceived, total),
		Details: map[string]string{
			"total":         fmt.Sprintf("%d", total),
			"cash_received": fmt.Sprintf("%d", cashReceived),
			"short_by":      fmt.Sprintf("%d", total-cashReceived),
		},
	}
}

// NewNotFoundError creates a NOT_FOUND error for a kind of row.
func NewNotFoundError(kind string, id any) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %v not found", kind, id)}
}

// NewStorageError wraps a local I/O failure.
func NewStorageError(op string, err error) *Error {
	return &Error{Code: ErrCodeStorage, Message: op, Err: err}
}
