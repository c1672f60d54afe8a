// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrDuplicatePosition  = errors.New("position already open for symbol")
	ErrPositionNotFound   = errors.New("position not found")
	ErrInsufficientMargin = errors.New("insufficient margin")
	ErrInvalidParameters  = errors.New("invalid order parameters")
	ErrPriceUnavailable   = errors.New("price unavailable")
	ErrLedgerHalted       = errors.New("capital ledger halted")
	ErrJournalClosed      = errors.New("journal is closed")
)

// ValidationError represents a validation error at the API boundary.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets callers match validation errors with errors.Is(err, ErrInvalidParameters).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidParameters
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// LedgerError represents a fatal margin-accounting defect. It is never
// recoverable: the ledger halts rather than silently repairing its books.
type LedgerError struct {
	Op         string
	Amount     float64
	UsedMargin float64
	Cash       float64
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger corruption [%s]: amount %.2f, used margin %.2f, cash %.2f",
		e.Op, e.Amount, e.UsedMargin, e.Cash)
}

func (e *LedgerError) Unwrap() error {
	return ErrLedgerHalted
}

// NewLedgerError creates a new LedgerError.
func NewLedgerError(op string, amount, usedMargin, cash float64) *LedgerError {
	return &LedgerError{
		Op:         op,
		Amount:     amount,
		UsedMargin: usedMargin,
		Cash:       cash,
	}
}

// PriceError represents a failed price fetch for a symbol. It wraps the
// underlying transport error and always matches ErrPriceUnavailable, so the
// monitor can treat any fetch failure as "no data this cycle".
type PriceError struct {
	Symbol   string
	Exchange string
	Err      error
}

func (e *PriceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("price unavailable [%s:%s]: %v", e.Exchange, e.Symbol, e.Err)
	}
	return fmt.Sprintf("price unavailable [%s:%s]", e.Exchange, e.Symbol)
}

func (e *PriceError) Unwrap() error {
	return ErrPriceUnavailable
}

// NewPriceError creates a new PriceError.
func NewPriceError(symbol, exchange string, err error) *PriceError {
	return &PriceError{
		Symbol:   symbol,
		Exchange: exchange,
		Err:      err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
