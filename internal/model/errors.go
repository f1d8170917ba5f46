package model

import (
	"errors"
	"fmt"
)

// Kind separates caller mistakes from domain outcomes.
type Kind int

const (
	// KindRejection is a normal, recoverable domain outcome (insufficient
	// stock, empty cart, ...). Retrying with the same arguments will not help.
	KindRejection Kind = iota

	// KindPrecondition is malformed input, detected before any store access.
	KindPrecondition
)

// Code identifies a failure category. Codes are stable and safe to match on.
type Code string

const (
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeProductNotFound   Code = "PRODUCT_NOT_FOUND"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeItemNotInCart     Code = "ITEM_NOT_IN_CART"
	CodeCartEmpty         Code = "CART_EMPTY"
	CodeCommitFailed      Code = "COMMIT_FAILED"
	CodeOrderNotFound     Code = "ORDER_NOT_FOUND"
	CodeInvalidStatus     Code = "INVALID_STATUS"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeNotReturnable     Code = "NOT_RETURNABLE"
	CodeItemNotInOrder    Code = "ITEM_NOT_IN_ORDER"
	CodeAlreadyReturned   Code = "ALREADY_RETURNED"
	CodeReturnNotFound    Code = "RETURN_NOT_FOUND"
	CodeAlreadyProcessed  Code = "ALREADY_PROCESSED"

	// CodeStoreError is never carried by an *Error; it labels integrity
	// failures once they reach the result boundary.
	CodeStoreError Code = "STORE_ERROR"
)

// Error is a domain rejection or precondition failure.
type Error struct {
	Kind    Kind
	Code    Code
	Message string

	// Details carries contextual fields for the caller, e.g.
	// available_stock and requested_quantity.
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// With attaches a contextual field and returns e for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Rejectf builds a KindRejection error.
func Rejectf(code Code, format string, args ...any) *Error {
	return &Error{Kind: KindRejection, Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvalidInput builds a KindPrecondition error for a malformed field.
func InvalidInput(field, format string, args ...any) *Error {
	return (&Error{
		Kind:    KindPrecondition,
		Code:    CodeInvalidInput,
		Message: fmt.Sprintf("%s: %s", field, fmt.Sprintf(format, args...)),
	}).With("field", field)
}

// AsError extracts an *Error from err, following wrapped errors.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRejection returns true if err is a domain rejection.
func IsRejection(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindRejection
}

// IsPrecondition returns true if err is an input validation failure.
func IsPrecondition(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindPrecondition
}

// CodeOf returns the code carried by err, or CodeStoreError for anything
// that is not an *Error.
func CodeOf(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return CodeStoreError
}

// RequireID rejects an empty identifier.
func RequireID(field, value string) error {
	if value == "" {
		return InvalidInput(field, "is required")
	}
	return nil
}

// RequirePositive rejects a quantity that is zero or negative.
func RequirePositive(field string, qty int) error {
	if qty <= 0 {
		return InvalidInput(field, "must be positive, got %d", qty)
	}
	return nil
}
