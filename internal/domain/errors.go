package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind partitions failures by the surface they belong to. Kinds are part
// of the API contract; codes within a kind are free to grow.
type ErrorKind string

const (
	ErrorKindCart     ErrorKind = "cart"
	ErrorKindPricing  ErrorKind = "pricing"
	ErrorKindShipping ErrorKind = "shipping"
	ErrorKindOrder    ErrorKind = "order"
	ErrorKindPayment  ErrorKind = "payment"
	ErrorKindAddress  ErrorKind = "address"
)

// Error is a tagged failure value carrying a machine code and an
// HTTP-equivalent status. Details never contain raw upstream stack traces.
type Error struct {
	Kind       ErrorKind
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Kind, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// WithCause attaches an underlying error without leaking it to callers.
func (e *Error) WithCause(err error) *Error {
	if e == nil {
		return nil
	}
	dup := *e
	dup.cause = err
	return &dup
}

// WithDetails attaches JSON-safe metadata to the error payload.
func (e *Error) WithDetails(details map[string]any) *Error {
	if e == nil || len(details) == 0 {
		return e
	}
	dup := *e
	dup.Details = make(map[string]any, len(details))
	for k, v := range details {
		dup.Details[k] = v
	}
	return &dup
}

func newError(kind ErrorKind, code, message string, status int) *Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return &Error{Kind: kind, Code: code, Message: message, HTTPStatus: status}
}

// NewCartError tags a cart orchestration failure.
func NewCartError(code, message string, status int) *Error {
	return newError(ErrorKindCart, code, message, status)
}

// NewPricingError tags an exhausted-quote pricing failure.
func NewPricingError(code, message string, status int) *Error {
	return newError(ErrorKindPricing, code, message, status)
}

// NewShippingError tags a shipping validation failure.
func NewShippingError(code, message string, status int) *Error {
	return newError(ErrorKindShipping, code, message, status)
}

// NewOrderError tags an order lifecycle failure.
func NewOrderError(code, message string, status int) *Error {
	return newError(ErrorKindOrder, code, message, status)
}

// NewPaymentError tags a payment-session failure.
func NewPaymentError(code, message string, status int) *Error {
	return newError(ErrorKindPayment, code, message, status)
}

// NewAddressError tags a destination address validation failure.
func NewAddressError(code, message string, status int) *Error {
	return newError(ErrorKindAddress, code, message, status)
}

// AsError extracts a tagged Error from an error chain.
func AsError(err error) (*Error, bool) {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged, true
	}
	return nil, false
}

// IsKind reports whether the error chain carries a tagged Error of the kind.
func IsKind(err error, kind ErrorKind) bool {
	if tagged, ok := AsError(err); ok {
		return tagged.Kind == kind
	}
	return false
}
