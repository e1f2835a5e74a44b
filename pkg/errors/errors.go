// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping and logging.
type Kind string

const (
	KindValidation      Kind = "VALIDATION"
	KindStateConflict   Kind = "STATE_CONFLICT"
	KindConfiguration   Kind = "CONFIGURATION"
	KindExternalService Kind = "EXTERNAL_SERVICE"
	KindInvariant       Kind = "INVARIANT_VIOLATION"
	KindNotFound        Kind = "NOT_FOUND"
)

// Error carries a kind, a stable code, and a human-readable message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E constructs an Error of the given kind.
func E(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation constructs a user-correctable input error.
func Validation(code, message string) *Error {
	return E(KindValidation, code, message)
}

// StateConflict constructs an error for an operation issued against the wrong state.
func StateConflict(code, message string) *Error {
	return E(KindStateConflict, code, message)
}

// Configuration constructs an operator-fixable configuration error.
func Configuration(code, message string) *Error {
	return E(KindConfiguration, code, message)
}

// ExternalService wraps a failure of an external collaborator.
func ExternalService(code, message string, err error) *Error {
	return &Error{Kind: KindExternalService, Code: code, Message: message, Err: err}
}

// Invariantf reports a broken numeric or ordering invariant. These are
// programming defects and must abort the surrounding operation.
func Invariantf(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvariant, Code: code, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, or KindInvariant for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInvariant
}

// CodeOf extracts the stable code from err, empty when unclassified.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Common errors
var (
	ErrInvoiceNotFound     = E(KindNotFound, "INVOICE_NOT_FOUND", "invoice not found")
	ErrAlreadyInvoiced     = StateConflict("ALREADY_INVOICED", "package already invoiced")
	ErrNotLinkedToOrder    = Validation("NOT_LINKED_TO_ORDER", "package is not linked to an order")
	ErrInvoiceAlreadyPaid  = StateConflict("INVOICE_ALREADY_PAID", "invoice already paid")
	ErrInvoiceNotPaid      = StateConflict("INVOICE_NOT_PAID", "invoice has not been paid")
	ErrPickupTokenMismatch = Validation("PICKUP_TOKEN_MISMATCH", "pickup token does not match")
	ErrPackageNotFound     = E(KindNotFound, "PACKAGE_NOT_FOUND", "package not found")
	ErrReturnNotFound      = E(KindNotFound, "RETURN_NOT_FOUND", "return request not found")
	ErrReturnNotReviewable = StateConflict("RETURN_NOT_REVIEWABLE", "return request is not awaiting review")
	ErrRefundNotProcessing = StateConflict("REFUND_NOT_PROCESSING", "refund is not in processing state")
	ErrSettlementNotFound  = E(KindNotFound, "SETTLEMENT_NOT_FOUND", "settlement not found")
	ErrSettlementExists    = StateConflict("SETTLEMENT_EXISTS", "settlement already generated for this period")
	ErrRateNotAvailable    = Configuration("RATE_NOT_AVAILABLE", "exchange rate not available")
	ErrPolicyNotFound      = E(KindNotFound, "POLICY_NOT_FOUND", "insurance policy not found")
	ErrLedgerConflict      = StateConflict("LEDGER_CONFLICT", "ledger append conflicted, retry")
	ErrDuplicateRequest    = StateConflict("DUPLICATE_REQUEST", "duplicate request")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
