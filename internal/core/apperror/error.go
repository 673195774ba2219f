// Package apperror defines the ledger's error taxonomy. Every business
// outcome (a rejected movement, a missing item, an integrity alarm) is an
// *AppError whose Code callers can branch on.
package apperror

import (
	"errors"
	"fmt"
)

// Error codes
const (
	CodeInternal = "INTERNAL_ERROR"

	CodeValidation      = "VALIDATION_ERROR"
	CodeInvalidMovement = "INVALID_MOVEMENT"

	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeAlreadyReversed   = "ALREADY_REVERSED"

	CodeNotFound = "NOT_FOUND"

	CodeConflict  = "CONFLICT"
	CodeDuplicate = "DUPLICATE_ENTRY"

	// Ledger and snapshot disagree.
	CodeIntegrityViolation = "INTEGRITY_VIOLATION"
)

// Class groups codes by who has to act on them.
type Class int

const (
	// ClassInternal is an infrastructure failure; retrying may help.
	ClassInternal Class = iota
	// ClassRejected means the request was refused and nothing was written.
	ClassRejected
	// ClassConflict means another writer holds the item or the key exists.
	ClassConflict
	// ClassIntegrity means stored state is inconsistent and needs an operator.
	ClassIntegrity
)

func (c Class) String() string {
	switch c {
	case ClassRejected:
		return "rejected"
	case ClassConflict:
		return "conflict"
	case ClassIntegrity:
		return "integrity"
	default:
		return "internal"
	}
}

var codeClass = map[string]Class{
	CodeValidation:         ClassRejected,
	CodeInvalidMovement:    ClassRejected,
	CodeInsufficientStock:  ClassRejected,
	CodeAlreadyReversed:    ClassRejected,
	CodeNotFound:           ClassRejected,
	CodeConflict:           ClassConflict,
	CodeDuplicate:          ClassConflict,
	CodeIntegrityViolation: ClassIntegrity,
}

// AppError is the error type returned by ledger operations.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	// Err is the underlying error; it is not serialized.
	Err error `json:"-"`
}

func newError(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Class returns the class of e's code. Unknown codes are internal.
func (e *AppError) Class() Class {
	return codeClass[e.Code]
}

// WithDetail sets one detail and returns e for chaining.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause records the underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// NewValidation rejects a malformed document.
func NewValidation(message string) *AppError {
	return newError(CodeValidation, message)
}

// NewInvalidMovement rejects a malformed movement request: non-positive
// quantity, unknown type or missing item reference.
func NewInvalidMovement(message string) *AppError {
	return newError(CodeInvalidMovement, message)
}

func NewNotFound(entity string, id any) *AppError {
	return newError(CodeNotFound, fmt.Sprintf("%s not found", entity)).
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewInsufficientStock reports a draw larger than the store balance.
// Quantities are passed as decimal strings to keep them exact.
func NewInsufficientStock(itemID, store, requested, available, shortfall string) *AppError {
	return &AppError{
		Code:    CodeInsufficientStock,
		Message: fmt.Sprintf("Not enough stock in %s store", store),
		Details: map[string]any{
			"item_id":   itemID,
			"store":     store,
			"requested": requested,
			"available": available,
			"shortfall": shortfall,
		},
	}
}

// NewAlreadyReversed is returned when a document has nothing left to reverse.
func NewAlreadyReversed(documentRef string) *AppError {
	return newError(CodeAlreadyReversed, "Document has no un-reversed entries").
		WithDetail("document_ref", documentRef)
}

// NewIntegrityViolation reports a snapshot that disagrees with the ledger.
func NewIntegrityViolation(itemID any, message string) *AppError {
	return newError(CodeIntegrityViolation, message).WithDetail("item_id", itemID)
}

func NewInternal(err error) *AppError {
	return newError(CodeInternal, "Internal error").WithCause(err)
}

func NewConflict(message string) *AppError {
	return newError(CodeConflict, message)
}

func NewDuplicate(entity, field, value string) *AppError {
	return newError(CodeDuplicate, fmt.Sprintf("%s with this %s already exists", entity, field)).
		WithDetail("entity", entity).
		WithDetail("field", field).
		WithDetail("value", value)
}

// AsAppError extracts the first *AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// ClassOf returns the class of err. Plain errors are internal.
func ClassOf(err error) Class {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Class()
	}
	return ClassInternal
}

func IsNotFound(err error) bool           { return HasCode(err, CodeNotFound) }
func IsInsufficientStock(err error) bool  { return HasCode(err, CodeInsufficientStock) }
func IsInvalidMovement(err error) bool    { return HasCode(err, CodeInvalidMovement) }
func IsIntegrityViolation(err error) bool { return HasCode(err, CodeIntegrityViolation) }
