// Package apperror provides structured error handling following RFC 7807 Problem Details.
// Every engine failure surfaces as an AppError so callers can branch on Code.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Business rule violations (422)
	CodeBusinessRule           = "BUSINESS_RULE_VIOLATION"
	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeReturnExceeds          = "RETURN_EXCEEDS_REMAINING"
	CodeSettlementMismatch     = "SETTLEMENT_MISMATCH"
	CodeSettlementCancelled    = "SETTLEMENT_CANCELLED"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeAmendmentBelowOriginal = "AMENDMENT_BELOW_ORIGINAL"
	CodeRefundExceedsCollected = "REFUND_EXCEEDS_COLLECTED"

	// Conflict (409)
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeIdempotency            = "IDEMPOTENCY_CONFLICT"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"
)

// AppError is the standard error type for the engine.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400).
// Raised before any persistence attempt; the caller corrects input and retries.
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInsufficientStock creates a stock shortage error.
// available is the on-hand quantity read inside the transaction, delta the signed change refused.
func NewInsufficientStock(itemID, locationID string, delta, available string) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "Insufficient stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"item_id":     itemID,
			"location_id": locationID,
			"delta":       delta,
			"available":   available,
		},
	}
}

// NewReturnExceedsRemaining creates an error for a return larger than what is still returnable.
func NewReturnExceedsRemaining(lineID string, requested, remaining string) *AppError {
	return &AppError{
		Code:       CodeReturnExceeds,
		Message:    "Return quantity exceeds remaining returnable quantity",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"line_id":   lineID,
			"requested": requested,
			"remaining": remaining,
		},
	}
}

// NewSettlementMismatch creates an error for a tender that does not match the required amount.
func NewSettlementMismatch(required, tendered string) *AppError {
	return &AppError{
		Code:       CodeSettlementMismatch,
		Message:    "Tendered amount does not match the amount due",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"required": required,
			"tendered": tendered,
		},
	}
}

// NewSettlementCancelled is returned when the operator cancels the payment dialog.
func NewSettlementCancelled() *AppError {
	return &AppError{
		Code:       CodeSettlementCancelled,
		Message:    "Settlement cancelled by operator",
		HTTPStatus: http.StatusConflict,
	}
}

// NewInvalidTransition creates an error for an action the document state does not allow.
func NewInvalidTransition(action, status string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("Action %s is not allowed for document in status %s", action, status),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"action": action, "status": status},
	}
}

// NewConcurrentModification creates a retry-needed error: the state re-read inside
// the transaction differs from the one the operation was prepared against.
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another terminal. Please refresh and try again.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewIdempotencyConflict is returned while a request with the same key is still running.
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch is returned when a key is reused for a different request.
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Idempotency key mismatch",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewPersistence wraps a storage/connectivity failure (fatal to the operation).
func NewPersistence(err error) *AppError {
	return &AppError{
		Code:       CodeDatabase,
		Message:    "Storage failure",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }

// IsValidation checks if error is CodeValidation
func IsValidation(err error) bool { return HasCode(err, CodeValidation) }

// IsInsufficientStock checks if error is CodeInsufficientStock
func IsInsufficientStock(err error) bool { return HasCode(err, CodeInsufficientStock) }

// IsReturnExceedsRemaining checks if error is CodeReturnExceeds
func IsReturnExceedsRemaining(err error) bool { return HasCode(err, CodeReturnExceeds) }

// IsSettlementMismatch checks if error is CodeSettlementMismatch
func IsSettlementMismatch(err error) bool { return HasCode(err, CodeSettlementMismatch) }

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool { return HasCode(err, CodeConcurrentModification) }

// Normalize keeps AppErrors as they are and turns anything else into a persistence failure.
// Used at service boundaries where a raw error can only have come from storage.
func Normalize(err error) error {
	if err == nil || IsAppError(err) {
		return err
	}
	return NewPersistence(err)
}
