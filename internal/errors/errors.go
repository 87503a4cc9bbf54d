// Package errors provides custom error types for the Budgetly API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import (
	"net/http"
	"strings"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
	StatusCode int          `json:"-"`
	Internal   error        `json:"-"`
}

// FieldError describes a single violated validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Validation rules reported in FieldError.Rule.
const (
	RuleRequired  = "required"
	RuleMax       = "max"
	RuleHexColor  = "hex_color"
	RuleStatus    = "category_status"
	RuleDuplicate = "duplicate"
	RuleNotFound  = "not_found"
	RuleCycle     = "cycle"
	RuleMaxDepth  = "max_depth"
)

// Error implements the error interface.
func (e *AppError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	msgs := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		msgs = append(msgs, d.Field+": "+d.Message)
	}
	return e.Message + ": " + strings.Join(msgs, "; ")
}

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// HasRule reports whether a detail with the given field and rule is present.
func (e *AppError) HasRule(field, rule string) bool {
	for _, d := range e.Details {
		if d.Field == field && d.Rule == rule {
			return true
		}
	}
	return false
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// NewValidationError builds an ErrValidation carrying every violated rule.
func NewValidationError(fields ...FieldError) *AppError {
	return &AppError{
		Code:       ErrValidation.Code,
		Message:    ErrValidation.Message,
		Details:    fields,
		StatusCode: ErrValidation.StatusCode,
	}
}

// Authentication errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrValidation     = &AppError{Code: "VALIDATION_FAILED", Message: "Validation failed", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrStorage        = &AppError{Code: "STORAGE_ERROR", Message: "Storage is temporarily unavailable, please retry", StatusCode: http.StatusServiceUnavailable}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Category errors.
var (
	ErrCategoryNotFound = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
)
