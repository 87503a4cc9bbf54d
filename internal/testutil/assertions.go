package testutil

import (
	"errors"
	"testing"

	apperrors "budgetly/internal/errors"
)

// AssertAppError checks that err is an *AppError with the expected error code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected AppError with code %q, got nil", expectedCode)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}

	if appErr.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// AssertValidationRule checks that err is a validation error reporting the
// given rule on the given field.
func AssertValidationRule(t *testing.T, err error, field, rule string) {
	t.Helper()

	AssertAppError(t, err, apperrors.ErrValidation.Code)

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && !appErr.HasRule(field, rule) {
		t.Errorf("expected rule %q on field %q, got details %+v", rule, field, appErr.Details)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
