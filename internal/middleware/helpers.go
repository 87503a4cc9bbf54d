package middleware

import (
	"errors"

	apperrors "budgetly/internal/errors"
)

func asAppError(err error) (*apperrors.AppError, bool) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
