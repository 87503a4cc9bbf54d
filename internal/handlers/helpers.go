package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "budgetly/internal/errors"
	"budgetly/internal/middleware"
	"budgetly/internal/repository"
	"budgetly/internal/validator"
)

const dateLayout = "2006-01-02"

// ErrorResponse documents the error envelope returned by every endpoint.
type ErrorResponse struct {
	Error struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details []apperrors.FieldError `json:"details,omitempty"`
	} `json:"error"`
}

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString(middleware.UserIDKey)
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// parsePathID reads a UUID path parameter.
func parsePathID(c *gin.Context, param string) (string, error) {
	raw := c.Param(param)
	if _, err := uuid.Parse(raw); err != nil {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return raw, nil
}

// parseBoolQuery reads an optional boolean query parameter.
func parseBoolQuery(c *gin.Context, key string, fallback bool) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+key+": must be true or false")
	}
	return v, nil
}

// parseDateRange reads the optional from/to query parameters. Both accept
// YYYY-MM-DD or RFC3339; a bare "to" date covers the whole day.
func parseDateRange(c *gin.Context) (repository.DateRange, error) {
	var rng repository.DateRange
	if raw := c.Query("from"); raw != "" {
		from, _, err := parseDate(raw)
		if err != nil {
			return rng, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid from date")
		}
		rng.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, dateOnly, err := parseDate(raw)
		if err != nil {
			return rng, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid to date")
		}
		if dateOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		rng.To = &to
	}
	if rng.From != nil && rng.To != nil && rng.To.Before(*rng.From) {
		return rng, apperrors.WithMessage(apperrors.ErrInvalidInput, "to must not be before from")
	}
	return rng, nil
}

func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	return t, false, err
}

// bindingError converts a request binding failure into an AppError, keeping
// per-field rule details when the validator produced them.
func bindingError(err error) error {
	if fields := validator.FieldErrors(err); len(fields) > 0 {
		return apperrors.NewValidationError(fields...)
	}
	return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
}

// respondWithError writes a consistent JSON error response through the same
// renderer as the error middleware.
func respondWithError(c *gin.Context, err error) {
	status, body := middleware.RenderError(c, err)
	c.JSON(status, body)
}
