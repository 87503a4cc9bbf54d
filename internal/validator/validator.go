// Package validator provides the custom validation rules shared by Gin's
// binding engine and the category service.
package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "budgetly/internal/errors"
)

var hexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
		registerRules(v)
	}
}

// New returns a standalone validator with the custom rules registered and
// field names reported by their json tag.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	registerRules(v)
	return v
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "" {
		name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
	}
	if name == "-" {
		return ""
	}
	return name
}

// IsHexColor reports whether s is a #RGB or #RRGGBB color.
func IsHexColor(s string) bool {
	return hexColorRegex.MatchString(s)
}

// FieldErrors converts validator errors into field errors. Any other error
// yields nil.
func FieldErrors(err error) []apperrors.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: messageFor(fe),
		})
	}
	return fields
}

func registerRules(v *validator.Validate) {
	_ = v.RegisterValidation("hex_color", validateHexColor)
	_ = v.RegisterValidation("category_status", validateCategoryStatus)
}

func validateHexColor(fl validator.FieldLevel) bool {
	return IsHexColor(fl.Field().String())
}

func validateCategoryStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "active", "inactive":
		return true
	}
	return false
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "hex_color":
		return "must be a hex color such as #RGB or #RRGGBB"
	case "category_status":
		return "must be active or inactive"
	}
	return "is invalid"
}
