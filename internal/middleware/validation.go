package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "mfledger/internal/errors"
)

// maxBodySize caps decoded request bodies.
const maxBodySize = 1 << 20

// Validator decodes and validates request input using struct tags.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator that reports JSON field names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// DecodeJSON decodes the request body into dst and validates it. An empty
// body leaves dst at its zero value before validation.
func (v *Validator) DecodeJSON(r *http.Request, dst any) error {
	if r.Body != nil && r.ContentLength != 0 {
		body := http.MaxBytesReader(nil, r.Body, maxBodySize)
		if err := render.DecodeJSON(body, dst); err != nil {
			return apierrors.ErrValidation("body", "invalid JSON: "+err.Error())
		}
	}
	return v.Struct(dst)
}

// Struct validates s, returning the first failure as an APIError.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apierrors.ErrValidation(fe.Field(), formatValidationError(fe))
	}
	return apierrors.ErrValidation("body", err.Error())
}

// QueryInt reads an integer query parameter within [min, max].
func QueryInt(r *http.Request, param string, min, max, defaultValue int) (int, error) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, apierrors.ErrValidation(param, fmt.Sprintf("%s must be a valid integer", param))
	}
	if n < min || n > max {
		return 0, apierrors.ErrValidation(param, fmt.Sprintf("%s must be between %d and %d", param, min, max))
	}
	return n, nil
}

// QueryRequired reads a mandatory query parameter.
func QueryRequired(r *http.Request, param string) (string, error) {
	value := strings.TrimSpace(r.URL.Query().Get(param))
	if value == "" {
		return "", apierrors.ErrValidation(param, fmt.Sprintf("%s is required", param))
	}
	return value, nil
}

func formatValidationError(err validator.FieldError) string {
	field, param := err.Field(), err.Param()
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "unique":
		return fmt.Sprintf("%s must not contain duplicates", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}
