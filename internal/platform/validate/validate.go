// Package validate configures go-playground/validator for request payloads
// and descriptor field rules.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// New returns a validator with the custom rules used across the API.
// "clock" accepts 24-hour HH:MM strings.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	})
	return v
}

// FieldErrors converts a validator error into field messages. Errors of any
// other kind are returned as a single "general" entry.
func FieldErrors(err error) []shared.FieldError {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []shared.FieldError{{Field: "general", Message: err.Error()}}
	}
	out := make([]shared.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, shared.FieldError{Field: fe.Field(), Message: Message(fe.Field(), fe.Tag(), fe.Param())})
	}
	return out
}

// Message renders a human readable message for a failed rule.
func Message(field, tag, param string) string {
	switch tag {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "email":
		return field + " must be a valid email address"
	case "clock":
		return field + " must be a time in HH:MM format"
	case "url":
		return field + " must be a valid URL"
	}
	return field + " is invalid"
}
