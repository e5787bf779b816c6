// Package validate checks request bodies against their struct tags.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/adnan855570/Global-Dorm-App/internal/core/apperr"
)

var v = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// report json field names instead of Go names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

// Struct returns a validation error describing the first failed field, or nil.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return apperr.Wrap(apperr.KindValidation, "invalid request body", err)
	}
	return apperr.Wrap(apperr.KindValidation, describe(ves[0]), err)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s is not a valid email address", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must not be empty", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
