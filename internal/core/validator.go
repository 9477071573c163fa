package core

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"campuspush/internal/types"
)

// Validator wraps go-playground/validator and reports failures using the
// JSON field names clients sent.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator that names fields by their json tag.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// ValidateStruct checks dst against its validate tags.
//
// Absent values (required, or min on a slice) are collected into a single
// "Missing required fields: a, b" error with the list under details.fields.
// Any other rule failure is reported as an invalid body naming the first
// offending field.
func (v *Validator) ValidateStruct(dst any) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation could not run", err)
	}

	var missing []string
	for _, fe := range verrs {
		if isMissing(fe) {
			missing = append(missing, fe.Field())
		}
	}
	if len(missing) > 0 {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			"Missing required fields: "+strings.Join(missing, ", "),
			nil,
			map[string]any{"fields": missing},
		)
	}

	fe := verrs[0]
	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationInvalidBody,
		"Invalid value for field "+fe.Field(),
		nil,
		map[string]any{"field": fe.Field(), "rule": fe.Tag()},
	)
}

func isMissing(fe validator.FieldError) bool {
	switch fe.Tag() {
	case "required":
		return true
	case "min":
		return fe.Kind() == reflect.Slice && fe.Param() == "1"
	}
	return false
}
