package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"skyrisk/internal/types"
)

// Validator wraps go-playground/validator with the rules request bodies use.
//
// Custom tags:
//   - iso_date: a YYYY-MM-DD calendar date.
//   - notblank: a string with at least one non-space character.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult collects every failed field of a struct.
type ValidationResult struct {
	Errors []ValidationError `json:"errors,omitempty"`
}

// IsValid reports whether no field failed.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// NewValidator creates a Validator and registers the custom tags. Field
// names in errors use the json tag.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	mustRegister(v, "iso_date", func(fl validator.FieldLevel) bool {
		_, err := types.ParseDate(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return &Validator{validate: v, logger: logger}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("registering validation %q: %v", tag, err))
	}
}

// Check validates s and returns every failure.
func (v *Validator) Check(s any) ValidationResult {
	err := v.validate.Struct(s)
	if err == nil {
		return ValidationResult{}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.logger.Error("validator misuse", "error", err)
		return ValidationResult{Errors: []ValidationError{{Code: "invalid", Message: err.Error()}}}
	}

	result := ValidationResult{Errors: make([]ValidationError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: messageFor(fe),
		})
	}
	return result
}

// ValidateStruct validates s and returns a validation_failed AppError listing
// the failed fields, or nil.
func (v *Validator) ValidateStruct(s any) error {
	result := v.Check(s)
	if result.IsValid() {
		return nil
	}
	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationFailed,
		"request validation failed",
		nil,
		map[string]any{"errors": result.Errors},
	)
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fe.Field() + " is required"
	case "iso_date":
		return fe.Field() + " must be a YYYY-MM-DD date"
	case "latitude":
		return fe.Field() + " must be between -90 and 90"
	case "longitude":
		return fe.Field() + " must be between -180 and 180"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	default:
		return fe.Field() + " failed " + fe.Tag() + " validation"
	}
}
