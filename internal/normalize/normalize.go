// Package normalize converts Polar payloads into the canonical rows stored by
// the mirror. Every function is pure: no I/O, and the same payload always
// yields the same record.
package normalize

import (
	"errors"
	"fmt"
	"sync"

	"polar-billing-bridge/internal/model"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports a payload missing a structurally required field.
type ValidationError struct {
	Kind model.Kind
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s payload: %v", e.Kind, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func payloadValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Struct validates v against its `validate` tags.
func Struct(kind model.Kind, v any) error {
	if err := payloadValidator().Struct(v); err != nil {
		return &ValidationError{Kind: kind, Err: err}
	}
	return nil
}

func invalid(kind model.Kind, format string, args ...any) error {
	return &ValidationError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// IsValidation reports whether err came from payload validation.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
