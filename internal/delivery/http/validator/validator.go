// Package validator wires go-playground validation into echo.
package validator

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// EchoValidator adapts a validator.Validate instance to echo's Validator
// interface.
type EchoValidator struct {
	validate *validator.Validate
}

// New creates a validator with struct tag support.
func New() *EchoValidator {
	return &EchoValidator{validate: validator.New()}
}

// Validate validates the given struct against its validate tags.
func (v *EchoValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return errors.WithStack(err)
	}

	return nil
}
