// Package validation collects per-field input errors for request handlers.
package validation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Validator defines validation methods
type Validator struct {
	Errors map[string]string
}

// New creates a new validator
func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid checks if there are any validation errors
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError keeps the first message recorded for a field.
func (v *Validator) AddError(field, message string) {
	if _, exists := v.Errors[field]; !exists {
		v.Errors[field] = message
	}
}

// Check adds an error if the condition is false
func (v *Validator) Check(ok bool, field, message string) {
	if !ok {
		v.AddError(field, message)
	}
}

// Required checks that a string is not blank.
func (v *Validator) Required(field, value string) {
	v.Check(strings.TrimSpace(value) != "", field, "must not be empty")
}

func (v *Validator) RequiredID(field string, id uuid.UUID) {
	v.Check(id != uuid.Nil, field, "is required")
}

// Positive checks that an amount is greater than zero.
func (v *Validator) Positive(field string, value decimal.Decimal) {
	v.Check(value.IsPositive(), field, "must be greater than zero")
}

// Money checks that an amount is positive with at most two decimals.
func (v *Validator) Money(field string, value decimal.Decimal) {
	if !value.IsPositive() {
		v.AddError(field, "must be greater than zero")
		return
	}
	v.Check(value.Equal(value.Round(2)), field, "must have at most 2 decimal places")
}

func (v *Validator) PositiveInt(field string, value int) {
	v.Check(value > 0, field, "must be greater than zero")
}

// OneOf checks that value is one of allowed.
func (v *Validator) OneOf(field, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")))
}
