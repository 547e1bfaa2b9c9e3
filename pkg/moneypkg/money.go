// Package moneypkg parses and validates money amounts.
package moneypkg

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits an amount may carry.
const Scale = 2

// Parse returns the amount if it is a positive decimal with at most Scale
// fractional digits.
func Parse(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}

	if !d.IsPositive() || !d.Equal(d.Truncate(Scale)) {
		return decimal.Zero, false
	}

	return d, true
}

// ValidAmount is a validator.Func for the "amount" binding tag.
var ValidAmount validator.Func = func(fieldLevel validator.FieldLevel) bool {
	if s, ok := fieldLevel.Field().Interface().(string); ok {
		_, valid := Parse(s)
		return valid
	}

	return false
}
