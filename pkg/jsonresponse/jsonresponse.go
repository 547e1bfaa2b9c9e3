// Package jsonresponse enables consistent responses across all handlers.
package jsonresponse

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// Response holds the common response type for all APIs.
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Error wraps a given err into json frinedly struct.
func Error(err error) Response {
	return Response{Error: err.Error()}
}

// BindingError turns a request binding error into a response. Validation
// failures are described by their first field.
func BindingError(err error) Response {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return Response{Error: FieldErrorMsg(ve[0])}
	}

	return Error(err)
}

// FieldErrorMsg returns a human readable message for a failed validation tag.
func FieldErrorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "amount":
		return fe.Field() + " must be a positive amount with at most 2 decimal places"
	case "nefield":
		return fe.Field() + " must differ from " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	}

	return fe.Field() + " is invalid"
}
