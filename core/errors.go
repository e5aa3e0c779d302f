package core

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// APIError is the client-side form of the server's error envelope
// `{"error": string}`. Status is the HTTP status code of the response.
type APIError struct {
	Status  int
	Message string
}

func NewAPIError(status int, msg string) *APIError {
	return &APIError{Status: status, Message: msg}
}

func (err APIError) Error() string { return err.Message }

// ErrorMessage extracts the single display string for an error, the way
// it is surfaced in container state: the server envelope's message when
// present, the underlying message otherwise.
func ErrorMessage(err error) string {
	switch cause := errors.Cause(err).(type) {
	case *APIError:
		return cause.Message
	case *ValidationError:
		if cause.Err != nil {
			return cause.Err.Error()
		}
		if len(cause.Fields) > 0 {
			return cause.Fields[0].Field + ": " + cause.Fields[0].Error
		}
		return "invalid input"
	case validator.ValidationErrors:
		return cause.Error()
	default:
		return err.Error()
	}
}
