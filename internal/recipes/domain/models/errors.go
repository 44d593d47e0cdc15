package models

import "fmt"

// ValidationError marks a request field that failed validation.
// The API layer renders it as a 400 with the field name attached.
type ValidationError struct {
	Field   string
	Message string
}

func (ve ValidationError) Error() string {
	return ve.Field + ": " + ve.Message
}

func Invalid(field, format string, args ...interface{}) ValidationError {
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}
