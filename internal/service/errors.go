package service

import (
	"errors"
	"strings"
)

var (
	ErrForbiddenRole   = errors.New("forbidden: role does not permit this action")
	ErrForbidden       = errors.New("forbidden: user does not have permission for this expense")
	ErrExpenseNotFound = errors.New("expense not found")
	ErrInvalidState    = errors.New("expense is not pending")
)

// FieldError describes one rejected input field
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is returned when user input is incomplete or malformed
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Has reports whether field has at least one error
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// OrNil returns nil when no field errors were collected
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func newValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}
