package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("Validation Error")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// Conflict reports a uniqueness violation on field. Stores return it when
// a unique index rejects an insert.
func Conflict(field, value string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s %q already exists", field, value),
		Field:   field,
	}
}

// FieldError is a single field-scoped validation message.
type FieldError struct {
	Field   string
	Message string
}

// FieldErrors is the result of validating a form. It is returned as an
// error so services keep a single error return, but callers are expected
// to range over it and render each message next to its field.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, e := range fe {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return strings.Join(parts, "; ")
}

func (fe FieldErrors) Unwrap() error {
	return ErrValidation
}

// For returns the messages recorded for field, in insertion order.
func (fe FieldErrors) For(field string) []string {
	var msgs []string
	for _, e := range fe {
		if e.Field == field {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

// ByField groups messages by field name, which is the shape templates want.
func (fe FieldErrors) ByField() map[string][]string {
	out := make(map[string][]string, len(fe))
	for _, e := range fe {
		out[e.Field] = append(out[e.Field], e.Message)
	}
	return out
}
