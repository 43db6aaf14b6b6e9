package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific form field.
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
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// FieldMap returns the field errors keyed by field name.
func (err ValidationError) FieldMap() map[string]string {
	m := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		m[f.Field] = f.Error
	}
	return m
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
