package validate

import (
	"errors"
	"fmt"
)

// ErrValidation is the root of every validation failure. Callers map it to a
// "bad request" style response and re-prompt.
var ErrValidation = errors.New("validation error")

// Kind sentinels. Every *Error unwraps to ErrValidation and exactly one of these.
var (
	ErrInvalidString     = errors.New("invalid string")
	ErrInvalidBorough    = errors.New("invalid borough")
	ErrInvalidNumber     = errors.New("invalid number")
	ErrOutOfRange        = errors.New("out of range")
	ErrInvalidDateFormat = errors.New("invalid date format")
	ErrInvalidTag        = errors.New("invalid tag")
	ErrInvalidBool       = errors.New("invalid boolean")
)

// Error describes the first invalid field encountered.
type Error struct {
	Field string
	Msg   string
	kind  error
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Unwrap lets errors.Is match both ErrValidation and the kind sentinel.
func (e *Error) Unwrap() []error { return []error{ErrValidation, e.kind} }

// Kind returns the kind sentinel (ErrInvalidBorough, ErrOutOfRange, ...).
func (e *Error) Kind() error { return e.kind }

func newError(field string, kind error, format string, args ...any) *Error {
	return &Error{Field: field, Msg: fmt.Sprintf(format, args...), kind: kind}
}
