// Package shared holds the error kinds and events every layer of the engine
// agrees on. It imports nothing outside the standard library.
package shared

import (
	"errors"
	"strings"
)

// Error kinds. The HTTP layer maps each one to a status code, so a new kind
// needs a case there as well.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrValidation         = errors.New("validation failed")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// DomainError pairs an error kind with a message that is safe to show to API
// clients. Op names where it was raised, as "<area>.<operation>".
type DomainError struct {
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *DomainError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewDomainError returns a sentinel-style error of the given kind.
func NewDomainError(op string, kind error, message string) *DomainError {
	return &DomainError{Op: op, Kind: kind, Message: message}
}

// WrapError attaches a kind and a client-facing message to err.
func WrapError(op string, kind error, message string, err error) *DomainError {
	return &DomainError{Op: op, Kind: kind, Message: message, Err: err}
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsValidation reports whether err is the caller's fault.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidInput)
}
