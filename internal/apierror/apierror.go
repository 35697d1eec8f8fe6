// Package apierror provides the error taxonomy of the settlement engine and
// the standardized error envelope returned to terminals.
// All errors returned to clients go through this package so internal details
// (SQL errors, stack traces) never leak and every failure resolves to a
// localized message.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the stable wire code, E<category><number>.
type Code string

// CommandCode is the narrower code a terminal uses to pick a localized
// message for a failed command.
type CommandCode string

// Error is a classified failure. Detail is for logs only; clients see the
// localized message of Command.
type Error struct {
	Code    Code
	Status  int
	Command CommandCode
	Detail  string
	Fields  map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s %s", e.Code, e.Command)
	}
	return fmt.Sprintf("%s %s: %s", e.Code, e.Command, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on Code so sentinel definitions work with errors.Is after
// With/Wrap produced a copy.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// With returns a copy carrying a log detail.
func (e *Error) With(format string, args ...any) *Error {
	c := *e
	c.Detail = fmt.Sprintf(format, args...)
	return &c
}

// Wrap returns a copy carrying cause.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.cause = cause
	if cause != nil && c.Detail == "" {
		c.Detail = cause.Error()
	}
	return &c
}

// WithFields returns a copy with per-field validation failures.
func (e *Error) WithFields(fields map[string]string) *Error {
	c := *e
	c.Fields = fields
	return &c
}

// Internal reports whether the error belongs to the 5xx class.
func (e *Error) Internal() bool { return e.Status >= http.StatusInternalServerError }

// StatusClass returns "4xx" or "5xx".
func (e *Error) StatusClass() string {
	if e.Internal() {
		return "5xx"
	}
	return "4xx"
}

func define(code Code, status int, cmd CommandCode) *Error {
	e := &Error{Code: code, Status: status, Command: cmd}
	registry[code] = e
	return e
}

var registry = map[Code]*Error{}

// Lookup returns the definition for a wire code.
func Lookup(code Code) (*Error, bool) {
	e, ok := registry[code]
	return e, ok
}

// From classifies any error. Unknown errors become ErrInternal wrapping the
// original so it can still be logged.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.Wrap(err)
}

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Code        Code              `json:"code"`
	CommandCode CommandCode       `json:"command_code,omitempty"`
	Detail      string            `json:"detail"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// New builds an envelope with a plain message, for transport-level failures
// that happen before a command is classified.
func New(code Code, msg string) *APIError {
	return &APIError{Code: code, Detail: msg}
}

// NewValidation wraps multiple field errors.
func NewValidation(fields map[string]string, locale string) *APIError {
	return &APIError{
		Code:        ErrValidation.Code,
		CommandCode: ErrValidation.Command,
		Detail:      Message(ErrValidation.Command, locale),
		Fields:      fields,
	}
}

// Envelope renders err for the wire in the requested locale.
func Envelope(err error, locale string) (int, *APIError) {
	e := From(err)
	return e.Status, &APIError{
		Code:        e.Code,
		CommandCode: e.Command,
		Detail:      Message(e.Command, locale),
		Fields:      e.Fields,
	}
}
