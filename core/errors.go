package core

import "github.com/pkg/errors"

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
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError reports a missing entity. Sentinels are declared per entity by the domain packages.
type NotFoundError struct {
	Entity string
}

func (err NotFoundError) Error() string {
	return err.Entity + " not found"
}

// ConflictError reports an operation rejected by the current state of an entity
// (full halaqa, wrong student status, plan limits...).
type ConflictError struct {
	Msg string
}

func (err ConflictError) Error() string { return err.Msg }

// PreconditionError reports a missing external setup (no Google connection, no linked sheet, no channel...).
type PreconditionError struct {
	Msg string
}

func (err PreconditionError) Error() string { return err.Msg }

// GatewayError reports a failure of an external collaborator.
type GatewayError struct {
	Msg     string
	Err     error
	Timeout bool
}

func NewGatewayError(msg string, err error) error {
	return &GatewayError{Msg: msg, Err: err}
}

func (err GatewayError) Error() string {
	if err.Err == nil {
		return err.Msg
	}
	return err.Msg + ": " + err.Err.Error()
}

func (err GatewayError) Unwrap() error { return err.Err }

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsValidation(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

func IsPrecondition(err error) bool {
	_, ok := errors.Cause(err).(*PreconditionError)
	return ok
}

func IsGateway(err error) bool {
	_, ok := errors.Cause(err).(*GatewayError)
	return ok
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
