package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrInvalid      = errors.New("invalid request")
	ErrInternal     = errors.New("internal error")
)

// OpError carries the failing operation, its kind (one of the sentinels above)
// and, for internal errors, the stage reached and the offending payload.
type OpError struct {
	Op      string
	Kind    error
	Stage   string
	Payload any
	Msg     string
	Err     error
}

func (e *OpError) Error() string {
	s := e.Op
	if e.Stage != "" {
		s += " [" + e.Stage + "]"
	}
	s += ": " + e.Kind.Error()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func notFound(op, format string, args ...any) error {
	return &OpError{Op: op, Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

func unauthorized(op, format string, args ...any) error {
	return &OpError{Op: op, Kind: ErrUnauthorized, Msg: fmt.Sprintf(format, args...)}
}

func conflict(op, format string, args ...any) error {
	return &OpError{Op: op, Kind: ErrConflict, Msg: fmt.Sprintf(format, args...)}
}

func invalid(op string, err error) error {
	return &OpError{Op: op, Kind: ErrInvalid, Err: err}
}

// internal reports a broken invariant with enough context to debug it.
func internal(op, stage string, payload any, err error) error {
	return &OpError{Op: op, Kind: ErrInternal, Stage: stage, Payload: payload, Err: err}
}

// dbErr classifies a datastore error: missing rows become NotFound, anything
// else is internal.
func dbErr(op, what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(op, "%s", what)
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	return internal(op, what, nil, err)
}

// expectRows turns a write that touched nothing into an internal error.
func expectRows(op, stage string, payload any, res *gorm.DB) error {
	if res.Error != nil {
		return internal(op, stage, payload, res.Error)
	}
	if res.RowsAffected == 0 {
		return internal(op, stage, payload, errors.New("no rows affected"))
	}
	return nil
}
