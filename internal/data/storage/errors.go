package storage

import (
	"errors"
	"fmt"
)

// ErrClosed is returned for operations on an engine that is not open.
var ErrClosed = errors.New("storage engine is closed")

// Error is a typed storage failure. Code has the form "storage.<op>.<reason>".
type Error struct {
	Code      string
	Statement string
	Err       error
}

func (e *Error) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("%s: %v (statement: %s)", e.Code, e.Err, e.Statement)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, reason, statement string, err error) *Error {
	return &Error{Code: "storage." + op + "." + reason, Statement: statement, Err: err}
}
