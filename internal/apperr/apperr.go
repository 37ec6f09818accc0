// Package apperr defines the error taxonomy shared by the complaint store,
// the backend client and the chat session.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to react differently
// to input problems, transport problems and state problems.
type Kind string

const (
	// KindValidation marks input rejected before any network call.
	KindValidation Kind = "validation"
	// KindNotFound marks an operation on an id the local cache does not hold.
	KindNotFound Kind = "not_found"
	// KindNetwork marks an unreachable backend.
	KindNetwork Kind = "network"
	// KindServer marks a non-success or malformed backend response.
	KindServer Kind = "server"
	// KindConnection marks a chat channel that could not be established.
	KindConnection Kind = "connection"
	// KindConnectionLost marks a chat channel that dropped after it was open.
	KindConnectionLost Kind = "connection_lost"
	// KindInvalidState marks an operation the current state forbids.
	KindInvalidState Kind = "invalid_state"
)

// Sentinels for errors.Is. Any *Error with the same Kind matches.
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrNetwork        = &Error{Kind: KindNetwork}
	ErrServer         = &Error{Kind: KindServer}
	ErrConnection     = &Error{Kind: KindConnection}
	ErrConnectionLost = &Error{Kind: KindConnectionLost}
	ErrInvalidState   = &Error{Kind: KindInvalidState}
)

// Error is the concrete error type returned across the module.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Status is the HTTP status for server errors, zero otherwise.
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Validation creates a validation error.
func Validation(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

// NotFound creates a not-found error for the given id.
func NotFound(op, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("complaint %q is not in the local list", id)}
}

// Network wraps a transport failure.
func Network(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// Server creates a server error with the HTTP status and the backend's message.
func Server(op string, status int, msg string) *Error {
	return &Error{Kind: KindServer, Op: op, Status: status, Message: msg}
}

// Connection wraps a failure to establish a chat channel.
func Connection(op string, err error) *Error {
	return &Error{Kind: KindConnection, Op: op, Err: err}
}

// ConnectionLost wraps the reason a chat channel dropped.
func ConnectionLost(op string, err error) *Error {
	return &Error{Kind: KindConnectionLost, Op: op, Err: err}
}

// InvalidState creates an invalid state error.
func InvalidState(op, msg string) *Error {
	return &Error{Kind: KindInvalidState, Op: op, Message: msg}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
