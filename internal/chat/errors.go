package chat

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySubmission = errors.New("empty submission")
	ErrUnchanged       = errors.New("message unchanged")
	ErrNotEditable     = errors.New("only user messages can be edited")
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyTitle      = errors.New("empty title")
	ErrBusy            = errors.New("a submission is already awaiting the server")
	ErrNotFound        = errors.New("not found")
	ErrNothingToRetry  = errors.New("nothing to retry")
	ErrPendingExists   = errors.New("timeline already holds a pending message")
	// ErrStaleResponse marks an outcome that arrived after its timeline was replaced. It is
	// never surfaced to the user.
	ErrStaleResponse = errors.New("stale response ignored")
)

// ValidationError rejects input before any network call or timeline mutation.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error, reason string) *ValidationError {
	return &ValidationError{Err: err, Reason: reason}
}

// TransportError wraps a network/status/decoding failure of the endpoint.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerReportedError is an in-band {"error": ...} answer from the endpoint.
type ServerReportedError struct {
	Message string
}

func (e *ServerReportedError) Error() string {
	return "server reported: " + e.Message
}
