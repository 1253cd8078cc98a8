package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse means the body could not be decoded.
	ErrMalformedResponse = errors.New("malformed response body")
	// ErrUnexpectedStatus means the server answered with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// Error describes a failed call. Status is zero when no response was received.
type Error struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Status != 0 {
		msg += fmt.Sprintf(": http %d", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}
