package handler

import (
	"errors"
	"fmt"
)

// ErrGuestNotFound is returned when an operation names a guest the roster does not hold
var ErrGuestNotFound = errors.New("guest not found")

// RemoteError wraps a failed store, import or export call.
// Local state is left untouched when one is returned.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemoteFailure reports whether err came from the persistence layer
func IsRemoteFailure(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

func remote(op string, err error) error {
	return &RemoteError{Op: op, Err: err}
}
