package remote

import (
	"errors"
	"fmt"
)

// Remote link errors
var (
	// ErrConnect indicates the receiver's control port could not be reached
	ErrConnect = errors.New("cannot connect to receiver")

	// ErrNoResponse indicates the receiver closed the connection without answering
	ErrNoResponse = errors.New("no response from receiver")

	// ErrMalformedResponse indicates a response that could not be parsed
	ErrMalformedResponse = errors.New("malformed response from receiver")
)

// ConnError is returned when a connection to the receiver cannot be established.
type ConnError struct {
	Addr Address
	Err  error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("error connecting to %s: %v", e.Addr, e.Err)
}

func (e *ConnError) Unwrap() error {
	return e.Err
}

// Is reports ErrConnect so callers need not know the concrete type.
func (e *ConnError) Is(target error) bool {
	return target == ErrConnect
}
