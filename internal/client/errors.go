package client

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionMismatch matches *VersionMismatchError.
	ErrVersionMismatch = errors.New("protocol version mismatch")
	// ErrClosed is returned for calls on a closed client.
	ErrClosed = errors.New("client closed")
)

// VersionMismatchError reports a daemon speaking another protocol version.
// It is fatal for the client session.
type VersionMismatchError struct {
	Client uint32
	Server uint32
}

// Error implements the error interface.
func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("%v: client 0x%04x, server 0x%04x", ErrVersionMismatch, e.Client, e.Server)
}

// Is matches ErrVersionMismatch.
func (e *VersionMismatchError) Is(target error) bool {
	return target == ErrVersionMismatch
}

// ConnectionError reports a transport failure: the daemon is unreachable,
// the connection dropped, or a call timed out.
type ConnectionError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError returns true if err is, or wraps, a *ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
