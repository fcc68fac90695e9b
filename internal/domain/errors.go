package domain

import (
	"errors"
	"fmt"
)

// Operator-facing notice texts.
const (
	MsgMinInterval        = "Minimal interval 1 menit!"
	MsgLocationRequired   = "Isi lokasi dulu!"
	MsgBackendUnreachable = "Gagal menghubungi server. Pastikan Backend nyala!"
	MsgIntervalLocked     = "Interval tidak bisa diubah saat bot berjalan."
	MsgInvalidPost        = "Post tidak valid."
)

// ErrBusy is returned when a command's single-flight flag is already held.
var ErrBusy = errors.New("action already in progress")

// TransportError means the call to the backend could not complete: the
// connection failed, the context expired, or the backend answered non-2xx
// without a usable body.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: backend status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError means the backend answered but the payload did not have the
// expected shape.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RemoteError is a well-formed application-level failure from the backend.
// Message is the server-provided text shown to the operator.
type RemoteError struct {
	Op         string
	StatusCode int
	Status     string
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: backend rejected command (status %q): %s", e.Op, e.Status, e.Message)
}

// ValidationError is a local precondition failure caught before any network
// call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsUnavailable reports whether err means the backend could not be reached or
// understood.
func IsUnavailable(err error) bool {
	var te *TransportError
	var de *DecodeError
	return errors.As(err, &te) || errors.As(err, &de)
}
