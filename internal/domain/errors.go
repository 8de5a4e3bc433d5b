package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Transfer error kinds. Every error produced by a download attempt matches
// exactly one of these with errors.Is.
var (
	// ErrServer is a non-success HTTP status
	ErrServer = errors.New("server error")

	// ErrIO is a local read/write failure, including a network interruption
	// surfaced while reading the response body
	ErrIO = errors.New("i/o error")

	// ErrStorage is a destination directory or finalize (rename) failure
	ErrStorage = errors.New("storage error")

	// ErrCancelled is an explicit pause requested by the caller
	ErrCancelled = errors.New("download cancelled")
)

// TransferError carries the kind, the failing operation and the cause of a
// failed attempt.
type TransferError struct {
	Kind       error
	Op         string
	StatusCode int
	Err        error
}

// Error returns the error message
func (e *TransferError) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *TransferError) Unwrap() error {
	return e.Err
}

// Is matches the error kind
func (e *TransferError) Is(target error) bool {
	return target == e.Kind
}

// NewServerError creates an error for a non-success HTTP status
func NewServerError(op string, statusCode int) *TransferError {
	return &TransferError{Kind: ErrServer, Op: op, StatusCode: statusCode}
}

// NewRangeError creates a server error for a success status whose body
// cannot be used, such as a partial response at the wrong offset
func NewRangeError(op string, statusCode int, err error) *TransferError {
	return &TransferError{Kind: ErrServer, Op: op, StatusCode: statusCode, Err: err}
}

// NewIOError wraps a local read/write failure
func NewIOError(op string, err error) *TransferError {
	return &TransferError{Kind: ErrIO, Op: op, Err: err}
}

// NewStorageError wraps a directory or rename failure
func NewStorageError(op string, err error) *TransferError {
	return &TransferError{Kind: ErrStorage, Op: op, Err: err}
}

// IsCancelled returns true if the error is a user-requested pause
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsServerError returns true if the server answered with a non-success status
func IsServerError(err error) bool {
	return errors.Is(err, ErrServer)
}

// StatusCode returns the HTTP status carried by a server error
func StatusCode(err error) (int, bool) {
	var te *TransferError
	if errors.As(err, &te) && te.StatusCode != 0 {
		return te.StatusCode, true
	}
	return 0, false
}

// KindOf returns the transfer error kind of err, or nil if err is not a
// transfer error
func KindOf(err error) error {
	for _, kind := range []error{ErrCancelled, ErrServer, ErrStorage, ErrIO} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
