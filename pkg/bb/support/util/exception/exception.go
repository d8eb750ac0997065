// Package exception provides custom error types and error handling utilities for the
// burstbuf state engine. It standardizes errors that occur during checkpoint encoding,
// durable writes and state recovery, allowing them to be classified with errors.Is.
package exception

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrIO is the sentinel error for file create/write/read/sync failures.
// The previous good copy of the state file is never touched when this is reported.
var ErrIO = errors.New("state file I/O error")

// ErrIncompatibleVersion is the sentinel error reported when a checkpoint payload
// carries an unrecognized format version tag, or the "unset" sentinel value that
// signals a decode from an empty or garbage file.
var ErrIncompatibleVersion = errors.New("incompatible state format version")

// ErrTruncated is the sentinel error reported when a short read occurs while
// unpacking a record from a checkpoint payload.
var ErrTruncated = errors.New("truncated state data")

// BufferError is a custom error type for failures inside the burstbuf engine.
// It holds the module where the error occurred, a message, and the wrapped
// original error (usually one of the sentinel errors above, possibly joined
// with an underlying OS error).
type BufferError struct {
	// Module indicates the module where the error occurred (e.g., "codec", "statefile", "agent").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewBufferError creates a new BufferError instance.
// module: The module where the error occurred.
// message: The error message.
// originalErr: The original error to wrap.
// Returns: A new BufferError instance.
func NewBufferError(module, message string, originalErr error) *BufferError {
	// Capture stack trace (for debugging purposes)
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	stackTrace := string(buf[:n])

	return &BufferError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  stackTrace,
	}
}

// NewIOError creates a BufferError classified as ErrIO.
// If originalErr exists it is joined with the sentinel so that both
// errors.Is(err, ErrIO) and errors.Is(err, originalErr) hold.
func NewIOError(module, message string, originalErr error) *BufferError {
	return NewBufferError(module, message, join(ErrIO, originalErr))
}

// NewIncompatibleVersionError creates a BufferError classified as ErrIncompatibleVersion.
func NewIncompatibleVersionError(module, message string) *BufferError {
	return NewBufferError(module, message, ErrIncompatibleVersion)
}

// NewTruncatedError creates a BufferError classified as ErrTruncated.
// If originalErr exists it is joined with the sentinel.
func NewTruncatedError(module, message string, originalErr error) *BufferError {
	return NewBufferError(module, message, join(ErrTruncated, originalErr))
}

// join combines a sentinel with an optional underlying error.
func join(sentinel, originalErr error) error {
	if originalErr != nil {
		return errors.Join(sentinel, originalErr)
	}
	return sentinel
}

// Error implements the error interface.
// It returns the error's module, message, and the string representation of the original error.
func (e *BufferError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *BufferError) Unwrap() error {
	return e.OriginalErr
}
