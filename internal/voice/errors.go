package voice

import (
	"context"
	"errors"
	"fmt"
)

// Common cloning errors
var (
	// ErrTextEmpty indicates the text is empty or only whitespace
	ErrTextEmpty = errors.New("text cannot be empty")

	// ErrTextTooLong indicates the text exceeds the configured maximum
	ErrTextTooLong = errors.New("text exceeds maximum length")

	// ErrReferenceNotFound indicates the reference audio does not exist
	ErrReferenceNotFound = errors.New("reference audio not found")

	// ErrUnsupportedLanguage indicates an unknown language code
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrPathOutsideRoot indicates a path escapes its allowed directory
	ErrPathOutsideRoot = errors.New("path outside allowed directory")

	// ErrNoBackend indicates the cloner was built without a synthesis backend
	ErrNoBackend = errors.New("no synthesis backend configured")
)

// ErrorCode identifies specific error types
type ErrorCode string

const (
	// Input errors
	ErrorCodeInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrorCodeTextTooLong         ErrorCode = "TEXT_TOO_LONG"
	ErrorCodeReferenceNotFound   ErrorCode = "REFERENCE_NOT_FOUND"
	ErrorCodeUnsupportedLanguage ErrorCode = "UNSUPPORTED_LANGUAGE"
	ErrorCodePathOutsideRoot     ErrorCode = "PATH_OUTSIDE_ROOT"

	// Engine errors
	ErrorCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	ErrorCodeEngineFailure     ErrorCode = "ENGINE_FAILURE"

	// System errors
	ErrorCodeResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"
	ErrorCodeTimeout           ErrorCode = "TIMEOUT"
	ErrorCodeCanceled          ErrorCode = "CANCELED"
	ErrorCodeIO                ErrorCode = "IO_FAILURE"
)

// CloneError represents a cloning failure with a machine readable code.
type CloneError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// NewCloneError creates a new clone error.
func NewCloneError(code ErrorCode, message string, cause error) *CloneError {
	return &CloneError{Code: code, Message: message, Cause: cause}
}

// Error implements the error interface
func (e *CloneError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *CloneError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether retrying with the same backend is pointless.
func (e *CloneError) IsFatal() bool {
	switch e.Code {
	case ErrorCodeEngineUnavailable,
		ErrorCodeResourceExhausted:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether the same request may succeed later.
func (e *CloneError) IsRetryable() bool {
	switch e.Code {
	case ErrorCodeTimeout,
		ErrorCodeEngineUnavailable:
		return true
	default:
		return false
	}
}

// CodeOf extracts the error code from err, or "" when err carries none.
func CodeOf(err error) ErrorCode {
	var ce *CloneError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsInputError reports whether err was caused by bad caller input rather
// than a backend failure.
func IsInputError(err error) bool {
	switch CodeOf(err) {
	case ErrorCodeInvalidInput,
		ErrorCodeTextTooLong,
		ErrorCodeReferenceNotFound,
		ErrorCodeUnsupportedLanguage,
		ErrorCodePathOutsideRoot:
		return true
	default:
		return false
	}
}

// classify maps a backend error to a clone error.
func classify(err error) *CloneError {
	var ce *CloneError
	if errors.As(err, &ce) {
		return ce
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewCloneError(ErrorCodeTimeout, "synthesis timed out", err)
	case errors.Is(err, context.Canceled):
		return NewCloneError(ErrorCodeCanceled, "synthesis canceled", err)
	case errors.Is(err, ErrResourceExhausted):
		return NewCloneError(ErrorCodeResourceExhausted, "backend ran out of memory", err)
	case errors.Is(err, ErrBackendUnavailable):
		return NewCloneError(ErrorCodeEngineUnavailable, "synthesis backend unavailable", err)
	default:
		return NewCloneError(ErrorCodeEngineFailure, "error generating audio", err)
	}
}

// Backend failure markers. Backends wrap their errors with these so the
// cloner can classify them without importing the backend package.
var (
	// ErrBackendUnavailable marks a backend that cannot be reached
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrResourceExhausted marks a backend that ran out of memory
	ErrResourceExhausted = errors.New("resource exhausted")
)
