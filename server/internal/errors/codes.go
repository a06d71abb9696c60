package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error type for pool and registry operations.
type ErrorCode string

const (
	// ErrCodeSessionNotFound indicates the origin store has no definition
	// for the requested session key.
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	// ErrCodeRegistryWriteFailure indicates a coordination-store write
	// failed during claim, release or availability publication.
	ErrCodeRegistryWriteFailure ErrorCode = "REGISTRY_WRITE_FAILURE"
	// ErrCodeTimeout indicates a worker did not answer within the ask
	// deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeSessionBusy indicates another ask held the session past the
	// caller's deadline.
	ErrCodeSessionBusy ErrorCode = "SESSION_BUSY"
	// ErrCodeStartupFailure indicates the instance could not announce
	// itself to the registry; the process must not begin serving.
	ErrCodeStartupFailure ErrorCode = "STARTUP_FAILURE"
	// ErrCodeEngineFailure indicates the conversational engine failed to
	// materialize a model or produce an answer.
	ErrCodeEngineFailure ErrorCode = "ENGINE_FAILURE"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// PoolError is a structured error carrying a machine-readable code.
type PoolError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *PoolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *PoolError) Unwrap() error {
	return e.Cause
}

// Convenience constructors for common error types.

// SessionNotFound creates a session not found error.
func SessionNotFound(sessionKey string) *PoolError {
	return &PoolError{
		Code:    ErrCodeSessionNotFound,
		Message: fmt.Sprintf("no bot definition for session %s", sessionKey),
	}
}

// RegistryWriteFailure creates a registry write failure error.
func RegistryWriteFailure(msg string, cause error) *PoolError {
	return &PoolError{Code: ErrCodeRegistryWriteFailure, Message: msg, Cause: cause}
}

// Timeout creates a timeout error.
func Timeout(msg string) *PoolError {
	return &PoolError{Code: ErrCodeTimeout, Message: msg}
}

// SessionBusy creates a session busy error.
func SessionBusy(sessionKey string) *PoolError {
	return &PoolError{
		Code:    ErrCodeSessionBusy,
		Message: fmt.Sprintf("session %s has an outstanding ask", sessionKey),
	}
}

// StartupFailure creates a startup failure error.
func StartupFailure(msg string, cause error) *PoolError {
	return &PoolError{Code: ErrCodeStartupFailure, Message: msg, Cause: cause}
}

// EngineFailure creates an engine failure error.
func EngineFailure(msg string, cause error) *PoolError {
	return &PoolError{Code: ErrCodeEngineFailure, Message: msg, Cause: cause}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *PoolError {
	return &PoolError{Code: ErrCodeInvalidArgument, Message: msg}
}

// IsCode checks if an error carries a specific code, unwrapping as needed.
func IsCode(err error, code ErrorCode) bool {
	var poolErr *PoolError
	if errors.As(err, &poolErr) {
		return poolErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from anywhere in an error chain.
// Returns the provided default code if no PoolError is found.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var poolErr *PoolError
	if errors.As(err, &poolErr) {
		return poolErr.Code
	}
	return defaultCode
}
