package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error type for study operations.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeNotFound indicates the revision item or concept does not exist for the owner.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeStorageFailure indicates the store failed to read or write.
	ErrCodeStorageFailure ErrorCode = "STORAGE_FAILURE"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
)

// StudyError represents a structured error for study operations.
type StudyError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *StudyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *StudyError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *StudyError) WithContext(key string, value any) *StudyError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *StudyError) GetCode() ErrorCode {
	return e.Code
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string, cause error) *StudyError {
	return &StudyError{Code: ErrCodeInvalidArgument, Message: msg, Cause: cause}
}

// NotFound creates a not found error.
func NotFound(msg string) *StudyError {
	return &StudyError{Code: ErrCodeNotFound, Message: msg}
}

// StorageFailure creates a storage failure error.
func StorageFailure(msg string, cause error) *StudyError {
	return &StudyError{Code: ErrCodeStorageFailure, Message: msg, Cause: cause}
}

// ContextCanceled creates a context canceled error.
func ContextCanceled(cause error) *StudyError {
	return &StudyError{Code: ErrCodeContextCanceled, Message: "operation canceled", Cause: cause}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *StudyError {
	return &StudyError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if any error in err's chain is a StudyError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var studyErr *StudyError
	if errors.As(err, &studyErr) {
		return studyErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a StudyError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var studyErr *StudyError
	if errors.As(err, &studyErr) {
		return studyErr.Code
	}
	return defaultCode
}
