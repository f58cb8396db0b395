package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
)

// AppError is the unified error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Clone returns a copy of e with its own Details map. Use it before adding
// details to an error that may be shared, such as a package-level value.
func (e *AppError) Clone() *AppError {
	c := *e
	c.Details = maps.Clone(e.Details)
	return &c
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Common Error Constructors ---

// InvalidArgument creates a new AppError for a bad argument.
func InvalidArgument(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidArgument, Message: message}
}

// InvalidArgumentf creates a new AppError for a bad argument using a format string.
func InvalidArgumentf(format string, args ...any) *AppError {
	return InvalidArgument(fmt.Sprintf(format, args...))
}

// TypeMismatch creates a new AppError for the element at index that is not of
// the expected type. actual is the offending value; its dynamic type is reported.
func TypeMismatch(index int, expected string, actual any) *AppError {
	given := fmt.Sprintf("%T", actual)
	if actual == nil {
		given = "nil"
	}
	return &AppError{
		Code:    ErrCodeTypeMismatch,
		Message: fmt.Sprintf("Expected all elements to be of type %s, %s given", expected, given),
		Details: map[string]any{"index": index, "expected": expected, "actual": given},
	}
}

// PreconditionFailed creates a new AppError for an operation whose
// prerequisites were never configured.
func PreconditionFailed(message string) *AppError {
	return &AppError{Code: ErrCodePreconditionFailed, Message: message}
}

// InvalidOperation creates a new AppError for a programming error.
func InvalidOperation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidOperation, Message: message}
}

// NotFound creates a new AppError for a resource that was not found.
// The id is rendered with %v; a nil id is omitted from the details.
func NotFound(resource string, id any) *AppError {
	details := map[string]any{"resource": resource}
	msg := fmt.Sprintf("%s not found", resource)
	if id != nil {
		details["id"] = fmt.Sprintf("%v", id)
		msg = fmt.Sprintf("%s %q not found", resource, fmt.Sprintf("%v", id))
	}
	return &AppError{Code: ErrCodeNotFound, Message: msg, Details: details}
}

// AlreadyExists creates a new AppError for a resource that already exists.
func AlreadyExists(resource string, id any) *AppError {
	return &AppError{
		Code:    ErrCodeAlreadyExists,
		Message: fmt.Sprintf("%s %q already exists", resource, fmt.Sprintf("%v", id)),
		Details: map[string]any{"resource": resource, "id": fmt.Sprintf("%v", id)},
	}
}

// StorageError creates a new retryable AppError for a failing storage backend.
func StorageError(backend string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeStorage, Message: fmt.Sprintf("The %s storage backend failed.", backend),
		Retryable: true, Details: map[string]any{"backend": backend}, Cause: cause,
	}
}

// Internal creates a new AppError for an unexpected internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		Retryable: false, Cause: cause,
	}
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err, or any error it wraps, is an AppError with
// code. Unlike AsAppError it keeps looking past an AppError with another code,
// so a STORAGE_ERROR caused by NOT_FOUND has both codes.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, e := range u.Unwrap() {
				if HasCode(e, code) {
					return true
				}
			}
			return false
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		default:
			return false
		}
	}
	return false
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }
