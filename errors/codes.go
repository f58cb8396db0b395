package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Caller errors
const (
	// ErrCodeInvalidArgument indicates a bad argument, such as a class that
	// does not produce entities or an unsupported collection type.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeTypeMismatch indicates a batch element failed a type guard.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"
	// ErrCodePreconditionFailed indicates a pipeline was not configured for the operation.
	ErrCodePreconditionFailed ErrorCode = "PRECONDITION_FAILED"
	// ErrCodeInvalidOperation indicates a programming error, such as unstubbing an unknown step.
	ErrCodeInvalidOperation ErrorCode = "INVALID_OPERATION"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates the resource already exists.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
)

// Internal errors
const (
	// ErrCodeStorage indicates a storage backend failed.
	ErrCodeStorage ErrorCode = "STORAGE_ERROR"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeStorage:  true,
	ErrCodeInternal: false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
