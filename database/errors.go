package database

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/persist/errors"
)

const backend = "sqlite"

// IsConnectionError checks if a database error is a connection error
// that might be resolved by retrying.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"connection closed",
		"driver: bad connection",
		"database is closed",
		"unable to open database",
	}
	for _, p := range patterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}

// IsRetryableError determines if a database error should trigger a retry.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if IsConnectionError(err) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	patterns := []string{
		"database is locked",
		"database table is locked",
		"deadlock",
		"busy",
	}
	for _, p := range patterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}

// IsNotFoundError checks if the error is a GORM record-not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateError checks if the error is a unique constraint violation.
func IsDuplicateError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// FromDatabase converts a database error to an AppError. resource names
// what was being accessed, such as a collection.
func FromDatabase(err error, resource string) *apperrors.AppError {
	if err == nil {
		return nil
	}

	if IsNotFoundError(err) {
		return apperrors.NotFound(resource, nil).WithCause(err)
	}

	if IsDuplicateError(err) {
		return apperrors.New(apperrors.ErrCodeAlreadyExists, "A "+resource+" record with these details already exists.").
			WithCause(err)
	}

	appErr := apperrors.StorageError(backend, err).WithDetail("resource", resource)
	if !IsRetryableError(err) {
		appErr.Retryable = false
	}
	return appErr
}
