// Package errors provides the structured error type shared by the mapper,
// the gateway and the storage backends.
//
// Every failure raised by this module is an *AppError carrying a
// machine-readable ErrorCode, so callers can branch on HasCode instead of
// matching message text. Errors returned by caller-supplied persist, delete
// and hook functions are never wrapped; they reach the caller unmodified.
package errors
