// Package apperror defines the domain error taxonomy shared by every layer
// of the client core. Components return these instead of raw errors so
// callers can branch with errors.Is without knowing where the failure came
// from. None of them ever reach the user as a panic or an unhandled error —
// worst case is a logged message and a UI state that didn't update.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: a key or record is absent from local storage.
	ErrNotFound = errors.New("not found")
	// ErrValidation: caller input breaks a business rule (bad rating, etc).
	ErrValidation = errors.New("validation error")
	// ErrAuthRequired: no token, or the token is malformed or expired.
	// Mutating operations gate on this so the caller can prompt for login
	// instead of failing silently into the API.
	ErrAuthRequired = errors.New("authentication required")
	// ErrDecode: a token payload that is not valid base64url/JSON. Treated
	// the same as ErrAuthRequired by callers; kept distinct for logs.
	ErrDecode = errors.New("token decode error")
	// ErrSyncFailed: a remote state-sync or activity call failed (network
	// failure or non-2xx). Never retried automatically.
	ErrSyncFailed = errors.New("sync failed")
	// ErrStorageCorrupt: a persisted blob is not valid JSON. Readers treat
	// the blob as empty and carry on; this sentinel only shows up in logs.
	ErrStorageCorrupt = errors.New("storage corrupt")
)

type AppError struct {
	Err     error  // sentinel (plus any wrapped cause)
	Message string // human-readable error message
	Field   string // optional: field or key causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// AuthRequired returns the error used to gate mutating operations for
// anonymous callers. op names the operation for the log line.
func AuthRequired(op string) *AppError {
	return &AppError{
		Err:     ErrAuthRequired,
		Message: fmt.Sprintf("%s requires a logged-in user", op),
	}
}

// Decode wraps a token parsing failure. The cause is chained so logs keep
// the parser's detail while callers only see ErrDecode.
func Decode(cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrDecode, cause),
		Message: "could not decode bearer token",
	}
}

// SyncFailed wraps a failed remote call for the given action and entity.
func SyncFailed(action, entityID string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrSyncFailed, cause),
		Message: fmt.Sprintf("remote sync of %s for %s failed", action, entityID),
		Field:   entityID,
	}
}

// StorageCorrupt wraps a JSON decode failure of the blob at key.
func StorageCorrupt(key string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrStorageCorrupt, cause),
		Message: fmt.Sprintf("persisted value at %q is not valid JSON", key),
		Field:   key,
	}
}
