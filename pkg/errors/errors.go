package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the store, cipher, migration and export layers
var (
	// Lookup errors
	ErrNotFound            = errors.New("record not found")
	ErrConstraintViolation = errors.New("constraint violation")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")

	// Encryption errors
	ErrAuthenticationFailure = errors.New("authentication failure")
	ErrDecryptionFailed      = errors.New("decryption failed")
	ErrKeyUnavailable        = errors.New("encryption key unavailable")

	// Schema errors
	ErrMigrationGap = errors.New("migration gap")

	// Export errors
	ErrExportIO = errors.New("export write failed")
)

// AppError wraps errors with additional context
type AppError struct {
	Err     error
	Message string
	Code    int
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error
func NewAppError(err error, message string, code int) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// UserMessage maps an error onto the text shown to the person using the journal.
// Entry-scoped cipher failures become the "cannot decrypt" state instead of a crash.
func UserMessage(err error) string {
	var appErr *AppError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &appErr) && appErr.Message != "":
		return appErr.Message
	case errors.Is(err, ErrDecryptionFailed), errors.Is(err, ErrAuthenticationFailure):
		return "cannot decrypt this entry"
	case errors.Is(err, ErrKeyUnavailable):
		return "the encryption key is not available, unlock the device and try again"
	case errors.Is(err, ErrMigrationGap):
		return "the journal database was written by an unknown version and cannot be opened"
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrConstraintViolation):
		return "already exists"
	case errors.Is(err, ErrExportIO):
		return "the export file could not be written"
	default:
		return err.Error()
	}
}
