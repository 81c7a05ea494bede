package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Upload rejections. Reported to the caller immediately, never retried.
var (
	ErrPayloadTooLarge     = errors.New("payload empty or exceeds size limit")
	ErrUnsupportedType     = errors.New("unsupported file type")
	ErrInvalidImageContent = errors.New("content does not match declared image type")
)

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrNotReady     = errors.New("document not ready")
	ErrConflict     = errors.New("conflicting state transition")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("external service unavailable")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsInvalidInput reports whether err is one of the upload rejection classes.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrPayloadTooLarge) ||
		errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrInvalidImageContent) ||
		errors.Is(err, ErrInvalidInput)
}
