package errors

import (
	"errors"
	"fmt"
)

// AppError provides a structured error carrying a stable machine-readable
// code alongside a human message. The wrapped internal error is preserved
// for logging and errors.Is / errors.As checks.
type AppError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Internal error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Common errors exposed to the rest of the application.
var (
	ErrNotFound = &AppError{
		Code:    "NOT_FOUND",
		Message: "Resource not found",
	}

	ErrInvalidInput = &AppError{
		Code:    "INVALID_INPUT",
		Message: "Invalid input",
	}

	ErrInternal = &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "Internal error",
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap turns any error into an AppError while keeping the original for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:     ErrInternal.Code,
		Message:  message,
		Internal: err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternal.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternal.WithInternal(err)
}
