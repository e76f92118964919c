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

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")

	// Document-level failures.
	ErrRender           = errors.New("document render failed")
	ErrNoPagesExtracted = errors.New("no pages could be extracted")
	ErrNoPagesSucceeded = errors.New("no pages processed successfully")

	// Page/call-level failures.
	ErrEncoding        = errors.New("image encoding failed")
	ErrRateLimited     = errors.New("model rate limited")
	ErrModel           = errors.New("model call failed")
	ErrSchemaViolation = errors.New("model response violates schema")

	ErrPersistence = errors.New("persistence failure")
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
