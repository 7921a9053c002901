package models

import (
	"errors"
	"fmt"
)

// Error codes used across the sync layer.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeRemote       = "REMOTE_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeEncryption   = "ENCRYPTION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
)

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewRemoteError wraps a failed remote store operation.
func NewRemoteError(operation string, err error) *AppError {
	return &AppError{
		Code:    CodeRemote,
		Message: fmt.Sprintf("remote operation %s failed", operation),
		Err:     err,
	}
}

func NewEncryptionError(message string, err error) *AppError {
	return &AppError{
		Code:    CodeEncryption,
		Message: message,
		Err:     err,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return hasCode(err, CodeValidation) }

// IsRemote reports whether err is a remote operation error.
func IsRemote(err error) bool { return hasCode(err, CodeRemote) }

// IsEncryption reports whether err is an encryption error.
func IsEncryption(err error) bool { return hasCode(err, CodeEncryption) }
