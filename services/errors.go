package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies request failures the way the mobile client expects
// them.
type ErrorCode string

const (
	CodeUnauthenticated ErrorCode = "unauthenticated"
	CodeInvalidArgument ErrorCode = "invalid-argument"
	CodeNotFound        ErrorCode = "not-found"
	CodeQuotaExceeded   ErrorCode = "resource-exhausted"
	CodeInternal        ErrorCode = "internal"
)

// AppError is a request-fatal error carrying a client-facing code. Anything
// that is not an AppError is treated as internal by the HTTP layer.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error code onto a response status.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeQuotaExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func NewUnauthenticated(message string) *AppError {
	return &AppError{Code: CodeUnauthenticated, Message: message}
}

func NewInvalidArgument(message string) *AppError {
	return &AppError{Code: CodeInvalidArgument, Message: message}
}

func NewNotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message}
}

func NewQuotaExceeded(message string) *AppError {
	return &AppError{Code: CodeQuotaExceeded, Message: message}
}

func NewInternal(message string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}

// CodeOf extracts the classification of an error, defaulting to internal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}
