package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
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

// Is matches any *AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// StatusCode maps the error code to an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound, ErrUnknownRule:
		return http.StatusNotFound
	case ErrBadRequest, ErrInvalidPolicy:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrUnavailable:
		return http.StatusServiceUnavailable
	case ErrPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrInvalidPolicy
	ErrUnknownRule
	ErrUnavailable
	ErrPayloadTooLarge
)

// Sentinels for errors.Is comparisons.
var (
	BadRequestError    = &AppError{Code: ErrBadRequest}
	InvalidPolicyError = &AppError{Code: ErrInvalidPolicy}
	UnknownRuleError   = &AppError{Code: ErrUnknownRule}
)

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: message,
		Err:     err,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func NewInvalidPolicy(err error) *AppError {
	return &AppError{
		Code:    ErrInvalidPolicy,
		Message: "invalid password policy",
		Err:     err,
	}
}

func NewUnknownRule(rule string, err error) *AppError {
	return &AppError{
		Code:    ErrUnknownRule,
		Message: fmt.Sprintf("unknown policy rule %q", rule),
		Err:     err,
	}
}

func NewUnavailable(message string, err error) *AppError {
	return &AppError{
		Code:    ErrUnavailable,
		Message: message,
		Err:     err,
	}
}

func PayloadTooLarge(limit int64, err error) *AppError {
	return &AppError{
		Code:    ErrPayloadTooLarge,
		Message: fmt.Sprintf("request body exceeds %d bytes", limit),
		Err:     err,
	}
}

// StatusCode returns the HTTP status for any error, defaulting to 500.
func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode()
	}
	return http.StatusInternalServerError
}

// As forwards to the standard library so callers need one errors import.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
