// Package apperr provides the kinded application error used across every
// component and the Gin middleware that maps it to an HTTP response.
//
// Error Structure:
//   - Code: machine-readable error identifier (e.g., "QUOTA_EXCEEDED")
//   - Message: opaque, user-safe message
//   - Details: internal context, logged server-side only, never serialized
//   - StatusCode: HTTP status code
package apperr

import (
	"fmt"
	"net/http"
)

// AppError is a standardized application error with HTTP context.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"-"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorResponse is the wire shape of an error body: { "error": "<message>" }
// the client only ever sees the opaque user-facing message.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ToResponse converts an AppError into the response body sent to clients.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message}
}

// Error kinds.
const (
	CodeValidation   = "VALIDATION_FAILED"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeQuota        = "QUOTA_EXCEEDED"
	CodeRateLimited  = "RATE_LIMITED"
	CodeUnsafe       = "UNSAFE_CODE"
	CodeTimeout      = "TIMEOUT"
	CodeDecode       = "DECODE_ERROR"
	CodeInternal     = "INTERNAL_SERVER_ERROR"
)

func statusFor(code string) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeQuota:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusRequestTimeout
	case CodeDecode:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// New creates an AppError for a kind with a user-visible message.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusFor(code)}
}

// Wrap creates an AppError carrying an internal error as Details (logged
// only, never sent to the client).
func Wrap(code, message string, err error) *AppError {
	d := ""
	if err != nil {
		d = err.Error()
	}
	return &AppError{Code: code, Message: message, Details: d, StatusCode: statusFor(code)}
}

func Validation(message string) *AppError   { return New(CodeValidation, message) }
func Unauthorized(message string) *AppError { return New(CodeUnauthorized, message) }
func Forbidden(message string) *AppError    { return New(CodeForbidden, message) }
func NotFound(resource string) *AppError    { return New(CodeNotFound, fmt.Sprintf("%s not found", resource)) }
func Conflict(message string) *AppError     { return New(CodeConflict, message) }
func QuotaExceeded(message string) *AppError { return New(CodeQuota, message) }
func RateLimited(retryAfter int) *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    "Too many attempts, please try again later",
		StatusCode: http.StatusTooManyRequests,
		Details:    fmt.Sprintf("retry_after=%d", retryAfter),
	}
}
func Unsafe(reason string) *AppError   { return New(CodeUnsafe, reason) }
func Timeout(message string) *AppError { return New(CodeTimeout, message) }
func Decode(err error) *AppError       { return Wrap(CodeDecode, "Could not read recording", err) }
func Internal(err error) *AppError     { return Wrap(CodeInternal, "Internal server error", err) }
