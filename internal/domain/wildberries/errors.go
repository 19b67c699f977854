// Package wildberries provides domain types for the Wildberries seller API integration.
package wildberries

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Standard domain errors.
var (
	ErrRateLimited        = errors.New("API rate limit exceeded")
	ErrUnauthorized       = errors.New("API key rejected")
	ErrForbidden          = errors.New("API key lacks the required scope")
	ErrResourceNotFound   = errors.New("resource not found")
	ErrInvalidRequest     = errors.New("invalid request parameters")
	ErrServiceUnavailable = errors.New("Wildberries service temporarily unavailable")
	ErrAPIKeyEmpty        = errors.New("API key cannot be empty")
)

// ErrorCode classifies Wildberries API failures. The API reports problems as
// HTTP statuses with a free-form title, so codes are derived from the status.
type ErrorCode string

const (
	CodeUnauthorized ErrorCode = "unauthorized"
	CodeForbidden    ErrorCode = "forbidden"
	CodeNotFound     ErrorCode = "not_found"
	CodeBadRequest   ErrorCode = "bad_request"
	CodeRateLimited  ErrorCode = "too_many_requests"
	CodeServerError  ErrorCode = "server_error"
	CodeDecodeError  ErrorCode = "decode_error"
	CodeUnknown      ErrorCode = "unknown"
)

// CodeForStatus maps an HTTP status to an error code.
func CodeForStatus(status int) ErrorCode {
	switch {
	case status == http.StatusUnauthorized:
		return CodeUnauthorized
	case status == http.StatusForbidden:
		return CodeForbidden
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status >= 500:
		return CodeServerError
	case status >= 400:
		return CodeBadRequest
	default:
		return CodeUnknown
	}
}

// IsRetryable returns true if the error code indicates a transient failure.
func (c ErrorCode) IsRetryable() bool {
	return c == CodeRateLimited || c == CodeServerError
}

// APIError represents a failed Wildberries API call.
type APIError struct {
	Code       ErrorCode `json:"code"`
	Title      string    `json:"title"`
	Detail     string    `json:"detail,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	StatusCode int       `json:"status"`
	// RetryAfterSeconds is taken from the X-Ratelimit-Retry header on 429 responses.
	RetryAfterSeconds int `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Title
	if e.Detail != "" {
		msg = strings.TrimSpace(msg + ": " + e.Detail)
	}
	if e.RequestID != "" {
		return fmt.Sprintf("wildberries [%d %s]: %s (request_id: %s)", e.StatusCode, e.Code, msg, e.RequestID)
	}
	return fmt.Sprintf("wildberries [%d %s]: %s", e.StatusCode, e.Code, msg)
}

// Is implements errors.Is for APIError.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Code == CodeRateLimited
	case ErrUnauthorized:
		return e.Code == CodeUnauthorized
	case ErrForbidden:
		return e.Code == CodeForbidden
	case ErrResourceNotFound:
		return e.Code == CodeNotFound
	case ErrInvalidRequest:
		return e.Code == CodeBadRequest
	case ErrServiceUnavailable:
		return e.Code == CodeServerError
	default:
		return false
	}
}

// IsRetryable returns true if this error is safe to retry.
func (e *APIError) IsRetryable() bool {
	return e.Code.IsRetryable()
}

// NewAPIError creates an APIError for the given status.
func NewAPIError(status int, title string) *APIError {
	return &APIError{Code: CodeForStatus(status), Title: title, StatusCode: status}
}

// ErrorCategory groups errors for logging and HTTP mapping.
type ErrorCategory string

const (
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryRateLimit      ErrorCategory = "rate_limit"
	CategoryServer         ErrorCategory = "server"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryValidation     ErrorCategory = "validation"
	CategoryUnknown        ErrorCategory = "unknown"
)

// Category returns the category of this error.
func (e *APIError) Category() ErrorCategory {
	switch e.Code {
	case CodeUnauthorized, CodeForbidden:
		return CategoryAuthentication
	case CodeRateLimited:
		return CategoryRateLimit
	case CodeServerError:
		return CategoryServer
	case CodeNotFound:
		return CategoryNotFound
	case CodeBadRequest, CodeDecodeError:
		return CategoryValidation
	default:
		return CategoryUnknown
	}
}
