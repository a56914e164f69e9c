package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

type ErrorCode string

const (
	CodeInvalidApiKey      ErrorCode = "INVALID_API_KEY"
	CodeInvalidImageFormat ErrorCode = "INVALID_IMAGE_FORMAT"
	CodeRateLimitExceeded  ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeNetworkError       ErrorCode = "NETWORK_ERROR"
	CodeModelUnavailable   ErrorCode = "MODEL_UNAVAILABLE"
	CodeParsingError       ErrorCode = "PARSING_ERROR"
	CodeUnknownError       ErrorCode = "UNKNOWN_ERROR"
)

// Error is the sole error channel of the analysis subsystem. Retryable is
// advisory metadata for the caller, not an automatic retry mechanism.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewError(code ErrorCode, providerName, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Provider:  providerName,
		Retryable: isRetryable(code),
		Cause:     cause,
	}
}

func isRetryable(code ErrorCode) bool {
	switch code {
	case CodeRateLimitExceeded, CodeNetworkError, CodeModelUnavailable:
		return true
	default:
		return false
	}
}

// ClassifyError wraps an arbitrary adapter error into a coded Error. Already
// coded errors pass through untouched.
func ClassifyError(providerName string, err error) *Error {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewError(CodeNetworkError, providerName, "request timed out or was cancelled", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewError(CodeNetworkError, providerName, "network failure calling backend", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "401"):
		return NewError(CodeInvalidApiKey, providerName, "backend rejected credentials", err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota"):
		return NewError(CodeRateLimitExceeded, providerName, "backend rate limit exceeded", err)
	case strings.Contains(msg, "503") || strings.Contains(msg, "502") || strings.Contains(msg, "overloaded") || strings.Contains(msg, "unavailable"):
		return NewError(CodeModelUnavailable, providerName, "backend model unavailable", err)
	case strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") || strings.Contains(msg, "eof"):
		return NewError(CodeNetworkError, providerName, "network failure calling backend", err)
	default:
		return NewError(CodeUnknownError, providerName, "unexpected backend failure", err)
	}
}

// ErrorFromStatus maps an HTTP status from a backend API to a coded Error.
func ErrorFromStatus(providerName string, status int, body string) *Error {
	cause := fmt.Errorf("backend returned status %d: %s", status, body)
	switch {
	case status == 401 || status == 403:
		return NewError(CodeInvalidApiKey, providerName, "backend rejected credentials", cause)
	case status == 429:
		return NewError(CodeRateLimitExceeded, providerName, "backend rate limit exceeded", cause)
	case status >= 500:
		return NewError(CodeModelUnavailable, providerName, "backend model unavailable", cause)
	default:
		return NewError(CodeUnknownError, providerName, "unexpected backend response", cause)
	}
}
