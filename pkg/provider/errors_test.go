package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError_RetryableByCode(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{CodeInvalidApiKey, false},
		{CodeInvalidImageFormat, false},
		{CodeRateLimitExceeded, true},
		{CodeNetworkError, true},
		{CodeModelUnavailable, true},
		{CodeParsingError, false},
		{CodeUnknownError, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := NewError(tt.code, "gemini", "boom", nil)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, "gemini", err.Provider)
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NewError(CodeNetworkError, "gemini", "call failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "NETWORK_ERROR")
	assert.Contains(t, err.Error(), "underlying")
}

func TestClassifyError_PassesThroughCodedErrors(t *testing.T) {
	original := NewError(CodeRateLimitExceeded, "openai", "slow down", nil)
	wrapped := fmt.Errorf("request failed: %w", original)

	classified := ClassifyError("openai", wrapped)
	assert.Equal(t, CodeRateLimitExceeded, classified.Code)
}

func TestClassifyError_ContextDeadline(t *testing.T) {
	classified := ClassifyError("gemini", context.DeadlineExceeded)
	assert.Equal(t, CodeNetworkError, classified.Code)
	assert.True(t, classified.Retryable)
}

func TestClassifyError_MessageHeuristics(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
	}{
		{"invalid key", errors.New("API key not valid"), CodeInvalidApiKey},
		{"unauthorized", errors.New("got 401 unauthorized"), CodeInvalidApiKey},
		{"rate limited", errors.New("429 Too Many Requests"), CodeRateLimitExceeded},
		{"quota", errors.New("quota exceeded for project"), CodeRateLimitExceeded},
		{"overloaded", errors.New("model is overloaded"), CodeModelUnavailable},
		{"timeout", errors.New("dial tcp: i/o timeout"), CodeNetworkError},
		{"unknown", errors.New("something odd happened"), CodeUnknownError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := ClassifyError("gemini", tt.err)
			assert.Equal(t, tt.code, classified.Code)
		})
	}
}

func TestErrorFromStatus(t *testing.T) {
	tests := []struct {
		status int
		code   ErrorCode
	}{
		{401, CodeInvalidApiKey},
		{403, CodeInvalidApiKey},
		{429, CodeRateLimitExceeded},
		{500, CodeModelUnavailable},
		{503, CodeModelUnavailable},
		{418, CodeUnknownError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := ErrorFromStatus("openai", tt.status, "body")
			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
		})
	}
}
