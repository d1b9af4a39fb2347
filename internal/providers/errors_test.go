package providers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailoverReasonIsRetryable(t *testing.T) {
	tests := []struct {
		reason   FailoverReason
		expected bool
	}{
		{FailoverRateLimit, true},
		{FailoverTimeout, true},
		{FailoverServerError, true},
		{FailoverBilling, false},
		{FailoverAuth, false},
		{FailoverInvalidRequest, false},
		{FailoverModelUnavailable, false},
		{FailoverContentFilter, false},
		{FailoverUnknown, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.reason.IsRetryable(), string(tt.reason))
	}
}

func TestFailoverReasonShouldFailover(t *testing.T) {
	tests := []struct {
		reason   FailoverReason
		expected bool
	}{
		{FailoverBilling, true},
		{FailoverAuth, true},
		{FailoverModelUnavailable, true},
		{FailoverRateLimit, true},
		{FailoverTimeout, false},
		{FailoverServerError, false},
		{FailoverInvalidRequest, false},
		{FailoverContentFilter, false},
		{FailoverUnknown, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.reason.ShouldFailover(), string(tt.reason))
	}
}

func TestFailoverReasonCooldown(t *testing.T) {
	assert.Equal(t, RateLimited, FailoverRateLimit.Cooldown())
	assert.Equal(t, ServerError, FailoverServerError.Cooldown())
	assert.Equal(t, ServerError, FailoverAuth.Cooldown())
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected FailoverReason
	}{
		{"nil error", nil, FailoverUnknown},
		{"timeout", errors.New("request timeout"), FailoverTimeout},
		{"deadline exceeded", errors.New("context deadline exceeded"), FailoverTimeout},
		{"rate limit", errors.New("rate limit exceeded"), FailoverRateLimit},
		{"too many requests", errors.New("too many requests"), FailoverRateLimit},
		{"429 status", errors.New("HTTP 429"), FailoverRateLimit},
		{"unauthorized", errors.New("unauthorized"), FailoverAuth},
		{"invalid api key", errors.New("invalid api key"), FailoverAuth},
		{"billing", errors.New("billing issue"), FailoverBilling},
		{"quota exceeded", errors.New("quota exceeded"), FailoverBilling},
		{"content filter", errors.New("content_filter triggered"), FailoverContentFilter},
		{"content blocked", errors.New("content blocked by safety"), FailoverContentFilter},
		{"model not found", errors.New("model not found"), FailoverModelUnavailable},
		{"server error", errors.New("internal server error"), FailoverServerError},
		{"500 status", errors.New("HTTP 500"), FailoverServerError},
		{"unknown", errors.New("something went wrong"), FailoverUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyError(tt.err))
		})
	}
}

func TestProviderErrorFields(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewProviderError("anthropic", "claude-sonnet-4-5", cause).
		WithStatus(429).
		WithCode("rate_limit_error").
		WithRequestID("req-123")

	assert.NotEmpty(t, err.Error())
	assert.Equal(t, FailoverRateLimit, err.Reason)
	assert.Equal(t, "anthropic", err.Provider)
	assert.Equal(t, "claude-sonnet-4-5", err.Model)
	assert.Equal(t, 429, err.Status)
	assert.Equal(t, "rate_limit_error", err.Code)
	assert.Equal(t, "req-123", err.RequestID)
	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, err.Reason.IsRetryable())
}

func TestIsProviderErrorAndGetProviderError(t *testing.T) {
	providerErr := NewProviderError("openai", "gpt-4o", errors.New("test"))
	regularErr := errors.New("regular error")

	assert.True(t, IsProviderError(providerErr))
	assert.False(t, IsProviderError(regularErr))

	got, ok := GetProviderError(providerErr)
	assert.True(t, ok)
	assert.Same(t, providerErr, got)

	_, ok = GetProviderError(regularErr)
	assert.False(t, ok)
}

func TestIsRetryableAndShouldFailover(t *testing.T) {
	rateLimitErr := NewProviderError("anthropic", "claude-sonnet-4-5", nil).WithStatus(429)
	authErr := NewProviderError("openai", "gpt-4o", nil).WithStatus(401)
	regularErr := errors.New("timeout exceeded")

	assert.True(t, IsRetryable(rateLimitErr))
	assert.True(t, ShouldFailover(rateLimitErr))

	assert.False(t, IsRetryable(authErr))
	assert.True(t, ShouldFailover(authErr))

	assert.True(t, IsRetryable(regularErr))
}

func TestClassifyStatusCode(t *testing.T) {
	tests := []struct {
		status   int
		expected FailoverReason
	}{
		{401, FailoverAuth},
		{403, FailoverAuth},
		{402, FailoverBilling},
		{429, FailoverRateLimit},
		{400, FailoverInvalidRequest},
		{404, FailoverModelUnavailable},
		{500, FailoverServerError},
		{502, FailoverServerError},
		{503, FailoverServerError},
		{200, FailoverUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, classifyStatusCode(tt.status))
	}
}
