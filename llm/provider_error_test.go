package llm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrun/core/llm"
)

func TestProviderError_ErrorIncludesProviderKindAndMessage(t *testing.T) {
	err := llm.NewProviderError("anthropic", "messages.new", 429, llm.ProviderErrorKindRateLimited, "rate_limit_error", "too many requests", "req-123", true, nil)
	assert.Contains(t, err.Error(), "anthropic")
	assert.Contains(t, err.Error(), "rate_limited")
	assert.Contains(t, err.Error(), "too many requests")
	assert.True(t, err.Retryable())
}

func TestProviderError_UnwrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := llm.NewProviderError("openai", "chat.completions", 0, llm.ProviderErrorKindUnavailable, "", "", "", true, cause)
	assert.ErrorIs(t, err, cause)
}

func TestAsProviderError_FindsWrappedProviderError(t *testing.T) {
	pe := llm.NewProviderError("bedrock", "converse", 500, llm.ProviderErrorKindUnavailable, "", "", "", true, nil)
	wrapped := &llm.CallFailed{Provider: "bedrock", Cause: pe}

	found, ok := llm.AsProviderError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "bedrock", found.Provider())
}

func TestAsProviderError_FalseForOrdinaryError(t *testing.T) {
	_, ok := llm.AsProviderError(errors.New("plain"))
	assert.False(t, ok)
}
