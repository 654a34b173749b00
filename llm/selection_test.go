package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrun/core/conversation"
	"github.com/agentrun/core/llm"
	"github.com/agentrun/core/tool"
	"github.com/agentrun/core/toolloop"
)

type namedCaller string

func (n namedCaller) Call(ctx context.Context, history conversation.History, tools []tool.Tool, opts toolloop.CallOptions) (conversation.Message, conversation.Usage, error) {
	return conversation.Assistant(string(n)), conversation.Usage{}, nil
}

func TestRegistry_ResolveByName(t *testing.T) {
	r := llm.NewRegistry("")
	r.Register("claude-sonnet", namedCaller("sonnet"))

	name, c, err := r.Resolve(llm.ModelSelectionCriteria{ByName: "claude-sonnet"})
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet", name)
	msg, _, _ := c.Call(context.Background(), nil, nil, toolloop.CallOptions{})
	assert.Equal(t, "sonnet", msg.Content)
}

func TestRegistry_ResolveByRole(t *testing.T) {
	r := llm.NewRegistry("")
	r.Register("claude-haiku", namedCaller("haiku"))
	r.MapRole("summarizer", "claude-haiku")

	name, _, err := r.Resolve(llm.ModelSelectionCriteria{ByRole: "summarizer"})
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku", name)
}

func TestRegistry_ResolveFallbackChain(t *testing.T) {
	r := llm.NewRegistry("")
	r.Register("backup-model", namedCaller("backup"))

	name, _, err := r.Resolve(llm.ModelSelectionCriteria{
		ByName:         "missing-model",
		FallbackByName: []string{"also-missing", "backup-model"},
	})
	require.NoError(t, err)
	assert.Equal(t, "backup-model", name)
}

func TestRegistry_ResolveDefaultWhenCriteriaEmpty(t *testing.T) {
	r := llm.NewRegistry("default-model")
	r.Register("default-model", namedCaller("default"))

	name, _, err := r.Resolve(llm.ModelSelectionCriteria{})
	require.NoError(t, err)
	assert.Equal(t, "default-model", name)
}

func TestRegistry_ResolveErrorsWhenNothingMatches(t *testing.T) {
	r := llm.NewRegistry("")
	_, _, err := r.Resolve(llm.ModelSelectionCriteria{ByName: "nope"})
	assert.Error(t, err)
}
