package toolloop_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrun/core/conversation"
	"github.com/agentrun/core/tool"
	"github.com/agentrun/core/toolerrors"
	"github.com/agentrun/core/toolloop"
)

type hintedError struct {
	hint *toolloop.RetryHint
}

func (e *hintedError) Error() string                  { return "tool failed" }
func (e *hintedError) RetryHint() *toolloop.RetryHint { return e.hint }

func lastToolResultContent(h conversation.History) (string, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Role == conversation.RoleToolResult {
			return h[i].Content, true
		}
	}
	return "", false
}

func TestRun_RetryHintFromProviderIsAppendedToToolResultContent(t *testing.T) {
	failing := tool.Func{
		Def: tool.Definition{Name: "flaky"},
		Fn: func(ctx context.Context, argumentsJSON json.RawMessage) tool.Result {
			return tool.Result{Err: &hintedError{hint: &toolloop.RetryHint{
				Reason:  toolloop.RetryReasonInvalidArguments,
				Tool:    "flaky",
				Message: "missing the 'query' field",
			}}}
		},
	}

	caller := &scriptedCaller{
		responses: []conversation.Message{
			conversation.Assistant("", conversation.ToolCall{ID: "1", Name: "flaky", ArgumentsJSON: "{}"}),
			conversation.Assistant("done"),
		},
	}

	result, err := toolloop.Run(context.Background(), toolloop.Config{Caller: caller}, conversation.History{}, []tool.Tool{failing})
	require.NoError(t, err)

	content, ok := lastToolResultContent(result.History)
	require.True(t, ok)
	assert.Contains(t, content, "missing the 'query' field")
	assert.Contains(t, content, "<system-reminder>")
}

func TestRun_RetryHintFromToolErrorHintFieldIsConverted(t *testing.T) {
	failing := tool.Func{
		Def: tool.Definition{Name: "flaky"},
		Fn: func(ctx context.Context, argumentsJSON json.RawMessage) tool.Result {
			te := toolerrors.New("invalid input").WithHint(&toolerrors.RetryHint{
				Reason:  "invalid_arguments",
				Tool:    "flaky",
				Message: "retry with a shorter input",
			})
			return tool.Result{Err: te}
		},
	}

	caller := &scriptedCaller{
		responses: []conversation.Message{
			conversation.Assistant("", conversation.ToolCall{ID: "1", Name: "flaky", ArgumentsJSON: "{}"}),
			conversation.Assistant("done"),
		},
	}

	result, err := toolloop.Run(context.Background(), toolloop.Config{Caller: caller}, conversation.History{}, []tool.Tool{failing})
	require.NoError(t, err)

	content, ok := lastToolResultContent(result.History)
	require.True(t, ok)
	assert.Contains(t, content, "retry with a shorter input")
}
