package prompt_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrun/core/conversation"
	"github.com/agentrun/core/llm"
	"github.com/agentrun/core/prompt"
	"github.com/agentrun/core/tool"
	"github.com/agentrun/core/toolloop"
)

type scriptedCaller struct {
	responses   []conversation.Message
	calls       int
	lastTools   []tool.Tool
	lastHistory conversation.History
}

func (c *scriptedCaller) Call(ctx context.Context, history conversation.History, tools []tool.Tool, opts toolloop.CallOptions) (conversation.Message, conversation.Usage, error) {
	c.lastTools = tools
	c.lastHistory = history
	resp := c.responses[c.calls]
	c.calls++
	return resp, conversation.Usage{}, nil
}

type greeting struct {
	Name string `json:"name"`
}

func systemMessages(h conversation.History) string {
	var sys string
	for _, m := range h {
		if m.Role == conversation.RoleSystem {
			sys += m.Content + "\n"
		}
	}
	return sys
}

func newRegistry(modelName string, caller toolloop.Caller) *llm.Registry {
	return llm.NewRegistry(modelName).Register(modelName, caller)
}

func echoTool(name string) tool.Tool {
	return tool.Func{
		Def: tool.Definition{Name: name, Description: "echoes"},
		Fn: func(ctx context.Context, argumentsJSON json.RawMessage) tool.Result {
			return tool.TextResult("ok")
		},
	}
}

func TestRunner_WithXReturnsNewValueLeavingReceiverUnchanged(t *testing.T) {
	base := prompt.New(newRegistry("m", &scriptedCaller{}))
	withTool := base.WithTool(echoTool("a"))
	withBoth := withTool.WithTool(echoTool("b"))

	assert.NotEqual(t, base, withTool)
	assert.NotEqual(t, withTool, withBoth)
}

func TestRunner_GenerateTextReturnsFinalAssistantText(t *testing.T) {
	caller := &scriptedCaller{responses: []conversation.Message{conversation.Assistant("hello there")}}
	r := prompt.New(newRegistry("m", caller))

	text, err := r.GenerateText(context.Background(), "say hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
}

func TestRunner_ToolGroupsAndToolsCollapseDuplicateNamesLastWins(t *testing.T) {
	caller := &scriptedCaller{responses: []conversation.Message{conversation.Assistant("done")}}
	group := tool.NewToolGroup("g", echoTool("shared"))
	r := prompt.New(newRegistry("m", caller)).
		WithTool(echoTool("shared")).
		WithToolGroup(group)

	_, err := r.GenerateText(context.Background(), "go")
	require.NoError(t, err)
	require.Len(t, caller.lastTools, 1)
	assert.Equal(t, "shared", caller.lastTools[0].Definition().Name)
}

func TestRunner_GuardrailRejectsOutput(t *testing.T) {
	caller := &scriptedCaller{responses: []conversation.Message{conversation.Assistant("forbidden content")}}
	r := prompt.New(newRegistry("m", caller)).
		WithGuardrail(func(ctx context.Context, text string) error {
			if text == "forbidden content" {
				return assert.AnError
			}
			return nil
		})

	_, err := r.GenerateText(context.Background(), "say it")
	assert.Error(t, err)
}

func TestRunner_PromptContributorsAndReferencesAppearInSystemMessage(t *testing.T) {
	caller := &scriptedCaller{responses: []conversation.Message{conversation.Assistant("ok")}}
	ref := tool.NewLlmReference("billing", "Billing capability description", "")
	r := prompt.New(newRegistry("m", caller)).
		WithPromptContributor("Always respond in English.").
		WithReference(ref).
		WithContextualPromptContributor(func(ctx context.Context) string { return "Context: test run" })

	_, err := r.Respond(context.Background(), "hi")
	require.NoError(t, err)

	sys := systemMessages(caller.lastHistory)
	assert.Contains(t, sys, "Always respond in English.")
	assert.Contains(t, sys, "Billing capability description")
	assert.Contains(t, sys, "Context: test run")
}

func TestRunner_WithExamplesOverridesWithGenerateExamples(t *testing.T) {
	caller := &scriptedCaller{responses: []conversation.Message{conversation.Assistant(`{"name":"Ada"}`)}}
	r := prompt.New(newRegistry("m", caller)).
		WithGenerateExamples(true).
		WithExamples(greeting{Name: "Grace"})

	_, err := prompt.CreateObject[greeting](context.Background(), r, "greet someone")
	require.NoError(t, err)

	sys := systemMessages(caller.lastHistory)
	assert.Contains(t, sys, `"Grace"`, "the explicit example should be attached")
	assert.Equal(t, 1, strings.Count(sys, "Example of the expected shape"), "the zero-value example from WithGenerateExamples must not also be attached")
}

func TestRunner_WithoutPropertiesRestrictsCreateObjectSchema(t *testing.T) {
	caller := &scriptedCaller{responses: []conversation.Message{conversation.Assistant(`{}`)}}
	r := prompt.New(newRegistry("m", caller)).WithoutProperties("name")

	_, err := prompt.CreateObject[greeting](context.Background(), r, "greet someone")
	require.NoError(t, err)

	sys := systemMessages(caller.lastHistory)
	assert.Contains(t, sys, "Respond with a single JSON object satisfying this schema")
	assert.NotContains(t, sys, `"name"`)
}
