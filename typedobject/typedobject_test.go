package typedobject_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrun/core/conversation"
	"github.com/agentrun/core/tool"
	"github.com/agentrun/core/toolloop"
	"github.com/agentrun/core/typedobject"
)

type summary struct {
	Summary   string `json:"summary"`
	Sentiment string `json:"sentiment,omitempty"`
}

type scriptedCaller struct {
	responses   []conversation.Message
	calls       int
	lastHistory conversation.History
}

func (c *scriptedCaller) Call(ctx context.Context, history conversation.History, tools []tool.Tool, opts toolloop.CallOptions) (conversation.Message, conversation.Usage, error) {
	c.lastHistory = history
	resp := c.responses[c.calls]
	c.calls++
	return resp, conversation.Usage{}, nil
}

func TestCreate_ParsesWellFormedJSONOnFirstTry(t *testing.T) {
	caller := &scriptedCaller{responses: []conversation.Message{
		conversation.Assistant(`{"summary":"hi","sentiment":"positive"}`),
	}}
	cfg := toolloop.Config{Caller: caller}

	out, err := typedobject.Create[summary](context.Background(), cfg, conversation.History{conversation.User("say hi")}, nil, typedobject.Options{})
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Summary)
	assert.Equal(t, "positive", out.Sentiment)
}

func TestCreate_RetriesOnMalformedJSONThenSucceeds(t *testing.T) {
	caller := &scriptedCaller{responses: []conversation.Message{
		conversation.Assistant(`not json`),
		conversation.Assistant(`{"summary":"recovered"}`),
	}}
	cfg := toolloop.Config{Caller: caller}

	out, err := typedobject.Create[summary](context.Background(), cfg, conversation.History{conversation.User("say hi")}, nil, typedobject.Options{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out.Summary)
	assert.Equal(t, 2, caller.calls)
}

func TestCreate_FailsWithInvalidLlmReturnFormatAfterExhaustingRetries(t *testing.T) {
	caller := &scriptedCaller{responses: []conversation.Message{
		conversation.Assistant(`not json`),
		conversation.Assistant(`still not json`),
		conversation.Assistant(`nope`),
	}}
	cfg := toolloop.Config{Caller: caller}

	_, err := typedobject.Create[summary](context.Background(), cfg, conversation.History{conversation.User("say hi")}, nil, typedobject.Options{MaxRetries: 2})
	var formatErr *typedobject.InvalidLlmReturnFormat
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, 3, formatErr.Attempts)
}

func TestCreate_FailsWithInvalidLlmReturnTypeWithoutRetryingOnSchemaViolation(t *testing.T) {
	caller := &scriptedCaller{responses: []conversation.Message{
		conversation.Assistant(`{"wrong_field":"oops"}`),
	}}
	cfg := toolloop.Config{Caller: caller}

	_, err := typedobject.Create[summary](context.Background(), cfg, conversation.History{conversation.User("say hi")}, nil, typedobject.Options{Validate: true})
	var typeErr *typedobject.InvalidLlmReturnType
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, 1, caller.calls)
}

func TestCreate_StringBypassesJSONEntirely(t *testing.T) {
	caller := &scriptedCaller{responses: []conversation.Message{
		conversation.Assistant(`plain text, not JSON at all`),
	}}
	cfg := toolloop.Config{Caller: caller}

	out, err := typedobject.Create[string](context.Background(), cfg, conversation.History{conversation.User("say hi")}, nil, typedobject.Options{})
	require.NoError(t, err)
	assert.Equal(t, "plain text, not JSON at all", out)
}

func TestCreateIfPossible_CapturesFormatFailureInOutcomeInsteadOfErroring(t *testing.T) {
	caller := &scriptedCaller{responses: []conversation.Message{
		conversation.Assistant(`nope`),
		conversation.Assistant(`nope`),
		conversation.Assistant(`nope`),
	}}
	cfg := toolloop.Config{Caller: caller}

	outcome, err := typedobject.CreateIfPossible[summary](context.Background(), cfg, conversation.History{conversation.User("say hi")}, nil, typedobject.Options{MaxRetries: 2})
	require.NoError(t, err)
	assert.False(t, outcome.OK)
	assert.Error(t, outcome.Err)
}

func TestCreate_PropertyFiltersExcludeFieldFromSchemaInstruction(t *testing.T) {
	caller := &scriptedCaller{responses: []conversation.Message{
		conversation.Assistant(`{"summary":"hi"}`),
	}}
	cfg := toolloop.Config{Caller: caller}

	_, err := typedobject.Create[summary](context.Background(), cfg, conversation.History{conversation.User("say hi")}, nil,
		typedobject.Options{PropertyFilters: []tool.PropertyPredicate{tool.Exclude("sentiment")}})
	require.NoError(t, err)

	var schemaInstruction string
	for _, m := range caller.lastHistory {
		if m.Role == conversation.RoleSystem {
			schemaInstruction = m.Content
		}
	}
	require.NotEmpty(t, schemaInstruction)
	assert.Contains(t, schemaInstruction, "summary")
	assert.NotContains(t, schemaInstruction, "sentiment")
}

func TestCreateIfPossible_PropagatesToolNotFoundAsARealError(t *testing.T) {
	caller := &scriptedCaller{responses: []conversation.Message{
		conversation.Assistant("", conversation.ToolCall{ID: "1", Name: "ghost", ArgumentsJSON: "{}"}),
	}}
	cfg := toolloop.Config{Caller: caller}

	_, err := typedobject.CreateIfPossible[summary](context.Background(), cfg, conversation.History{conversation.User("say hi")}, nil, typedobject.Options{})
	var notFound *toolloop.ToolNotFound
	require.ErrorAs(t, err, &notFound)
}
