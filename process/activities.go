package process

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentrun/core/conversation"
	"github.com/agentrun/core/hitl"
	"github.com/agentrun/core/replan"
	"github.com/agentrun/core/tool"
	"github.com/agentrun/core/toolloop"
)

// Activity names, registered once against an engine.Engine by Wire.
const (
	ActivityLlmCall        = "agentrun.llmCall"
	ActivityToolCall       = "agentrun.toolCall"
	ActivityPersistPending = "agentrun.persistPending"
)

// llmCallInput is the serializable input to the LLM-call activity: the
// history so far plus the names of the tools currently available, resolved
// back to tool.Definition against the Registry inside the activity so the
// workflow itself never carries a tool.Tool value.
type llmCallInput struct {
	History     conversation.History
	ToolNames   []string
	CallOptions toolloop.CallOptions
}

type llmCallOutput struct {
	Message conversation.Message
	Usage   conversation.Usage
}

// llmCallActivity wraps a single, non-tool-executing LLM inference so each
// call is individually retried and recorded in workflow history instead of
// being replayed from a live network call.
func llmCallActivity(reg *Registry) func(ctx context.Context, input any) (any, error) {
	return func(ctx context.Context, raw any) (any, error) {
		in, err := coerce[llmCallInput](raw)
		if err != nil {
			return nil, err
		}
		if reg.Caller == nil {
			return nil, errors.New("process: no LLM caller registered")
		}
		tools := make([]tool.Tool, 0, len(in.ToolNames))
		for _, name := range in.ToolNames {
			t, err := reg.tool(name)
			if err != nil {
				return nil, err
			}
			tools = append(tools, t)
		}
		msg, usage, err := reg.Caller.Call(ctx, in.History, tools, in.CallOptions)
		if err != nil {
			return nil, fmt.Errorf("process: llm call failed: %w", err)
		}
		return llmCallOutput{Message: msg, Usage: usage}, nil
	}
}

// toolCallInput is the serializable input to the tool-dispatch activity.
type toolCallInput struct {
	ToolCallID    string
	ToolName      string
	ArgumentsJSON string
}

// toolCallOutput flattens a tool.Result plus any hitl/replan control-flow
// signal into plain data, since neither *hitl.Requested nor
// *replan.Requested (the latter carrying a non-serializable
// blackboard.Updater closure) can cross the workflow/activity boundary as a
// Go error value. The activity itself applies an Awaitable binding or a
// replan Updater directly to the shared Registry.Board (a real side effect,
// correctly scoped to an activity) and reports back only the serializable
// remainder the workflow needs to decide what to do next.
type toolCallOutput struct {
	Text            string
	IsError         bool
	ErrorMessage    string
	IsAwaitable     bool
	AwaitableID     string
	AwaitableKind   string
	AwaitablePrompt string
	IsReplan        bool
	ReplanReason    string
}

func toolCallActivity(reg *Registry) func(ctx context.Context, input any) (any, error) {
	return func(ctx context.Context, raw any) (any, error) {
		in, err := coerce[toolCallInput](raw)
		if err != nil {
			return nil, err
		}
		t, err := reg.tool(in.ToolName)
		if err != nil {
			return nil, err
		}

		result := t.Call(ctx, json.RawMessage(in.ArgumentsJSON))

		if result.Err != nil {
			var awaiting *hitl.Requested
			if errors.As(result.Err, &awaiting) {
				if awaiting.Awaitable.ID == "" {
					awaiting.Awaitable.ID = uuid.NewString()
				}
				if reg.Board != nil {
					reg.Board.AddObject(awaiting.Awaitable)
				}
				return toolCallOutput{
					IsAwaitable:     true,
					AwaitableID:     awaiting.Awaitable.ID,
					AwaitableKind:   awaiting.Awaitable.Kind,
					AwaitablePrompt: awaiting.Awaitable.Prompt,
				}, nil
			}

			var replanning *replan.Requested
			if errors.As(result.Err, &replanning) {
				replanning.Apply(reg.Board)
				return toolCallOutput{IsReplan: true, ReplanReason: replanning.Reason}, nil
			}

			return toolCallOutput{IsError: true, ErrorMessage: result.Err.Error()}, nil
		}

		return toolCallOutput{Text: result.Text}, nil
	}
}

// pendingResume is what persistPendingActivity binds to the blackboard
// (labeled by AwaitableID) so a later AgentProcess.Resume call can continue
// the run once the Awaitable it describes is resolved, without requiring
// anything to stay blocked in the meantime.
type pendingResume struct {
	AwaitableID  string
	ToolCallID   string
	ToolName     string
	Continuation ProcessInput
}

func persistPendingActivity(reg *Registry) func(ctx context.Context, input any) (any, error) {
	return func(_ context.Context, raw any) (any, error) {
		pending, err := coerce[pendingResume](raw)
		if err != nil {
			return nil, err
		}
		if reg.Board != nil {
			reg.Board.AddObject(pending, pending.AwaitableID)
		}
		return nil, nil
	}
}

// coerce converts an engine-delivered `any` payload into T, tolerating both
// the in-memory engine (which hands back the concrete Go value untouched)
// and a durable engine whose data converter round-trips it through JSON.
func coerce[T any](raw any) (T, error) {
	var zero T
	if v, ok := raw.(T); ok {
		return v, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return zero, fmt.Errorf("process: coerce activity input: %w", err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return zero, fmt.Errorf("process: coerce activity input: %w", err)
	}
	return out, nil
}
