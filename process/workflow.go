package process

import (
	"fmt"

	"github.com/agentrun/core/conversation"
	"github.com/agentrun/core/engine"
	"github.com/agentrun/core/toolloop"
)

// WorkflowName is the engine workflow name an AgentProcess registers and
// starts under.
const WorkflowName = "agentrun.process"

const defaultMaxIterations = 20

// ProcessInput starts, or resumes, a durable tool loop run. ToolNames must
// already be registered in the Registry backing the engine's activities;
// AgentProcess does not carry tool.Tool values across the workflow
// boundary.
type ProcessInput struct {
	RunID          string
	AgentProcessID string
	History        conversation.History
	ToolNames      []string
	CallOptions    toolloop.CallOptions
	MaxIterations  int

	// IterationsSoFar carries the iteration budget already spent by a prior
	// run this one resumes; zero for a fresh run.
	IterationsSoFar int
}

// OutcomeKind discriminates a ProcessOutput the way the in-process tool loop
// discriminates its return value via errors.As on *hitl.Requested and
// *replan.Requested: these are control-flow outcomes, not failures.
type OutcomeKind string

const (
	OutcomeFinal     OutcomeKind = "final"
	OutcomeAwaitable OutcomeKind = "awaitable"
	OutcomeReplan    OutcomeKind = "replan"
)

// ProcessOutput is what the workflow returns. Exactly one of FinalMessage,
// Awaitable, or ReplanReason is meaningful, selected by Kind. A workflow run
// that suspends on an Awaitable terminates with OutcomeAwaitable rather than
// blocking in place: the run's state needed to continue is persisted to the
// blackboard (via persistPendingActivity) before returning, and resuming it
// once the Awaitable resolves starts a brand new workflow execution seeded
// from that saved state (AgentProcess.Resume), the same way a suspended
// in-process action is resumed from a WAITING ActionStatus rather than held
// open on a blocked goroutine for however long a human takes to answer.
type ProcessOutput struct {
	Kind         OutcomeKind
	FinalMessage conversation.Message
	History      conversation.History
	Iterations   int
	TotalUsage   conversation.Usage

	AwaitableID     string
	AwaitableKind   string
	AwaitablePrompt string

	ReplanReason string
}

// workflow implements engine.WorkflowFunc. It mirrors the algorithm
// toolloop.Run drives in-process, but every LLM inference and every tool
// dispatch is an activity call, so the loop's bookkeeping alone (not the
// network calls it schedules) needs to be replay-safe. Unlike toolloop.Run,
// it does not run progressive-facade tool-injection strategies: those stay
// a purely in-process concern, since their state (an *Injection's pending
// reveal queue) cannot cross the workflow/activity boundary.
func workflow(wf engine.WorkflowContext, rawInput any) (any, error) {
	input, err := coerce[ProcessInput](rawInput)
	if err != nil {
		return nil, err
	}

	maxIter := input.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}

	history := input.History
	toolNames := append([]string(nil), input.ToolNames...)
	var totalUsage conversation.Usage

	for i := 0; input.IterationsSoFar+i < maxIter; i++ {
		iter := input.IterationsSoFar + i + 1

		var llmOut llmCallOutput
		err := wf.ExecuteActivity(wf.Context(), engine.ActivityRequest{
			Name: ActivityLlmCall,
			Input: llmCallInput{
				History:     history,
				ToolNames:   toolNames,
				CallOptions: input.CallOptions,
			},
		}, &llmOut)
		if err != nil {
			return nil, fmt.Errorf("process: llm call activity: %w", err)
		}

		history = history.Append(llmOut.Message)
		totalUsage = totalUsage.Add(llmOut.Usage)

		if len(llmOut.Message.ToolCalls) == 0 {
			return ProcessOutput{
				Kind:         OutcomeFinal,
				FinalMessage: llmOut.Message,
				History:      history,
				Iterations:   iter,
				TotalUsage:   totalUsage,
			}, nil
		}

		for _, call := range llmOut.Message.ToolCalls {
			var toolOut toolCallOutput
			err := wf.ExecuteActivity(wf.Context(), engine.ActivityRequest{
				Name: ActivityToolCall,
				Input: toolCallInput{
					ToolCallID:    call.ID,
					ToolName:      call.Name,
					ArgumentsJSON: call.ArgumentsJSON,
				},
			}, &toolOut)
			if err != nil {
				return nil, fmt.Errorf("process: tool call activity (%s): %w", call.Name, err)
			}

			if toolOut.IsReplan {
				return ProcessOutput{
					Kind:         OutcomeReplan,
					History:      history,
					Iterations:   iter,
					TotalUsage:   totalUsage,
					ReplanReason: toolOut.ReplanReason,
				}, nil
			}

			if toolOut.IsAwaitable {
				pending := pendingResume{
					AwaitableID: toolOut.AwaitableID,
					ToolCallID:  call.ID,
					ToolName:    call.Name,
					Continuation: ProcessInput{
						RunID:           input.RunID,
						AgentProcessID:  input.AgentProcessID,
						History:         history,
						ToolNames:       toolNames,
						CallOptions:     input.CallOptions,
						MaxIterations:   maxIter,
						IterationsSoFar: iter - 1,
					},
				}
				if err := wf.ExecuteActivity(wf.Context(), engine.ActivityRequest{
					Name:  ActivityPersistPending,
					Input: pending,
				}, nil); err != nil {
					return nil, fmt.Errorf("process: persist pending resume for awaitable %s: %w", toolOut.AwaitableID, err)
				}

				return ProcessOutput{
					Kind:            OutcomeAwaitable,
					History:         history,
					Iterations:      iter,
					TotalUsage:      totalUsage,
					AwaitableID:     toolOut.AwaitableID,
					AwaitableKind:   toolOut.AwaitableKind,
					AwaitablePrompt: toolOut.AwaitablePrompt,
				}, nil
			}

			content := toolOut.Text
			if toolOut.IsError {
				content = toolOut.ErrorMessage
			}
			history = history.Append(conversation.ToolResult(call.ID, call.Name, content))
		}
	}

	return nil, fmt.Errorf("process: max iterations (%d) exceeded", maxIter)
}
