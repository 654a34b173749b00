package process

import (
	"context"
	"fmt"

	"github.com/agentrun/core/action"
	"github.com/agentrun/core/blackboard"
	"github.com/agentrun/core/conversation"
	"github.com/agentrun/core/engine"
	"github.com/agentrun/core/events"
	"github.com/agentrun/core/hitl"
	"github.com/agentrun/core/replan"
	"github.com/agentrun/core/telemetry"
)

// AgentProcess runs the tool loop as a durable workflow on an engine.Engine,
// giving the two suspension points spec'd for the runtime — waiting on an
// LLM response, waiting on a blocking tool call — genuine cross-restart
// persistence instead of living only in one process's memory.
type AgentProcess struct {
	Eng       engine.Engine
	Registry  *Registry
	TaskQueue string
	Bus       events.Bus
	Logger    telemetry.Logger
	// Metrics and Tracer instrument the outer action.Runner wrapping each
	// workflow execution. Nil values fall back to no-ops.
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer
}

// Wire registers the process workflow and its three activities against eng.
// Call once per process/worker before starting any run.
func Wire(ctx context.Context, eng engine.Engine, reg *Registry, taskQueue string) error {
	if err := eng.RegisterActivity(ctx, engine.ActivityDefinition{
		Name:    ActivityLlmCall,
		Handler: llmCallActivity(reg),
		Options: engine.ActivityOptions{Queue: taskQueue},
	}); err != nil {
		return fmt.Errorf("process: register llm call activity: %w", err)
	}
	if err := eng.RegisterActivity(ctx, engine.ActivityDefinition{
		Name:    ActivityToolCall,
		Handler: toolCallActivity(reg),
		Options: engine.ActivityOptions{Queue: taskQueue},
	}); err != nil {
		return fmt.Errorf("process: register tool call activity: %w", err)
	}
	if err := eng.RegisterActivity(ctx, engine.ActivityDefinition{
		Name:    ActivityPersistPending,
		Handler: persistPendingActivity(reg),
		Options: engine.ActivityOptions{Queue: taskQueue},
	}); err != nil {
		return fmt.Errorf("process: register persist-pending activity: %w", err)
	}
	if err := eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name:      WorkflowName,
		TaskQueue: taskQueue,
		Handler:   workflow,
	}); err != nil {
		return fmt.Errorf("process: register workflow: %w", err)
	}
	return nil
}

// New builds an AgentProcess bound to an already-wired engine.
func New(eng engine.Engine, reg *Registry, taskQueue string, bus events.Bus, logger telemetry.Logger) *AgentProcess {
	return &AgentProcess{Eng: eng, Registry: reg, TaskQueue: taskQueue, Bus: bus, Logger: logger}
}

// Run starts a process execution and blocks until it reaches a final
// answer, suspends on an Awaitable, or requests a replan, reporting the
// outcome through action.ActionStatus exactly as action.Runner does for an
// in-process run: WAITING carries the bound Awaitable's ID, a replan is
// re-raised as the returned error uncounted as a failure, and any other
// error is accounted Failed.
func (p *AgentProcess) Run(ctx context.Context, input ProcessInput) (action.ActionStatus, ProcessOutput, error) {
	handle, err := p.Eng.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:        input.AgentProcessID,
		Workflow:  WorkflowName,
		TaskQueue: p.TaskQueue,
		Input:     input,
	})
	if err != nil {
		return action.ActionStatus{}, ProcessOutput{}, fmt.Errorf("process: start workflow: %w", err)
	}

	var out ProcessOutput
	// Board is intentionally nil here: toolCallActivity already bound the
	// Awaitable (or applied the replan Updater) directly to Registry.Board
	// from inside the activity, the correct place for that side effect.
	// Passing the board to Runner too would bind the same signal twice.
	runner := action.Runner{Bus: p.Bus, RunID: input.RunID, Logger: p.Logger, Metrics: p.Metrics, Tracer: p.Tracer}

	status, runErr := runner.Run(ctx, func(ctx context.Context) error {
		var result ProcessOutput
		if err := handle.Wait(ctx, &result); err != nil {
			return fmt.Errorf("process: workflow run failed: %w", err)
		}
		out = result
		switch result.Kind {
		case OutcomeAwaitable:
			return hitl.New(hitl.Awaitable{
				ID:     result.AwaitableID,
				Kind:   result.AwaitableKind,
				Prompt: result.AwaitablePrompt,
				Status: hitl.StatusPending,
			})
		case OutcomeReplan:
			return replan.New(result.ReplanReason, nil)
		default:
			return nil
		}
	})

	return status, out, runErr
}

// Resume continues a run previously suspended on the Awaitable identified by
// awaitableID, feeding resolvedPayload back as that Awaitable's tool result
// and re-entering the loop from the saved continuation. It starts a fresh
// workflow execution rather than reaching into the suspended one: nothing
// needs to stay resident in memory (or even in the same process) between
// the Awaitable being raised and its resolution arriving, however long that
// takes.
func (p *AgentProcess) Resume(ctx context.Context, awaitableID, resolvedPayload string) (action.ActionStatus, ProcessOutput, error) {
	pending, ok := blackboard.LastLabeled[pendingResume](p.Registry.Board, awaitableID)
	if !ok {
		return action.ActionStatus{}, ProcessOutput{}, fmt.Errorf("process: no pending resume found for awaitable %s", awaitableID)
	}

	next := pending.Continuation
	next.History = next.History.Append(conversation.ToolResult(pending.ToolCallID, pending.ToolName, resolvedPayload))
	next.AgentProcessID = fmt.Sprintf("%s-resume-%d", pending.Continuation.AgentProcessID, pending.Continuation.IterationsSoFar)

	return p.Run(ctx, next)
}
