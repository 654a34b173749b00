package temporal

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/agentrun/core/engine"
	"github.com/agentrun/core/telemetry"
)

// workflowContext adapts Temporal's workflow.Context to engine.WorkflowContext.
// Every method must stay replay-safe: no direct system calls, no goroutines
// outside workflow.Go, no randomness or wall-clock reads outside wf.Now.
type workflowContext struct {
	eng *Engine
	ctx workflow.Context
}

func newWorkflowContext(eng *Engine, ctx workflow.Context) *workflowContext {
	return &workflowContext{eng: eng, ctx: ctx}
}

func (w *workflowContext) Context() context.Context {
	// Temporal workflow code never uses context.Context directly for
	// blocking calls; callers that need a context (e.g. to pass through
	// ExecuteActivity's ctx parameter, which this adapter ignores in favor
	// of w.ctx) get a background context that carries no deadline.
	return context.Background()
}

func (w *workflowContext) WorkflowID() string {
	return workflow.GetInfo(w.ctx).WorkflowExecution.ID
}

func (w *workflowContext) RunID() string {
	return workflow.GetInfo(w.ctx).WorkflowExecution.RunID
}

func (w *workflowContext) Logger() telemetry.Logger   { return w.eng.logger }
func (w *workflowContext) Metrics() telemetry.Metrics { return w.eng.metrics }
func (w *workflowContext) Tracer() telemetry.Tracer   { return w.eng.tracer }

func (w *workflowContext) Now() time.Time {
	return workflow.Now(w.ctx)
}

func (w *workflowContext) ExecuteActivity(_ context.Context, req engine.ActivityRequest, result any) error {
	fut, err := w.ExecuteActivityAsync(nil, req)
	if err != nil {
		return err
	}
	return fut.Get(nil, result)
}

func (w *workflowContext) ExecuteActivityAsync(_ context.Context, req engine.ActivityRequest) (engine.Future, error) {
	opts := workflow.ActivityOptions{
		TaskQueue:           req.Queue,
		StartToCloseTimeout: req.Timeout,
	}
	if opts.StartToCloseTimeout == 0 {
		opts.StartToCloseTimeout = 5 * time.Minute
	}
	if rp := convertRetryPolicy(req.RetryPolicy); rp != nil {
		opts.RetryPolicy = rp
	} else {
		opts.RetryPolicy = &temporal.RetryPolicy{MaximumAttempts: 1}
	}
	actCtx := workflow.WithActivityOptions(w.ctx, opts)
	f := workflow.ExecuteActivity(actCtx, req.Name, req.Input)
	return &workflowFuture{ctx: w.ctx, f: f}, nil
}

func (w *workflowContext) SignalChannel(name string) engine.SignalChannel {
	return &workflowSignalChannel{ctx: w.ctx, ch: workflow.GetSignalChannel(w.ctx, name)}
}

type workflowFuture struct {
	ctx workflow.Context
	f   workflow.Future
}

func (f *workflowFuture) Get(_ context.Context, result any) error {
	if result == nil {
		return f.f.Get(f.ctx, nil)
	}
	return f.f.Get(f.ctx, result)
}

func (f *workflowFuture) IsReady() bool {
	return f.f.IsReady()
}

type workflowSignalChannel struct {
	ctx workflow.Context
	ch  workflow.ReceiveChannel
}

func (s *workflowSignalChannel) Receive(_ context.Context, dest any) error {
	ok := s.ch.Receive(s.ctx, dest)
	if !ok {
		return fmt.Errorf("temporal engine: signal channel closed before a value arrived")
	}
	return nil
}

func (s *workflowSignalChannel) ReceiveAsync(dest any) bool {
	return s.ch.ReceiveAsync(dest)
}
