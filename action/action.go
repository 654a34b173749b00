// Package action implements action accounting: the timing/error shim that
// wraps every action run, turning its outcome into an ActionStatus and
// handling the HITL and replan control-flow signals a tool loop run may
// surface instead of an ordinary error.
package action

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/agentrun/core/blackboard"
	"github.com/agentrun/core/events"
	"github.com/agentrun/core/hitl"
	"github.com/agentrun/core/llm"
	"github.com/agentrun/core/replan"
	"github.com/agentrun/core/telemetry"
)

// Status is the terminal state of a single action run.
type Status string

const (
	Succeeded Status = "SUCCEEDED"
	Failed    Status = "FAILED"
	Waiting   Status = "WAITING"
)

// ActionStatus reports how an action run concluded and how long it took.
// AwaitableID is set only when Status is Waiting.
type ActionStatus struct {
	Status      Status
	RunningTime time.Duration
	AwaitableID string
}

// RetryPolicy describes how many times, and with what backoff, a failed
// action run should be retried. The field shape mirrors the engine-facing
// retry policy the teacher passes to activity/workflow scheduling
// (MaxAttempts/InitialInterval/BackoffCoefficient), plus MaxInterval to cap
// the exponential growth.
type RetryPolicy struct {
	MaxAttempts        int
	InitialInterval    time.Duration
	BackoffCoefficient float64
	MaxInterval        time.Duration
}

// FireOnce never retries: exactly one attempt, success or failure.
var FireOnce = RetryPolicy{MaxAttempts: 1}

// Default retries up to 5 attempts total, starting at a 10s delay, growing
// ×5 each time and capped at 60s.
var Default = RetryPolicy{
	MaxAttempts:        5,
	InitialInterval:    10 * time.Second,
	BackoffCoefficient: 5.0,
	MaxInterval:        60 * time.Second,
}

// BackoffFor returns the delay to wait before the given retry attempt
// (1-indexed: the delay before the *second* overall attempt is
// BackoffFor(1)). A zero InitialInterval means no delay between attempts.
func (p RetryPolicy) BackoffFor(attempt int) time.Duration {
	if p.InitialInterval <= 0 || attempt <= 0 {
		return 0
	}
	coeff := p.BackoffCoefficient
	if coeff < 1 {
		coeff = 1
	}
	maxInterval := p.MaxInterval
	if maxInterval <= 0 {
		maxInterval = p.InitialInterval
	}
	return llm.RetryBackoff(attempt, p.InitialInterval, coeff, maxInterval)
}

// Runner wraps an action function with timing and the accounting rules
// §4.7 assigns to each control-flow outcome: an AwaitableRequested signal is
// fully handled here (the Awaitable is bound to the blackboard and a
// Waiting status is returned, no error); a ReplanRequested signal is applied
// to the blackboard and re-raised as the returned error, uncounted as a
// failure; any other error is accounted as Failed and re-raised unchanged.
type Runner struct {
	Board   *blackboard.Blackboard
	Bus     events.Bus
	RunID   string
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer
}

func (r Runner) logger() telemetry.Logger {
	if r.Logger == nil {
		return telemetry.NoopLogger{}
	}
	return r.Logger
}

func (r Runner) metrics() telemetry.Metrics {
	if r.Metrics == nil {
		return telemetry.NoopMetrics{}
	}
	return r.Metrics
}

func (r Runner) tracer() telemetry.Tracer {
	if r.Tracer == nil {
		return telemetry.NoopTracer{}
	}
	return r.Tracer
}

// Run executes fn once, accounting its outcome per the rules above.
func (r Runner) Run(ctx context.Context, fn func(ctx context.Context) error) (ActionStatus, error) {
	spanCtx, span := r.tracer().Start(ctx, "action.run")
	defer span.End()

	start := time.Now()
	err := fn(spanCtx)
	elapsed := time.Since(start)
	r.metrics().RecordTimer("action.run.duration", elapsed, "run_id", r.RunID)

	var awaiting *hitl.Requested
	if errors.As(err, &awaiting) {
		if r.Board != nil {
			r.Board.AddObject(awaiting.Awaitable)
		}
		r.logger().Debug(ctx, "action: awaitable requested", "awaitable_id", awaiting.Awaitable.ID)
		r.publishAwaitableBound(ctx, awaiting.Awaitable.ID)
		span.AddEvent("action.waiting", "awaitable_id", awaiting.Awaitable.ID)
		r.metrics().IncCounter("action.result.count", 1, "status", string(Waiting))
		return ActionStatus{Status: Waiting, RunningTime: elapsed, AwaitableID: awaiting.Awaitable.ID}, nil
	}

	var replanning *replan.Requested
	if errors.As(err, &replanning) {
		replanning.Apply(r.Board)
		r.logger().Debug(ctx, "action: replan requested", "reason", replanning.Reason)
		r.publishReplanRequested(ctx, replanning.Reason)
		span.AddEvent("action.replan", "reason", replanning.Reason)
		return ActionStatus{RunningTime: elapsed}, err
	}

	if err != nil {
		r.logger().Error(ctx, "action: run failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "action run failed")
		r.metrics().IncCounter("action.result.count", 1, "status", string(Failed))
		return ActionStatus{Status: Failed, RunningTime: elapsed}, err
	}

	span.SetStatus(codes.Ok, "")
	r.metrics().IncCounter("action.result.count", 1, "status", string(Succeeded))
	return ActionStatus{Status: Succeeded, RunningTime: elapsed}, nil
}

// RunWithRetry calls Run repeatedly under policy until it returns a non-
// Failed status or the attempt budget is exhausted; Waiting and any
// re-raised replan error return immediately without consuming a retry.
func (r Runner) RunWithRetry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) (ActionStatus, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var status ActionStatus
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, err = r.Run(ctx, fn)
		if status.Status != Failed {
			return status, err
		}
		if attempt == maxAttempts {
			break
		}
		if wait := policy.BackoffFor(attempt); wait > 0 {
			select {
			case <-ctx.Done():
				return status, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return status, err
}

func (r Runner) publishAwaitableBound(ctx context.Context, awaitableID string) {
	if r.Bus == nil {
		return
	}
	_ = r.Bus.Publish(ctx, events.Event{
		Kind:      events.KindAwaitableBound,
		RunID:     r.RunID,
		At:        time.Now(),
		Awaitable: &events.AwaitableBoundEvent{AwaitableID: awaitableID},
	})
}

func (r Runner) publishReplanRequested(ctx context.Context, reason string) {
	if r.Bus == nil {
		return
	}
	_ = r.Bus.Publish(ctx, events.Event{
		Kind:   events.KindReplanRequested,
		RunID:  r.RunID,
		At:     time.Now(),
		Replan: &events.ReplanRequestedEvent{Reason: reason},
	})
}
