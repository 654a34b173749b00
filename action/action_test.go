package action_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentrun/core/action"
	"github.com/agentrun/core/blackboard"
	"github.com/agentrun/core/hitl"
	"github.com/agentrun/core/replan"
	"github.com/agentrun/core/telemetry"
)

// recordingMetrics/recordingTracer capture what action.Runner reports
// instead of discarding it, for asserting on instrumentation names.
type recordingMetrics struct {
	counters []string
	timers   []string
}

func (m *recordingMetrics) IncCounter(name string, value float64, tags ...string) {
	m.counters = append(m.counters, name)
}
func (m *recordingMetrics) RecordTimer(name string, d time.Duration, tags ...string) {
	m.timers = append(m.timers, name)
}
func (m *recordingMetrics) RecordGauge(name string, value float64, tags ...string) {}

type recordingTracer struct{ started []string }

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, telemetry.Span) {
	t.started = append(t.started, name)
	return ctx, recordingSpan{}
}
func (t *recordingTracer) Span(ctx context.Context) telemetry.Span { return recordingSpan{} }

type recordingSpan struct{}

func (recordingSpan) End(...trace.SpanEndOption)             {}
func (recordingSpan) AddEvent(string, ...any)                {}
func (recordingSpan) SetStatus(codes.Code, string)           {}
func (recordingSpan) RecordError(error, ...trace.EventOption) {}

func TestRunner_Run_SucceedsAndRecordsRunningTime(t *testing.T) {
	r := action.Runner{}
	status, err := r.Run(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, action.Succeeded, status.Status)
	assert.GreaterOrEqual(t, status.RunningTime, time.Duration(0))
}

func TestRunner_Run_OrdinaryErrorIsAccountedFailedAndReRaised(t *testing.T) {
	r := action.Runner{}
	boom := errors.New("boom")
	status, err := r.Run(context.Background(), func(ctx context.Context) error { return boom })
	assert.Equal(t, action.Failed, status.Status)
	assert.ErrorIs(t, err, boom)
}

func TestRunner_Run_AwaitableBindsToBlackboardAndReturnsWaitingWithoutError(t *testing.T) {
	board := blackboard.New()
	r := action.Runner{Board: board}
	a := hitl.NewAwaitable("aw-1", "confirmation", "proceed?", nil)

	status, err := r.Run(context.Background(), func(ctx context.Context) error {
		return hitl.New(a)
	})
	require.NoError(t, err)
	assert.Equal(t, action.Waiting, status.Status)
	assert.Equal(t, "aw-1", status.AwaitableID)

	bound, ok := blackboard.Last[hitl.Awaitable](board)
	require.True(t, ok)
	assert.Equal(t, "aw-1", bound.ID)
}

func TestRunner_Run_ReplanAppliesUpdaterAndReRaisesUncountedAsFailure(t *testing.T) {
	board := blackboard.New()
	r := action.Runner{Board: board}
	applied := false

	status, err := r.Run(context.Background(), func(ctx context.Context) error {
		return replan.New("stale plan", func(bb *blackboard.Blackboard) { applied = true })
	})

	var replanning *replan.Requested
	require.ErrorAs(t, err, &replanning)
	assert.Equal(t, "stale plan", replanning.Reason)
	assert.True(t, applied)
	assert.NotEqual(t, action.Failed, status.Status)
}

func TestRunner_RunWithRetry_RetriesFailuresThenSucceeds(t *testing.T) {
	r := action.Runner{}
	attempts := 0
	policy := action.RetryPolicy{MaxAttempts: 3}

	status, err := r.RunWithRetry(context.Background(), policy, func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, action.Succeeded, status.Status)
	assert.Equal(t, 2, attempts)
}

func TestRunner_RunWithRetry_StopsAtMaxAttempts(t *testing.T) {
	r := action.Runner{}
	attempts := 0
	policy := action.RetryPolicy{MaxAttempts: 2}

	status, err := r.RunWithRetry(context.Background(), policy, func(ctx context.Context) error {
		attempts++
		return errors.New("always fails")
	})
	assert.Error(t, err)
	assert.Equal(t, action.Failed, status.Status)
	assert.Equal(t, 2, attempts)
}

func TestRunner_RunWithRetry_WaitingStatusStopsRetryingImmediately(t *testing.T) {
	board := blackboard.New()
	r := action.Runner{Board: board}
	attempts := 0
	policy := action.RetryPolicy{MaxAttempts: 5}

	status, err := r.RunWithRetry(context.Background(), policy, func(ctx context.Context) error {
		attempts++
		return hitl.New(hitl.NewAwaitable("aw-2", "input", "need more info", nil))
	})
	require.NoError(t, err)
	assert.Equal(t, action.Waiting, status.Status)
	assert.Equal(t, 1, attempts)
}

func TestRunner_Run_InstrumentsOutcomeViaMetricsAndTracer(t *testing.T) {
	metrics := &recordingMetrics{}
	tracer := &recordingTracer{}
	r := action.Runner{Metrics: metrics, Tracer: tracer}

	status, err := r.Run(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, action.Succeeded, status.Status)

	assert.Contains(t, tracer.started, "action.run")
	assert.Contains(t, metrics.timers, "action.run.duration")
	assert.Contains(t, metrics.counters, "action.result.count")
}

func TestRetryPolicy_BackoffForGrowsExponentiallyAndCaps(t *testing.T) {
	p := action.Default
	assert.Equal(t, 10*time.Second, p.BackoffFor(1))
	assert.Equal(t, 50*time.Second, p.BackoffFor(2))
	assert.Equal(t, 60*time.Second, p.BackoffFor(3))
}

func TestRetryPolicy_FireOnceNeverWaits(t *testing.T) {
	assert.Equal(t, time.Duration(0), action.FireOnce.BackoffFor(1))
}
