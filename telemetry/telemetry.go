// Package telemetry defines the logging, metrics, and tracing contracts used
// throughout the runtime. Every component that emits an observability signal
// (the tool loop, the action runner, the agent process) depends on these
// interfaces rather than a concrete backend, so the runtime can be wired to
// Clue/OTEL in production and to no-ops in unit tests.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type (
	// Logger emits structured, leveled log messages. Keyvals are flattened
	// key-value pairs (k1, v1, k2, v2, ...); an odd-length slice pairs the
	// trailing key with a nil value.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters, timers, and gauges tagged with flattened
	// key-value string pairs (k1, v1, k2, v2, ...).
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, duration time.Duration, tags ...string)
		RecordGauge(name string, value float64, tags ...string)
	}

	// Tracer starts and retrieves spans for a context.
	Tracer interface {
		Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
		Span(ctx context.Context) Span
	}

	// Span is the subset of span operations the runtime needs, independent of
	// the underlying tracing SDK.
	Span interface {
		End(opts ...trace.SpanEndOption)
		AddEvent(name string, attrs ...any)
		SetStatus(code codes.Code, description string)
		RecordError(err error, opts ...trace.EventOption)
	}
)
