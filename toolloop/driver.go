// Package toolloop implements the Tool Loop Driver: the component that
// alternates single LLM inferences with local, synchronous tool dispatches
// until the model returns a final answer with no further tool calls.
package toolloop

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/agentrun/core/conversation"
	"github.com/agentrun/core/events"
	"github.com/agentrun/core/hitl"
	"github.com/agentrun/core/replan"
	"github.com/agentrun/core/telemetry"
	"github.com/agentrun/core/tool"
)

// Caller drives a single LLM inference. A Caller implementation must never
// itself execute a tool call; it returns at most one Assistant message plus
// optional usage, and the driver is the sole executor of any tool calls
// that message requests.
type Caller interface {
	Call(ctx context.Context, history conversation.History, tools []tool.Tool, opts CallOptions) (conversation.Message, conversation.Usage, error)
}

// CallOptions carries per-call hyperparameters and the schema hint used by
// schema-guided typed object creation (§4.5-style callers pass a non-empty
// SchemaHint; plain text generation leaves it empty).
type CallOptions struct {
	ModelName   string
	Temperature *float64
	MaxTokens   *int
	SchemaHint  string
}

// Result is what Run returns: the final assistant message, the full
// history accumulated along the way, how many iterations it took, the
// names of every tool injected mid-run, and the componentwise usage total.
type Result struct {
	FinalMessage  conversation.Message
	History       conversation.History
	Iterations    int
	InjectedTools []string
	TotalUsage    conversation.Usage
}

// Config bundles the fixed-for-this-run inputs to Run.
type Config struct {
	Caller         Caller
	MaxIterations  int // 0 defaults to 20
	Bus            events.Bus
	RunID          string
	AgentProcessID string
	InteractionID  string
	CallOptions    CallOptions
	Strategies     []ToolInjectionStrategy
	// Injection must be the same *Injection instance passed to any facade
	// tool constructors used to build the initial tool set, so facade
	// reveals recorded during Call are visible to Run.
	Injection *Injection
	// Logger receives debug-level control-flow logging (awaitable/replan
	// signals); a nil Logger discards them.
	Logger telemetry.Logger
	// Metrics and Tracer instrument the loop itself (iteration and tool
	// dispatch counts, LLM call latency, LLM call and tool call spans). Nil
	// values fall back to no-ops.
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer
}

func (c Config) logger() telemetry.Logger {
	if c.Logger == nil {
		return telemetry.NoopLogger{}
	}
	return c.Logger
}

func (c Config) metrics() telemetry.Metrics {
	if c.Metrics == nil {
		return telemetry.NoopMetrics{}
	}
	return c.Metrics
}

func (c Config) tracer() telemetry.Tracer {
	if c.Tracer == nil {
		return telemetry.NoopTracer{}
	}
	return c.Tracer
}

const defaultMaxIterations = 20

// Run drives the loop described by spec §4.1 to completion: it returns a
// Result on a clean final answer, or one of ToolNotFound,
// MaxIterationsExceeded wrapped as an error, or propagates an
// *hitl.Requested / *replan.Requested control-flow signal unchanged via
// errors.As so the caller (an AgentProcess) can react to suspension or
// replan without treating either as a failure.
func Run(ctx context.Context, cfg Config, history conversation.History, initialTools []tool.Tool) (Result, error) {
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	avail := newToolSet(initialTools)
	var injectedNames []string
	var totalUsage conversation.Usage

	for iter := 1; iter <= maxIter; iter++ {
		cfg.metrics().IncCounter("toolloop.iteration", 1, "run_id", cfg.RunID)

		cfg.publish(ctx, events.Event{
			Kind:  events.KindLlmRequest,
			RunID: cfg.RunID,
			LlmReq: &events.LlmRequestEvent{
				AgentProcessID: cfg.AgentProcessID,
				InteractionID:  cfg.InteractionID,
				ModelName:      cfg.CallOptions.ModelName,
			},
		})

		spanCtx, span := cfg.tracer().Start(ctx, "toolloop.llm_call")
		start := time.Now()
		assistant, usage, err := cfg.Caller.Call(spanCtx, history, avail.list(), cfg.CallOptions)
		cfg.metrics().RecordTimer("toolloop.llm_call.duration", time.Since(start), "model", cfg.CallOptions.ModelName)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "llm call failed")
			span.End()
			return Result{}, fmt.Errorf("tool loop: llm call failed: %w", err)
		}
		span.SetStatus(codes.Ok, "")
		span.End()

		cfg.publish(ctx, events.Event{
			Kind:  events.KindLlmResponse,
			RunID: cfg.RunID,
			LlmResp: &events.LlmResponseEvent{
				AgentProcessID:   cfg.AgentProcessID,
				InteractionID:    cfg.InteractionID,
				ModelName:        cfg.CallOptions.ModelName,
				PromptTokens:     usage.PromptTokens,
				CompletionTokens: usage.CompletionTokens,
				DurationMs:       time.Since(start).Milliseconds(),
			},
		})

		history = history.Append(assistant)
		totalUsage = totalUsage.Add(usage)

		if len(assistant.ToolCalls) == 0 {
			return Result{
				FinalMessage:  assistant,
				History:       history,
				Iterations:    iter,
				InjectedTools: injectedNames,
				TotalUsage:    totalUsage,
			}, nil
		}

		for _, call := range assistant.ToolCalls {
			t, ok := avail.byName(call.Name)
			if !ok {
				return Result{}, &ToolNotFound{Name: call.Name, Known: avail.names()}
			}

			toolCtx, toolSpan := cfg.tracer().Start(ctx, "toolloop.tool_call")
			result := t.Call(toolCtx, json.RawMessage(call.ArgumentsJSON))
			toolSpan.AddEvent("tool", "name", call.Name)
			cfg.metrics().IncCounter("toolloop.tool_call.count", 1, "tool", call.Name, "result", resultKind(result))
			if result.Err != nil {
				toolSpan.RecordError(result.Err)
			}
			toolSpan.End()

			if result.Err != nil {
				var awaiting *hitl.Requested
				if errors.As(result.Err, &awaiting) {
					cfg.logger().Debug(ctx, "tool loop: awaitable requested", "tool", call.Name, "awaitable_id", awaiting.Awaitable.ID)
					return Result{}, awaiting
				}
				var replanning *replan.Requested
				if errors.As(result.Err, &replanning) {
					cfg.logger().Debug(ctx, "tool loop: replan requested", "tool", call.Name, "reason", replanning.Reason)
					return Result{}, replanning
				}
			}

			cfg.publish(ctx, events.Event{
				Kind:  events.KindToolCall,
				RunID: cfg.RunID,
				ToolCall: &events.ToolCallEvent{
					ToolName:   call.Name,
					ArgsDigest: digest(call.ArgumentsJSON),
					ResultKind: resultKind(result),
				},
			})

			content := resultText(result)
			if result.Err != nil {
				if hint := retryHintFromError(result.Err); hint != nil {
					content = WithResultReminder(content, renderRetryHint(hint))
				}
			}
			history = history.Append(conversation.ToolResult(call.ID, call.Name, content))

			newTools := cfg.afterDispatch(StrategyContext{
				History:      history,
				CurrentTools: avail.list(),
				LastToolCall: LastToolCall{
					Name:       call.Name,
					InputJSON:  call.ArgumentsJSON,
					ResultJSON: resultText(result),
				},
				IterCount: iter,
			})
			if added := avail.addAll(newTools); len(added) > 0 {
				injectedNames = append(injectedNames, added...)
				cfg.publish(ctx, events.Event{
					Kind:  events.KindToolsInjected,
					RunID: cfg.RunID,
					Injected: &events.ToolsInjectedEvent{
						Strategy: "ToolInjectionStrategy",
						NewTools: added,
					},
				})
			}

			if cfg.Injection != nil {
				for _, reveal := range cfg.Injection.drain() {
					added := avail.addAll(reveal.revealed)
					if reveal.removeFacade {
						avail.remove(reveal.facadeName)
					}
					injectedNames = append(injectedNames, added...)
					cfg.publish(ctx, events.Event{
						Kind:  events.KindToolsInjected,
						RunID: cfg.RunID,
						Injected: &events.ToolsInjectedEvent{
							Strategy: "facade:" + reveal.facadeName,
							NewTools: added,
						},
					})
				}
			}
		}
	}

	return Result{}, &MaxIterationsExceeded{Max: maxIter}
}

func (c Config) publish(ctx context.Context, evt events.Event) {
	if c.Bus == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	_ = c.Bus.Publish(ctx, evt)
}

func (c Config) afterDispatch(sc StrategyContext) []tool.Tool {
	var out []tool.Tool
	for _, strategy := range c.Strategies {
		if strategy == nil {
			continue
		}
		out = append(out, strategy.AfterDispatch(sc)...)
	}
	return out
}

func resultKind(r tool.Result) string {
	switch {
	case r.IsError():
		return "error"
	case r.Artifact != nil:
		return "artifact"
	default:
		return "text"
	}
}

func resultText(r tool.Result) string {
	if r.IsError() {
		return r.Err.Error()
	}
	return r.Text
}

func digest(argumentsJSON string) string {
	sum := sha256.Sum256([]byte(argumentsJSON))
	return hex.EncodeToString(sum[:])[:16]
}
