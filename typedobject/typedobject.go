// Package typedobject implements schema-guided typed object creation: given
// a Go type T and a seed conversation, it drives a tool loop to completion,
// parses the terminal assistant message as JSON of type T, and retries with
// a corrective message on malformed JSON up to a fixed budget.
package typedobject

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/agentrun/core/conversation"
	"github.com/agentrun/core/tool"
	"github.com/agentrun/core/toolloop"
)

// InvalidLlmReturnFormat is returned when the terminal assistant message
// never parsed as valid JSON, even after every retry attempt.
type InvalidLlmReturnFormat struct {
	Attempts int
	Last     error
}

func (e *InvalidLlmReturnFormat) Error() string {
	return fmt.Sprintf("typedobject: LLM did not return valid JSON after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *InvalidLlmReturnFormat) Unwrap() error { return e.Last }

// InvalidLlmReturnType is returned when the terminal assistant message
// parsed as JSON but did not satisfy the target schema, or did not decode
// into T. Unlike InvalidLlmReturnFormat, this is not retried by default.
type InvalidLlmReturnType struct {
	Reason string
}

func (e *InvalidLlmReturnType) Error() string {
	return fmt.Sprintf("typedobject: response does not satisfy the target schema: %s", e.Reason)
}

// Options configures a single Create/CreateIfPossible call.
type Options struct {
	// MaxRetries bounds how many corrective re-prompts are issued after a
	// malformed-JSON response; 0 defaults to 2.
	MaxRetries int
	// Validate runs the derived JSON Schema against the parsed response
	// before decoding into T, surfacing schema violations as
	// InvalidLlmReturnType instead of a silent partial decode.
	Validate bool
	// SchemaID names the JSON Schema resource compiled for validation;
	// defaults to "typedobject".
	SchemaID string
	// PropertyFilters is the property-filter predicate chain applied to the
	// schema derived from T, composing by conjunction in the order given
	// (see tool.WithProperties/tool.WithoutProperties/tool.MatchesFilters).
	PropertyFilters []tool.PropertyPredicate
}

const defaultMaxRetries = 2

// Create drives cfg's tool loop against history and tools, then parses the
// terminal assistant message as JSON of type T. T = string bypasses JSON
// entirely and returns the raw text.
func Create[T any](ctx context.Context, cfg toolloop.Config, history conversation.History, tools []tool.Tool, opts Options) (T, error) {
	var zero T

	if _, ok := any(zero).(string); ok {
		text, _, err := runOnceWithHistory(ctx, cfg, history, tools)
		if err != nil {
			return zero, err
		}
		out := any(text).(T)
		return out, nil
	}

	schema := SchemaFromType(reflect.TypeOf(zero), opts.PropertyFilters...)
	schemaID := opts.SchemaID
	if schemaID == "" {
		schemaID = "typedobject"
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	runHistory := history.Append(conversation.System(schemaInstructionMessage(schema)))
	runCfg := cfg
	runCfg.CallOptions.SchemaHint = schemaID

	var lastErr error
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		text, newHistory, err := runOnceWithHistory(ctx, runCfg, runHistory, tools)
		if err != nil {
			return zero, err
		}
		runHistory = newHistory

		var generic any
		if err := json.Unmarshal([]byte(text), &generic); err != nil {
			lastErr = err
			if attempt <= maxRetries {
				runHistory = runHistory.Append(conversation.User(formatCorrection(schema, err)))
				continue
			}
			break
		}

		if opts.Validate {
			if err := schema.ValidateJSON(schemaID, json.RawMessage(text)); err != nil {
				return zero, &InvalidLlmReturnType{Reason: err.Error()}
			}
		}

		var out T
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			return zero, &InvalidLlmReturnType{Reason: err.Error()}
		}
		return out, nil
	}

	return zero, &InvalidLlmReturnFormat{Attempts: maxRetries + 1, Last: lastErr}
}

// Outcome carries the result of CreateIfPossible: either a value with OK
// true, or a non-nil Err (an InvalidLlmReturnFormat/InvalidLlmReturnType)
// with OK false, never a panic or Go error return for that case.
type Outcome[T any] struct {
	Value T
	OK    bool
	Err   error
}

// CreateIfPossible behaves like Create but never returns an
// InvalidLlmReturnFormat/InvalidLlmReturnType as a Go error: those failures
// are captured in the returned Outcome instead. Structural failures
// (ToolNotFound, MaxIterationsExceeded) and HITL/replan control-flow signals
// still propagate as a Go error, since those are not "the LLM could not
// answer" outcomes.
func CreateIfPossible[T any](ctx context.Context, cfg toolloop.Config, history conversation.History, tools []tool.Tool, opts Options) (Outcome[T], error) {
	v, err := Create[T](ctx, cfg, history, tools, opts)
	if err == nil {
		return Outcome[T]{Value: v, OK: true}, nil
	}
	switch err.(type) {
	case *InvalidLlmReturnFormat, *InvalidLlmReturnType:
		return Outcome[T]{Err: err}, nil
	default:
		return Outcome[T]{}, err
	}
}

func runOnceWithHistory(ctx context.Context, cfg toolloop.Config, history conversation.History, tools []tool.Tool) (string, conversation.History, error) {
	result, err := toolloop.Run(ctx, cfg, history, tools)
	if err != nil {
		return "", nil, err
	}
	return result.FinalMessage.Content, result.History, nil
}

func schemaInstructionMessage(schema tool.InputSchema) string {
	raw, _ := json.Marshal(schema.JSONSchema())
	return "Respond with a single JSON object satisfying this schema: " + string(raw)
}

func formatCorrection(schema tool.InputSchema, cause error) string {
	raw, _ := json.Marshal(schema.JSONSchema())
	return fmt.Sprintf("Your previous response was not valid JSON for the schema %s; please retry. (%v)", string(raw), cause)
}
