package tool

import (
	"context"
	"encoding/json"

	"github.com/agentrun/core/toolerrors"
)

// Definition is the static, LLM-facing description of a Tool: its name, a
// natural-language description, and the JSON Schema its arguments must
// satisfy.
type Definition struct {
	Name        string
	Description string
	InputSchema InputSchema
}

// Artifact is a non-textual side value a tool result can carry alongside its
// textual summary (e.g. a generated file, a binary blob) without forcing the
// caller to stuff it into the LLM-visible text.
type Artifact struct {
	Name      string
	MediaType string
	Bytes     []byte
}

// Result is the outcome of a single tool invocation. Exactly one of Text or
// Err is meaningful for a given Result; Artifact is optional and orthogonal
// to both.
type Result struct {
	Text     string
	Artifact *Artifact
	Err      error
}

// TextResult builds a successful, text-only Result.
func TextResult(text string) Result { return Result{Text: text} }

// WithArtifact attaches an artifact to an existing Result, returning the
// modified copy.
func (r Result) WithArtifact(a Artifact) Result {
	r.Artifact = &a
	return r
}

// ErrorResult builds a failed Result from a tool-level error. Tool execution
// failures are always converted to a Result carrying Err; they are never
// propagated as Go errors out of Tool.Call, so the driving loop can report
// them back to the model as ordinary tool output.
func ErrorResult(err error) Result {
	return Result{Err: toolerrors.FromError(err)}
}

// IsError reports whether the Result represents a failed invocation.
func (r Result) IsError() bool { return r.Err != nil }

// Tool is the minimal, synchronous, blocking unit of capability the tool
// loop can invoke. Call must never itself drive another LLM inference; it is
// a leaf computation from the loop's point of view.
type Tool interface {
	Definition() Definition
	Call(ctx context.Context, argumentsJSON json.RawMessage) Result
}

// Func adapts a plain function into a Tool, for small ad-hoc tools that do
// not warrant a dedicated type.
type Func struct {
	Def  Definition
	Fn   func(ctx context.Context, argumentsJSON json.RawMessage) Result
}

// Definition implements Tool.
func (f Func) Definition() Definition { return f.Def }

// Call implements Tool.
func (f Func) Call(ctx context.Context, argumentsJSON json.RawMessage) Result {
	return f.Fn(ctx, argumentsJSON)
}
