package tool

import (
	"context"
	"encoding/json"
)

// ToolGroup bundles a fixed set of Tools under a single PromptRunner
// attachment, so a caller can reuse a named collection (e.g. "billing
// tools") across many runners without re-listing each one.
type ToolGroup struct {
	Name  string
	tools []Tool
}

// NewToolGroup constructs a ToolGroup from a name and its member tools.
func NewToolGroup(name string, tools ...Tool) ToolGroup {
	return ToolGroup{Name: name, tools: append([]Tool(nil), tools...)}
}

// Tools returns the group's member tools.
func (g ToolGroup) Tools() []Tool { return g.tools }

// LlmReference describes a named, reusable capability surface that
// contributes both a system-prompt fragment and a set of tools to any
// PromptRunner it is attached to — the unit a multi-agent setup shares
// across runners instead of repeating the same tool/prompt wiring per agent.
type LlmReference struct {
	Name        string
	Description string
	// Notes is additional guidance folded into the prompt contribution,
	// e.g. usage caveats that do not belong in Description.
	Notes string
	// ToolPrefix, when non-empty, is applied ahead of each tool's own name
	// via PrefixNaming so tools from different references never collide.
	ToolPrefix string

	tools []Tool
}

// NewLlmReference constructs an LlmReference over a fixed set of tools,
// applying ToolPrefix (if any) to every tool's Definition.Name.
func NewLlmReference(name, description string, toolPrefix string, tools ...Tool) LlmReference {
	ref := LlmReference{Name: name, Description: description, ToolPrefix: toolPrefix}
	if toolPrefix == "" {
		ref.tools = append([]Tool(nil), tools...)
		return ref
	}
	naming := PrefixNaming{Prefix: toolPrefix}
	prefixed := make([]Tool, len(tools))
	for i, t := range tools {
		prefixed[i] = prefixedTool{inner: t, name: naming.Name(t.Definition().Name)}
	}
	ref.tools = prefixed
	return ref
}

// Tools returns the reference's (possibly prefixed) tools.
func (r LlmReference) Tools() []Tool { return r.tools }

// Contribution renders the reference's system-prompt fragment: its
// description followed by its notes, when present.
func (r LlmReference) Contribution() string {
	if r.Notes == "" {
		return r.Description
	}
	return r.Description + "\n\n" + r.Notes
}

// prefixedTool wraps a Tool to override its LLM-visible name without
// mutating the wrapped tool's own Definition.
type prefixedTool struct {
	inner Tool
	name  string
}

func (p prefixedTool) Definition() Definition {
	def := p.inner.Definition()
	def.Name = p.name
	return def
}

func (p prefixedTool) Call(ctx context.Context, argumentsJSON json.RawMessage) Result {
	return p.inner.Call(ctx, argumentsJSON)
}
