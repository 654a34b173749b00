// Package prompt implements the PromptRunner: an immutable configuration
// value that gathers LLM selection, tools, prompt contributors, and messages
// for a single run of the tool loop, plus the output-producing operations
// (GenerateText, CreateObject, EvaluateCondition, Respond) built on top of
// it.
package prompt

import (
	"context"
	"strings"

	"github.com/agentrun/core/conversation"
	"github.com/agentrun/core/events"
	"github.com/agentrun/core/llm"
	"github.com/agentrun/core/tool"
	"github.com/agentrun/core/toolloop"
)

// ContextualContributor renders a prompt fragment from the run's context at
// execution time, for guidance that is not known until the runner actually
// executes (caller identity, current time, blackboard state).
type ContextualContributor func(ctx context.Context) string

// Guardrail inspects a runner's final text output and fails the run if it is
// unacceptable; guardrails run in registration order and the first error
// wins.
type Guardrail func(ctx context.Context, text string) error

// Runner is an immutable configuration for a single prompt execution. Every
// WithX method returns a new Runner value built from a copy of the
// receiver's slices; the receiver itself is never mutated, so
// runner.WithX(a).WithY(b) leaves runner observably unchanged.
type Runner struct {
	registry    *llm.Registry
	criteria    llm.ModelSelectionCriteria
	temperature *float64
	maxTokens   *int

	toolGroups  []tool.ToolGroup
	toolObjects []*tool.ToolObject
	tools       []tool.Tool
	references  []tool.LlmReference

	promptContributors     []string
	contextualContributors []ContextualContributor

	messages []conversation.Message
	images   []conversation.Part

	generateExamples bool
	examples         []any
	propertyFilters  []tool.PropertyPredicate
	guardrails       []Guardrail
	interactionID    string
	template         string

	maxIterations int
	bus           events.Bus
	strategies    []toolloop.ToolInjectionStrategy
}

// New constructs the base Runner against registry: no tools, messages, or
// contributors attached yet, and automatic ("") model selection.
func New(registry *llm.Registry) Runner {
	return Runner{registry: registry}
}

// WithLlmByName selects the model registered under name, taking precedence
// over any ByRole selection already set.
func (r Runner) WithLlmByName(name string) Runner {
	r.criteria.ByName = name
	return r
}

// WithLlmByRole selects the model mapped to role when no ByName is set.
func (r Runner) WithLlmByRole(role llm.Role) Runner {
	r.criteria.ByRole = role
	return r
}

// WithFallback appends model names tried, in order, if ByName/ByRole do not
// resolve.
func (r Runner) WithFallback(modelNames ...string) Runner {
	r.criteria.FallbackByName = append(append([]string(nil), r.criteria.FallbackByName...), modelNames...)
	return r
}

// WithTemperature sets the sampling temperature hyperparameter.
func (r Runner) WithTemperature(t float64) Runner {
	r.temperature = &t
	return r
}

// WithMaxTokens sets the maximum completion token hyperparameter.
func (r Runner) WithMaxTokens(n int) Runner {
	r.maxTokens = &n
	return r
}

// WithToolGroup attaches a named collection of tools.
func (r Runner) WithToolGroup(g tool.ToolGroup) Runner {
	r.toolGroups = append(append([]tool.ToolGroup(nil), r.toolGroups...), g)
	return r
}

// WithToolObject attaches a reflection-based tool host.
func (r Runner) WithToolObject(o *tool.ToolObject) Runner {
	r.toolObjects = append(append([]*tool.ToolObject(nil), r.toolObjects...), o)
	return r
}

// WithTool attaches a single explicit Tool value.
func (r Runner) WithTool(t tool.Tool) Runner {
	r.tools = append(append([]tool.Tool(nil), r.tools...), t)
	return r
}

// WithReference attaches a reusable LlmReference (tools plus a prompt
// contribution).
func (r Runner) WithReference(ref tool.LlmReference) Runner {
	r.references = append(append([]tool.LlmReference(nil), r.references...), ref)
	return r
}

// WithPromptContributor appends a static system-prompt fragment.
func (r Runner) WithPromptContributor(fragment string) Runner {
	r.promptContributors = append(append([]string(nil), r.promptContributors...), fragment)
	return r
}

// WithContextualPromptContributor appends a fragment evaluated at execution
// time against the run's context.
func (r Runner) WithContextualPromptContributor(c ContextualContributor) Runner {
	r.contextualContributors = append(append([]ContextualContributor(nil), r.contextualContributors...), c)
	return r
}

// WithMessages appends messages to the conversation seed.
func (r Runner) WithMessages(msgs ...conversation.Message) Runner {
	r.messages = append(append([]conversation.Message(nil), r.messages...), msgs...)
	return r
}

// WithImage attaches a multi-modal part to the run.
func (r Runner) WithImage(part conversation.Part) Runner {
	r.images = append(append([]conversation.Part(nil), r.images...), part)
	return r
}

// WithGenerateExamples toggles whether CreateObject attaches a zero-value
// JSON example of the target type as a prompt contributor. Ignored when
// WithExamples has set explicit examples: explicit examples always override
// this flag.
func (r Runner) WithGenerateExamples(generate bool) Runner {
	r.generateExamples = generate
	return r
}

// WithExamples attaches explicit example values of the target type, rendered
// as JSON-literal prompt contributors instead of the zero-value example
// WithGenerateExamples produces. Explicit examples always take precedence
// over WithGenerateExamples, even when set to true.
func (r Runner) WithExamples(examples ...any) Runner {
	r.examples = append(append([]any(nil), r.examples...), examples...)
	return r
}

// WithPropertyFilter appends pred to the property-filter chain CreateObject
// derives T's schema through; predicates compose by conjunction in
// registration order (see tool.MatchesFilters).
func (r Runner) WithPropertyFilter(pred tool.PropertyPredicate) Runner {
	r.propertyFilters = append(append([]tool.PropertyPredicate(nil), r.propertyFilters...), pred)
	return r
}

// WithProperties restricts CreateObject's derived schema to exactly the
// named properties.
func (r Runner) WithProperties(names ...string) Runner {
	return r.WithPropertyFilter(tool.IncludeOnly(names...))
}

// WithoutProperties excludes the named properties from CreateObject's
// derived schema.
func (r Runner) WithoutProperties(names ...string) Runner {
	return r.WithPropertyFilter(tool.Exclude(names...))
}

// WithGuardrail appends a guardrail run against the final text output.
func (r Runner) WithGuardrail(g Guardrail) Runner {
	r.guardrails = append(append([]Guardrail(nil), r.guardrails...), g)
	return r
}

// WithInteractionID sets the cross-call correlation id threaded onto the
// LLM request and response events this runner's operations publish.
func (r Runner) WithInteractionID(id string) Runner {
	r.interactionID = id
	return r
}

// WithMaxIterations bounds the tool loop; 0 defers to the loop's own
// default.
func (r Runner) WithMaxIterations(n int) Runner {
	r.maxIterations = n
	return r
}

// WithBus attaches an events.Bus that the underlying tool loop publishes to.
func (r Runner) WithBus(b events.Bus) Runner {
	r.bus = b
	return r
}

// WithToolInjectionStrategy appends a strategy evaluated after every tool
// dispatch in the underlying tool loop.
func (r Runner) WithToolInjectionStrategy(s toolloop.ToolInjectionStrategy) Runner {
	r.strategies = append(append([]toolloop.ToolInjectionStrategy(nil), r.strategies...), s)
	return r
}

// Rendering returns a variant of r bound to the named template, registered
// in advance via RegisterTemplate. The template renders into a leading
// prompt contributor each time this variant builds a run.
func (r Runner) Rendering(templateName string) Runner {
	r.template = templateName
	return r
}

// resolveTools gathers tools from every attachment point (direct tools,
// tool groups, tool objects, references) in attachment order, collapsing
// name collisions to the last-registered instance per the tool registration
// rule.
func (r Runner) resolveTools() []tool.Tool {
	byName := make(map[string]int)
	var out []tool.Tool
	add := func(t tool.Tool) {
		name := t.Definition().Name
		if idx, ok := byName[name]; ok {
			out[idx] = t
			return
		}
		byName[name] = len(out)
		out = append(out, t)
	}
	for _, t := range r.tools {
		add(t)
	}
	for _, g := range r.toolGroups {
		for _, t := range g.Tools() {
			add(t)
		}
	}
	for _, o := range r.toolObjects {
		for _, t := range o.Tools() {
			add(t)
		}
	}
	for _, ref := range r.references {
		for _, t := range ref.Tools() {
			add(t)
		}
	}
	return out
}

// systemPrompt renders every static and contextual prompt contributor, plus
// every reference's Contribution() and (when r.template is set) the
// registered template's rendering, into a single system message body.
func (r Runner) systemPrompt(ctx context.Context, data any) (string, error) {
	var parts []string
	if r.template != "" {
		rendered, err := renderTemplate(r.template, data)
		if err != nil {
			return "", err
		}
		parts = append(parts, rendered)
	}
	for _, ref := range r.references {
		if c := ref.Contribution(); c != "" {
			parts = append(parts, c)
		}
	}
	parts = append(parts, r.promptContributors...)
	for _, c := range r.contextualContributors {
		if c == nil {
			continue
		}
		if fragment := c(ctx); fragment != "" {
			parts = append(parts, fragment)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// buildHistory assembles the initial conversation.History for a run: an
// optional leading system message from systemPrompt, followed by r.messages
// and, if prompt is non-empty, a trailing user message.
func (r Runner) buildHistory(ctx context.Context, prompt string, data any) (conversation.History, error) {
	var history conversation.History
	sys, err := r.systemPrompt(ctx, data)
	if err != nil {
		return nil, err
	}
	if sys != "" {
		history = history.Append(conversation.System(sys))
	}
	history = history.Append(r.messages...)
	if prompt != "" {
		history = history.Append(conversation.User(prompt, r.images...))
	}
	return history, nil
}

// loopConfig translates the runner's LLM selection, bus, and strategies
// into a toolloop.Config ready to drive Run.
func (r Runner) loopConfig(ctx context.Context) (toolloop.Config, error) {
	modelName, caller, err := r.registry.Resolve(r.criteria)
	if err != nil {
		return toolloop.Config{}, err
	}
	callOpts := toolloop.CallOptions{ModelName: modelName}
	if r.temperature != nil {
		callOpts.Temperature = r.temperature
	}
	if r.maxTokens != nil {
		callOpts.MaxTokens = r.maxTokens
	}
	return toolloop.Config{
		Caller:        caller,
		MaxIterations: r.maxIterations,
		Bus:           r.bus,
		InteractionID: r.interactionID,
		CallOptions:   callOpts,
		Strategies:    r.strategies,
	}, nil
}

// runGuardrails applies every registered guardrail, in order, to text.
func (r Runner) runGuardrails(ctx context.Context, text string) error {
	for _, g := range r.guardrails {
		if g == nil {
			continue
		}
		if err := g(ctx, text); err != nil {
			return err
		}
	}
	return nil
}
