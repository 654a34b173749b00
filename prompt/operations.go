package prompt

import (
	"context"
	"encoding/json"

	"github.com/agentrun/core/conversation"
	"github.com/agentrun/core/toolloop"
	"github.com/agentrun/core/typedobject"
)

// GenerateText runs the tool loop to completion against a fresh history
// seeded with r's system prompt, messages, and prompt, then returns the
// terminal assistant message's text.
func (r Runner) GenerateText(ctx context.Context, userPrompt string) (string, error) {
	history, err := r.buildHistory(ctx, userPrompt, nil)
	if err != nil {
		return "", err
	}
	cfg, err := r.loopConfig(ctx)
	if err != nil {
		return "", err
	}
	text, err := typedobject.Create[string](ctx, cfg, history, r.resolveTools(), typedobject.Options{})
	if err != nil {
		return "", err
	}
	if err := r.runGuardrails(ctx, text); err != nil {
		return "", err
	}
	return text, nil
}

// Respond runs the tool loop to completion and returns the terminal
// assistant message itself, rather than just its text, so callers that need
// the full message (e.g. to append it to a longer-lived conversation) don't
// have to reconstruct it.
func (r Runner) Respond(ctx context.Context, userPrompt string) (conversation.Message, error) {
	history, err := r.buildHistory(ctx, userPrompt, nil)
	if err != nil {
		return conversation.Message{}, err
	}
	cfg, err := r.loopConfig(ctx)
	if err != nil {
		return conversation.Message{}, err
	}
	result, err := toolloop.Run(ctx, cfg, history, r.resolveTools())
	if err != nil {
		return conversation.Message{}, err
	}
	if err := r.runGuardrails(ctx, result.FinalMessage.Content); err != nil {
		return conversation.Message{}, err
	}
	return result.FinalMessage, nil
}

// CreateObject drives the tool loop with schema-guided prompting for T and
// returns a typed value, or fails with *typedobject.InvalidLlmReturnFormat /
// *typedobject.InvalidLlmReturnType. Examples are attached as trailing
// prompt contributors before the schema is generated: explicit examples set
// via WithExamples always take precedence over r.generateExamples, which
// falls back to a single zero-value JSON example of T; when neither explicit
// examples nor r.generateExamples is set, nothing is attached.
func CreateObject[T any](ctx context.Context, r Runner, userPrompt string) (T, error) {
	var zero T
	r = r.withExampleContributors(zero)
	history, err := r.buildHistory(ctx, userPrompt, nil)
	if err != nil {
		return zero, err
	}
	cfg, err := r.loopConfig(ctx)
	if err != nil {
		return zero, err
	}
	return typedobject.Create[T](ctx, cfg, history, r.resolveTools(), typedobject.Options{Validate: true, PropertyFilters: r.propertyFilters})
}

// CreateObjectIfPossible behaves like CreateObject but never returns
// InvalidLlmReturnFormat/InvalidLlmReturnType as a Go error: see
// typedobject.CreateIfPossible for the exact boundary between a captured
// "could not answer" outcome and a propagated structural error.
func CreateObjectIfPossible[T any](ctx context.Context, r Runner, userPrompt string) (typedobject.Outcome[T], error) {
	var zero T
	r = r.withExampleContributors(zero)
	history, err := r.buildHistory(ctx, userPrompt, nil)
	if err != nil {
		return typedobject.Outcome[T]{}, err
	}
	cfg, err := r.loopConfig(ctx)
	if err != nil {
		return typedobject.Outcome[T]{}, err
	}
	return typedobject.CreateIfPossible[T](ctx, cfg, history, r.resolveTools(), typedobject.Options{Validate: true, PropertyFilters: r.propertyFilters})
}

// withExampleContributors attaches example prompt contributors for target
// value zero following the override rule: explicit examples (WithExamples)
// always win over r.generateExamples, rendered in registration order; only
// when no explicit examples are set does r.generateExamples fall back to a
// single zero-value JSON example.
func (r Runner) withExampleContributors(zero any) Runner {
	if len(r.examples) > 0 {
		for _, ex := range r.examples {
			if raw, err := json.Marshal(ex); err == nil {
				r = r.WithPromptContributor("Example of the expected shape: " + string(raw))
			}
		}
		return r
	}
	if r.generateExamples {
		if raw, err := json.Marshal(zero); err == nil {
			r = r.WithPromptContributor("Example of the expected shape: " + string(raw))
		}
	}
	return r
}

// conditionJudgement is the structured shape the LLM is asked to produce for
// EvaluateCondition.
type conditionJudgement struct {
	Result      bool    `json:"result"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation,omitempty"`
}

// EvaluateCondition asks the LLM to judge condition against contextText,
// returning true only when the LLM both affirms the condition and reports
// confidence at or above confidenceThreshold (default 0.8 when <= 0).
func EvaluateCondition(ctx context.Context, r Runner, condition, contextText string, confidenceThreshold float64) (bool, error) {
	if confidenceThreshold <= 0 {
		confidenceThreshold = 0.8
	}
	prompt := "Evaluate whether the following condition holds, given the context below.\n\n" +
		"Condition: " + condition + "\n\nContext:\n" + contextText + "\n\n" +
		"Respond with your judgement, a confidence between 0 and 1, and a brief explanation."

	judgement, err := CreateObject[conditionJudgement](ctx, r, prompt)
	if err != nil {
		return false, err
	}
	return judgement.Result && judgement.Confidence >= confidenceThreshold, nil
}
