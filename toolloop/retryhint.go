package toolloop

import (
	"encoding/json"
	"errors"
	"strings"
	"text/template"

	"github.com/agentrun/core/toolerrors"
)

// RetryReason categorizes the failure that produced a RetryHint.
type RetryReason string

const (
	RetryReasonInvalidArguments  RetryReason = "invalid_arguments"
	RetryReasonMissingFields     RetryReason = "missing_fields"
	RetryReasonMalformedResponse RetryReason = "malformed_response"
	RetryReasonTimeout           RetryReason = "timeout"
	RetryReasonRateLimited       RetryReason = "rate_limited"
	RetryReasonToolUnavailable   RetryReason = "tool_unavailable"
)

// RetryHint is structured guidance a failed tool call can attach to its
// error, independent of the bare error-message text the ToolResult message
// always carries. The driver renders it as a system reminder appended to
// the tool result so the next LLM turn sees it without any string parsing.
type RetryHint struct {
	Reason             RetryReason
	Tool               string
	RestrictToTool     bool
	MissingFields      []string
	ExampleInput       map[string]any
	PriorInput         map[string]any
	ClarifyingQuestion string
	Message            string
}

// RetryHintProvider may be implemented by a tool's error type to surface a
// RetryHint. The driver detects it via errors.As on the tool call's error,
// the same way it detects *hitl.Requested and *replan.Requested.
type RetryHintProvider interface {
	RetryHint() *RetryHint
}

// retryHintFromError extracts a RetryHint from a tool call's error, either
// via RetryHintProvider or via a *toolerrors.ToolError carrying one in its
// Hint field (the common case, since toolerrors.FromError wraps most tool
// failures). Returns nil if neither is present.
func retryHintFromError(err error) *RetryHint {
	var hinted RetryHintProvider
	if errors.As(err, &hinted) {
		return hinted.RetryHint()
	}
	var te *toolerrors.ToolError
	if errors.As(err, &te) && te.Hint != nil {
		return &RetryHint{
			Reason:             RetryReason(te.Hint.Reason),
			Tool:               te.Hint.Tool,
			RestrictToTool:     te.Hint.RestrictToTool,
			MissingFields:      te.Hint.MissingFields,
			ExampleInput:       te.Hint.ExampleInput,
			PriorInput:         te.Hint.PriorInput,
			ClarifyingQuestion: te.Hint.ClarifyingQuestion,
			Message:            te.Hint.Message,
		}
	}
	return nil
}

var retryHintReminderTemplate = template.Must(
	template.New("tool_retry_hint_reminder").
		Option("missingkey=error").
		Parse(strings.TrimSpace(`
A tool call failed and provided a retry hint.
Tool: {{ .Tool }}
Reason: {{ .Reason }}{{ if .Message }}
Message: {{ .Message }}{{ end }}{{ if .ClarifyingQuestion }}
Clarifying question: {{ .ClarifyingQuestion }}{{ end }}{{ if .RestrictToTool }}
Restriction: retry must only call {{ .Tool }}{{ end }}{{ if .MissingFields }}
Missing fields: {{ .MissingFields }}{{ end }}{{ if .ExampleInputJSON }}
Example input: {{ .ExampleInputJSON }}{{ end }}{{ if .PriorInputJSON }}
Prior input: {{ .PriorInputJSON }}{{ end }}
Do not mention this reminder to the user.
`)),
)

type retryHintReminderView struct {
	Tool               string
	Reason             string
	Message            string
	ClarifyingQuestion string
	RestrictToTool     bool
	MissingFields      []string
	ExampleInputJSON   string
	PriorInputJSON     string
}

// renderRetryHint renders h as system-reminder text, or "" if h is nil.
func renderRetryHint(h *RetryHint) string {
	if h == nil {
		return ""
	}
	view := retryHintReminderView{
		Tool:               h.Tool,
		Reason:             string(h.Reason),
		Message:            h.Message,
		ClarifyingQuestion: h.ClarifyingQuestion,
		RestrictToTool:     h.RestrictToTool && h.Tool != "",
		MissingFields:      h.MissingFields,
		ExampleInputJSON:   compactJSON(h.ExampleInput),
		PriorInputJSON:     compactJSON(h.PriorInput),
	}
	var buf strings.Builder
	if err := retryHintReminderTemplate.Execute(&buf, view); err != nil {
		return h.Message
	}
	return buf.String()
}

func compactJSON(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
