// Package conversation defines the provider-agnostic message and tool-call
// types shared by the LLM gateway, the tool loop, and the prompt runner.
package conversation

// Role identifies the speaker for a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleToolResult Role = "tool_result"
	RoleSystem    Role = "system"
)

type (
	// Part is a multi-modal content block attached to a User message. The
	// zero set of parts means "text content only".
	Part interface{ isPart() }

	// ImagePart carries image bytes attached to a user message.
	ImagePart struct {
		MediaType string // e.g. "image/png"
		Bytes     []byte
	}

	// Message is a tagged union over the four message roles. Exactly one
	// constructor below should be used to build a Message; the exported
	// fields are public so call sites in this module can pattern-match
	// cheaply, but callers outside the package should prefer the
	// constructors to keep the union well-formed.
	Message struct {
		Role Role

		// Content is the textual content for User, Assistant, and System
		// messages, and the serialized tool result for ToolResult messages.
		Content string

		// Parts optionally augments a User message with non-text content.
		Parts []Part

		// ToolCalls is populated on Assistant messages that request tool
		// invocations. Empty means "final answer, no tool calls".
		ToolCalls []ToolCall

		// ToolCallID and ToolName identify which ToolCall a ToolResult
		// message answers; Content holds the serialized result.
		ToolCallID string
		ToolName   string
	}

	// ToolCall is a single tool invocation requested by the model.
	ToolCall struct {
		ID            string
		Name          string
		ArgumentsJSON string
	}
)

func (ImagePart) isPart() {}

// User constructs a User message, optionally with multi-modal parts.
func User(content string, parts ...Part) Message {
	return Message{Role: RoleUser, Content: content, Parts: parts}
}

// Assistant constructs an Assistant message, optionally requesting tool calls.
func Assistant(content string, toolCalls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: toolCalls}
}

// ToolResult constructs a ToolResult message referencing the tool call it answers.
func ToolResult(toolCallID, toolName, content string) Message {
	return Message{Role: RoleToolResult, ToolCallID: toolCallID, ToolName: toolName, Content: content}
}

// System constructs a System message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// History is an ordered, append-only sequence of messages. Tools never
// rewrite history directly; they only
// contribute new messages via the values the tool loop appends on their
// behalf.
type History []Message

// Append returns a new History with msgs appended, leaving the receiver
// untouched so callers that hold a reference to the prior slice keep seeing
// the prior state.
func (h History) Append(msgs ...Message) History {
	out := make(History, 0, len(h)+len(msgs))
	out = append(out, h...)
	out = append(out, msgs...)
	return out
}

// LastAssistant returns the most recent Assistant message and true, or the
// zero Message and false if none exists.
func (h History) LastAssistant() (Message, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Role == RoleAssistant {
			return h[i], true
		}
	}
	return Message{}, false
}
