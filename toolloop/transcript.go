package toolloop

import "github.com/agentrun/core/conversation"

// TranscriptEntry is one flattened, JSON-friendly record of a History
// message, suitable for audit export or cross-provider replay without
// leaking this package's internal types.
type TranscriptEntry struct {
	Role          string
	Content       string
	ToolCallNames []string
	ToolCallID    string
	ToolName      string
}

// Transcript renders history as an ordered, flattened export.
func Transcript(history conversation.History) []TranscriptEntry {
	out := make([]TranscriptEntry, 0, len(history))
	for _, m := range history {
		entry := TranscriptEntry{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			ToolName:   m.ToolName,
		}
		for _, tc := range m.ToolCalls {
			entry.ToolCallNames = append(entry.ToolCallNames, tc.Name)
		}
		out = append(out, entry)
	}
	return out
}
