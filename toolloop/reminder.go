package toolloop

import "strings"

// resultReminder wraps guidance text in the <system-reminder> tag convention
// so a model can distinguish platform-added guidance from the tool's own
// output, without exposing the tag to end users. A reminder already tagged
// is returned unchanged.
func resultReminder(text string) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return ""
	}
	if strings.Contains(t, "<system-reminder>") {
		return t
	}
	return "<system-reminder>" + t + "</system-reminder>"
}

// WithResultReminder appends reminder (wrapped in the <system-reminder>
// convention) to a tool result's text, e.g. to nudge the model toward using
// a newly revealed tool correctly. Returns content unchanged if reminder is
// empty.
func WithResultReminder(content, reminder string) string {
	wrapped := resultReminder(reminder)
	if wrapped == "" {
		return content
	}
	if content == "" {
		return wrapped
	}
	return content + "\n\n" + wrapped
}
