package toolloop

import "fmt"

// ToolNotFound reports that the model requested a tool name not present in
// the current availableTools set. Unlike an ordinary tool execution
// failure, this terminates the loop: a missing tool is a driver-level
// contract violation, not something the next iteration can route around.
type ToolNotFound struct {
	Name  string
	Known []string
}

// Error implements the error interface.
func (e *ToolNotFound) Error() string {
	return fmt.Sprintf("tool loop: unknown tool %q (known: %v)", e.Name, e.Known)
}

// MaxIterationsExceeded reports that the loop ran Max iterations without the
// model returning a final, tool-call-free assistant message.
type MaxIterationsExceeded struct {
	Max int
}

// Error implements the error interface.
func (e *MaxIterationsExceeded) Error() string {
	return fmt.Sprintf("tool loop: exceeded max iterations (%d)", e.Max)
}
