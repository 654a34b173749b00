// Package process implements AgentProcess: the durable execution shell that
// runs the tool loop as an engine workflow so its two suspension points
// (waiting on an LLM response, waiting on a blocking tool call) survive a
// worker restart instead of only living in one process's memory.
package process

import (
	"fmt"

	"github.com/agentrun/core/blackboard"
	"github.com/agentrun/core/tool"
	"github.com/agentrun/core/toolloop"
)

// Registry binds the process-wide, non-serializable collaborators an
// AgentProcess's activities call through to: the LLM caller and the tool
// implementations. It is constructed once at startup and shared by every
// workflow execution; only its keys (tool/model names) ever cross the
// workflow/activity boundary.
type Registry struct {
	Caller toolloop.Caller
	Tools  map[string]tool.Tool
	Board  *blackboard.Blackboard
}

// NewRegistry builds a Registry from a caller and a flat tool list, indexing
// tools by their declared name.
func NewRegistry(caller toolloop.Caller, tools []tool.Tool, board *blackboard.Blackboard) *Registry {
	byName := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		byName[t.Definition().Name] = t
	}
	return &Registry{Caller: caller, Tools: byName, Board: board}
}

func (r *Registry) tool(name string) (tool.Tool, error) {
	t, ok := r.Tools[name]
	if !ok {
		return nil, fmt.Errorf("process: tool %q not registered", name)
	}
	return t, nil
}
