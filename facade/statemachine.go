package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agentrun/core/tool"
)

// StateHolder tracks the current state of a single StateMachineTool
// invocation scope (typically one per run).
type StateHolder struct {
	mu    sync.Mutex
	state string
}

// NewStateHolder constructs a StateHolder pinned to initialState.
func NewStateHolder(initialState string) *StateHolder {
	return &StateHolder{state: initialState}
}

// Current returns the current state.
func (h *StateHolder) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *StateHolder) transition(to string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = to
}

// Transition describes a state change fired when a tool succeeds.
type Transition struct {
	Tool string
	From string
	To   string
}

// stateMachineMember is one tool registered into a StateMachineTool,
// together with the states it's visible in and the transition it fires (if
// any) on success.
type stateMachineMember struct {
	tool    tool.Tool
	states  map[string]bool // empty means "global": visible in every state
	global  bool
	fromTo  map[string]string // from-state -> to-state, keyed per state it applies in
}

// StateMachineTool is a façade over a set of tools whose visibility and,
// optionally, transitions are scoped to a named conversation state.
type StateMachineTool struct {
	holder  *StateHolder
	members []*stateMachineMember
}

// NewStateMachineTool constructs a StateMachineTool pinned to a
// StateHolder starting at initialState.
func NewStateMachineTool(initialState string) *StateMachineTool {
	return &StateMachineTool{holder: NewStateHolder(initialState)}
}

// Holder returns the underlying StateHolder, so callers can inspect or
// (rarely) force the current state.
func (s *StateMachineTool) Holder() *StateHolder { return s.holder }

// Register scopes t to the given states. If states is empty, t is global
// and available regardless of the current state.
func (s *StateMachineTool) Register(t tool.Tool, states ...string) *StateMachineTool {
	m := &stateMachineMember{tool: t, states: map[string]bool{}, global: len(states) == 0}
	for _, st := range states {
		m.states[st] = true
	}
	s.members = append(s.members, m)
	return s
}

// RegisterWithTransition scopes t to fromState and declares that, on
// success, the state machine moves to toState.
func (s *StateMachineTool) RegisterWithTransition(t tool.Tool, fromState, toState string) *StateMachineTool {
	m := &stateMachineMember{
		tool:   t,
		states: map[string]bool{fromState: true},
		fromTo: map[string]string{fromState: toState},
	}
	s.members = append(s.members, m)
	return s
}

func (m *stateMachineMember) visibleIn(state string) bool {
	return m.global || m.states[state]
}

func (m *stateMachineMember) availableStates() []string {
	if m.global {
		return []string{"*"}
	}
	out := make([]string, 0, len(m.states))
	for st := range m.states {
		out = append(out, st)
	}
	sort.Strings(out)
	return out
}

// AvailableTools returns the tools visible in the current state, each
// wrapped so its Definition is augmented with "Available in:" and
// "Transitions to:" notes and its Call fires the declared transition on
// success.
func (s *StateMachineTool) AvailableTools() []tool.Tool {
	current := s.holder.Current()
	var out []tool.Tool
	for _, m := range s.members {
		if !m.visibleIn(current) {
			continue
		}
		out = append(out, &scopedTool{member: m, holder: s.holder})
	}
	return out
}

// Call dispatches name in the current state. Returns Result.Error without
// changing state if name is not registered for the current state.
func (s *StateMachineTool) Call(ctx context.Context, name string, argumentsJSON json.RawMessage) tool.Result {
	current := s.holder.Current()
	for _, m := range s.members {
		if m.tool.Definition().Name != name {
			continue
		}
		if !m.visibleIn(current) {
			return tool.ErrorResult(fmt.Errorf(
				"tool %s not available in state %s; available: %s",
				name, current, strings.Join(s.availableNames(current), ", "),
			))
		}
		st := &scopedTool{member: m, holder: s.holder}
		return st.Call(ctx, argumentsJSON)
	}
	return tool.ErrorResult(fmt.Errorf(
		"tool %s not available in state %s; available: %s",
		name, current, strings.Join(s.availableNames(current), ", "),
	))
}

func (s *StateMachineTool) availableNames(state string) []string {
	var names []string
	for _, m := range s.members {
		if m.visibleIn(state) {
			names = append(names, m.tool.Definition().Name)
		}
	}
	return names
}

// scopedTool adapts a stateMachineMember into tool.Tool, firing its
// transition (if any, for the state active at call time) on success.
type scopedTool struct {
	member *stateMachineMember
	holder *StateHolder
}

// Definition implements tool.Tool, augmenting the description with state
// scoping and transition information.
func (s *scopedTool) Definition() tool.Definition {
	def := s.member.tool.Definition()
	def.Description = strings.TrimRight(def.Description, " ") +
		fmt.Sprintf("\n\nAvailable in: %s", strings.Join(s.member.availableStates(), ", "))
	if len(s.member.fromTo) > 0 {
		for from, to := range s.member.fromTo {
			def.Description += fmt.Sprintf("\nTransitions to: %s (from %s)", to, from)
		}
	}
	return def
}

// Call implements tool.Tool.
func (s *scopedTool) Call(ctx context.Context, argumentsJSON json.RawMessage) tool.Result {
	current := s.holder.Current()
	result := s.member.tool.Call(ctx, argumentsJSON)
	if result.IsError() {
		return result
	}
	if to, ok := s.member.fromTo[current]; ok {
		s.holder.transition(to)
	}
	return result
}
