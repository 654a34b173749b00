package toolloop

import "github.com/agentrun/core/tool"

// toolSet is the driver's availableTools: an ordered, name-deduplicated
// collection. A name collision keeps the *last*-registered instance, per
// spec's tool registration rule, and is recorded in DuplicateNames. Only
// this package can call DuplicateNames: Run neither logs collisions nor
// reports them in its Result, so no warning is emitted for them.
type toolSet struct {
	order []string
	byN   map[string]tool.Tool
	dupes []string
}

func newToolSet(initial []tool.Tool) *toolSet {
	s := &toolSet{byN: make(map[string]tool.Tool)}
	s.addAll(initial)
	return s
}

// addAll inserts ts, returning the names that were newly added (i.e.
// excluding names that already existed and were merely replaced).
func (s *toolSet) addAll(ts []tool.Tool) []string {
	var added []string
	for _, t := range ts {
		if t == nil {
			continue
		}
		name := t.Definition().Name
		if _, exists := s.byN[name]; exists {
			s.dupes = append(s.dupes, name)
			s.byN[name] = t
			continue
		}
		s.byN[name] = t
		s.order = append(s.order, name)
		added = append(added, name)
	}
	return added
}

func (s *toolSet) remove(name string) {
	delete(s.byN, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *toolSet) byName(name string) (tool.Tool, bool) {
	t, ok := s.byN[name]
	return t, ok
}

func (s *toolSet) list() []tool.Tool {
	out := make([]tool.Tool, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.byN[n])
	}
	return out
}

func (s *toolSet) names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// DuplicateNames returns the tool names that were registered more than once
// during this set's lifetime, in the order collisions occurred.
func (s *toolSet) DuplicateNames() []string { return s.dupes }
