package toolloop

import (
	"sync"

	"github.com/agentrun/core/conversation"
	"github.com/agentrun/core/facade"
	"github.com/agentrun/core/tool"
)

// Injection is the concrete facade.Injector the driver hands to every
// progressive facade tool (UnfoldingTool) constructed for a single Run.
// Facade tools record their reveal here synchronously, in the same
// goroutine, during Call; the driver drains the recording immediately after
// dispatching that tool call, before moving to the next call in the batch —
// matching the "strategy evaluation happens after each dispatch, not after
// the batch" guarantee.
type Injection struct {
	mu      sync.Mutex
	pending []facadeReveal
}

type facadeReveal struct {
	facadeName   string
	revealed     []tool.Tool
	removeFacade bool
}

// NewInjection constructs an empty Injection, ready to be passed to both the
// facade tool constructors for a run and to Run itself.
func NewInjection() *Injection { return &Injection{} }

// Inject implements facade.Injector.
func (i *Injection) Inject(facadeName string, revealed []tool.Tool, removeFacade bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.pending = append(i.pending, facadeReveal{facadeName: facadeName, revealed: revealed, removeFacade: removeFacade})
}

// drain returns and clears all recorded reveals.
func (i *Injection) drain() []facadeReveal {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.pending
	i.pending = nil
	return out
}

var _ facade.Injector = (*Injection)(nil)

// LastToolCall describes the most recently dispatched tool call, passed to
// every ToolInjectionStrategy after that dispatch completes.
type LastToolCall struct {
	Name         string
	InputJSON    string
	ResultJSON   string
	ResultObject any // decoded ResultJSON when the tool's result is structured JSON; nil otherwise
}

// StrategyContext is the context a ToolInjectionStrategy receives after each
// tool dispatch.
type StrategyContext struct {
	History      conversation.History // snapshot at the time of this dispatch
	CurrentTools []tool.Tool
	LastToolCall LastToolCall
	IterCount    int
}

// ToolInjectionStrategy is a registered extensibility hook invoked after
// every tool dispatch (not after the whole batch), letting application code
// grow availableTools based on what just happened — independent of, and in
// addition to, facade-driven reveals.
type ToolInjectionStrategy interface {
	AfterDispatch(ctx StrategyContext) []tool.Tool
}

// ToolInjectionStrategyFunc adapts a plain function to ToolInjectionStrategy.
type ToolInjectionStrategyFunc func(ctx StrategyContext) []tool.Tool

// AfterDispatch implements ToolInjectionStrategy.
func (f ToolInjectionStrategyFunc) AfterDispatch(ctx StrategyContext) []tool.Tool { return f(ctx) }
