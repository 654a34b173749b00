// Package events defines the observability contract for the agent runtime
// and an in-process fan-out Bus that publishes
// those events to registered subscribers.
package events

import (
	"context"
	"sync"
	"time"
)

// Kind identifies the category of a published Event.
type Kind string

const (
	// KindLlmRequest is emitted immediately before a SingleLlmCaller.Call invocation.
	KindLlmRequest Kind = "llm_request"
	// KindLlmResponse is emitted after a SingleLlmCaller.Call invocation returns.
	KindLlmResponse Kind = "llm_response"
	// KindToolCall is emitted after a tool dispatch completes (success or error).
	KindToolCall Kind = "tool_call"
	// KindToolsInjected is emitted when a ToolInjectionStrategy adds tools to availableTools.
	KindToolsInjected Kind = "tools_injected"
	// KindAwaitableBound is emitted when an Awaitable is bound onto the blackboard.
	KindAwaitableBound Kind = "awaitable_bound"
	// KindReplanRequested is emitted when a tool raises ReplanRequested.
	KindReplanRequested Kind = "replan_requested"
)

type (
	// Event is the envelope published on the Bus. Exactly one of the typed
	// payload fields is populated, selected by Kind.
	Event struct {
		Kind      Kind
		At        time.Time
		RunID     string
		LlmReq    *LlmRequestEvent
		LlmResp   *LlmResponseEvent
		ToolCall  *ToolCallEvent
		Injected  *ToolsInjectedEvent
		Awaitable *AwaitableBoundEvent
		Replan    *ReplanRequestedEvent
	}

	// LlmRequestEvent precedes a single LLM inference.
	LlmRequestEvent struct {
		AgentProcessID       string
		InteractionID        string
		ModelName            string
		PromptTokensEstimate *int
	}

	// LlmResponseEvent follows a single LLM inference.
	LlmResponseEvent struct {
		AgentProcessID   string
		InteractionID    string
		ModelName        string
		PromptTokens     *int
		CompletionTokens *int
		DurationMs       int64
	}

	// ToolCallEvent reports the outcome of a single local tool dispatch. ArgsDigest
	// is a short, non-reversible fingerprint of the tool arguments (never the raw
	// payload), so events remain safe to forward to generic observability sinks.
	ToolCallEvent struct {
		ToolName   string
		ArgsDigest string
		ResultKind string // "text" | "artifact" | "error"
	}

	// ToolsInjectedEvent reports tools newly added to availableTools by a
	// ToolInjectionStrategy after a tool dispatch.
	ToolsInjectedEvent struct {
		Strategy string
		NewTools []string
	}

	// AwaitableBoundEvent reports an Awaitable newly bound on the blackboard.
	AwaitableBoundEvent struct {
		AwaitableID string
	}

	// ReplanRequestedEvent reports a tool-originated replan signal.
	ReplanRequestedEvent struct {
		Reason string
	}
)

type (
	// Bus publishes runtime events to registered subscribers in a fan-out
	// pattern. The bus is thread-safe and supports concurrent Publish,
	// Register, and Close operations.
	//
	// Events are delivered synchronously in the publisher's goroutine, and
	// iteration stops at the first subscriber error, so a subscriber doing
	// critical work (e.g., persistence) can halt a run on failure.
	Bus interface {
		Publish(ctx context.Context, event Event) error
		Register(sub Subscriber) (Subscription, error)
	}

	// Subscriber reacts to published runtime events.
	Subscriber interface {
		HandleEvent(ctx context.Context, event Event) error
	}

	// SubscriberFunc adapts a function to the Subscriber interface.
	SubscriberFunc func(ctx context.Context, event Event) error

	// Subscription represents an active registration on a Bus. Close is
	// idempotent and thread-safe.
	Subscription interface {
		Close() error
	}

	bus struct {
		mu          sync.RWMutex
		subscribers map[*subscription]Subscriber
	}

	subscription struct {
		bus  *bus
		once sync.Once
	}
)

// HandleEvent calls f.
func (f SubscriberFunc) HandleEvent(ctx context.Context, event Event) error { return f(ctx, event) }

// NewBus constructs an in-memory, synchronous fan-out event bus.
func NewBus() Bus {
	return &bus{subscribers: make(map[*subscription]Subscriber)}
}

// Publish delivers event to every currently registered subscriber,
// stopping at the first error. Subscribers are held in a map, so the order
// in which they receive an event is not defined and is not registration
// order.
func (b *bus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()
	for _, sub := range subs {
		if err := sub.HandleEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Register adds a subscriber to the bus and returns a Subscription that can
// be closed to unregister it.
func (b *bus) Register(sub Subscriber) (Subscription, error) {
	s := &subscription{bus: b}
	b.mu.Lock()
	b.subscribers[s] = sub
	b.mu.Unlock()
	return s, nil
}

// Close unregisters the subscription. Safe to call more than once.
func (s *subscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subscribers, s)
		s.bus.mu.Unlock()
	})
	return nil
}
