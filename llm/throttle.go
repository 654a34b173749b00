package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentrun/core/conversation"
	"github.com/agentrun/core/tool"
	"github.com/agentrun/core/toolloop"
)

// ThrottledCaller wraps a SingleLlmCaller with an adaptive, process-local
// tokens-per-minute budget: it blocks callers until capacity is available
// and halves its effective budget whenever the wrapped caller reports
// ErrRateLimited, recovering gradually on successful calls.
type ThrottledCaller struct {
	next SingleLlmCaller

	mu           sync.Mutex
	limiter      *rate.Limiter
	currentTPM   float64
	minTPM       float64
	maxTPM       float64
	recoveryRate float64
}

var _ toolloop.Caller = (*ThrottledCaller)(nil)

// NewThrottledCaller wraps next with an AIMD limiter budgeted at initialTPM
// tokens per minute, capped at maxTPM. When maxTPM is zero or less than
// initialTPM it is clamped to initialTPM.
func NewThrottledCaller(next SingleLlmCaller, initialTPM, maxTPM float64) *ThrottledCaller {
	if initialTPM <= 0 {
		initialTPM = 60000
	}
	if maxTPM <= 0 || maxTPM < initialTPM {
		maxTPM = initialTPM
	}
	minTPM := initialTPM * 0.1
	if minTPM < 1 {
		minTPM = 1
	}
	recoveryRate := initialTPM * 0.05
	if recoveryRate < 1 {
		recoveryRate = 1
	}
	return &ThrottledCaller{
		next:         next,
		limiter:      rate.NewLimiter(rate.Limit(initialTPM/60.0), int(initialTPM)),
		currentTPM:   initialTPM,
		minTPM:       minTPM,
		maxTPM:       maxTPM,
		recoveryRate: recoveryRate,
	}
}

// Call implements toolloop.Caller.
func (c *ThrottledCaller) Call(ctx context.Context, history conversation.History, tools []tool.Tool, opts toolloop.CallOptions) (conversation.Message, conversation.Usage, error) {
	if err := c.limiter.WaitN(ctx, estimateTokens(history)); err != nil {
		return conversation.Message{}, conversation.Usage{}, err
	}
	msg, usage, err := c.next.Call(ctx, history, tools, opts)
	c.observe(err)
	return msg, usage, err
}

func (c *ThrottledCaller) observe(err error) {
	if err == nil {
		c.probe()
		return
	}
	if errors.Is(err, ErrRateLimited) {
		c.backoff()
		return
	}
	if pe, ok := AsProviderError(err); ok && pe.Kind() == ProviderErrorKindRateLimited {
		c.backoff()
	}
}

func (c *ThrottledCaller) backoff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	newTPM := c.currentTPM * 0.5
	if newTPM < c.minTPM {
		newTPM = c.minTPM
	}
	c.setTPM(newTPM)
}

func (c *ThrottledCaller) probe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	newTPM := c.currentTPM + c.recoveryRate
	if newTPM > c.maxTPM {
		newTPM = c.maxTPM
	}
	c.setTPM(newTPM)
}

// setTPM must be called with mu held.
func (c *ThrottledCaller) setTPM(tpm float64) {
	if tpm == c.currentTPM {
		return
	}
	c.currentTPM = tpm
	c.limiter.SetLimit(rate.Limit(tpm / 60.0))
	c.limiter.SetBurst(int(tpm))
}

// estimateTokens is a cheap heuristic over the conversation transcript,
// counting message content length and converting to a token estimate plus a
// fixed buffer for system prompts and provider framing.
func estimateTokens(history conversation.History) int {
	chars := 0
	for _, m := range history {
		chars += len(m.Content)
	}
	if chars <= 0 {
		return 500
	}
	tokens := chars / 3
	if tokens < 1 {
		tokens = 1
	}
	return tokens + 500
}

// RetryBackoff computes the exponential backoff wait before retry attempt n
// (1-indexed), starting at base and multiplying by factor each attempt, up
// to cap.
func RetryBackoff(n int, base time.Duration, factor float64, cap time.Duration) time.Duration {
	wait := base
	for i := 1; i < n; i++ {
		wait = time.Duration(float64(wait) * factor)
		if wait > cap {
			return cap
		}
	}
	if wait > cap {
		return cap
	}
	return wait
}
