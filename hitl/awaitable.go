// Package hitl implements the human-in-the-loop suspension model: a tool
// blocked on external input raises an Awaitable, which the tool loop driver
// hands back unchanged and the action runner binds to the process
// blackboard and surfaces as a WAITING action instead of failing the run.
package hitl

import "fmt"

// Status is the lifecycle state of an Awaitable.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusResolved  Status = "RESOLVED"
	StatusCancelled Status = "CANCELLED"
)

// Awaitable is a durable, resumable request for external input: a question
// for a human, a confirmation, or a long-running external tool result.
type Awaitable struct {
	ID      string
	Kind    string
	Prompt  string
	Payload any
	Status  Status
}

// NewAwaitable constructs a pending Awaitable with the given id.
func NewAwaitable(id, kind, prompt string, payload any) Awaitable {
	return Awaitable{ID: id, Kind: kind, Prompt: prompt, Payload: payload, Status: StatusPending}
}

// Requested is returned as a tool.Result's error value to signal that the
// tool cannot complete synchronously and the enclosing action must suspend.
// It is never treated as an ordinary tool failure: the tool loop driver
// recognizes it via errors.As and terminates the loop, returning it
// unchanged; the action runner (or, in a durable run, the tool-call
// activity) then binds Awaitable to the process blackboard, and the
// action runner marks the enclosing action WAITING.
type Requested struct {
	Awaitable Awaitable
}

// Error implements the error interface.
func (r *Requested) Error() string {
	return fmt.Sprintf("awaitable %s (%s) requested: %s", r.Awaitable.ID, r.Awaitable.Kind, r.Awaitable.Prompt)
}

// New constructs a Requested signal for the given Awaitable.
func New(a Awaitable) *Requested {
	return &Requested{Awaitable: a}
}

// Resolve marks the Awaitable resolved, setting its final payload. Callers
// typically persist the resolved Awaitable and resume the suspended action
// with the associated action id.
func (a Awaitable) Resolve(payload any) Awaitable {
	a.Status = StatusResolved
	a.Payload = payload
	return a
}

// Cancel marks the Awaitable cancelled.
func (a Awaitable) Cancel() Awaitable {
	a.Status = StatusCancelled
	return a
}
