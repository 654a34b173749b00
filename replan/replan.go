// Package replan defines the Replan control-flow signal: a tool's way of
// telling the driving tool loop that the plan itself is stale and the
// planner must be re-invoked, after applying a described blackboard update.
package replan

import "github.com/agentrun/core/blackboard"

// Requested is returned as a tool.Result's error value to signal a non-fatal
// replan. It is never treated as an ordinary tool failure: the tool loop
// driver recognizes it via errors.As and terminates the loop, returning it
// unchanged; the action runner (or, in a durable run, the tool-call
// activity) then applies Updater to the process blackboard so the planner
// can be re-invoked with the updated state.
type Requested struct {
	Reason  string
	Updater blackboard.Updater
}

// Error implements the error interface so Requested can travel through
// tool.Result.Err and be distinguished from ordinary failures with
// errors.As.
func (r *Requested) Error() string {
	if r.Reason == "" {
		return "replan requested"
	}
	return "replan requested: " + r.Reason
}

// New constructs a Requested signal. updater may be nil when the replan
// carries no blackboard mutation of its own (e.g. the triggering tool already
// wrote its own binding via AddObject).
func New(reason string, updater blackboard.Updater) *Requested {
	return &Requested{Reason: reason, Updater: updater}
}

// Apply runs Updater against bb if both are non-nil, a no-op otherwise.
func (r *Requested) Apply(bb *blackboard.Blackboard) {
	if r == nil || r.Updater == nil || bb == nil {
		return
	}
	r.Updater(bb)
}
