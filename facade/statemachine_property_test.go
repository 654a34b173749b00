package facade_test

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/agentrun/core/facade"
)

// TestStateMachineTool_StateScopedInvarianceProperty verifies invariant 7:
// state-scoped tool invariance. Calling a tool from any state it is not
// registered in always returns a Result.Error and never changes the current
// state, regardless of how many other states and tools the machine has.
func TestStateMachineTool_StateScopedInvarianceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	states := []string{"DRAFT", "CONFIRMED", "SHIPPED", "CANCELLED"}

	properties.Property("calling a tool outside its registered state never transitions", prop.ForAll(
		func(initial string, toolState string) bool {
			sm := facade.NewStateMachineTool(initial)
			sm.Register(stubTool("scoped"), toolState)

			result := sm.Call(context.Background(), "scoped", []byte(`{}`))

			if sm.Holder().Current() != initial {
				return false // a rejected or accepted call never changes state here: scoped carries no transition
			}
			if initial != toolState {
				return result.IsError()
			}
			return !result.IsError()
		},
		gen.OneConstOf(states...),
		gen.OneConstOf(states...),
	))

	properties.TestingRun(t)
}
