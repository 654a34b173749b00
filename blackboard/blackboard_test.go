package blackboard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrun/core/blackboard"
)

type goalStated struct{ Text string }

type intent struct{ Value string }

func TestAddObjectAndLast(t *testing.T) {
	bb := blackboard.New()
	assert.False(t, blackboard.Has[goalStated](bb))

	bb.AddObject(goalStated{Text: "first"})
	bb.AddObject(goalStated{Text: "second"})

	got, ok := blackboard.Last[goalStated](bb)
	require.True(t, ok)
	assert.Equal(t, "second", got.Text)

	all := blackboard.All[goalStated](bb)
	require.Len(t, all, 2)
	assert.Equal(t, "first", all[0].Text)
}

func TestAddObjectIsAdditiveNotOverwriting(t *testing.T) {
	bb := blackboard.New()
	bb.AddObject(intent{Value: "a"})
	bb.AddObject(intent{Value: "b"})

	all := blackboard.All[intent](bb)
	assert.Len(t, all, 2, "bindings are additive within a process, never overwritten in place")
}

func TestLabeledBindingsAreIndependentOfDefaultSlot(t *testing.T) {
	bb := blackboard.New()
	bb.AddObject(intent{Value: "unlabeled"})
	bb.AddObject(intent{Value: "labeled"}, "refund")

	def, ok := blackboard.Last[intent](bb)
	require.True(t, ok)
	assert.Equal(t, "unlabeled", def.Value)

	labeled, ok := blackboard.LastLabeled[intent](bb, "refund")
	require.True(t, ok)
	assert.Equal(t, "labeled", labeled.Value)
}

func TestUpdatedAtAbsentBeforeFirstWrite(t *testing.T) {
	bb := blackboard.New()
	_, ok := blackboard.UpdatedAt[goalStated](bb)
	assert.False(t, ok)

	bb.AddObject(goalStated{Text: "x"})
	_, ok = blackboard.UpdatedAt[goalStated](bb)
	assert.True(t, ok)
}
