package replan_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrun/core/blackboard"
	"github.com/agentrun/core/replan"
)

type discountFound struct{ Percent int }

func TestRequested_ApplyRunsUpdater(t *testing.T) {
	bb := blackboard.New()
	signal := replan.New("customer qualifies for a better discount", func(b *blackboard.Blackboard) {
		b.AddObject(discountFound{Percent: 20})
	})

	signal.Apply(bb)

	got, ok := blackboard.Last[discountFound](bb)
	require.True(t, ok)
	assert.Equal(t, 20, got.Percent)
}

func TestRequested_ApplyIsNoOpWithoutUpdater(t *testing.T) {
	bb := blackboard.New()
	signal := replan.New("reason only", nil)
	assert.NotPanics(t, func() { signal.Apply(bb) })
}

func TestRequested_IsDistinguishableViaErrorsAs(t *testing.T) {
	var err error = replan.New("stale plan", nil)
	var typed *replan.Requested
	assert.True(t, errors.As(err, &typed))
	assert.Equal(t, "stale plan", typed.Reason)
}
