package facade_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrun/core/facade"
	"github.com/agentrun/core/tool"
)

func TestStateMachineTool_RejectsToolOutsideItsState(t *testing.T) {
	sm := facade.NewStateMachineTool("DRAFT")
	sm.RegisterWithTransition(stubTool("ship"), "CONFIRMED", "SHIPPED")
	sm.RegisterWithTransition(stubTool("confirm"), "DRAFT", "CONFIRMED")

	result := sm.Call(context.Background(), "ship", []byte(`{}`))
	require.True(t, result.IsError())
	assert.Contains(t, result.Err.Error(), "not available in state DRAFT")
	assert.Equal(t, "DRAFT", sm.Holder().Current())
}

func TestStateMachineTool_TransitionsOnSuccess(t *testing.T) {
	sm := facade.NewStateMachineTool("DRAFT")
	sm.RegisterWithTransition(stubTool("confirm"), "DRAFT", "CONFIRMED")
	sm.RegisterWithTransition(stubTool("ship"), "CONFIRMED", "SHIPPED")

	result := sm.Call(context.Background(), "confirm", []byte(`{}`))
	require.False(t, result.IsError())
	assert.Equal(t, "CONFIRMED", sm.Holder().Current())

	result = sm.Call(context.Background(), "ship", []byte(`{}`))
	require.False(t, result.IsError())
	assert.Equal(t, "SHIPPED", sm.Holder().Current())
}

func TestStateMachineTool_GlobalToolsAvailableEverywhere(t *testing.T) {
	sm := facade.NewStateMachineTool("DRAFT")
	sm.Register(stubTool("cancel"))
	sm.RegisterWithTransition(stubTool("confirm"), "DRAFT", "CONFIRMED")

	result := sm.Call(context.Background(), "cancel", []byte(`{}`))
	assert.False(t, result.IsError())

	sm.Call(context.Background(), "confirm", []byte(`{}`))
	result = sm.Call(context.Background(), "cancel", []byte(`{}`))
	assert.False(t, result.IsError(), "global tools remain callable after a transition")
}

func TestStateMachineTool_FailedCallDoesNotTransition(t *testing.T) {
	sm := facade.NewStateMachineTool("DRAFT")
	failing := tool.Func{
		Def: tool.Definition{Name: "confirm"},
		Fn: func(ctx context.Context, argumentsJSON json.RawMessage) tool.Result {
			return tool.ErrorResult(assert.AnError)
		},
	}
	sm.RegisterWithTransition(failing, "DRAFT", "CONFIRMED")

	result := sm.Call(context.Background(), "confirm", []byte(`{}`))
	require.True(t, result.IsError())
	assert.Equal(t, "DRAFT", sm.Holder().Current())
}

func TestStateMachineTool_AvailableToolsDescribesScopeAndTransition(t *testing.T) {
	sm := facade.NewStateMachineTool("DRAFT")
	sm.RegisterWithTransition(stubTool("confirm"), "DRAFT", "CONFIRMED")

	tools := sm.AvailableTools()
	require.Len(t, tools, 1)
	desc := tools[0].Definition().Description
	assert.Contains(t, desc, "Available in: DRAFT")
	assert.Contains(t, desc, "Transitions to: CONFIRMED")
}
