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

type recordingInjector struct {
	facadeName   string
	revealed     []tool.Tool
	removeFacade bool
	calls        int
}

func (r *recordingInjector) Inject(facadeName string, revealed []tool.Tool, removeFacade bool) {
	r.calls++
	r.facadeName = facadeName
	r.revealed = revealed
	r.removeFacade = removeFacade
}

func stubTool(name string) tool.Tool {
	return tool.Func{
		Def: tool.Definition{Name: name},
		Fn:  func(ctx context.Context, argumentsJSON json.RawMessage) tool.Result { return tool.TextResult("ok") },
	}
}

func TestUnfoldingTool_AllReveal(t *testing.T) {
	inj := &recordingInjector{}
	inner := []tool.Tool{stubTool("db_query"), stubTool("db_insert")}
	facadeTool := facade.NewUnfoldingTool("db_ops_facade", "Enable database tools", inner, true, inj)

	result := facadeTool.Call(context.Background(), []byte(`{}`))
	require.False(t, result.IsError())
	assert.Equal(t, "Enabled 2 tools: db_query, db_insert", result.Text)

	require.Equal(t, 1, inj.calls)
	assert.Equal(t, "db_ops_facade", inj.facadeName)
	assert.True(t, inj.removeFacade)
	assert.Len(t, inj.revealed, 2)
}

func TestUnfoldingTool_RemoveOnInvokeFalseKeepsFacadeCallable(t *testing.T) {
	inj := &recordingInjector{}
	facadeTool := facade.NewUnfoldingTool("facade", "desc", []tool.Tool{stubTool("t1")}, false, inj)

	facadeTool.Call(context.Background(), []byte(`{}`))
	assert.False(t, inj.removeFacade)
}

func TestUnfoldingTool_ByCategory(t *testing.T) {
	inj := &recordingInjector{}
	categories := []facade.Category{
		facade.NewCategory("billing", stubTool("refund")),
		facade.NewCategory("shipping", stubTool("ship"), stubTool("track")),
	}
	facadeTool := facade.NewCategoryUnfoldingTool("ops", "Enable a category of tools", categories, true, inj)

	def := facadeTool.Definition()
	require.Len(t, def.InputSchema.Parameters, 1)
	assert.ElementsMatch(t, []string{"billing", "shipping"}, def.InputSchema.Parameters[0].EnumValues)

	result := facadeTool.Call(context.Background(), []byte(`{"category":"shipping"}`))
	require.False(t, result.IsError())
	assert.Equal(t, "Enabled 2 tools: ship, track", result.Text)

	result = facadeTool.Call(context.Background(), []byte(`{"category":"unknown"}`))
	assert.True(t, result.IsError())
}

func TestUnfoldingTool_Selector(t *testing.T) {
	inj := &recordingInjector{}
	inner := []tool.Tool{stubTool("a"), stubTool("b"), stubTool("c")}
	selector := func(input json.RawMessage, all []tool.Tool) ([]tool.Tool, error) {
		return all[:1], nil
	}
	facadeTool := facade.NewSelectorUnfoldingTool("pick", "desc", inner, selector, true, inj)

	result := facadeTool.Call(context.Background(), []byte(`{}`))
	require.False(t, result.IsError())
	assert.Equal(t, "Enabled 1 tools: a", result.Text)
}

func TestUnfoldingTool_ChildToolUsageNotes(t *testing.T) {
	inj := &recordingInjector{}
	facadeTool := facade.NewUnfoldingTool("facade", "desc", []tool.Tool{stubTool("t1")}, true, inj).
		WithChildToolUsageNotes("Call t1 only after confirming the order ID.")

	result := facadeTool.Call(context.Background(), []byte(`{}`))
	assert.Contains(t, result.Text, "Call t1 only after confirming the order ID.")
}
