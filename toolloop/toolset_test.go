package toolloop

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrun/core/tool"
)

func namedTool(name string) tool.Tool {
	return namedToolWithTag(name, "")
}

func namedToolWithTag(name, tag string) tool.Tool {
	return tool.Func{
		Def: tool.Definition{Name: name, Description: tag},
		Fn:  func(ctx context.Context, argumentsJSON json.RawMessage) tool.Result { return tool.TextResult("") },
	}
}

func TestToolSet_DuplicateNameCollapsesToLastRegistered(t *testing.T) {
	first := namedToolWithTag("search", "first")
	second := namedToolWithTag("search", "second")

	s := newToolSet([]tool.Tool{first})
	added := s.addAll([]tool.Tool{second})

	assert.Empty(t, added, "re-registering an existing name adds nothing new")
	assert.Equal(t, []string{"search"}, s.names())
	assert.Equal(t, []string{"search"}, s.DuplicateNames())

	got, ok := s.byName("search")
	require.True(t, ok)
	assert.Equal(t, "second", got.Definition().Description, "duplicate names collapse to the last-registered instance")
}

func TestToolSet_RemovePreservesOrderOfRemainder(t *testing.T) {
	s := newToolSet([]tool.Tool{namedTool("a"), namedTool("b"), namedTool("c")})
	s.remove("b")
	assert.Equal(t, []string{"a", "c"}, s.names())
}
