package tool_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrun/core/tool"
)

type refundArgs struct {
	OrderID string `json:"orderId"`
}

type billingHost struct {
	refunded []string
}

func (h *billingHost) ToolDescriptions() map[string]tool.Definition {
	return map[string]tool.Definition{
		"Refund": {
			Name:        "refund",
			Description: "Refund an order by ID",
			InputSchema: tool.InputSchema{Parameters: []tool.Parameter{
				{Name: "orderId", Type: tool.TypeString, Required: true},
			}},
		},
		"ListRefunds": {
			Name:        "list_refunds",
			Description: "List previously refunded order IDs",
		},
	}
}

func (h *billingHost) Refund(ctx context.Context, args refundArgs) (string, error) {
	h.refunded = append(h.refunded, args.OrderID)
	return "refunded " + args.OrderID, nil
}

func (h *billingHost) ListRefunds(ctx context.Context, args struct{}) tool.Result {
	payload, _ := json.Marshal(h.refunded)
	return tool.TextResult(string(payload))
}

func TestToolObject_ExpandsDescribedMethods(t *testing.T) {
	host := &billingHost{}
	obj, err := tool.NewToolObject(host, tool.PrefixNaming{Prefix: "billing"}, nil)
	require.NoError(t, err)

	tools := obj.Tools()
	require.Len(t, tools, 2)

	names := map[string]tool.Tool{}
	for _, tl := range tools {
		names[tl.Definition().Name] = tl
	}
	require.Contains(t, names, "billing_refund")
	require.Contains(t, names, "billing_list_refunds")

	result := names["billing_refund"].Call(context.Background(), []byte(`{"orderId":"o-1"}`))
	assert.False(t, result.IsError())
	assert.Equal(t, "refunded o-1", result.Text)
	assert.Equal(t, []string{"o-1"}, host.refunded)
}

func TestToolObject_FilterExcludesMethods(t *testing.T) {
	host := &billingHost{}
	filter := func(name string) bool { return name != "ListRefunds" }
	obj, err := tool.NewToolObject(host, nil, filter)
	require.NoError(t, err)

	tools := obj.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "refund", tools[0].Definition().Name)
}

func TestToolObject_RejectsIterableHost(t *testing.T) {
	type sliceHost []int
	_, err := tool.NewToolObject(sliceHostDescriber(sliceHost{1, 2}), nil, nil)
	assert.Error(t, err)
}

type sliceHostDescriber []int

func (sliceHostDescriber) ToolDescriptions() map[string]tool.Definition { return nil }
