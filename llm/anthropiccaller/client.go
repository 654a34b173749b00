// Package anthropiccaller implements toolloop.Caller on top of the
// Anthropic Claude Messages API.
package anthropiccaller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentrun/core/conversation"
	"github.com/agentrun/core/llm"
	"github.com/agentrun/core/tool"
	"github.com/agentrun/core/toolloop"
)

// MessagesClient captures the subset of the Anthropic SDK used by the
// adapter, satisfied by *sdk.MessageService so callers can substitute a
// fake in tests.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures default model selection and generation parameters
// used when a per-call CallOptions field is left zero.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// Client implements toolloop.Caller via Anthropic Claude Messages.
type Client struct {
	msg     MessagesClient
	options Options
}

var _ toolloop.Caller = (*Client)(nil)

// New builds a Client from an Anthropic messages client.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropiccaller: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropiccaller: default model is required")
	}
	return &Client{msg: msg, options: opts}, nil
}

// NewFromAPIKey constructs a Client using the default Anthropic HTTP client,
// authenticated with apiKey via option.WithAPIKey; an empty apiKey is an
// error.
func NewFromAPIKey(apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropiccaller: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, opts)
}

// Call implements toolloop.Caller.
func (c *Client) Call(ctx context.Context, history conversation.History, tools []tool.Tool, opts toolloop.CallOptions) (conversation.Message, conversation.Usage, error) {
	modelID := opts.ModelName
	if modelID == "" {
		modelID = c.options.DefaultModel
	}

	msgs, system, err := encodeHistory(history)
	if err != nil {
		return conversation.Message{}, conversation.Usage{}, err
	}

	maxTokens := c.options.MaxTokens
	if opts.MaxTokens != nil && *opts.MaxTokens > 0 {
		maxTokens = *opts.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if opts.Temperature != nil {
		params.Temperature = sdk.Float(*opts.Temperature)
	} else if c.options.Temperature > 0 {
		params.Temperature = sdk.Float(c.options.Temperature)
	}
	if toolParams, err := encodeTools(tools); err != nil {
		return conversation.Message{}, conversation.Usage{}, err
	} else if len(toolParams) > 0 {
		params.Tools = toolParams
	}

	resp, err := c.msg.New(ctx, params)
	if err != nil {
		if isRateLimited(err) {
			return conversation.Message{}, conversation.Usage{}, fmt.Errorf("%w: %w", llm.ErrRateLimited, err)
		}
		return conversation.Message{}, conversation.Usage{}, &llm.CallFailed{Provider: "anthropic", Cause: err}
	}

	return translateResponse(resp), usageOf(resp), nil
}

func encodeHistory(history conversation.History) ([]sdk.MessageParam, string, error) {
	var system string
	msgs := make([]sdk.MessageParam, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case conversation.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		case conversation.RoleUser:
			msgs = append(msgs, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case conversation.RoleAssistant:
			blocks := make([]sdk.ContentBlockParamUnion, 0, 1+len(m.ToolCalls))
			if m.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any
				if tc.ArgumentsJSON != "" {
					if err := json.Unmarshal([]byte(tc.ArgumentsJSON), &input); err != nil {
						return nil, "", fmt.Errorf("anthropiccaller: decode tool call %s arguments: %w", tc.Name, err)
					}
				}
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) > 0 {
				msgs = append(msgs, sdk.NewAssistantMessage(blocks...))
			}
		case conversation.RoleToolResult:
			msgs = append(msgs, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}
	if len(msgs) == 0 {
		return nil, "", errors.New("anthropiccaller: at least one user/assistant message is required")
	}
	return msgs, system, nil
}

func encodeTools(tools []tool.Tool) ([]sdk.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		def := t.Definition()
		schema := def.InputSchema.JSONSchema()
		u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: schema}, def.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(def.Description)
		}
		out = append(out, u)
	}
	return out, nil
}

func translateResponse(msg *sdk.Message) conversation.Message {
	var text string
	var calls []conversation.ToolCall
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "tool_use":
			input, _ := json.Marshal(block.Input)
			calls = append(calls, conversation.ToolCall{ID: block.ID, Name: block.Name, ArgumentsJSON: string(input)})
		}
	}
	return conversation.Assistant(text, calls...)
}

func usageOf(msg *sdk.Message) conversation.Usage {
	in := int(msg.Usage.InputTokens)
	out := int(msg.Usage.OutputTokens)
	return conversation.Usage{PromptTokens: &in, CompletionTokens: &out}
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
