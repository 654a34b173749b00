// Package openaicaller implements toolloop.Caller on top of the OpenAI
// Chat Completions API.
package openaicaller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/agentrun/core/conversation"
	"github.com/agentrun/core/llm"
	"github.com/agentrun/core/tool"
	"github.com/agentrun/core/toolloop"
)

// ChatClient captures the subset of the openai-go client used by the
// adapter, satisfied by the real client's Chat.Completions service.
type ChatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Options configures default model selection and generation parameters.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// Client implements toolloop.Caller via OpenAI Chat Completions.
type Client struct {
	chat    ChatClient
	options Options
}

var _ toolloop.Caller = (*Client)(nil)

// New builds a Client from an openai-go chat completions service.
func New(chat ChatClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openaicaller: chat client is required")
	}
	modelID := strings.TrimSpace(opts.DefaultModel)
	if modelID == "" {
		return nil, errors.New("openaicaller: default model is required")
	}
	opts.DefaultModel = modelID
	return &Client{chat: chat, options: opts}, nil
}

// NewFromAPIKey constructs a Client using the default openai-go HTTP client.
func NewFromAPIKey(apiKey string, opts Options) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openaicaller: api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Chat.Completions, opts)
}

// Call implements toolloop.Caller.
func (c *Client) Call(ctx context.Context, history conversation.History, tools []tool.Tool, opts toolloop.CallOptions) (conversation.Message, conversation.Usage, error) {
	modelID := opts.ModelName
	if modelID == "" {
		modelID = c.options.DefaultModel
	}

	messages, err := encodeHistory(history)
	if err != nil {
		return conversation.Message{}, conversation.Usage{}, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    modelID,
		Messages: messages,
	}
	if opts.MaxTokens != nil && *opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(*opts.MaxTokens))
	} else if c.options.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.options.MaxTokens))
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	} else if c.options.Temperature > 0 {
		params.Temperature = openai.Float(c.options.Temperature)
	}
	if encoded, err := encodeTools(tools); err != nil {
		return conversation.Message{}, conversation.Usage{}, err
	} else if len(encoded) > 0 {
		params.Tools = encoded
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		if isRateLimited(err) {
			return conversation.Message{}, conversation.Usage{}, fmt.Errorf("%w: %w", llm.ErrRateLimited, err)
		}
		return conversation.Message{}, conversation.Usage{}, &llm.CallFailed{Provider: "openai", Cause: err}
	}

	return translateResponse(resp), usageOf(resp), nil
}

func encodeHistory(history conversation.History) ([]openai.ChatCompletionMessageParamUnion, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case conversation.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case conversation.RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case conversation.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				msgs = append(msgs, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.ArgumentsJSON,
					},
				})
			}
			msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content:   openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(m.Content)},
					ToolCalls: calls,
				},
			})
		case conversation.RoleToolResult:
			msgs = append(msgs, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	if len(msgs) == 0 {
		return nil, errors.New("openaicaller: at least one message is required")
	}
	return msgs, nil
}

func encodeTools(tools []tool.Tool) ([]openai.ChatCompletionToolParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		def := t.Definition()
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(def.InputSchema.JSONSchema()),
			},
		})
	}
	return out, nil
}

func translateResponse(resp *openai.ChatCompletion) conversation.Message {
	if len(resp.Choices) == 0 {
		return conversation.Assistant("")
	}
	choice := resp.Choices[0]
	calls := make([]conversation.ToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, conversation.ToolCall{
			ID:            tc.ID,
			Name:          tc.Function.Name,
			ArgumentsJSON: tc.Function.Arguments,
		})
	}
	return conversation.Assistant(choice.Message.Content, calls...)
}

func usageOf(resp *openai.ChatCompletion) conversation.Usage {
	in := int(resp.Usage.PromptTokens)
	out := int(resp.Usage.CompletionTokens)
	return conversation.Usage{PromptTokens: &in, CompletionTokens: &out}
}

func isRateLimited(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
