// Package bedrockcaller implements toolloop.Caller on top of the AWS
// Bedrock Converse API.
package bedrockcaller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/agentrun/core/conversation"
	"github.com/agentrun/core/llm"
	"github.com/agentrun/core/tool"
	"github.com/agentrun/core/toolloop"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client used by
// the adapter, satisfied by *bedrockruntime.Client.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures default model selection and generation parameters.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float32
}

// Client implements toolloop.Caller via AWS Bedrock Converse.
type Client struct {
	runtime RuntimeClient
	options Options
}

var _ toolloop.Caller = (*Client)(nil)

// New builds a Client from a Bedrock runtime client.
func New(runtime RuntimeClient, opts Options) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrockcaller: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrockcaller: default model is required")
	}
	return &Client{runtime: runtime, options: opts}, nil
}

// Call implements toolloop.Caller.
func (c *Client) Call(ctx context.Context, history conversation.History, tools []tool.Tool, opts toolloop.CallOptions) (conversation.Message, conversation.Usage, error) {
	modelID := opts.ModelName
	if modelID == "" {
		modelID = c.options.DefaultModel
	}

	messages, system, err := encodeHistory(history)
	if err != nil {
		return conversation.Message{}, conversation.Usage{}, err
	}

	toolConfig, err := encodeTools(tools)
	if err != nil {
		return conversation.Message{}, conversation.Usage{}, err
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: messages,
	}
	if len(system) > 0 {
		input.System = system
	}
	if toolConfig != nil {
		input.ToolConfig = toolConfig
	}

	inferenceConfig := &brtypes.InferenceConfiguration{}
	maxTokens := c.options.MaxTokens
	if opts.MaxTokens != nil && *opts.MaxTokens > 0 {
		maxTokens = *opts.MaxTokens
	}
	if maxTokens > 0 {
		v := int32(maxTokens)
		inferenceConfig.MaxTokens = &v
	}
	temp := c.options.Temperature
	if opts.Temperature != nil {
		temp = float32(*opts.Temperature)
	}
	if temp > 0 {
		inferenceConfig.Temperature = &temp
	}
	input.InferenceConfig = inferenceConfig

	output, err := c.runtime.Converse(ctx, input)
	if err != nil {
		if isRateLimited(err) {
			return conversation.Message{}, conversation.Usage{}, fmt.Errorf("%w: %w", llm.ErrRateLimited, err)
		}
		return conversation.Message{}, conversation.Usage{}, &llm.CallFailed{Provider: "bedrock", Cause: err}
	}

	return translateResponse(output), usageOf(output), nil
}

func encodeHistory(history conversation.History) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	var system []brtypes.SystemContentBlock
	msgs := make([]brtypes.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case conversation.RoleSystem:
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Content})
		case conversation.RoleUser:
			msgs = append(msgs, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
			})
		case conversation.RoleAssistant:
			var blocks []brtypes.ContentBlock
			if m.Content != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: m.Content})
			}
			for _, tc := range m.ToolCalls {
				var input any
				if tc.ArgumentsJSON != "" {
					if err := json.Unmarshal([]byte(tc.ArgumentsJSON), &input); err != nil {
						return nil, nil, fmt.Errorf("bedrockcaller: decode tool call %s arguments: %w", tc.Name, err)
					}
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{
					Value: brtypes.ToolUseBlock{
						ToolUseId: aws.String(tc.ID),
						Name:      aws.String(tc.Name),
						Input:     lazyDocument(input),
					},
				})
			}
			if len(blocks) > 0 {
				msgs = append(msgs, brtypes.Message{Role: brtypes.ConversationRoleAssistant, Content: blocks})
			}
		case conversation.RoleToolResult:
			msgs = append(msgs, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberToolResult{
					Value: brtypes.ToolResultBlock{
						ToolUseId: aws.String(m.ToolCallID),
						Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: m.Content}},
					},
				}},
			})
		}
	}
	if len(msgs) == 0 {
		return nil, nil, errors.New("bedrockcaller: at least one message is required")
	}
	return msgs, system, nil
}

func encodeTools(tools []tool.Tool) (*brtypes.ToolConfiguration, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	list := make([]brtypes.Tool, 0, len(tools))
	for _, t := range tools {
		def := t.Definition()
		spec := brtypes.ToolSpecification{
			Name:        aws.String(def.Name),
			Description: aws.String(def.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: lazyDocument(def.InputSchema.JSONSchema())},
		}
		list = append(list, &brtypes.ToolMemberToolSpec{Value: spec})
	}
	return &brtypes.ToolConfiguration{Tools: list}, nil
}

func translateResponse(output *bedrockruntime.ConverseOutput) conversation.Message {
	var text string
	var calls []conversation.ToolCall
	if msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			switch v := block.(type) {
			case *brtypes.ContentBlockMemberText:
				text += v.Value
			case *brtypes.ContentBlockMemberToolUse:
				name := ""
				if v.Value.Name != nil {
					name = *v.Value.Name
				}
				id := ""
				if v.Value.ToolUseId != nil {
					id = *v.Value.ToolUseId
				}
				input, _ := json.Marshal(decodeDocument(v.Value.Input))
				calls = append(calls, conversation.ToolCall{ID: id, Name: name, ArgumentsJSON: string(input)})
			}
		}
	}
	return conversation.Assistant(text, calls...)
}

func usageOf(output *bedrockruntime.ConverseOutput) conversation.Usage {
	var in, out int
	if output.Usage != nil {
		in = int(ptrValue(output.Usage.InputTokens))
		out = int(ptrValue(output.Usage.OutputTokens))
	}
	return conversation.Usage{PromptTokens: &in, CompletionTokens: &out}
}

func ptrValue(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

func lazyDocument(v any) document.Interface {
	return document.NewLazyDocument(&v)
}

func decodeDocument(doc document.Interface) any {
	if doc == nil {
		return nil
	}
	var v any
	if err := doc.UnmarshalSmithyDocument(&v); err != nil {
		return nil
	}
	return v
}

func isRateLimited(err error) bool {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 429
	}
	return false
}
