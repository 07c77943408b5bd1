// Anthropic Provider implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for Anthropic Messages API
// - Stream event accumulation via the SDK

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicProvider creates a new Anthropic provider. Extra request
// options (base URL, HTTP client) are passed through to the SDK.
func NewAnthropicProvider(apiKey, model string, maxTokens uint32, temperature float32, opts ...option.RequestOption) *AnthropicProvider {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicProvider{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: float64(temperature),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Model returns the current model.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// Chat sends a chat completion request.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	return p.ChatWithTools(ctx, messages, nil)
}

// ChatWithTools sends a chat completion request with tool definitions.
func (p *AnthropicProvider) ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (LLMResponse, error) {
	message, err := p.client.Messages.New(ctx, p.params(messages, tools))
	if err != nil {
		return LLMResponse{}, fmt.Errorf("chat completion failed: %w", err)
	}
	return fromAnthropicMessage(message), nil
}

// StreamWithTools streams a completion, forwarding text deltas and letting
// the SDK accumulate the final message.
func (p *AnthropicProvider) StreamWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, chunks chan<- string) (LLMResponse, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.params(messages, tools))
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return LLMResponse{}, fmt.Errorf("stream accumulate failed: %w", err)
		}

		if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
				if err := emit(ctx, chunks, text.Text); err != nil {
					return LLMResponse{}, err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return LLMResponse{}, fmt.Errorf("stream error: %w", err)
	}

	return fromAnthropicMessage(&message), nil
}

func (p *AnthropicProvider) params(messages []ChatMessage, tools []ToolDefinition) anthropic.MessageNewParams {
	anthropicMessages, systemPrompt := convertToAnthropicMessages(messages)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		Messages:    anthropicMessages,
		Temperature: anthropic.Float(p.temperature),
	}
	if len(tools) > 0 {
		params.Tools = convertToAnthropicTools(tools)
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	return params
}

func fromAnthropicMessage(message *anthropic.Message) LLMResponse {
	var out LLMResponse
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content += variant.Text
		case anthropic.ToolUseBlock:
			inputJSON, _ := json.Marshal(variant.Input)
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: inputJSON,
			})
		}
	}
	if message.Usage.InputTokens > 0 || message.Usage.OutputTokens > 0 {
		out.Usage = &TokenUsage{
			PromptTokens:     uint32(message.Usage.InputTokens),
			CompletionTokens: uint32(message.Usage.OutputTokens),
			TotalTokens:      uint32(message.Usage.InputTokens + message.Usage.OutputTokens),
		}
	}
	return out
}

// convertToAnthropicMessages extracts the system prompt and maps the rest.
// Consecutive tool results are folded into one user message, which is how
// the Messages API expects answers to parallel tool calls.
func convertToAnthropicMessages(messages []ChatMessage) ([]anthropic.MessageParam, string) {
	var (
		out          []anthropic.MessageParam
		systemPrompt string
		results      []anthropic.ContentBlockParamUnion
	)
	flushResults := func() {
		if len(results) > 0 {
			out = append(out, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, msg := range messages {
		if msg.Role != RoleTool {
			flushResults()
		}
		switch msg.Role {
		case RoleSystem:
			systemPrompt = msg.Content
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input map[string]interface{}
				_ = json.Unmarshal(tc.Arguments, &input)
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.Name,
						Input: input,
					},
				})
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(""))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case RoleTool:
			results = append(results, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		}
	}
	flushResults()

	return out, systemPrompt
}

// convertToAnthropicTools converts tool definitions to Anthropic format.
func convertToAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		properties, _ := t.Parameters["properties"].(map[string]interface{})
		required, _ := t.Parameters["required"].([]string)

		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
				Required:   required,
			},
		}
		result[i] = anthropic.ToolUnionParam{OfTool: &toolParam}
	}
	return result
}

// Verify AnthropicProvider implements Provider
var _ Provider = (*AnthropicProvider)(nil)
