// OpenAI Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - Streaming tool-call fragment assembly

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	jsonutil "github.com/richinex/patchscout/internal/json"
)

// OpenAIProvider implements the Provider interface for OpenAI and
// OpenAI-compatible endpoints.
type OpenAIProvider struct {
	name        string
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return NewOpenAICompatibleProvider("openai", apiKey, "", model, maxTokens, temperature)
}

// NewOpenAICompatibleProvider creates a provider for any endpoint speaking
// the Chat Completions protocol. An empty baseURL uses OpenAI's.
func NewOpenAICompatibleProvider(name, apiKey, baseURL, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIProvider{
		name:        name,
		client:      openai.NewClientWithConfig(config),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Chat sends a chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	return p.ChatWithTools(ctx, messages, nil)
}

// ChatWithTools sends a chat completion request with tool definitions.
func (p *OpenAIProvider) ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (LLMResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(messages, tools))
	if err != nil {
		return LLMResponse{}, fmt.Errorf("chat completion failed: %w", err)
	}

	var out LLMResponse
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		for _, tc := range resp.Choices[0].Message.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: jsonutil.NormalizeArguments(tc.Function.Arguments),
			})
		}
	}
	out.Usage = &TokenUsage{
		PromptTokens:     uint32(resp.Usage.PromptTokens),
		CompletionTokens: uint32(resp.Usage.CompletionTokens),
		TotalTokens:      uint32(resp.Usage.TotalTokens),
	}
	return out, nil
}

// StreamWithTools streams a completion, assembling tool-call fragments by
// their index.
func (p *OpenAIProvider) StreamWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, chunks chan<- string) (LLMResponse, error) {
	req := p.request(messages, tools)
	req.Stream = true
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("stream creation failed: %w", err)
	}
	defer stream.Close()

	var (
		out     LLMResponse
		text    []byte
		pending = map[int]*partialCall{}
	)
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("stream recv failed: %w", err)
		}

		if response.Usage != nil {
			out.Usage = &TokenUsage{
				PromptTokens:     uint32(response.Usage.PromptTokens),
				CompletionTokens: uint32(response.Usage.CompletionTokens),
				TotalTokens:      uint32(response.Usage.TotalTokens),
			}
		}
		if len(response.Choices) == 0 {
			continue
		}

		delta := response.Choices[0].Delta
		if delta.Content != "" {
			text = append(text, delta.Content...)
			if err := emit(ctx, chunks, delta.Content); err != nil {
				return out, err
			}
		}
		for pos, tc := range delta.ToolCalls {
			idx := pos
			if tc.Index != nil {
				idx = *tc.Index
			}
			pc, ok := pending[idx]
			if !ok {
				pc = &partialCall{}
				pending[idx] = pc
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			pc.args = append(pc.args, tc.Function.Arguments...)
		}
	}

	out.Content = string(text)
	out.ToolCalls = assembleCalls(pending)
	return out, nil
}

type partialCall struct {
	id   string
	name string
	args []byte
}

func assembleCalls(pending map[int]*partialCall) []ToolCall {
	if len(pending) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(pending))
	for i := range pending {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	calls := make([]ToolCall, 0, len(indexes))
	for _, i := range indexes {
		pc := pending[i]
		calls = append(calls, ToolCall{
			ID:        pc.id,
			Name:      pc.name,
			Arguments: jsonutil.NormalizeArguments(string(pc.args)),
		})
	}
	return calls
}

func (p *OpenAIProvider) request(messages []ChatMessage, tools []ToolDefinition) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    convertToOpenAIMessages(messages),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}
	if len(tools) > 0 {
		req.Tools = convertToOpenAITools(tools)
	}
	return req
}

// convertToOpenAIMessages handles plain, tool-calling and tool-result messages.
func convertToOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		result[i] = oaiMsg
	}
	return result
}

// convertToOpenAITools converts tool definitions to OpenAI format.
func convertToOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
