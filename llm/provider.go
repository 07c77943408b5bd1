// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Streaming event assembly into text and tool calls
// - Provider-specific error handling

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Chat sends a chat completion request without tools.
	Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error)

	// ChatWithTools sends a chat completion request with tool definitions.
	// The LLM may respond with tool calls in LLMResponse.ToolCalls.
	ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (LLMResponse, error)

	// StreamWithTools streams a completion restricted to tools. Text
	// fragments are sent to chunks as they arrive (chunks may be nil); the
	// returned response carries the full text and the tool calls in arrival
	// order. The channel is not closed.
	StreamWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, chunks chan<- string) (LLMResponse, error)
}

func emit(ctx context.Context, chunks chan<- string, text string) error {
	if chunks == nil || text == "" {
		return nil
	}
	select {
	case chunks <- text:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
