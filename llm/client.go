// LLMClient - wrapper around providers that tracks usage and fans out
// streamed text.

package llm

import (
	"context"
	"sync"

	"github.com/richinex/patchscout/internal/logging"
)

// Client wraps a Provider and accumulates token usage across calls.
type Client struct {
	provider Provider

	mu    sync.Mutex
	usage TokenUsage
	calls int
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// Chat sends a chat completion request and returns just the content.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	response, err := c.provider.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	c.record(response.Usage)
	return response.Content, nil
}

// Stream runs a streaming tool-enabled completion, invoking onText for each
// text fragment in order. onText may be nil.
func (c *Client) Stream(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, onText func(string)) (LLMResponse, error) {
	chunks := make(chan string, 64)

	type result struct {
		resp LLMResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer close(chunks)
		resp, err := c.provider.StreamWithTools(ctx, messages, tools, chunks)
		done <- result{resp, err}
	}()

	for chunk := range chunks {
		if onText != nil {
			onText(chunk)
		}
	}

	r := <-done
	if r.err != nil {
		return LLMResponse{}, r.err
	}
	c.record(r.resp.Usage)
	logging.Debug("model round complete",
		"provider", c.provider.Name(),
		"model", c.provider.Model(),
		"tool_calls", len(r.resp.ToolCalls),
		"content_bytes", len(r.resp.Content))
	return r.resp, nil
}

// Usage returns cumulative token usage and the number of model calls.
func (c *Client) Usage() (TokenUsage, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage, c.calls
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}

func (c *Client) record(u *TokenUsage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.usage.Add(u)
}
