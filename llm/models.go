// Package llm provides shared data models for LLM providers.
package llm

import "encoding/json"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage represents a chat message with role and content.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // For assistant messages with tool calls
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool result messages
	Name       string     `json:"name,omitempty"`         // Tool name for tool result messages
}

// ToolCall represents a tool call from the LLM.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition defines a tool that the LLM can call.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// AssistantToolCallMessage records an assistant turn that requested tools.
func AssistantToolCallMessage(content string, calls []ToolCall) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResultMessage answers one tool call.
func ToolResultMessage(callID, toolName, content string) ChatMessage {
	return ChatMessage{Role: RoleTool, Content: content, ToolCallID: callID, Name: toolName}
}

// LLMResponse represents a response from an LLM provider.
type LLMResponse struct {
	Content   string
	ToolCalls []ToolCall // Tool calls requested by the LLM
	Usage     *TokenUsage
}

// TokenUsage contains token usage statistics.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other *TokenUsage) {
	if u == nil || other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
