// Package tools provides the commit-history tools offered to the model.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Tool parameters and schemas hidden in implementations
// - Registry implementation details hidden from consumers
// - Error classification internalized per tool
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrPageExhausted is raised by the paged log tool when a "continue after"
// cursor consumes its whole page. It is a flow-control signal, never a
// failure: the caller advances to the next page and tries again.
var ErrPageExhausted = errors.New("page exhausted")

// ToolParameter defines a parameter schema for a tool.
type ToolParameter struct {
	Name        string `json:"name"`
	ParamType   string `json:"param_type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolMetadata describes what a tool does and how to use it.
type ToolMetadata struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
}

// String returns a string representation of the tool metadata.
func (m ToolMetadata) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Description)
}

// Schema returns the parameters as a JSON Schema object.
func (m ToolMetadata) Schema() map[string]interface{} {
	props := make(map[string]interface{}, len(m.Parameters))
	required := []string{}
	for _, p := range m.Parameters {
		props[p.Name] = map[string]interface{}{
			"type":        p.ParamType,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// ToolResult is the outcome of one tool call: one or more text parts.
// Success is determined by whether Error is nil.
type ToolResult struct {
	Parts []string `json:"parts"`
	Error error    `json:"-"`
}

// MarshalJSON implements custom JSON marshaling for ToolResult.
func (t ToolResult) MarshalJSON() ([]byte, error) {
	if t.Error != nil {
		return json.Marshal(struct {
			Success bool     `json:"success"`
			Parts   []string `json:"parts,omitempty"`
			Error   string   `json:"error"`
		}{false, t.Parts, t.Error.Error()})
	}
	return json.Marshal(struct {
		Success bool     `json:"success"`
		Parts   []string `json:"parts"`
	}{true, t.Parts})
}

// Success returns true if the tool execution succeeded.
func (t ToolResult) Success() bool {
	return t.Error == nil
}

// Text returns the concatenated parts, or the error message on failure.
func (t ToolResult) Text() string {
	if t.Error != nil {
		return t.Error.Error()
	}
	return strings.Join(t.Parts, "")
}

// Size returns the byte length of the result text.
func (t ToolResult) Size() int {
	return len(t.Text())
}

// SuccessResult creates a successful tool result.
func SuccessResult(parts ...string) ToolResult {
	return ToolResult{Parts: parts}
}

// FailureResult creates a failed tool result.
func FailureResult(err error) ToolResult {
	return ToolResult{Error: err}
}

// FailureResultf creates a failed tool result with a formatted error message.
func FailureResultf(format string, args ...interface{}) ToolResult {
	return ToolResult{Error: fmt.Errorf(format, args...)}
}

// Tool is the interface that all tools must implement.
//
// Execute reports problems the model can act on (bad input, unknown commit)
// as a failed ToolResult. A returned error aborts the conversation round,
// except ErrPageExhausted which the driver handles.
type Tool interface {
	// Metadata returns tool metadata (name, description, parameters).
	Metadata() ToolMetadata

	// Execute runs the tool with given arguments.
	Execute(ctx context.Context, args json.RawMessage) (ToolResult, error)

	// Validate checks arguments before any command runs.
	Validate(args json.RawMessage) error
}

// ToolConfig holds tool execution configuration.
// The zero value is usable: timeout defaults to 60s and page size to 25.
type ToolConfig struct {
	TimeoutSecs uint64
	PageSize    int
}

// Timeout returns the configured timeout, defaulting to 60 seconds if zero.
func (c *ToolConfig) Timeout() uint64 {
	if c == nil || c.TimeoutSecs == 0 {
		return 60
	}
	return c.TimeoutSecs
}

// DefaultPageSize returns the configured page size, defaulting to 25.
func (c *ToolConfig) DefaultPageSize() int {
	if c == nil || c.PageSize <= 0 {
		return 25
	}
	return c.PageSize
}

// DefaultToolConfig returns the default tool configuration.
func DefaultToolConfig() ToolConfig {
	return ToolConfig{TimeoutSecs: 60, PageSize: 25}
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
