// Package json provides helpers for the loosely-formed JSON language models
// emit, and for deriving new tool inputs without mutating the original.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON returns the JSON object contained in a model response.
// It accepts a bare object, an object inside a markdown fence, or an object
// surrounded by prose. Only objects are recognized; braces inside strings
// can confuse the outer-brace fallback.
func ExtractJSON(response string) (string, error) {
	response = stripFence(response)
	if json.Valid([]byte(response)) && strings.HasPrefix(response, "{") {
		return response, nil
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start != -1 && end > start {
		candidate := response[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("failed to extract valid JSON from response: %q", preview)
}

// NormalizeArguments turns the argument string of a tool call into a JSON
// object. Empty input becomes {}; fenced or prose-wrapped objects are
// unwrapped; anything unrecoverable is returned as-is so validation can
// reject it with the model's own text.
func NormalizeArguments(raw string) json.RawMessage {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return json.RawMessage("{}")
	}
	if obj, err := ExtractJSON(trimmed); err == nil {
		return json.RawMessage(obj)
	}
	return json.RawMessage(trimmed)
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.Contains(s[:nl], "{") {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
