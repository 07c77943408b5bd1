package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/richinex/patchscout/llm"
	"github.com/richinex/patchscout/tools"
)

var (
	nextPagePattern = regexp.MustCompile(`(?i)\b(check|look at|looking at|fetch|fetching|view|see|get|examine|review|read|load|move on to|continue (with|to)|proceed to|go to)\s+(the\s+)?next page\b`)
	bareSHAPattern  = regexp.MustCompile(`\b[0-9a-f]{40}\b`)
)

// Fallback recovers a tool call from a turn that narrated an action instead
// of requesting it. It is consulted only when the model returned no calls.
type Fallback struct {
	// Available reports whether the flow offers a tool.
	Available func(name string) bool
}

// Decide returns the synthesized calls for text, or nil. A "next page"
// announcement becomes a log call; otherwise the first bare commit SHA not
// already shown in rounds becomes a show call.
func (f Fallback) Decide(text string, rounds []Round) []llm.ToolCall {
	if f.available(tools.ToolChromiumLog) && nextPagePattern.MatchString(text) {
		return []llm.ToolCall{synthesize(tools.ToolChromiumLog, json.RawMessage(`{}`))}
	}

	if !f.available(tools.ToolGitShow) {
		return nil
	}
	shown := shownCommits(rounds)
	for _, sha := range bareSHAPattern.FindAllString(text, -1) {
		if shown[sha] {
			continue
		}
		args, _ := json.Marshal(map[string]string{"sha": sha})
		return []llm.ToolCall{synthesize(tools.ToolGitShow, args)}
	}
	return nil
}

func (f Fallback) available(name string) bool {
	return f.Available == nil || f.Available(name)
}

func synthesize(name string, args json.RawMessage) llm.ToolCall {
	return llm.ToolCall{ID: "call_" + strings.ReplaceAll(uuid.NewString(), "-", ""), Name: name, Arguments: args}
}

func shownCommits(rounds []Round) map[string]bool {
	shown := make(map[string]bool)
	for _, r := range rounds {
		for _, c := range r.Calls {
			if c.Name != tools.ToolGitShow && c.Name != tools.ToolChromiumFileShow {
				continue
			}
			var in struct {
				SHA string `json:"sha"`
			}
			if json.Unmarshal(c.Arguments, &in) == nil && in.SHA != "" {
				shown[in.SHA] = true
			}
		}
	}
	return shown
}
