// Prompt rendering.
//
// Information Hiding:
// - Embedded prompt templates hidden
// - Tool execution for pending calls hidden
// - Result caching by call id hidden
// - Token budget enforcement hidden

package agent

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/richinex/patchscout/internal/logging"
	"github.com/richinex/patchscout/llm"
	"github.com/richinex/patchscout/model"
	"github.com/richinex/patchscout/tools"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.New("prompts").
	Funcs(template.FuncMap{"join": strings.Join}).
	ParseFS(promptFS, "prompts/*.tmpl"))

const elidedResult = "[Earlier result removed to save space. Call the tool again if you need it.]"

// pageExhaustedError identifies the call whose cursor emptied its page.
type pageExhaustedError struct {
	callID string
	err    error
}

func (e *pageExhaustedError) Error() string {
	return fmt.Sprintf("call %s: %v", e.callID, e.err)
}

func (e *pageExhaustedError) Unwrap() error { return e.err }

// Renderer turns a flow and its rounds into the message list for the next
// model request. Rendering runs every call that has no result yet; results
// are kept by call id for the lifetime of the renderer, so a call is never
// executed twice.
type Renderer struct {
	registry *tools.Registry
	executor *tools.Executor
	budget   int

	header  []llm.ChatMessage
	results map[string]tools.ToolResult
	calls   []model.ToolCall
}

// NewRenderer creates a renderer over the flow's tool subset. A budget of
// zero disables elision.
func NewRenderer(registry *tools.Registry, executor *tools.Executor, budget int) *Renderer {
	return &Renderer{
		registry: registry,
		executor: executor,
		budget:   budget,
		results:  make(map[string]tools.ToolResult),
	}
}

// Begin renders the flow's system and user prompts from the state at the
// start of a run. They stay fixed while the rounds grow.
func (r *Renderer) Begin(flow Flow, state *PageState) error {
	data := flow.PromptData(state)
	system, err := execute(flow.Name()+".system", data)
	if err != nil {
		return err
	}
	user, err := execute(flow.Name()+".user", data)
	if err != nil {
		return err
	}
	r.header = []llm.ChatMessage{llm.SystemMessage(system), llm.UserMessage(user)}
	return nil
}

// Render builds the messages for the next request after rounds. It returns
// an error matching tools.ErrPageExhausted when a call's cursor consumed its
// page; that call gets no cached result and is rendered again once
// rewritten.
func (r *Renderer) Render(ctx context.Context, rounds []Round) ([]llm.ChatMessage, error) {
	messages := append([]llm.ChatMessage(nil), r.header...)
	protected := len(messages)
	for _, round := range rounds {
		protected = len(messages)
		messages = append(messages, llm.AssistantToolCallMessage(round.Text, round.Calls))
		for _, call := range round.Calls {
			result, err := r.result(ctx, call)
			if err != nil {
				return nil, err
			}
			messages = append(messages, llm.ToolResultMessage(call.ID, call.Name, result.Text()))
		}
	}

	return r.elide(messages, protected), nil
}

// Result returns the cached result of a call.
func (r *Renderer) Result(callID string) (tools.ToolResult, bool) {
	result, ok := r.results[callID]
	return result, ok
}

// Calls returns metrics for every executed call, in execution order.
func (r *Renderer) Calls() []model.ToolCall {
	return r.calls
}

func (r *Renderer) result(ctx context.Context, call llm.ToolCall) (tools.ToolResult, error) {
	if result, ok := r.results[call.ID]; ok {
		return result, nil
	}

	tool, ok := r.registry.Get(call.Name)
	if !ok {
		result := tools.FailureResultf("Unknown tool: %s", call.Name)
		r.results[call.ID] = result
		return result, nil
	}

	result, metrics, err := r.executor.Execute(ctx, tool, call.ID, call.Arguments)
	r.calls = append(r.calls, metrics)
	if errors.Is(err, tools.ErrPageExhausted) {
		return tools.ToolResult{}, &pageExhaustedError{callID: call.ID, err: err}
	}
	if err != nil {
		return tools.ToolResult{}, err
	}
	r.results[call.ID] = result
	return result, nil
}

// elide replaces the oldest tool results with a placeholder until the prompt
// fits the budget. Messages from index protected on are kept intact.
func (r *Renderer) elide(messages []llm.ChatMessage, protected int) []llm.ChatMessage {
	if r.budget <= 0 {
		return messages
	}
	size := estimateTokens(messages)
	if size <= r.budget {
		return messages
	}

	elided := 0
	for i := 0; i < protected && size > r.budget; i++ {
		if messages[i].Role != llm.RoleTool || messages[i].Content == elidedResult {
			continue
		}
		size -= tokens(messages[i].Content) - tokens(elidedResult)
		messages[i].Content = elidedResult
		elided++
	}
	if elided > 0 {
		logging.Debug("elided tool results", "count", elided, "estimated_tokens", size, "budget", r.budget)
	}
	return messages
}

func execute(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// estimateTokens approximates the prompt size at four bytes per token.
func estimateTokens(messages []llm.ChatMessage) int {
	n := 0
	for _, m := range messages {
		n += tokens(m.Content)
		for _, c := range m.ToolCalls {
			n += tokens(c.Name) + tokens(string(c.Arguments))
		}
	}
	return n
}

func tokens(s string) int {
	return (len(s) + 3) / 4
}
