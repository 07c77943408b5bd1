// Conversation driver.
//
// This is the loop every flow runs through: render, ask the model, record
// its tool calls, render again, until the model stops asking for tools.
//
// Information Hiding:
// - Round loop and termination hidden
// - Page-exhausted recovery hidden
// - Narration fallback hidden
// - Continuation inference hidden

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/richinex/patchscout/internal/logging"
	"github.com/richinex/patchscout/llm"
	"github.com/richinex/patchscout/model"
	"github.com/richinex/patchscout/tools"

	jsonutil "github.com/richinex/patchscout/internal/json"
)

// Driver runs flows against a model and the history tools.
type Driver struct {
	provider llm.Provider
	registry *tools.Registry
	executor *tools.Executor
	config   Config
}

// NewDriver creates a driver. registry must hold every tool a flow names.
func NewDriver(provider llm.Provider, registry *tools.Registry, executor *tools.Executor, config Config) *Driver {
	if executor == nil {
		executor = tools.NewDefaultExecutor()
	}
	return &Driver{
		provider: provider,
		registry: registry,
		executor: executor,
		config:   config,
	}
}

// Config returns the driver configuration.
func (d *Driver) Config() Config {
	return d.config
}

// Run drives flow to completion. onText receives streamed text for flows
// that stream and may be nil. Prerequisite failures match ErrPrerequisite;
// model and command failures are returned as errors.
func (d *Driver) Run(ctx context.Context, flow Flow, onText func(string)) (Result, error) {
	start := time.Now()
	log := logging.With("flow", flow.Name())

	if err := flow.Check(); err != nil {
		return Result{}, err
	}
	subset, err := d.registry.Subset(flow.ToolNames()...)
	if err != nil {
		return Result{}, err
	}

	run := &run{
		driver:   d,
		flow:     flow,
		state:    flow.State(d.config.pageSize()),
		renderer: NewRenderer(subset, d.executor, d.config.PromptTokenBudget),
		fallback: Fallback{Available: subset.Has},
		defs:     subset.Definitions(),
		client:   llm.NewClient(d.provider),
		log:      log,
		onText:   onText,
	}
	result, err := run.loop(ctx)
	result.Metadata.ExecutionTimeMs = uint64(time.Since(start).Milliseconds())
	result.Metadata.ToolCalls = run.renderer.Calls()
	result.Metadata.TokenUsage, result.Metadata.LLMCalls = run.client.Usage()
	if err != nil {
		log.Error("run failed", "error", err, "rounds", len(run.rounds))
		return result, err
	}
	log.Info("run finished",
		"outcome", result.Outcome.String(),
		"rounds", len(result.Rounds),
		"tool_calls", len(result.Metadata.ToolCalls),
		"continuation", result.Continuation != nil)
	return result, nil
}

// run is the mutable state of one Driver.Run call.
type run struct {
	driver   *Driver
	flow     Flow
	state    *PageState
	renderer *Renderer
	fallback Fallback
	defs     []llm.ToolDefinition
	client   *llm.Client
	log      *slog.Logger
	onText   func(string)

	rounds     []Round
	transcript strings.Builder
}

func (r *run) loop(ctx context.Context) (Result, error) {
	if err := r.renderer.Begin(r.flow, r.state); err != nil {
		return Result{}, err
	}
	messages, err := r.render(ctx)
	if err != nil {
		return r.result(OutcomeDone, ""), err
	}

	maxRounds := r.driver.config.maxRounds()
	for n := 0; n < maxRounds; n++ {
		if ctx.Err() != nil {
			return r.result(OutcomeDone, ""), fmt.Errorf("analysis cancelled: %w", ctx.Err())
		}

		var forward func(string)
		if r.flow.Streams() {
			forward = r.stream
		}
		resp, err := r.client.Stream(ctx, messages, r.defs, forward)
		if err != nil {
			return r.result(OutcomeDone, ""), fmt.Errorf("model request failed: %w", err)
		}

		calls := resp.ToolCalls
		if len(calls) == 0 {
			calls = r.fallback.Decide(resp.Content, r.rounds)
			for _, c := range calls {
				r.log.Info("synthesized tool call from narration", "tool", c.Name, "call_id", c.ID)
			}
		}
		if len(calls) == 0 {
			text := resp.Content
			if r.flow.Streams() {
				text = r.transcript.String()
			}
			return r.result(OutcomeDone, text), nil
		}

		r.record(resp.Content, calls)
		if messages, err = r.render(ctx); err != nil {
			return r.result(OutcomeDone, ""), err
		}
	}

	r.log.Info("round limit reached", "max_rounds", maxRounds)
	return r.result(OutcomeInconclusive, fmt.Sprintf("Analysis inconclusive after %d rounds.", maxRounds)), nil
}

func (r *run) stream(text string) {
	r.transcript.WriteString(text)
	if r.onText != nil {
		r.onText(text)
	}
}

// record merges the run state into each call and appends the round. A call
// whose input is not a JSON object is kept as sent, so the tool rejects it
// and the model sees the failure.
func (r *run) record(text string, calls []llm.ToolCall) {
	injected := make([]llm.ToolCall, len(calls))
	for i, call := range calls {
		c, err := r.state.Inject(call)
		if err != nil {
			r.log.Warn("tool input not merged", "tool", call.Name, "call_id", call.ID, "error", err)
			c = call
		}
		injected[i] = c
	}
	r.rounds = append(r.rounds, Round{Text: text, Calls: injected})
}

// render renders the prompt, advancing any call whose cursor emptied its
// page. Advanced calls carry no cursor, so each call is advanced at most
// once and the loop ends when the log itself runs out.
func (r *run) render(ctx context.Context) ([]llm.ChatMessage, error) {
	for {
		messages, err := r.renderer.Render(ctx, r.rounds)
		var exhausted *pageExhaustedError
		if !errors.As(err, &exhausted) {
			return messages, err
		}
		if err := r.advance(exhausted.callID); err != nil {
			return nil, err
		}
	}
}

func (r *run) advance(callID string) error {
	for i := len(r.rounds) - 1; i >= 0; i-- {
		for j, call := range r.rounds[i].Calls {
			if call.ID != callID {
				continue
			}
			if !jsonutil.Has(call.Arguments, "after") {
				return fmt.Errorf("call %s: %w without a cursor", callID, tools.ErrPageExhausted)
			}
			next, err := r.state.Advance(call)
			if err != nil {
				return err
			}
			calls := append([]llm.ToolCall(nil), r.rounds[i].Calls...)
			calls[j] = next
			r.rounds[i].Calls = calls
			r.log.Debug("page exhausted, advancing", "call_id", callID, "page", jsonutil.Int(next.Arguments, "page"))
			return nil
		}
	}
	return fmt.Errorf("call %s: %w", callID, tools.ErrPageExhausted)
}

func (r *run) result(outcome Outcome, text string) Result {
	res := Result{Outcome: outcome, Text: text, Rounds: r.rounds}
	if r.flow.Continues() {
		res.Continuation = continuation(r.rounds, r.state, r.renderer.Result)
	}
	return res
}

// continuation resumes after the last shown commit when the run ended on a
// commit lookup rather than a log page.
func continuation(rounds []Round, state *PageState, lookup func(callID string) (tools.ToolResult, bool)) *model.Continuation {
	var last *llm.ToolCall
	for i := len(rounds) - 1; i >= 0 && last == nil; i-- {
		if n := len(rounds[i].Calls); n > 0 {
			last = &rounds[i].Calls[n-1]
		}
	}
	if last == nil || last.Name != tools.ToolGitShow {
		return nil
	}
	sha := jsonutil.String(last.Arguments, "sha")
	if sha == "" {
		return nil
	}

	page := listingPage(rounds, sha, lookup)
	if page == 0 {
		page = state.Page
	}

	return &model.Continuation{
		After:        sha,
		Page:         page,
		StartVersion: state.Range.Start,
		EndVersion:   state.Range.End,
	}
}

// listingPage returns the page of the latest log call whose result lists
// sha, falling back to the latest log call. Zero means no log call was made.
func listingPage(rounds []Round, sha string, lookup func(callID string) (tools.ToolResult, bool)) int {
	latest := 0
	for i := len(rounds) - 1; i >= 0; i-- {
		for j := len(rounds[i].Calls) - 1; j >= 0; j-- {
			c := rounds[i].Calls[j]
			if c.Name != tools.ToolChromiumLog {
				continue
			}
			page := jsonutil.Int(c.Arguments, "page")
			if latest == 0 {
				latest = page
			}
			if result, ok := lookup(c.ID); ok && strings.Contains(result.Text(), sha) {
				return page
			}
		}
	}
	return latest
}
