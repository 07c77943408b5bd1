// Tool Executor.
//
// Information Hiding:
// - Validation-before-execution ordering hidden
// - Timing, logging and metrics hidden
// - Page-exhausted pass-through hidden

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/richinex/patchscout/internal/logging"
	"github.com/richinex/patchscout/model"
)

// Executor runs tools once each, with a timeout. There is no retry: a
// failed result goes back to the model, a returned error ends the round.
type Executor struct {
	config ToolConfig
}

// NewExecutor creates a new tool executor with the given configuration.
func NewExecutor(config ToolConfig) *Executor {
	return &Executor{config: config}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return &Executor{config: DefaultToolConfig()}
}

// Execute validates args and runs tool, returning the result together with
// invocation metrics. ErrPageExhausted is returned unchanged.
func (e *Executor) Execute(ctx context.Context, tool Tool, callID string, args json.RawMessage) (ToolResult, model.ToolCall, error) {
	name := tool.Metadata().Name
	start := time.Now()
	call := model.ToolCall{Name: name, CallID: callID, InputSize: len(args)}
	log := logging.With("tool", name, "call_id", callID)

	finish := func(result ToolResult, outcome string) model.ToolCall {
		elapsed := time.Since(start)
		call.DurationMs = uint64(elapsed.Milliseconds())
		call.OutputSize = result.Size()
		call.Success = outcome == outcomeSuccess
		toolInvocations.WithLabelValues(name, outcome).Inc()
		toolDuration.WithLabelValues(name).Observe(elapsed.Seconds())
		return call
	}

	if err := tool.Validate(args); err != nil {
		result := FailureResult(err)
		log.Info("tool input rejected", "error", err)
		return result, finish(result, outcomeFailure), nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(e.config.Timeout())*time.Second)
	defer cancel()

	result, err := tool.Execute(ctx, args)
	switch {
	case errors.Is(err, ErrPageExhausted):
		log.Debug("page exhausted")
		return ToolResult{}, finish(ToolResult{}, outcomePageExhausted), err
	case err != nil:
		log.Error("tool execution failed", "error", err)
		return ToolResult{}, finish(ToolResult{}, outcomeError), fmt.Errorf("tool %q failed: %w", name, err)
	case !result.Success():
		log.Info("tool returned failure", "error", result.Error)
		return result, finish(result, outcomeFailure), nil
	}

	call = finish(result, outcomeSuccess)
	log.Debug("tool succeeded", "duration_ms", call.DurationMs, "output_bytes", call.OutputSize)
	return result, call, nil
}

// ExecuteOnce runs a tool once without metrics, validating first.
func ExecuteOnce(ctx context.Context, tool Tool, args json.RawMessage) (ToolResult, error) {
	if err := tool.Validate(args); err != nil {
		return FailureResult(err), nil
	}
	return tool.Execute(ctx, args)
}
