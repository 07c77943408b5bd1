// Package agent drives multi-round, tool-augmented model conversations that
// analyse Chromium upgrade failures and search commit history.
//
// Contains the types shared by the driver, the flows and their callers.
package agent

import (
	"encoding/json"

	"github.com/richinex/patchscout/llm"
	"github.com/richinex/patchscout/model"
)

// ToolCall is an alias for model.ToolCall for tool call metadata.
type ToolCall = model.ToolCall

// Round is one model turn: the text it produced and the tool calls it asked
// for, after per-flow state was merged into their inputs. Rounds are never
// modified once recorded, except that a page-exhausted call is replaced by
// its advanced copy.
type Round struct {
	Text  string
	Calls []llm.ToolCall
}

// Outcome is how a conversation ended.
type Outcome int

const (
	// OutcomeDone means the model stopped asking for tools.
	OutcomeDone Outcome = iota
	// OutcomeInconclusive means the round limit was hit first.
	OutcomeInconclusive
)

// String returns the outcome name.
func (o Outcome) String() string {
	if o == OutcomeInconclusive {
		return "inconclusive"
	}
	return "done"
}

// Metadata contains metadata about a run.
type Metadata struct {
	ExecutionTimeMs uint64
	ToolCalls       []ToolCall
	TokenUsage      llm.TokenUsage
	LLMCalls        int
}

// Result is the terminal output of Driver.Run.
type Result struct {
	Outcome Outcome
	// Text is the user-visible answer: the final round's text, or every
	// round's text for flows that stream.
	Text string
	// Continuation is set when more of the log may be worth reading.
	Continuation *model.Continuation
	Rounds       []Round
	Metadata     Metadata
}

// ContinuationJSON returns the continuation as persisted metadata, or ""
// when there is none.
func (r Result) ContinuationJSON() string {
	if r.Continuation == nil {
		return ""
	}
	data, err := json.Marshal(r.Continuation)
	if err != nil {
		return ""
	}
	return string(data)
}
