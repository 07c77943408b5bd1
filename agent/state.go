// Per-run pagination state.
//
// Information Hiding:
// - Which tool inputs receive which state fields hidden
// - Page counter advancement hidden
// - Inputs are rewritten by copy, the model's call is never mutated

package agent

import (
	"github.com/richinex/patchscout/llm"
	"github.com/richinex/patchscout/model"
	"github.com/richinex/patchscout/tools"

	jsonutil "github.com/richinex/patchscout/internal/json"
)

// PageState is the cross-call state of one run: which page of the range the
// next log call reads, and the cursor a resumed run starts after. It is owned
// by the run and passed by pointer through the loop.
type PageState struct {
	Range     model.VersionRange
	Page      int
	PageSize  int
	After     string
	ErrorText string
}

// NewPageState starts at page 1 of r.
func NewPageState(r model.VersionRange, pageSize int) *PageState {
	return &PageState{Range: r, Page: 1, PageSize: pageSize}
}

// Resume positions the state at a persisted continuation.
func (s *PageState) Resume(c *model.Continuation) {
	if c == nil {
		return
	}
	if c.Page > 0 {
		s.Page = c.Page
	}
	s.After = c.After
	if c.StartVersion != "" && c.EndVersion != "" {
		s.Range = c.Range()
	}
}

// Inject returns a copy of call whose input carries the state. Paged log
// calls take the current page and cursor, after which the page counter moves
// on and the cursor is spent. File log calls only receive the version range
// when they omit it. Other calls are returned unchanged.
func (s *PageState) Inject(call llm.ToolCall) (llm.ToolCall, error) {
	var fields []jsonutil.Field
	switch call.Name {
	case tools.ToolChromiumLog:
		fields = append(fields,
			jsonutil.Set("page", s.Page),
			jsonutil.Set("pageSize", s.PageSize),
		)
		fields = append(fields, s.rangeFields()...)
		if s.After != "" {
			fields = append(fields, jsonutil.Set("after", s.After))
		}
		if s.ErrorText != "" {
			fields = append(fields, jsonutil.Set("error", s.ErrorText))
		}
	case tools.ToolChromiumFileLog:
		if !jsonutil.Has(call.Arguments, "startVersion") || !jsonutil.Has(call.Arguments, "endVersion") {
			fields = append(fields, s.rangeFields()...)
		}
	default:
		return call, nil
	}

	if len(fields) == 0 {
		return call, nil
	}
	args, err := jsonutil.Merge(call.Arguments, fields...)
	if err != nil {
		return call, err
	}
	if call.Name == tools.ToolChromiumLog {
		s.Page++
		s.After = ""
	}
	return llm.ToolCall{ID: call.ID, Name: call.Name, Arguments: args}, nil
}

// Advance rewrites an exhausted log call to read the next prospective page
// without a cursor, and moves the counter past it.
func (s *PageState) Advance(call llm.ToolCall) (llm.ToolCall, error) {
	args, err := jsonutil.Merge(call.Arguments,
		jsonutil.Set("page", s.Page),
		jsonutil.Delete("after"),
	)
	if err != nil {
		return call, err
	}
	s.Page++
	return llm.ToolCall{ID: call.ID, Name: call.Name, Arguments: args}, nil
}

func (s *PageState) rangeFields() []jsonutil.Field {
	if s.Range.Start == "" || s.Range.End == "" {
		return nil
	}
	return []jsonutil.Field{
		jsonutil.Set("startVersion", s.Range.Start),
		jsonutil.Set("endVersion", s.Range.End),
	}
}
