// Conversation flows.
//
// Information Hiding:
// - Prompt template selection and data hidden
// - Per-flow tool subsets hidden
// - Prerequisite checks hidden

package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/richinex/patchscout/model"
	"github.com/richinex/patchscout/tools"
	"github.com/richinex/patchscout/vcs"
)

// ErrPrerequisite marks a flow that cannot start because its inputs are
// incomplete. The error message is meant for the user.
var ErrPrerequisite = errors.New("missing prerequisite")

// PrerequisiteError carries the user-facing explanation.
type PrerequisiteError struct {
	Message string
}

func (e *PrerequisiteError) Error() string { return e.Message }

// Unwrap makes errors.Is(err, ErrPrerequisite) hold.
func (e *PrerequisiteError) Unwrap() error { return ErrPrerequisite }

func prerequisite(format string, args ...interface{}) error {
	return &PrerequisiteError{Message: fmt.Sprintf(format, args...)}
}

// ContinueKeyword is the message that resumes a previous run.
const ContinueKeyword = "continue"

// IsContinue reports whether a user message asks to resume.
func IsContinue(message string) bool {
	return strings.EqualFold(strings.TrimSpace(message), ContinueKeyword)
}

// Flow is one kind of conversation the driver can run.
type Flow interface {
	// Name identifies the flow and selects its prompt templates.
	Name() string
	// ToolNames is the subset of tools offered to the model.
	ToolNames() []string
	// Check reports missing inputs before any model round starts.
	Check() error
	// State returns the fresh pagination state for a run.
	State(pageSize int) *PageState
	// PromptData is passed to the flow's templates.
	PromptData(state *PageState) interface{}
	// Streams reports whether every round's text goes to the user live.
	Streams() bool
	// Continues reports whether the flow can emit a continuation.
	Continues() bool
}

type pagedPrompt struct {
	Range    model.VersionRange
	PageSize int
	Page     int
	After    string
	Resumed  bool
	LogTool  string
	ShowTool string
}

func newPagedPrompt(state *PageState) pagedPrompt {
	return pagedPrompt{
		Range:    state.Range,
		PageSize: state.PageSize,
		Page:     state.Page,
		After:    state.After,
		Resumed:  state.After != "",
		LogTool:  tools.ToolChromiumLog,
		ShowTool: tools.ToolGitShow,
	}
}

func checkRange(r model.VersionRange) error {
	if r.Start == "" || r.End == "" {
		return prerequisite("Could not determine the Chromium versions to compare.")
	}
	if err := vcs.ValidateVersion(r.Start); err != nil {
		return prerequisite("%s", err.Error())
	}
	if err := vcs.ValidateVersion(r.End); err != nil {
		return prerequisite("%s", err.Error())
	}
	cmp, err := model.CompareVersions(r.Start, r.End)
	if err != nil {
		return prerequisite("%s", err.Error())
	}
	if cmp >= 0 {
		return prerequisite("Version %s is not older than %s.", r.Start, r.End)
	}
	return nil
}

// BuildErrorFlow finds the upstream commit behind a build error.
type BuildErrorFlow struct {
	Range        model.VersionRange
	ErrorText    string
	Continuation *model.Continuation
	PageSize     int
}

func (f *BuildErrorFlow) Name() string { return "build_error" }

func (f *BuildErrorFlow) ToolNames() []string {
	return []string{tools.ToolChromiumLog, tools.ToolGitShow}
}

func (f *BuildErrorFlow) Check() error {
	if IsContinue(f.ErrorText) && f.Continuation == nil {
		return prerequisite("There is no previous analysis to continue.")
	}
	if strings.TrimSpace(f.ErrorText) == "" {
		return prerequisite("No build error to analyse.")
	}
	return checkRange(f.effectiveRange())
}

func (f *BuildErrorFlow) State(pageSize int) *PageState {
	if f.PageSize > 0 {
		pageSize = f.PageSize
	}
	s := NewPageState(f.Range, pageSize)
	s.ErrorText = f.ErrorText
	s.Resume(f.Continuation)
	return s
}

func (f *BuildErrorFlow) PromptData(state *PageState) interface{} {
	return struct {
		pagedPrompt
		ErrorText string
	}{newPagedPrompt(state), f.ErrorText}
}

func (f *BuildErrorFlow) Streams() bool   { return false }
func (f *BuildErrorFlow) Continues() bool { return true }

func (f *BuildErrorFlow) effectiveRange() model.VersionRange {
	if f.Continuation != nil && f.Continuation.StartVersion != "" {
		return f.Continuation.Range()
	}
	return f.Range
}

// CommitSearchFlow answers a free-text question about the commits in a range.
type CommitSearchFlow struct {
	Range        model.VersionRange
	Query        string
	Continuation *model.Continuation
	PageSize     int
}

func (f *CommitSearchFlow) Name() string { return "commit_search" }

func (f *CommitSearchFlow) ToolNames() []string {
	return []string{tools.ToolChromiumLog, tools.ToolGitShow}
}

func (f *CommitSearchFlow) Check() error {
	if IsContinue(f.Query) && f.Continuation == nil {
		return prerequisite("There is no previous search to continue.")
	}
	if strings.TrimSpace(f.Query) == "" {
		return prerequisite("Nothing to search for.")
	}
	r := f.Range
	if f.Continuation != nil && f.Continuation.StartVersion != "" {
		r = f.Continuation.Range()
	}
	return checkRange(r)
}

func (f *CommitSearchFlow) State(pageSize int) *PageState {
	if f.PageSize > 0 {
		pageSize = f.PageSize
	}
	s := NewPageState(f.Range, pageSize)
	s.Resume(f.Continuation)
	return s
}

func (f *CommitSearchFlow) PromptData(state *PageState) interface{} {
	return struct {
		pagedPrompt
		Query string
	}{newPagedPrompt(state), f.Query}
}

func (f *CommitSearchFlow) Streams() bool   { return false }
func (f *CommitSearchFlow) Continues() bool { return true }

// SyncErrorFlow explains why patches failed to apply after a sync.
type SyncErrorFlow struct {
	Range     model.VersionRange
	ErrorText string
	Patches   []Patch
}

func (f *SyncErrorFlow) Name() string { return "sync_error" }

func (f *SyncErrorFlow) ToolNames() []string {
	return []string{tools.ToolChromiumFileLog, tools.ToolChromiumFileShow}
}

func (f *SyncErrorFlow) Check() error {
	if len(f.Patches) == 0 {
		return prerequisite("No failed patch found to analyse.")
	}
	return checkRange(f.Range)
}

func (f *SyncErrorFlow) State(pageSize int) *PageState {
	return NewPageState(f.Range, pageSize)
}

func (f *SyncErrorFlow) PromptData(state *PageState) interface{} {
	return struct {
		Range     model.VersionRange
		ErrorText string
		Patches   []Patch
		LogTool   string
		ShowTool  string
	}{f.Range, f.ErrorText, f.Patches, tools.ToolChromiumFileLog, tools.ToolChromiumFileShow}
}

func (f *SyncErrorFlow) Streams() bool   { return true }
func (f *SyncErrorFlow) Continues() bool { return false }
