// File-scoped history tools used by sync error analysis.
//
// Information Hiding:
// - Working tree validation delegated to history
// - Cursor truncation hidden

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/richinex/patchscout/history"
	"github.com/richinex/patchscout/model"
	"github.com/richinex/patchscout/vcs"
)

// ChromiumFileLogTool lists the commits touching one file between two versions.
type ChromiumFileLogTool struct {
	history History
}

// NewChromiumFileLogTool creates the file-scoped log tool.
func NewChromiumFileLogTool(h History) *ChromiumFileLogTool {
	return &ChromiumFileLogTool{history: h}
}

// Metadata returns the tool metadata.
func (t *ChromiumFileLogTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        ToolChromiumFileLog,
		Description: "List the Chromium commits that changed a file between two versions.",
		Parameters: []ToolParameter{
			{Name: "startVersion", ParamType: "string", Description: "Older Chromium version", Required: true},
			{Name: "endVersion", ParamType: "string", Description: "Newer Chromium version", Required: true},
			{Name: "filename", ParamType: "string", Description: "Path relative to the Chromium src directory", Required: true},
			{Name: "after", ParamType: "string", Description: "Only list commits after this SHA"},
		},
	}
}

type fileLogArgs struct {
	StartVersion string `json:"startVersion"`
	EndVersion   string `json:"endVersion"`
	Filename     string `json:"filename"`
	After        string `json:"after"`
}

// Validate checks versions, filename presence and the optional cursor.
func (t *ChromiumFileLogTool) Validate(args json.RawMessage) error {
	var a fileLogArgs
	if err := decodeArgs(args, &a); err != nil {
		return err
	}
	if err := validateVersions(a.StartVersion, a.EndVersion); err != nil {
		return err
	}
	if strings.TrimSpace(a.Filename) == "" {
		return fmt.Errorf("filename is required")
	}
	if a.After != "" {
		return vcs.ValidateCommitSHA(a.After)
	}
	return nil
}

// Execute returns the matching log entries as a single part.
func (t *ChromiumFileLogTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	if err := t.Validate(args); err != nil {
		return FailureResult(err), nil
	}
	var a fileLogArgs
	_ = decodeArgs(args, &a)

	entries, err := t.history.FileLog(ctx, model.VersionRange{Start: a.StartVersion, End: a.EndVersion}, a.Filename)
	if err != nil {
		return classify(err)
	}
	if a.After != "" {
		if entries, err = history.TruncateAfter(entries, a.After); err != nil {
			return classify(err)
		}
	}
	if len(entries) == 0 {
		return SuccessResult(NoCommitsFound), nil
	}
	return SuccessResult(strings.Join(entries, "\n\n")), nil
}

// ChromiumFileShowTool shows one commit's changes to one file.
type ChromiumFileShowTool struct {
	history History
}

// NewChromiumFileShowTool creates the file-scoped show tool.
func NewChromiumFileShowTool(h History) *ChromiumFileShowTool {
	return &ChromiumFileShowTool{history: h}
}

// Metadata returns the tool metadata.
func (t *ChromiumFileShowTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        ToolChromiumFileShow,
		Description: "Show the message of a Chromium commit and its diff for a single file.",
		Parameters: []ToolParameter{
			{Name: "sha", ParamType: "string", Description: "Lowercase commit SHA", Required: true},
			{Name: "filename", ParamType: "string", Description: "Path relative to the Chromium src directory", Required: true},
		},
	}
}

type fileShowArgs struct {
	SHA      string `json:"sha"`
	Filename string `json:"filename"`
}

// Validate checks the SHA and filename presence.
func (t *ChromiumFileShowTool) Validate(args json.RawMessage) error {
	var a fileShowArgs
	if err := decodeArgs(args, &a); err != nil {
		return err
	}
	if err := vcs.ValidateCommitSHA(a.SHA); err != nil {
		return err
	}
	if strings.TrimSpace(a.Filename) == "" {
		return fmt.Errorf("filename is required")
	}
	return nil
}

// Execute returns the file-scoped diff.
func (t *ChromiumFileShowTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	if err := t.Validate(args); err != nil {
		return FailureResult(err), nil
	}
	var a fileShowArgs
	_ = decodeArgs(args, &a)

	diff, err := t.history.FileDiff(ctx, a.SHA, a.Filename)
	if err != nil {
		return classify(err)
	}
	return SuccessResult(diff), nil
}
