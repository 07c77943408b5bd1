package tools

import (
	"context"
	"encoding/json"

	"github.com/richinex/patchscout/vcs"
)

// GitShowTool returns a commit's message and full diff.
type GitShowTool struct {
	history History
}

// NewGitShowTool creates the commit show tool.
func NewGitShowTool(h History) *GitShowTool {
	return &GitShowTool{history: h}
}

// Metadata returns the tool metadata.
func (t *GitShowTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        ToolGitShow,
		Description: "Show the message, changed files and diff of a single Chromium commit.",
		Parameters: []ToolParameter{
			{Name: "sha", ParamType: "string", Description: "Full or abbreviated lowercase commit SHA", Required: true},
		},
	}
}

type shaArgs struct {
	SHA string `json:"sha"`
}

// Validate checks the SHA.
func (t *GitShowTool) Validate(args json.RawMessage) error {
	var a shaArgs
	if err := decodeArgs(args, &a); err != nil {
		return err
	}
	return vcs.ValidateCommitSHA(a.SHA)
}

// Execute returns two parts: the commit entry and its diff.
func (t *GitShowTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	if err := t.Validate(args); err != nil {
		return FailureResult(err), nil
	}
	var a shaArgs
	_ = decodeArgs(args, &a) // already validated

	commit, err := t.history.CommitDetails(ctx, a.SHA)
	if err != nil {
		return classify(err)
	}
	diff, err := t.history.Diff(ctx, a.SHA)
	if err != nil {
		return classify(err)
	}
	return SuccessResult(commit.Show()+"\n\n", diff), nil
}
