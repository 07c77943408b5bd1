package tools

import (
	"context"
	"errors"

	"github.com/richinex/patchscout/history"
	"github.com/richinex/patchscout/model"
	"github.com/richinex/patchscout/vcs"
)

// Stable tool names advertised to the model.
const (
	ToolChromiumFileLog  = "chromiumFileLog"
	ToolChromiumFileShow = "chromiumFileShow"
	ToolChromiumLog      = "chromiumLog"
	ToolGitShow          = "gitShow"
)

// NoCommitsFound is the result text for an empty log.
const NoCommitsFound = "No commits found"

// History is the subset of history.Service the tools depend on.
type History interface {
	RangeCommits(ctx context.Context, r model.VersionRange) ([]string, error)
	ImplicatedCommits(ctx context.Context, r model.VersionRange, errorText string) ([]string, error)
	Hydrate(ctx context.Context, shas []string) ([]model.Commit, error)
	CommitDetails(ctx context.Context, sha string) (model.Commit, error)
	Diff(ctx context.Context, sha string) (string, error)
	FileLog(ctx context.Context, r model.VersionRange, filename string) ([]string, error)
	FileDiff(ctx context.Context, sha, filename string) (string, error)
}

var _ History = (*history.Service)(nil)

// NewChromiumRegistry registers the four history tools.
func NewChromiumRegistry(h History, config ToolConfig) *Registry {
	r := NewRegistry()
	for _, t := range []Tool{
		NewChromiumFileLogTool(h),
		NewChromiumFileShowTool(h),
		NewChromiumLogTool(h, config.DefaultPageSize()),
		NewGitShowTool(h),
	} {
		_ = r.Register(t) // names are distinct constants
	}
	return r
}

// classify turns a history error into either a model-visible failure or an
// error that aborts the round.
func classify(err error) (ToolResult, error) {
	switch {
	case vcs.IsValidationError(err),
		vcs.IsCommitNotFound(err),
		errors.Is(err, history.ErrCursorNotFound):
		return FailureResult(err), nil
	default:
		return ToolResult{}, err
	}
}

func validateVersions(start, end string) error {
	if err := vcs.ValidateVersion(start); err != nil {
		return err
	}
	return vcs.ValidateVersion(end)
}
