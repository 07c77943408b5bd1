// Paged full-history log tool.
//
// Information Hiding:
// - Ordering of implicated commits hidden
// - Page slicing and cursor truncation hidden
// - Detail hydration hidden

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

// ChromiumLogTool returns one page of the commit log between two versions.
type ChromiumLogTool struct {
	history  History
	pageSize int
}

// NewChromiumLogTool creates the paged log tool.
func NewChromiumLogTool(h History, defaultPageSize int) *ChromiumLogTool {
	if defaultPageSize <= 0 {
		defaultPageSize = 25
	}
	return &ChromiumLogTool{history: h, pageSize: defaultPageSize}
}

// Metadata returns the tool metadata.
func (t *ChromiumLogTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name: ToolChromiumLog,
		Description: "List Chromium commits between two versions, one page at a time. " +
			"Each entry has the commit SHA, its message and the files it changed. " +
			"Request the next page to see older commits.",
		Parameters: []ToolParameter{
			{Name: "startVersion", ParamType: "string", Description: "Older Chromium version, e.g. 136.0.7064.0", Required: true},
			{Name: "endVersion", ParamType: "string", Description: "Newer Chromium version, e.g. 136.0.7067.0", Required: true},
			{Name: "page", ParamType: "integer", Description: "1-indexed page number"},
			{Name: "pageSize", ParamType: "integer", Description: "Commits per page"},
			{Name: "reverse", ParamType: "boolean", Description: "List oldest commits first"},
			{Name: "after", ParamType: "string", Description: "Only list commits after this SHA within the page"},
			{Name: "error", ParamType: "string", Description: "Build error text; commits touching files it names are listed first"},
		},
	}
}

type chromiumLogArgs struct {
	StartVersion string `json:"startVersion"`
	EndVersion   string `json:"endVersion"`
	Page         int    `json:"page"`
	PageSize     int    `json:"pageSize"`
	Reverse      bool   `json:"reverse"`
	After        string `json:"after"`
	Error        string `json:"error"`
}

// Validate checks versions and the optional cursor.
func (t *ChromiumLogTool) Validate(args json.RawMessage) error {
	var a chromiumLogArgs
	if err := decodeArgs(args, &a); err != nil {
		return err
	}
	return a.validate()
}

func (a chromiumLogArgs) validate() error {
	if err := validateVersions(a.StartVersion, a.EndVersion); err != nil {
		return err
	}
	if a.After != "" {
		return vcs.ValidateCommitSHA(a.After)
	}
	return nil
}

// Execute returns the requested page.
func (t *ChromiumLogTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a chromiumLogArgs
	if err := decodeArgs(args, &a); err != nil {
		return FailureResult(err), nil
	}
	if err := a.validate(); err != nil {
		return FailureResult(err), nil
	}
	if a.Page < 1 {
		a.Page = 1
	}
	if a.PageSize < 1 {
		a.PageSize = t.pageSize
	}
	r := model.VersionRange{Start: a.StartVersion, End: a.EndVersion}

	var implicated []string
	if strings.TrimSpace(a.Error) != "" {
		var err error
		if implicated, err = t.history.ImplicatedCommits(ctx, r, a.Error); err != nil {
			return classify(err)
		}
	}

	all, err := t.history.RangeCommits(ctx, r)
	if err != nil {
		return classify(err)
	}

	page := LogPage(all, implicated, a.Reverse, a.Page, a.PageSize)
	if len(page) == 0 {
		return SuccessResult(NoCommitsFound), nil
	}

	if a.After != "" {
		rest, err := history.TruncateAfter(page, a.After)
		if err != nil || len(rest) == 0 {
			return ToolResult{}, fmt.Errorf("%w: page %d after %s", ErrPageExhausted, a.Page, a.After)
		}
		page = rest
	}

	commits, err := t.history.Hydrate(ctx, page)
	if err != nil {
		return classify(err)
	}
	entries := make([]string, len(commits))
	for i, c := range commits {
		entries[i] = c.Entry()
	}

	return SuccessResult(
		fmt.Sprintf("This is page %d of the log:\n\n", a.Page),
		strings.Join(entries, "\n\n"),
	), nil
}

// LogPage slices page out of all and puts the implicated commits in front
// of it. Implicated commits lead every page and are removed from the paged
// list. reverse flips both lists. Past the end of the list the page is
// empty, except that page 1 always carries the implicated commits.
func LogPage(all, implicated []string, reverse bool, page, size int) []string {
	lead := make(map[string]bool, len(implicated))
	head := make([]string, 0, len(implicated))
	for _, sha := range implicated {
		if !lead[sha] {
			lead[sha] = true
			head = append(head, sha)
		}
	}

	rest := make([]string, 0, len(all))
	for _, sha := range all {
		if !lead[sha] {
			rest = append(rest, sha)
		}
	}
	if reverse {
		reverseInPlace(head)
		reverseInPlace(rest)
	}

	slice := Paginate(rest, page, size)
	if len(slice) == 0 && (page != 1 || len(head) == 0) {
		return nil
	}
	return append(head, slice...)
}

func reverseInPlace(items []string) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

// Paginate returns items [(page-1)*size, page*size), or nil past the end.
func Paginate(items []string, page, size int) []string {
	if page < 1 || size < 1 {
		return nil
	}
	start := (page - 1) * size
	if start >= len(items) {
		return nil
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
