// Package model provides domain types shared across packages.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Change is one line of a commit's name-status block.
type Change struct {
	Status  string `json:"status"`             // A, M, D, R100, C075, ...
	OldPath string `json:"old_path,omitempty"` // Set for renames and copies
	Path    string `json:"path"`
}

// String renders the change the way git prints it.
func (c Change) String() string {
	if c.OldPath != "" {
		return c.Status + "\t" + c.OldPath + "\t" + c.Path
	}
	return c.Status + "\t" + c.Path
}

// Commit is an immutable commit record as placed into prompts.
type Commit struct {
	SHA     string   `json:"sha"`
	Meta    string   `json:"meta,omitempty"` // Author/date line
	Message string   `json:"message"`        // Footer-filtered body
	Changes []Change `json:"changes,omitempty"`
}

// NameStatus returns the change list as git's name-status block.
func (c Commit) NameStatus() string {
	lines := make([]string, len(c.Changes))
	for i, ch := range c.Changes {
		lines[i] = ch.String()
	}
	return strings.Join(lines, "\n")
}

// Size approximates the bytes held by the commit, used for cache weighing.
func (c Commit) Size() int {
	n := len(c.SHA) + len(c.Meta) + len(c.Message)
	for _, ch := range c.Changes {
		n += len(ch.Status) + len(ch.OldPath) + len(ch.Path)
	}
	return n
}

// Entry renders the commit as a log entry: sha, message, changed files.
func (c Commit) Entry() string {
	return c.render(false)
}

// Show renders the commit with its author/date metadata.
func (c Commit) Show() string {
	return c.render(true)
}

func (c Commit) render(withMeta bool) string {
	var b strings.Builder
	b.WriteString("commit ")
	b.WriteString(c.SHA)
	if withMeta && c.Meta != "" {
		b.WriteString("\n")
		b.WriteString(c.Meta)
	}
	if c.Message != "" {
		b.WriteString("\n\n")
		b.WriteString(c.Message)
	}
	if len(c.Changes) > 0 {
		b.WriteString("\n\n")
		b.WriteString(c.NameStatus())
	}
	return b.String()
}

// VersionRange scopes a commit-log query to start..end.
type VersionRange struct {
	Start string `json:"startVersion"`
	End   string `json:"endVersion"`
}

// Key returns the git revision range, also used as the log cache key.
func (r VersionRange) Key() string {
	return r.Start + ".." + r.End
}

// CompareVersions compares two dotted version strings component-wise.
// Both sides must have the same number of numeric components.
func CompareVersions(a, b string) (int, error) {
	pa := strings.Split(a, ".")
	pb := strings.Split(b, ".")
	if len(pa) != len(pb) {
		return 0, fmt.Errorf("cannot compare versions %q and %q: component count differs", a, b)
	}
	for i := range pa {
		x, err := strconv.Atoi(pa[i])
		if err != nil {
			return 0, fmt.Errorf("invalid version component %q in %q", pa[i], a)
		}
		y, err := strconv.Atoi(pb[i])
		if err != nil {
			return 0, fmt.Errorf("invalid version component %q in %q", pb[i], b)
		}
		if x != y {
			return x - y, nil
		}
	}
	return 0, nil
}

// Continuation is the cursor that lets a later conversation turn resume a
// paged analysis where the previous one stopped.
type Continuation struct {
	After        string `json:"after"`
	Page         int    `json:"page"`
	StartVersion string `json:"startVersion"`
	EndVersion   string `json:"endVersion"`
}

// Range returns the version range the continuation belongs to.
func (c Continuation) Range() VersionRange {
	return VersionRange{Start: c.StartVersion, End: c.EndVersion}
}

// ParseContinuation decodes persisted continuation metadata.
// Empty input yields nil without error.
func ParseContinuation(data string) (*Continuation, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}
	var c Continuation
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("invalid continuation: %w", err)
	}
	return &c, nil
}

// ToolCall contains metrics about a tool invocation.
type ToolCall struct {
	Name       string `json:"name"`
	CallID     string `json:"call_id"`
	InputSize  int    `json:"input_size"`
	OutputSize int    `json:"output_size"`
	DurationMs uint64 `json:"duration_ms"`
	Success    bool   `json:"success"`
}
