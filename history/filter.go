package history

import (
	"regexp"
	"strings"
)

var (
	headerLine = regexp.MustCompile(`^\s*(Author|AuthorDate|Commit|CommitDate|Date|Merge):`)

	// Review and bot trailers, both "Key: value" and legacy "KEY=value".
	trailerLine = regexp.MustCompile(`(?i)^\s*(Bug|Fixed|Change-Id|Reviewed-on|Reviewed-by|Commit-Queue|` +
		`Cr-Commit-Position|Cr-Branched-From|Cr-Original-Commit-Position|Cr-Original-Branched-From|` +
		`Auto-Submit|Bot-Commit|Owners-Override|Rubber-Stamper|Signed-off-by|Acked-by|Tested-by|` +
		`Co-authored-by|Cq-Include-Trybots|Include-Ci-Only-Tests|Low-Coverage-Reason|` +
		`No-Try|No-Presubmit|No-Tree-Checks|Original-Change-Id|Original-Commit-Position|TBR|R)\s*[:=]`)

	quotedLine = regexp.MustCompile(`^\s*>`)
)

// FilterFooters strips metadata headers, review trailers and quoted lines
// from a commit message or log block. Runs of blank lines collapse to one.
// Applying it twice yields the same text.
func FilterFooters(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		if headerLine.MatchString(line) || trailerLine.MatchString(line) || quotedLine.MatchString(line) {
			continue
		}
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, strings.TrimRight(line, " \t\r"))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// FilterDiff drops "diff --git" and "index" header lines from a diff.
func FilterDiff(diff string) string {
	lines := strings.Split(diff, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git ") || strings.HasPrefix(line, "index ") {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// splitShow separates the commit header of `git show` output from its diff.
func splitShow(out string) (header, diff string) {
	if strings.HasPrefix(out, "diff --git ") {
		return "", out
	}
	if i := strings.Index(out, "\ndiff --git "); i >= 0 {
		return out[:i], out[i+1:]
	}
	return out, ""
}
