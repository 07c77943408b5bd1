package agent

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/richinex/patchscout/internal/dsa"
)

// signaturePattern matches the "-- " line and version trailer that end a
// format-patch file.
var signaturePattern = regexp.MustCompile(`\n-- ?\n[^\n]*\n*$`)

// Patch is a product patch that failed to apply.
type Patch struct {
	Name  string
	Diff  string
	Files []string
}

// ParsePatch reads a unified diff, as written by git diff or git
// format-patch, and lists the Chromium files it touches.
func ParsePatch(name, content string) (Patch, error) {
	body := stripMailbox(content)
	fileDiffs, err := godiff.ParseMultiFileDiff([]byte(body))
	if err != nil {
		return Patch{}, fmt.Errorf("failed to parse patch %s: %w", name, err)
	}

	seen := make(map[string]bool)
	var files []string
	for _, fd := range fileDiffs {
		path := cleanPath(fd.NewName)
		if path == "" {
			path = cleanPath(fd.OrigName)
		}
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		files = append(files, path)
	}
	if len(files) == 0 {
		return Patch{}, fmt.Errorf("patch %s touches no files", name)
	}
	return Patch{Name: name, Diff: strings.TrimSpace(body), Files: files}, nil
}

// stripMailbox drops a format-patch mail header and signature.
func stripMailbox(content string) string {
	if i := strings.Index(content, "diff --git "); i > 0 {
		content = content[i:]
	}
	if loc := signaturePattern.FindStringIndex(content); loc != nil {
		content = content[:loc[0]+1]
	}
	return content
}

func cleanPath(path string) string {
	if path == "" || path == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(path, "a/") || strings.HasPrefix(path, "b/") {
		return path[2:]
	}
	return path
}

// PatchIndex finds the patches an error message refers to, by patch name
// or by a path the patch touches.
type PatchIndex struct {
	patches []Patch
	files   *dsa.Trie[[]int]
}

// NewPatchIndex indexes the files touched by patches.
func NewPatchIndex(patches []Patch) *PatchIndex {
	x := &PatchIndex{patches: patches, files: dsa.NewTrie[[]int]()}
	for i, p := range patches {
		for _, f := range p.Files {
			ids, _ := x.files.Get(f)
			x.files.Insert(f, append(ids, i))
		}
	}
	return x
}

// Mentioned returns, in index order, the patches named in text or owning a
// path that appears in it. A path may carry a ":line" suffix, a git
// "a/" or "b/" prefix, or a "../../" prefix from a build directory.
func (x *PatchIndex) Mentioned(text string) []Patch {
	hit := make([]bool, len(x.patches))
	for i, p := range x.patches {
		if p.Name != "" && strings.Contains(text, p.Name) {
			hit[i] = true
		}
	}
	for _, token := range strings.FieldsFunc(text, isPathSeparator) {
		path := cleanPath(trimRelative(token))
		key, ids, ok := x.files.LongestPrefix(path)
		if !ok || (len(path) > len(key) && path[len(key)] != ':') {
			continue
		}
		for _, i := range ids {
			hit[i] = true
		}
	}

	var out []Patch
	for i, p := range x.patches {
		if hit[i] {
			out = append(out, p)
		}
	}
	return out
}

func trimRelative(path string) string {
	for {
		switch {
		case strings.HasPrefix(path, "../"):
			path = path[3:]
		case strings.HasPrefix(path, "./"):
			path = path[2:]
		default:
			return path
		}
	}
}

func isPathSeparator(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune("\"'`()[]<>,;", r)
}
