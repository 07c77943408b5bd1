package history

import (
	"path"
	"regexp"
	"strings"
)

var sourcePath = regexp.MustCompile(
	`(?:\.\./)*[A-Za-z0-9_+\-][A-Za-z0-9_+\-./]*\.(?:cc|cpp|c|h|hh|mm|m|java|kt|py|gn|gni|mojom|idl|json|proto|rs|ts|js|grd|grdp|xtb)\b`)

// generatedRoots are build output subdirectories that never exist in git.
var generatedRoots = []string{"gen/", "obj/", "../../out/"}

// BuildErrorFilenames extracts source paths named in compiler output and
// resolves them against outDir, the build directory relative to the
// checkout root (e.g. "out/Default"). Generated files and paths that
// escape the checkout are dropped. Order of first appearance is kept.
func BuildErrorFilenames(errorText, outDir string) []string {
	seen := make(map[string]bool)
	var files []string

	for _, m := range sourcePath.FindAllString(errorText, -1) {
		if isGenerated(m) {
			continue
		}
		resolved := m
		if strings.HasPrefix(m, "../") {
			resolved = path.Join(outDir, m)
		}
		resolved = path.Clean(resolved)
		if resolved == "." || strings.HasPrefix(resolved, "../") || path.IsAbs(resolved) {
			continue
		}
		if outDir != "" && strings.HasPrefix(resolved, path.Clean(outDir)+"/") {
			continue
		}
		if !seen[resolved] {
			seen[resolved] = true
			files = append(files, resolved)
		}
	}
	return files
}

func isGenerated(p string) bool {
	for _, root := range generatedRoots {
		if strings.HasPrefix(p, root) {
			return true
		}
	}
	return false
}
