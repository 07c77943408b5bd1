package vcs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Validation failures. Messages are shown to the model verbatim, so the
// wrapped form is "<sentinel>: <value>".
var (
	ErrInvalidSHA     = errors.New("Invalid commit SHA")
	ErrInvalidVersion = errors.New("Invalid version")
	ErrFileNotFound   = errors.New("File not found")
	ErrNotInMainTree  = errors.New("File not in main tree")
)

var (
	shaPattern     = regexp.MustCompile(`^[0-9a-f]+$`)
	versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)
)

// ValidateCommitSHA rejects anything that is not plain lowercase hex.
func ValidateCommitSHA(sha string) error {
	if !shaPattern.MatchString(sha) {
		return fmt.Errorf("%w: %s", ErrInvalidSHA, sha)
	}
	return nil
}

// ValidateVersion requires a four-component dotted version.
func ValidateVersion(version string) error {
	if !versionPattern.MatchString(version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, version)
	}
	return nil
}

// IsValidationError reports whether err came from one of the validators.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidSHA) ||
		errors.Is(err, ErrInvalidVersion) ||
		errors.Is(err, ErrFileNotFound) ||
		errors.Is(err, ErrNotInMainTree)
}

// EnsureFileInTree checks that filename (relative to root) exists and that the
// repository containing it is root itself, not a nested checkout.
func EnsureFileInTree(root, filename string) error {
	full := filepath.Join(root, filename)
	info, err := os.Stat(full)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrFileNotFound, filename)
	}

	dir := full
	if !info.IsDir() {
		dir = filepath.Dir(full)
	}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotInMainTree, filename)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotInMainTree, filename)
	}

	if !samePath(wt.Filesystem.Root(), root) {
		return fmt.Errorf("%w: %s", ErrNotInMainTree, filename)
	}
	return nil
}

func samePath(a, b string) bool {
	return canonical(a) == canonical(b)
}

func canonical(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	return filepath.Clean(p)
}

var commitNotFoundMarkers = []string{
	"bad object",
	"unknown revision",
	"ambiguous argument",
	"not a valid object name",
	"invalid object name",
}

// IsCommitNotFound reports whether a gateway failure was caused by a
// revision that does not exist in the repository.
func IsCommitNotFound(err error) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	stderr := strings.ToLower(cmdErr.Stderr)
	for _, marker := range commitNotFoundMarkers {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}
