package vcs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellRunnerTrimsStdout(t *testing.T) {
	r := NewShellRunner(5 * time.Second)
	out, err := r.Run(context.Background(), "printf '  hello\\n\\n'", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestShellRunnerUsesDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644))

	out, err := NewShellRunner(0).Run(context.Background(), "ls", dir)
	require.NoError(t, err)
	assert.Equal(t, "marker.txt", out)
}

func TestShellRunnerCommandError(t *testing.T) {
	_, err := NewShellRunner(0).Run(context.Background(), "echo 'fatal: bad object deadbeef' >&2; exit 3", t.TempDir())
	require.Error(t, err)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Contains(t, cmdErr.Stderr, "bad object")
	assert.True(t, IsCommitNotFound(err))
}

func TestShellRunnerHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewShellRunner(0).Run(ctx, "sleep 5", t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQuote(t *testing.T) {
	tricky := "it's $(rm -rf /); `x`"
	out, err := NewShellRunner(0).Run(context.Background(), "printf %s "+Quote(tricky), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, tricky, out)
}

func TestValidateCommitSHA(t *testing.T) {
	assert.NoError(t, ValidateCommitSHA("0123456789abcdef"))

	for _, bad := range []string{"invalid-sha", "ABCDEF", "", "abc; rm -rf /", "abc\n"} {
		err := ValidateCommitSHA(bad)
		require.Error(t, err, bad)
		assert.ErrorIs(t, err, ErrInvalidSHA)
		assert.Equal(t, "Invalid commit SHA: "+bad, err.Error())
	}
}

func TestValidateVersion(t *testing.T) {
	assert.NoError(t, ValidateVersion("136.0.7064.0"))

	for _, bad := range []string{"136.0.7064", "136.0.7064.0.1", "v136.0.7064.0", "a.b.c.d", ""} {
		err := ValidateVersion(bad)
		require.Error(t, err, bad)
		assert.Equal(t, "Invalid version: "+bad, err.Error())
		assert.True(t, IsValidationError(err))
	}
}

func TestEnsureFileInTree(t *testing.T) {
	root := t.TempDir()
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "chrome", "browser"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "chrome", "browser", "a.cc"), []byte("x"), 0o644))

	nested := filepath.Join(root, "third_party", "lib")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	_, err = git.PlainInit(nested, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(nested, "b.cc"), []byte("x"), 0o644))

	t.Run("file in main tree", func(t *testing.T) {
		assert.NoError(t, EnsureFileInTree(root, "chrome/browser/a.cc"))
	})

	t.Run("missing file", func(t *testing.T) {
		err := EnsureFileInTree(root, "chrome/missing.cc")
		assert.ErrorIs(t, err, ErrFileNotFound)
		assert.Equal(t, "File not found: chrome/missing.cc", err.Error())
	})

	t.Run("file in nested checkout", func(t *testing.T) {
		err := EnsureFileInTree(root, "third_party/lib/b.cc")
		assert.ErrorIs(t, err, ErrNotInMainTree)
		assert.Equal(t, "File not in main tree: third_party/lib/b.cc", err.Error())
	})
}

func TestIsCommitNotFoundIgnoresOtherErrors(t *testing.T) {
	assert.False(t, IsCommitNotFound(errors.New("bad object")))
	assert.False(t, IsCommitNotFound(&CommandError{ExitCode: 128, Stderr: "fatal: not a git repository"}))
}
