// Version control command runner.
//
// Information Hiding:
// - Process spawning via sh -c hidden
// - Stdout/stderr capture hidden
// - Exit code extraction hidden
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/richinex/patchscout/internal/logging"
)

// Runner executes a single read-only query in a working copy and returns
// its trimmed stdout. It performs no interpretation of the command.
type Runner interface {
	Run(ctx context.Context, command, dir string) (string, error)
}

// CommandError is returned when a command exits non-zero.
type CommandError struct {
	Command  string
	Dir      string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("command %q failed with exit code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("command %q failed with exit code %d: %s", e.Command, e.ExitCode, msg)
}

// ShellRunner runs commands through sh -c.
type ShellRunner struct {
	timeout time.Duration
}

// NewShellRunner creates a runner. A zero timeout leaves deadline handling
// to the caller's context.
func NewShellRunner(timeout time.Duration) *ShellRunner {
	return &ShellRunner{timeout: timeout}
}

// Run executes command in dir.
func (r *ShellRunner) Run(ctx context.Context, command, dir string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	logging.Debug("vcs command finished",
		"command", command,
		"dir", dir,
		"duration_ms", time.Since(start).Milliseconds(),
		"stdout_bytes", stdout.Len())

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("command %q interrupted: %w", command, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &CommandError{
				Command:  command,
				Dir:      dir,
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}
		return "", fmt.Errorf("failed to execute command: %w", err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Quote wraps s in single quotes for safe interpolation into a sh command.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
