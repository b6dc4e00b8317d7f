// Package runner launches shell commands for a bot project, either in a new
// terminal window so the user can follow the output, or headless with the
// output streamed to a writer. Each launch writes a small temporary script
// that activates the project's .venv, changes to the project directory and
// runs the command. The returned Handle owns that script and removes it
// exactly once when the process ends or is cancelled.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// waitDelay bounds how long Wait lingers on output pipes kept open by
// orphaned grandchildren after the shell exits or is killed.
const waitDelay = 2 * time.Second

// ErrNoTerminal is returned when no known terminal emulator is installed.
var ErrNoTerminal = errors.New("runner: no terminal emulator found")

// ExitError reports a command that finished with a non-zero status.
type ExitError struct {
	Code int
}

// Error returns a formatted error message
func (e *ExitError) Error() string {
	return fmt.Sprintf("runner: process exited with code %d", e.Code)
}

// Runner starts project commands. The zero value is usable and targets the
// current platform.
type Runner struct {
	// GOOS selects the script flavour and terminal candidates. Empty means
	// runtime.GOOS.
	GOOS string
	// LookPath resolves executables. Nil means exec.LookPath.
	LookPath func(file string) (string, error)
	// TempDir holds the generated scripts. Empty means os.TempDir().
	TempDir string
	// Output receives stdout and stderr of headless runs. Nil discards.
	Output io.Writer
	// Log receives lifecycle events. Nil discards.
	Log *slog.Logger
}

// New creates a Runner for the current platform.
func New(log *slog.Logger) *Runner {
	return &Runner{Log: log}
}

func (r *Runner) goos() string {
	if r.GOOS != "" {
		return r.GOOS
	}

	return runtime.GOOS
}

func (r *Runner) lookPath(file string) (string, error) {
	if r.LookPath != nil {
		return r.LookPath(file)
	}

	return exec.LookPath(file)
}

func (r *Runner) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}

	return slog.New(slog.DiscardHandler)
}

// Run writes the launch script for commandLine and starts it in dir. With
// newWindow the script runs inside a terminal emulator and pauses before
// exiting; otherwise it runs headless. The caller owns the returned Handle
// and must Wait for it or Cancel it.
func (r *Runner) Run(ctx context.Context, dir, commandLine string, newWindow bool) (*Handle, error) {
	script, err := r.writeScript(dir, commandLine, newWindow)
	if err != nil {
		return nil, err
	}

	var argv []string
	if newWindow {
		argv, err = r.terminalCommand(script)
	} else {
		argv, err = r.headlessCommand(script)
	}
	if err != nil {
		_ = os.Remove(script)
		return nil, err
	}

	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	cmd := exec.CommandContext(pctx, argv[0], argv[1:]...) //nolint:gosec // argv is built from a known terminal and our own script
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay
	if !newWindow && r.Output != nil {
		cmd.Stdout = r.Output
		cmd.Stderr = r.Output
	}

	if err := cmd.Start(); err != nil {
		cancel()
		_ = os.Remove(script)
		return nil, fmt.Errorf("runner: start %s: %w", argv[0], err)
	}

	h := newHandle(pctx, cmd, script, cancel, r.logger())
	r.logger().Info("process started", "pid", h.Pid(), "dir", dir, "new_window", newWindow, "command", commandLine)

	return h, nil
}

func (r *Runner) headlessCommand(script string) ([]string, error) {
	if r.goos() == "windows" {
		return []string{"cmd.exe", "/c", script}, nil
	}

	shell, err := r.lookPath("bash")
	if err != nil {
		shell, err = r.lookPath("sh")
		if err != nil {
			return nil, fmt.Errorf("runner: no shell found: %w", err)
		}
	}

	return []string{shell, script}, nil
}
