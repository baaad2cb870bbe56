// Package testrun executes validation commands (test suites, builds) as
// child processes in the workspace, with a hard timeout and full output
// capture.
package testrun

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"syscall"
	"time"
)

// DefaultTimeout bounds a single validation command.
const DefaultTimeout = 10 * time.Minute

// Result captures everything a validation command produced.
type Result struct {
	Command  []string      `json:"command"`
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	TimedOut bool          `json:"timed_out"`
	Duration time.Duration `json:"duration"`
}

// Passed reports whether the command exited cleanly.
func (r *Result) Passed() bool { return !r.TimedOut && r.ExitCode == 0 }

// Runner executes validation commands in a fixed working directory.
type Runner struct {
	dir     string
	timeout time.Duration
	log     *slog.Logger
}

// NewRunner creates a runner for commands executed in dir.
func NewRunner(dir string, timeout time.Duration, logger *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{dir: dir, timeout: timeout, log: logger.With("component", "testrun")}
}

// Run executes argv in the runner's directory, killing the whole process
// group if the timeout elapses. A non-zero exit is not an error: the
// Result carries the exit code and captured output either way. The error
// return is reserved for failures to start the process at all.
func (r *Runner) Run(ctx context.Context, argv []string) (*Result, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.dir
	// Own process group so Cancel can take down the command's children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log.Info("running command", "command", argv, "dir", r.dir, "timeout", r.timeout)
	started := time.Now()
	err := cmd.Run()
	elapsed := time.Since(started)

	result := &Result{
		Command:  argv,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		r.log.Warn("command timed out", "command", argv, "after", elapsed)
		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		// The process never started (binary missing, permission denied).
		return nil, err
	}

	result.ExitCode = 0
	return result, nil
}
