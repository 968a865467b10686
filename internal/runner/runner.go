// Package runner executes the panel command and captures its output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"
)

// DefaultTimeout bounds a single command run.
const DefaultTimeout = 30 * time.Second

// waitDelay bounds how long Run waits for output pipes after the process
// group was killed.
const waitDelay = time.Second

var (
	ErrSpawnFailed = errors.New("failed to spawn command")
	ErrNotUTF8     = errors.New("command output was not valid UTF-8")
	ErrTimedOut    = errors.New("command timed out")
)

// Kind classifies a RunError.
type Kind int

const (
	KindSpawnFailed Kind = iota
	KindNotUTF8
	KindTimedOut
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindSpawnFailed:
		return "spawn-failed"
	case KindNotUTF8:
		return "not-utf8"
	case KindTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// RunError is returned by Run for every failure.
type RunError struct {
	Kind    Kind
	Command string
	Err     error
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %q: %v", e.sentinel(), e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %q", e.sentinel(), e.Command)
}

// Is matches the package sentinels so callers can use errors.Is.
func (e *RunError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) sentinel() error {
	switch e.Kind {
	case KindNotUTF8:
		return ErrNotUTF8
	case KindTimedOut:
		return ErrTimedOut
	default:
		return ErrSpawnFailed
	}
}

// Runner spawns a fresh process per call. It keeps no state between runs.
type Runner struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// New creates a Runner with the given timeout. A non-positive timeout
// selects DefaultTimeout.
func New(timeout time.Duration, logger *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		Timeout: timeout,
		Logger:  logger.With("component", "runner"),
	}
}

// Run executes command as a program path with no arguments and returns its
// standard output, decoded and trimmed. The exit status is ignored: a command
// that exits non-zero but prints valid text still succeeds.
func (r *Runner) Run(ctx context.Context, command string) (string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, command)
	cmd.Stdin = nil
	cmd.Stdout = &stdout

	// The command gets its own process group so a timeout also kills
	// children that inherited stdout.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", &RunError{Kind: KindTimedOut, Command: command, Err: ctx.Err()}
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		if r.Logger != nil {
			r.Logger.Debug("command exited non-zero, using its output anyway",
				"command", command, "exit_code", exitErr.ExitCode())
		}
	case errors.Is(err, exec.ErrWaitDelay):
		if r.Logger != nil {
			r.Logger.Debug("command left a child holding stdout, using output so far",
				"command", command)
		}
	default:
		return "", &RunError{Kind: KindSpawnFailed, Command: command, Err: err}
	}

	return Decode(command, stdout.Bytes())
}

// Decode converts raw command output to display text.
func Decode(command string, out []byte) (string, error) {
	if !utf8.Valid(out) {
		return "", &RunError{Kind: KindNotUTF8, Command: command}
	}
	return strings.TrimSpace(string(out)), nil
}
