package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Result is the captured outcome of one CLI invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Combined joins stdout and stderr for error reporting.
func (r Result) Combined() string {
	out := strings.TrimSpace(r.Stdout)
	if errText := strings.TrimSpace(r.Stderr); errText != "" {
		if out != "" {
			out += "\n"
		}
		out += errText
	}
	return out
}

// Executor runs scheduler commands. A non-zero exit status is reported in
// Result.ExitCode, not as an error.
type Executor interface {
	Run(ctx context.Context, binary string, args ...string) (Result, error)
}

// CommandExecutor runs commands as subprocesses with a per-call timeout.
type CommandExecutor struct {
	Timeout time.Duration
	// Observe, when set, receives the wall time of every call.
	Observe func(binary string, elapsed time.Duration)
}

// Run executes binary in its own process group. When the timeout fires the
// whole group is killed so shell pipelines do not leave orphans behind.
func (e CommandExecutor) Run(ctx context.Context, binary string, args ...string) (Result, error) {
	runCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, binary, args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	if e.Observe != nil {
		e.Observe(binary, time.Since(started))
	}
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	if runCtx.Err() != nil {
		return result, fmt.Errorf("%s %s: %w after %s", binary, strings.Join(args, " "), ErrCommandTimeout, e.Timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("run %s: %w", binary, err)
	}
	return result, nil
}
