// Package audit runs the external accessibility auditor against a fixture.
//
// The auditor is spawned with an argument vector, never through a shell, so
// fixture paths with spaces or quotes are passed through untouched.
package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"time"
)

const (
	// DefaultBinary is the wcag-zoo command collection.
	DefaultBinary = "zookeeper"

	// DefaultCheck is the heading-order validator.
	DefaultCheck = "tarsier"

	// DefaultTimeout bounds a single auditor run.
	DefaultTimeout = 30 * time.Second

	// waitDelay bounds how long Wait blocks on output pipes after the
	// process is killed (a grandchild may still hold them open).
	waitDelay = 2 * time.Second
)

// DefaultAcceptExitCodes are treated as a completed audit.
// The wcag-zoo CLI exits 1 whenever it reports failures.
var DefaultAcceptExitCodes = []int{0, 1}

// Invoker runs the auditor.
type Invoker struct {
	// Binary is the auditor executable, resolved via PATH.
	Binary string

	// Check is the validator subcommand placed before the path.
	// Empty omits it.
	Check string

	// ExtraArgs are appended after the output flag.
	ExtraArgs []string

	// Timeout bounds the run. Zero means DefaultTimeout.
	Timeout time.Duration

	// AcceptExitCodes are exit codes that count as success.
	// Nil means DefaultAcceptExitCodes.
	AcceptExitCodes []int

	// Logger receives invocation diagnostics. Nil discards.
	Logger *slog.Logger
}

// New returns an Invoker for `zookeeper tarsier`.
func New() *Invoker {
	return &Invoker{
		Binary:  DefaultBinary,
		Check:   DefaultCheck,
		Timeout: DefaultTimeout,
	}
}

// Output is the captured result of one auditor run.
type Output struct {
	Args     []string // argv after the binary
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Args builds the argument vector: [check] path flag [extra...].
func (i *Invoker) Args(path string, flag OutputFlag) []string {
	args := make([]string, 0, 3+len(i.ExtraArgs))
	if i.Check != "" {
		args = append(args, i.Check)
	}
	args = append(args, path, flag.String())
	return append(args, i.ExtraArgs...)
}

// Invoke runs the auditor on path and waits for it to exit.
//
// On NON_ZERO_EXIT the captured Output is returned together with the error,
// so a caller that tolerates invoke errors can still parse stdout. On
// SPAWN_FAILED the Output is nil. On TIMEOUT it holds whatever was captured
// before the process was killed.
func (i *Invoker) Invoke(ctx context.Context, path string, flag OutputFlag) (*Output, error) {
	if !flag.Valid() {
		return nil, fmt.Errorf("invalid output flag %q", flag)
	}

	binary := i.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	timeout := i.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := i.Args(path, flag)
	cmd := exec.CommandContext(execCtx, binary, args...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	i.logger().Debug("invoking auditor",
		"binary", binary,
		"args", strings.Join(args, " "),
		"timeout", timeout,
	)

	start := time.Now()
	err := cmd.Run()
	out := &Output{
		Args:     args,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err == nil {
		i.logger().Debug("auditor finished", "exit_code", 0, "stdout_bytes", len(out.Stdout), "duration", out.Duration)
		return out, nil
	}

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		out.ExitCode = -1
		return out, &InvokeError{
			Code:   ErrCodeTimeout,
			Binary: binary,
			Stderr: truncate(stderr.String(), maxStderrInError),
			Err:    fmt.Errorf("no exit after %s", timeout),
		}
	}
	if ctx.Err() != nil {
		out.ExitCode = -1
		return out, fmt.Errorf("audit canceled: %w", ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		if slices.Contains(i.acceptCodes(), out.ExitCode) {
			i.logger().Debug("auditor finished", "exit_code", out.ExitCode, "stdout_bytes", len(out.Stdout), "duration", out.Duration)
			return out, nil
		}
		return out, &InvokeError{
			Code:     ErrCodeNonZeroExit,
			Binary:   binary,
			ExitCode: out.ExitCode,
			Stderr:   truncate(strings.TrimSpace(stderr.String()), maxStderrInError),
			Err:      err,
		}
	}

	return nil, &InvokeError{Code: ErrCodeSpawnFailed, Binary: binary, Err: err}
}

func (i *Invoker) acceptCodes() []int {
	if i.AcceptExitCodes == nil {
		return DefaultAcceptExitCodes
	}
	return i.AcceptExitCodes
}

func (i *Invoker) logger() *slog.Logger {
	if i.Logger != nil {
		return i.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
