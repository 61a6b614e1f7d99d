// Package execx runs external signing tools with captured output.
//
// It implements the relsign Runner contract over os/exec. Secret-bearing
// argument values are redacted from debug logs.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	"github.com/meigma/relsign/core"
)

// Flags whose following argument carries a secret value.
var redactedFlags = map[string]bool{
	"-p": true, // security unlock-keychain / create-keychain password
	"-P": true, // security import certificate passphrase
	// set-key-partition-list password; also matches the keychain path arg
	// of security import, redacted conservatively
	"-k": true,
}

// Local runs tools as local child processes.
type Local struct {
	logger *slog.Logger
}

// Option configures a Local runner.
type Option func(*Local)

// WithLogger sets the logger for invocation debug lines.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Local) {
		l.logger = logger
	}
}

// New creates a Local runner. Logging defaults to discard.
func New(opts ...Option) *Local {
	l := &Local{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Compile-time interface implementation check.
var _ core.Runner = (*Local)(nil)

// Run executes name with args, capturing stdout and stderr.
//
// A nonzero exit is not an error; the exit code is reported in the result.
// An error is returned only when the tool could not be started or the
// context was canceled, in which case the context error is surfaced so
// callers can distinguish timeout from tool failure.
func (l *Local) Run(ctx context.Context, name string, args ...string) (*core.RunResult, error) {
	l.logger.Debug("exec", "tool", name, "args", Redact(args))

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	// Context cancellation wins over the resulting kill-signal exit error.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	res := &core.RunResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	l.logger.Debug("exec done", "tool", name, "exit", res.ExitCode)
	return res, nil
}

// Redact replaces argument values that follow secret-bearing flags.
func Redact(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if redactedFlags[out[i]] {
			out[i+1] = "****"
		}
	}
	return out
}
