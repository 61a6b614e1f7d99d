package core

import "context"

// RunResult holds the captured output of an external tool invocation.
type RunResult struct {
	// Stdout is the captured standard output.
	Stdout string

	// Stderr is the captured standard error.
	Stderr string

	// ExitCode is the exit code returned by the tool.
	ExitCode int
}

// Runner executes external signing tools.
//
// Run returns an error only when the tool could not be started or the
// context was canceled; a tool that ran and exited nonzero returns a nil
// error with the exit code in the result. Callers decide whether a nonzero
// exit is fatal for their stage.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*RunResult, error)
}
