package relsign

import (
	"context"

	"github.com/meigma/relsign/core"
)

// Runner executes external signing tools.
// Re-exported from core package. Implemented by internal/execx for real
// invocations; tests substitute a recording fake.
type Runner = core.Runner

// RunResult holds the captured output of an external tool invocation.
// Re-exported from core package.
type RunResult = core.RunResult

// Strategy performs the platform-specific sign/timestamp/notarize sequence
// against one artifact.
//
// Sign requires the master credential for its platform and fails with
// ErrCredentialsIncomplete if a dependent credential is missing. Any
// ephemeral secret material it creates (keychains, key files, populated
// config files) is removed before Sign returns, on every exit path.
type Strategy interface {
	// Sign signs the artifact at path using the given credentials.
	Sign(ctx context.Context, path string, creds Credentials) error

	// Platform reports which platform this strategy signs for.
	Platform() Platform
}

// Publisher copies or archives the final artifact into the output location
// expected by downstream release packaging.
type Publisher interface {
	// Publish writes the artifact at path into outputDir.
	// Plain files are copied; bundle directories are archived into a zip.
	Publish(ctx context.Context, path, outputDir string) error
}
