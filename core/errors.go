// Package core provides the shared types and errors for relsign.
//
// This package exists to break import cycles between the root relsign
// package and internal implementation packages. The relsign package
// re-exports all public types from this package, so external users should
// import relsign directly, not relsign/core.
package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions.
var (
	// ErrCredentialsIncomplete indicates the master credential is present
	// but a dependent credential the strategy requires is missing.
	ErrCredentialsIncomplete = errors.New("relsign: incomplete credentials")

	// ErrKeystoreSetup indicates the ephemeral keychain could not be
	// created, unlocked, or populated.
	ErrKeystoreSetup = errors.New("relsign: keystore setup failed")

	// ErrIdentityNotFound indicates no signing identity matched in the
	// ephemeral keychain.
	ErrIdentityNotFound = errors.New("relsign: signing identity not found")

	// ErrToolInvocation indicates an external signing tool exited nonzero.
	ErrToolInvocation = errors.New("relsign: tool invocation failed")

	// ErrCodesign indicates codesign rejected the bundle.
	ErrCodesign = errors.New("relsign: codesign failed")

	// ErrNotarization indicates the notarization service rejected the
	// submission or the bounded wait expired.
	ErrNotarization = errors.New("relsign: notarization rejected")

	// ErrStaple indicates stapling the notarization ticket failed.
	// Soft failure: the artifact is signed and notarized but not
	// offline-verifiable. The pipeline logs it and continues.
	ErrStaple = errors.New("relsign: staple failed")

	// ErrPublish indicates the final artifact could not be written to the
	// output directory.
	ErrPublish = errors.New("relsign: publish failed")
)

// ToolError describes a failed external tool invocation.
// Unwraps to ErrToolInvocation.
type ToolError struct {
	Tool     string // binary name, e.g. "signtool", "codesign"
	Stage    string // pipeline stage, e.g. "sign", "submit"
	ExitCode int
	Stderr   string
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	return fmt.Sprintf("%s %s: exit %d: %s", e.Tool, e.Stage, e.ExitCode, e.Stderr)
}

// Unwrap makes errors.Is(err, ErrToolInvocation) work.
func (e *ToolError) Unwrap() error { return ErrToolInvocation }

// NotarizationError describes a notarization rejection or timeout.
// Unwraps to ErrNotarization.
type NotarizationError struct {
	Reason string
}

// Error implements the error interface.
func (e *NotarizationError) Error() string {
	return fmt.Sprintf("notarization rejected: %s", e.Reason)
}

// Unwrap makes errors.Is(err, ErrNotarization) work.
func (e *NotarizationError) Unwrap() error { return ErrNotarization }
