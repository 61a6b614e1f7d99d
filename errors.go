package relsign

import "github.com/meigma/relsign/core"

// Sentinel errors for common failure conditions.
// Re-exported from core package.
var (
	// ErrCredentialsIncomplete indicates a dependent credential is missing
	// while the master credential is present.
	ErrCredentialsIncomplete = core.ErrCredentialsIncomplete

	// ErrKeystoreSetup indicates the ephemeral keychain could not be set up.
	ErrKeystoreSetup = core.ErrKeystoreSetup

	// ErrIdentityNotFound indicates no signing identity matched.
	ErrIdentityNotFound = core.ErrIdentityNotFound

	// ErrToolInvocation indicates an external signing tool failed.
	ErrToolInvocation = core.ErrToolInvocation

	// ErrCodesign indicates codesign rejected the bundle.
	ErrCodesign = core.ErrCodesign

	// ErrNotarization indicates notarization was rejected or timed out.
	ErrNotarization = core.ErrNotarization

	// ErrStaple indicates stapling failed (soft failure).
	ErrStaple = core.ErrStaple

	// ErrPublish indicates the artifact could not be published.
	ErrPublish = core.ErrPublish
)
