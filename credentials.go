package relsign

import "os"

// Environment variables supplying signing credentials.
// Presence of the per-platform master variable gates whether signing runs
// at all; absence is the supported "unsigned dev build" mode, not an error.
const (
	// EnvSigningAccount is the Azure Trusted Signing account identifier.
	// Master credential for the Windows strategy.
	EnvSigningAccount = "TRUSTED_SIGNING_ACCOUNT"

	// EnvAPIKey is the App Store Connect API key content (PEM).
	// Master credential for the macOS strategy.
	EnvAPIKey = "APPLE_API_KEY"

	// EnvAPIKeyID is the App Store Connect API key identifier.
	EnvAPIKeyID = "APPLE_API_KEY_ID"

	// EnvAPIIssuer is the App Store Connect API key issuer identifier.
	EnvAPIIssuer = "APPLE_API_ISSUER"

	// EnvCertPassword is the passphrase of the certificate bundle imported
	// into the ephemeral keychain.
	EnvCertPassword = "APPLE_CERT_PASSWORD"
)

// Credentials bundles the signing secrets resolved from the environment.
//
// Fields other than the per-platform master credential are optional at
// resolution time; strategies validate the fields they require and fail
// with ErrCredentialsIncomplete if a dependent field is missing while the
// master is present.
type Credentials struct {
	// SigningAccount is the Azure Trusted Signing account identifier.
	SigningAccount string

	// APIKey is the App Store Connect API key content.
	APIKey string

	// APIKeyID is the App Store Connect API key identifier.
	APIKeyID string

	// APIIssuer is the App Store Connect API key issuer.
	APIIssuer string

	// CertPassword is the certificate bundle passphrase.
	CertPassword string
}

// LookupFunc reads one named value from the execution environment.
// os.LookupEnv satisfies it; tests substitute a map-backed lookup.
type LookupFunc func(key string) (string, bool)

// ResolveCredentials reads the fixed credential set from the environment.
// A nil lookup defaults to os.LookupEnv. No filesystem or network access.
func ResolveCredentials(lookup LookupFunc) Credentials {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) string {
		v, _ := lookup(key)
		return v
	}
	return Credentials{
		SigningAccount: get(EnvSigningAccount),
		APIKey:         get(EnvAPIKey),
		APIKeyID:       get(EnvAPIKeyID),
		APIIssuer:      get(EnvAPIIssuer),
		CertPassword:   get(EnvCertPassword),
	}
}

// EnabledFor reports whether signing is enabled for the given platform.
// Signing is enabled only when the platform's master credential is set;
// partial credential sets are never partially honored.
func (c Credentials) EnabledFor(p Platform) bool {
	switch p {
	case PlatformWindows:
		return c.SigningAccount != ""
	case PlatformDarwin:
		return c.APIKey != ""
	default:
		return false
	}
}
