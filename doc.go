// Package relsign turns a freshly built executable or app bundle into a
// platform-trusted signed artifact ready for distribution, using ambient
// CI credentials.
//
// Cryptographic signing and notarization are delegated to the vendor
// tools (signtool, codesign, notarytool, stapler); relsign orchestrates
// them and owns the lifecycle of every piece of transient secret material
// involved: the ephemeral keychain, the temporary notarization key file,
// and the populated signing configuration. Nothing secret survives the
// run, on any exit path.
//
// # Basic Usage
//
// Create a pipeline and sign one artifact:
//
//	pipeline, err := relsign.New(
//	    relsign.WithOutputDir("dist"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = pipeline.Run(ctx, "build/MyApp.app")
//
// # Credentials
//
// Credentials come from the environment (TRUSTED_SIGNING_ACCOUNT for
// Windows, APPLE_API_KEY and friends for macOS). When the platform's
// master credential is absent the pipeline publishes the artifact
// unsigned and succeeds: that is the supported dev-build mode, not an
// error.
//
// # Platforms
//
// Two strategies exist: Azure Trusted Signing for Windows executables and
// codesign + notarization + stapling for macOS bundles. The strategy is
// selected from the build target by default and can be overridden with
// WithStrategy or WithPlatform.
package relsign
