package relsign

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/meigma/relsign/core"
	"github.com/meigma/relsign/internal/archive"
	"github.com/meigma/relsign/internal/keychain"
)

const (
	codesignBin = "codesign"
	xcrunBin    = "xcrun"

	// IdentityClass is the substring matched against keychain identities.
	IdentityClass = "Developer ID Application"

	defaultBundleID      = "com.example.app"
	defaultCertPath      = "signing/developer-id.p12"
	defaultEntitlements  = "signing/entitlements.plist"
	defaultNotaryWait    = 30 * time.Minute
	notarySubmissionName = "submission.zip"
	notaryAPIKeyFileName = "AuthKey.p8"
)

// NotarizeStrategy signs macOS app bundles: it imports the signing
// certificate into an ephemeral keychain, codesigns the bundle with the
// hardened runtime, submits a zip of the bundle for notarization, and
// staples the resulting ticket.
type NotarizeStrategy struct {
	runner Runner
	logger *slog.Logger

	certPath         string
	entitlementsPath string
	bundleID         string
	notaryWait       time.Duration
}

// NotarizeOption configures a NotarizeStrategy.
type NotarizeOption func(*NotarizeStrategy)

// NotarizeWithLogger sets the strategy logger.
func NotarizeWithLogger(logger *slog.Logger) NotarizeOption {
	return func(s *NotarizeStrategy) {
		s.logger = logger
	}
}

// NotarizeWithCert sets the certificate bundle path imported into the
// ephemeral keychain.
func NotarizeWithCert(path string) NotarizeOption {
	return func(s *NotarizeStrategy) {
		s.certPath = path
	}
}

// NotarizeWithEntitlements sets the entitlements file passed to codesign.
func NotarizeWithEntitlements(path string) NotarizeOption {
	return func(s *NotarizeStrategy) {
		s.entitlementsPath = path
	}
}

// NotarizeWithBundleID sets the bundle identifier passed to codesign.
func NotarizeWithBundleID(id string) NotarizeOption {
	return func(s *NotarizeStrategy) {
		s.bundleID = id
	}
}

// NotarizeWithWait bounds the blocking notarization wait. Exceeding it
// tears down the ephemeral keychain and key file before the timeout error
// propagates.
func NotarizeWithWait(d time.Duration) NotarizeOption {
	return func(s *NotarizeStrategy) {
		s.notaryWait = d
	}
}

// NewNotarizeStrategy creates the macOS signing strategy.
func NewNotarizeStrategy(runner Runner, opts ...NotarizeOption) *NotarizeStrategy {
	s := &NotarizeStrategy{
		runner:           runner,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		certPath:         defaultCertPath,
		entitlementsPath: defaultEntitlements,
		bundleID:         defaultBundleID,
		notaryWait:       defaultNotaryWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile-time interface implementation check.
var _ Strategy = (*NotarizeStrategy)(nil)

// Platform implements Strategy.
func (s *NotarizeStrategy) Platform() Platform { return PlatformDarwin }

// Sign implements Strategy.
//
// The sequence is codesign, zip, notarize, staple; the first hard failure
// aborts the chain. A staple failure is soft (wraps ErrStaple): the bundle
// stays signed and notarized, just not offline-verifiable. Every exit path
// destroys the ephemeral keychain and the temporary API key file.
func (s *NotarizeStrategy) Sign(ctx context.Context, path string, creds Credentials) (err error) {
	if err := s.validate(creds); err != nil {
		return err
	}

	kc, err := keychain.Open(ctx, s.runner, keychain.Config{
		CertPath:     s.certPath,
		CertPassword: creds.CertPassword,
		Logger:       s.logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := kc.Close(); cerr != nil {
			s.logger.Warn("keychain cleanup", "error", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()

	identity, err := kc.FindIdentity(ctx, IdentityClass)
	if err != nil {
		return err
	}
	s.logger.Debug("resolved signing identity", "identity", identity)

	keyPath, err := kc.ScratchFile(notaryAPIKeyFileName, []byte(creds.APIKey))
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrKeystoreSetup, err)
	}

	if err := s.codesign(ctx, path, identity); err != nil {
		return err
	}

	zipPath := kc.ScratchPath(notarySubmissionName)
	if err := archive.Zip(path, zipPath); err != nil {
		return fmt.Errorf("archive bundle for notarization: %w", err)
	}
	if info, serr := os.Stat(zipPath); serr == nil {
		s.logger.Debug("bundle archived", "size", humanize.Bytes(uint64(info.Size())))
	}

	if err := s.notarize(ctx, zipPath, keyPath, creds); err != nil {
		return err
	}

	return s.staple(ctx, path)
}

// validate fails loudly when the master credential is present but a
// dependent one is missing; partial credential sets are never partially
// honored.
func (s *NotarizeStrategy) validate(creds Credentials) error {
	if creds.APIKey == "" {
		return fmt.Errorf("%w: %s is not set", core.ErrCredentialsIncomplete, EnvAPIKey)
	}
	var missing []string
	if creds.APIKeyID == "" {
		missing = append(missing, EnvAPIKeyID)
	}
	if creds.APIIssuer == "" {
		missing = append(missing, EnvAPIIssuer)
	}
	if creds.CertPassword == "" {
		missing = append(missing, EnvCertPassword)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s set but %s missing",
			core.ErrCredentialsIncomplete, EnvAPIKey, strings.Join(missing, ", "))
	}
	return nil
}

func (s *NotarizeStrategy) codesign(ctx context.Context, bundlePath, identity string) error {
	s.logger.Info("codesigning bundle", "bundle", bundlePath, "identifier", s.bundleID)
	res, err := s.runner.Run(ctx, codesignBin,
		"--force",
		"--options", "runtime",
		"--deep",
		"--timestamp",
		"--identifier", s.bundleID,
		"--entitlements", s.entitlementsPath,
		"--generate-entitlement-der",
		"--sign", identity,
		bundlePath,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrCodesign, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%w: exit %d: %s",
			core.ErrCodesign, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// notarize submits the archive and blocks until the service returns a
// verdict, bounded by the configured wait.
func (s *NotarizeStrategy) notarize(ctx context.Context, zipPath, keyPath string, creds Credentials) error {
	s.logger.Info("submitting for notarization", "wait", s.notaryWait.String())

	nctx, cancel := context.WithTimeout(ctx, s.notaryWait)
	defer cancel()

	res, err := s.runner.Run(nctx, xcrunBin, "notarytool", "submit", zipPath,
		"--key", keyPath,
		"--key-id", creds.APIKeyID,
		"--issuer", creds.APIIssuer,
		"--wait",
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &core.NotarizationError{
				Reason: fmt.Sprintf("timed out after %s", s.notaryWait),
			}
		}
		return fmt.Errorf("%w: %w", core.ErrNotarization, err)
	}
	if res.ExitCode != 0 {
		return &core.NotarizationError{Reason: strings.TrimSpace(res.Stderr)}
	}

	s.logger.Info("notarization accepted")
	return nil
}

// staple attaches the notarization ticket to the original bundle (not the
// zip). Failure does not roll back the signature.
func (s *NotarizeStrategy) staple(ctx context.Context, bundlePath string) error {
	res, err := s.runner.Run(ctx, xcrunBin, "stapler", "staple", bundlePath)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrStaple, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%w: exit %d: %s",
			core.ErrStaple, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	s.logger.Info("notarization ticket stapled", "bundle", bundlePath)
	return nil
}
