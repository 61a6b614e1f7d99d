package relsign

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/valyala/fasttemplate"

	"github.com/meigma/relsign/core"
)

// Fixed signtool parameters. CI asserts on these; changing them changes
// what Windows release artifacts verify against.
const (
	signtoolBin         = "signtool"
	signingDigest       = "SHA256"
	defaultTimestampURL = "http://timestamp.acs.microsoft.com"
	defaultDlibPath     = "Azure.CodeSigning.Dlib.dll"
	defaultTemplatePath = "signing/metadata.json.tmpl"
)

// AccountPlaceholder is the template placeholder substituted with the
// Trusted Signing account identifier.
const AccountPlaceholder = "SIGNING_ACCOUNT"

// TrustedSigningStrategy signs Windows executables through Azure Trusted
// Signing: it materializes the signtool metadata file from a template and
// invokes signtool with fixed digest and timestamp parameters.
type TrustedSigningStrategy struct {
	runner Runner
	logger *slog.Logger

	templatePath string
	timestampURL string
	dlibPath     string
}

// TrustedSigningOption configures a TrustedSigningStrategy.
type TrustedSigningOption func(*TrustedSigningStrategy)

// TrustedSigningWithLogger sets the strategy logger.
func TrustedSigningWithLogger(logger *slog.Logger) TrustedSigningOption {
	return func(s *TrustedSigningStrategy) {
		s.logger = logger
	}
}

// TrustedSigningWithTemplate sets the metadata template path.
func TrustedSigningWithTemplate(path string) TrustedSigningOption {
	return func(s *TrustedSigningStrategy) {
		s.templatePath = path
	}
}

// TrustedSigningWithTimestampURL sets the timestamp authority URL.
func TrustedSigningWithTimestampURL(url string) TrustedSigningOption {
	return func(s *TrustedSigningStrategy) {
		s.timestampURL = url
	}
}

// TrustedSigningWithDlib sets the Trusted Signing dlib path passed to
// signtool.
func TrustedSigningWithDlib(path string) TrustedSigningOption {
	return func(s *TrustedSigningStrategy) {
		s.dlibPath = path
	}
}

// NewTrustedSigningStrategy creates the Windows signing strategy.
func NewTrustedSigningStrategy(runner Runner, opts ...TrustedSigningOption) *TrustedSigningStrategy {
	s := &TrustedSigningStrategy{
		runner:       runner,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		templatePath: defaultTemplatePath,
		timestampURL: defaultTimestampURL,
		dlibPath:     defaultDlibPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile-time interface implementation check.
var _ Strategy = (*TrustedSigningStrategy)(nil)

// Platform implements Strategy.
func (s *TrustedSigningStrategy) Platform() Platform { return PlatformWindows }

// Sign implements Strategy.
//
// Re-running is safe: signing the same artifact twice with the same
// identity re-signs it, last write wins.
func (s *TrustedSigningStrategy) Sign(ctx context.Context, path string, creds Credentials) error {
	if creds.SigningAccount == "" {
		return fmt.Errorf("%w: %s is not set", core.ErrCredentialsIncomplete, EnvSigningAccount)
	}

	metaPath, err := s.materializeMetadata(creds.SigningAccount)
	if err != nil {
		return err
	}
	// The populated metadata carries the account identifier; it must not
	// outlive the run.
	defer func() {
		if rerr := os.Remove(metaPath); rerr != nil {
			s.logger.Warn("remove signtool metadata", "error", rerr)
		}
	}()

	s.logger.Info("signing artifact", "artifact", path, "tool", signtoolBin)
	res, err := s.runner.Run(ctx, signtoolBin, "sign",
		"/v",
		"/fd", signingDigest,
		"/td", signingDigest,
		"/tr", s.timestampURL,
		"/dlib", s.dlibPath,
		"/dmdf", metaPath,
		path,
	)
	if err != nil {
		return fmt.Errorf("%w: sign: %w", core.ErrToolInvocation, err)
	}
	if res.ExitCode != 0 {
		return &core.ToolError{
			Tool:     signtoolBin,
			Stage:    "sign",
			ExitCode: res.ExitCode,
			Stderr:   strings.TrimSpace(res.Stderr),
		}
	}

	s.logger.Info("artifact signed", "artifact", path)
	return nil
}

// materializeMetadata substitutes the account identifier into the metadata
// template and writes the result to a uniquely named temp file.
func (s *TrustedSigningStrategy) materializeMetadata(account string) (string, error) {
	tmpl, err := os.ReadFile(s.templatePath)
	if err != nil {
		return "", fmt.Errorf("%w: read metadata template: %w", core.ErrToolInvocation, err)
	}

	metadata := fasttemplate.ExecuteString(string(tmpl), "{{", "}}",
		map[string]any{AccountPlaceholder: account})

	metaPath := filepath.Join(os.TempDir(), "relsign-metadata-"+uuid.NewString()+".json")
	if err := os.WriteFile(metaPath, []byte(metadata), 0o600); err != nil {
		return "", fmt.Errorf("%w: write metadata file: %w", core.ErrToolInvocation, err)
	}
	return metaPath, nil
}
