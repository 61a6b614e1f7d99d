// Package keychain manages the ephemeral macOS keychain used for one
// signing run.
//
// The keychain is created under a run-scoped temporary directory with a
// random passphrase, populated with one imported certificate, pushed onto
// the user keychain search list, and destroyed by Close on every exit
// path. Nothing in this package survives the run: the keychain file, any
// scratch secret files, and the search-list change are all torn down
// together.
package keychain

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/meigma/relsign/core"
)

// Auto-lock timeout in seconds (6 hours). A safety net in case the process
// is killed before Close runs; the deferred Close is the primary guarantee.
const autoLockSeconds = "21600"

// securityTool is the keychain management binary.
const securityTool = "security"

// Config holds the inputs for opening an ephemeral keychain.
type Config struct {
	// CertPath is the certificate bundle file (.p12) to import.
	CertPath string

	// CertPassword is the passphrase protecting the certificate bundle.
	CertPassword string

	// Logger defaults to discard.
	Logger *slog.Logger
}

// Keychain is a process-scoped credential store holding one imported
// signing certificate. Exclusive to a single signing invocation; never
// shared across concurrent runs.
type Keychain struct {
	runner core.Runner
	logger *slog.Logger

	dir        string // run-scoped temp dir, removed wholesale on Close
	path       string // keychain file inside dir
	passphrase string

	created         bool     // keychain file exists and needs delete-keychain
	priorSearchList []string // user search list to restore on Close
	closed          bool
}

// Open creates, unlocks, and populates an ephemeral keychain.
//
// On any setup failure the partially created keychain is torn down before
// the error (wrapping core.ErrKeystoreSetup) is returned; no partial
// identity state is ever left for reuse.
func Open(ctx context.Context, runner core.Runner, cfg Config) (*Keychain, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	pass, err := passphrase()
	if err != nil {
		return nil, fmt.Errorf("%w: generate passphrase: %w", core.ErrKeystoreSetup, err)
	}

	dir, err := os.MkdirTemp("", "relsign-keychain-")
	if err != nil {
		return nil, fmt.Errorf("%w: create scratch dir: %w", core.ErrKeystoreSetup, err)
	}

	k := &Keychain{
		runner:     runner,
		logger:     logger,
		dir:        dir,
		path:       filepath.Join(dir, "ephemeral-"+uuid.NewString()+".keychain-db"),
		passphrase: pass,
	}

	if err := k.setup(ctx, cfg); err != nil {
		if cerr := k.Close(); cerr != nil {
			logger.Warn("keychain cleanup after failed setup", "error", cerr)
		}
		return nil, err
	}
	return k, nil
}

func (k *Keychain) setup(ctx context.Context, cfg Config) error {
	if err := k.security(ctx, "create keychain",
		"create-keychain", "-p", k.passphrase, k.path); err != nil {
		return err
	}
	k.created = true

	if err := k.security(ctx, "set auto-lock",
		"set-keychain-settings", "-lut", autoLockSeconds, k.path); err != nil {
		return err
	}

	if err := k.security(ctx, "unlock keychain",
		"unlock-keychain", "-p", k.passphrase, k.path); err != nil {
		return err
	}

	if err := k.security(ctx, "import certificate",
		"import", cfg.CertPath, "-k", k.path, "-P", cfg.CertPassword,
		"-T", "/usr/bin/codesign"); err != nil {
		return err
	}

	// Allow codesign to use the imported key without per-key prompts.
	if err := k.security(ctx, "grant partition list",
		"set-key-partition-list", "-S", "apple-tool:,apple:", "-s",
		"-k", k.passphrase, k.path); err != nil {
		return err
	}

	// Push onto the user search list, keeping the prior list restorable.
	prior, err := k.searchList(ctx)
	if err != nil {
		return err
	}
	k.priorSearchList = prior

	args := append([]string{"list-keychains", "-d", "user", "-s", k.path}, prior...)
	if err := k.security(ctx, "register search list", args...); err != nil {
		return err
	}

	k.logger.Debug("ephemeral keychain ready", "path", k.path)
	return nil
}

// Close deletes the keychain, removes all scratch files, and restores the
// prior search list. Idempotent; safe to defer alongside a later explicit
// call. Runs every step even if an earlier one fails.
func (k *Keychain) Close() error {
	if k.closed {
		return nil
	}
	k.closed = true

	ctx := context.Background()
	var errs []error

	if k.priorSearchList != nil {
		args := append([]string{"list-keychains", "-d", "user", "-s"}, k.priorSearchList...)
		if err := k.security(ctx, "restore search list", args...); err != nil {
			errs = append(errs, err)
		}
	}

	if k.created {
		if err := k.security(ctx, "delete keychain", "delete-keychain", k.path); err != nil {
			errs = append(errs, err)
		}
	}

	if err := os.RemoveAll(k.dir); err != nil {
		errs = append(errs, fmt.Errorf("remove scratch dir: %w", err))
	}

	k.logger.Debug("ephemeral keychain destroyed", "path", k.path)
	return errors.Join(errs...)
}

// Path returns the keychain file path.
func (k *Keychain) Path() string { return k.path }

// FindIdentity looks up a signing identity in the keychain whose
// description contains class (e.g. "Developer ID Application").
//
// When the tool reports multiple matches the last one wins. The tie-break
// is carried over from the original release scripts; the candidate count
// is logged so an ambiguous keychain is visible in CI logs.
func (k *Keychain) FindIdentity(ctx context.Context, class string) (string, error) {
	res, err := k.runner.Run(ctx, securityTool, "find-identity", "-v", "-p", "codesigning", k.path)
	if err != nil {
		return "", fmt.Errorf("find identity: %w", err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%w: find-identity exit %d: %s",
			core.ErrIdentityNotFound, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	var matches []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if !strings.Contains(line, class) {
			continue
		}
		// Lines look like: 1) <hash> "Developer ID Application: Org (TEAM)"
		start := strings.Index(line, `"`)
		end := strings.LastIndex(line, `"`)
		if start == -1 || end <= start {
			continue
		}
		matches = append(matches, line[start+1:end])
	}

	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no identity matching %q", core.ErrIdentityNotFound, class)
	}
	if len(matches) > 1 {
		k.logger.Debug("multiple signing identities, using last", "class", class, "count", len(matches))
	}
	return matches[len(matches)-1], nil
}

// ScratchFile writes sensitive data to a file inside the keychain's
// run-scoped directory so one Close removes it together with the keychain.
func (k *Keychain) ScratchFile(name string, data []byte) (string, error) {
	path := filepath.Join(k.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write scratch file %s: %w", name, err)
	}
	return path, nil
}

// ScratchPath returns a path inside the run-scoped directory for derived
// files (e.g. the notarization zip) that must not outlive the run.
func (k *Keychain) ScratchPath(name string) string {
	return filepath.Join(k.dir, name)
}

// security runs one security(1) subcommand, converting nonzero exits into
// keystore setup errors naming the failed stage.
func (k *Keychain) security(ctx context.Context, stage string, args ...string) error {
	res, err := k.runner.Run(ctx, securityTool, args...)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", core.ErrKeystoreSetup, stage, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%w: %s: exit %d: %s",
			core.ErrKeystoreSetup, stage, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// searchList returns the current user keychain search list.
func (k *Keychain) searchList(ctx context.Context) ([]string, error) {
	res, err := k.runner.Run(ctx, securityTool, "list-keychains", "-d", "user")
	if err != nil {
		return nil, fmt.Errorf("%w: read search list: %w", core.ErrKeystoreSetup, err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%w: read search list: exit %d: %s",
			core.ErrKeystoreSetup, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	var list []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		entry := strings.Trim(strings.TrimSpace(line), `"`)
		if entry != "" {
			list = append(list, entry)
		}
	}
	return list, nil
}

// passphrase generates a high-entropy keychain passphrase from a
// cryptographically secure source.
func passphrase() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
