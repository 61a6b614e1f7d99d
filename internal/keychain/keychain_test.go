package keychain

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/relsign/core"
)

// scriptedRunner is a minimal fake runner keyed by security subcommand.
type scriptedRunner struct {
	mu      sync.Mutex
	calls   [][]string
	results map[string]*core.RunResult
	failAt  string // security subcommand that exits nonzero
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{
		results: map[string]*core.RunResult{
			"list-keychains": {
				Stdout: `    "/Users/ci/Library/Keychains/login.keychain-db"` + "\n",
			},
		},
	}
}

func (r *scriptedRunner) Run(_ context.Context, name string, args ...string) (*core.RunResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.mu.Unlock()

	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}
	if sub == r.failAt {
		return &core.RunResult{ExitCode: 1, Stderr: "injected failure"}, nil
	}
	if res := r.results[sub]; res != nil {
		return res, nil
	}
	return &core.RunResult{}, nil
}

// subcommands returns the security subcommand of each recorded call.
func (r *scriptedRunner) subcommands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var subs []string
	for _, c := range r.calls {
		if len(c) > 1 {
			subs = append(subs, c[1])
		}
	}
	return subs
}

// argsOf returns the args of the first call with the given subcommand.
func (r *scriptedRunner) argsOf(sub string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if len(c) > 1 && c[1] == sub {
			return c[1:]
		}
	}
	return nil
}

func testConfig(t *testing.T) Config {
	t.Helper()
	certPath := filepath.Join(t.TempDir(), "cert.p12")
	require.NoError(t, os.WriteFile(certPath, []byte("cert"), 0o600))
	return Config{CertPath: certPath, CertPassword: "hunter2"}
}

func flagValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestOpen_Sequence(t *testing.T) {
	t.Parallel()

	runner := newScriptedRunner()
	kc, err := Open(context.Background(), runner, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kc.Close() })

	assert.Equal(t, []string{
		"create-keychain",
		"set-keychain-settings",
		"unlock-keychain",
		"import",
		"set-key-partition-list",
		"list-keychains",
		"list-keychains",
	}, runner.subcommands())

	// Auto-lock safety net of 6 hours.
	assert.Equal(t, "21600", flagValue(runner.argsOf("set-keychain-settings"), "-lut"))

	// codesign is granted use of the imported key without prompts.
	importArgs := runner.argsOf("import")
	assert.Equal(t, "/usr/bin/codesign", flagValue(importArgs, "-T"))
	assert.Equal(t, "hunter2", flagValue(importArgs, "-P"))

	// The new keychain is pushed in front of the prior search list.
	pushArgs := runner.calls[len(runner.calls)-1]
	assert.Contains(t, pushArgs, kc.Path())
	assert.Contains(t, pushArgs, "/Users/ci/Library/Keychains/login.keychain-db")
}

func TestOpen_PassphraseProperties(t *testing.T) {
	t.Parallel()

	runner := newScriptedRunner()
	kc1, err := Open(context.Background(), runner, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kc1.Close() })

	createArgs := runner.argsOf("create-keychain")
	pass := flagValue(createArgs, "-p")

	// 32 bytes of CSPRNG output, hex encoded.
	assert.Len(t, pass, 64)

	// The same passphrase unlocks the keychain it protects.
	assert.Equal(t, pass, flagValue(runner.argsOf("unlock-keychain"), "-p"))

	// A second run generates a different passphrase.
	runner2 := newScriptedRunner()
	kc2, err := Open(context.Background(), runner2, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kc2.Close() })
	assert.NotEqual(t, pass, flagValue(runner2.argsOf("create-keychain"), "-p"))

	// Keychain file names are unique per run, so concurrent runs on the
	// same host never collide.
	assert.NotEqual(t, kc1.Path(), kc2.Path())
}

func TestClose_RestoresAndDeletes(t *testing.T) {
	t.Parallel()

	runner := newScriptedRunner()
	kc, err := Open(context.Background(), runner, testConfig(t))
	require.NoError(t, err)

	dir := filepath.Dir(kc.Path())
	require.DirExists(t, dir)

	require.NoError(t, kc.Close())

	subs := runner.subcommands()
	// Restore happens before deletion.
	assert.Equal(t, []string{"list-keychains", "delete-keychain"}, subs[len(subs)-2:])

	restoreArgs := runner.calls[len(runner.calls)-2]
	assert.Contains(t, restoreArgs, "/Users/ci/Library/Keychains/login.keychain-db")
	assert.NotContains(t, restoreArgs, kc.Path())

	assert.NoDirExists(t, dir)

	// Idempotent: a second Close performs no further tool calls.
	callCount := len(runner.calls)
	require.NoError(t, kc.Close())
	assert.Len(t, runner.calls, callCount)
}

func TestOpen_FailureAtEachStageCleansUp(t *testing.T) {
	t.Parallel()

	stages := []string{
		"create-keychain",
		"set-keychain-settings",
		"unlock-keychain",
		"import",
		"set-key-partition-list",
	}

	for _, stage := range stages {
		stage := stage
		t.Run(stage, func(t *testing.T) {
			t.Parallel()

			runner := newScriptedRunner()
			runner.failAt = stage

			_, err := Open(context.Background(), runner, testConfig(t))
			require.ErrorIs(t, err, core.ErrKeystoreSetup)
			assert.Contains(t, err.Error(), "injected failure")

			// The keychain file is deleted whenever it was created.
			subs := runner.subcommands()
			if stage == "create-keychain" {
				assert.NotContains(t, subs, "delete-keychain")
			} else {
				assert.Contains(t, subs, "delete-keychain")
			}
		})
	}
}

func TestFindIdentity(t *testing.T) {
	t.Parallel()

	const class = "Developer ID Application"

	tests := []struct {
		name    string
		stdout  string
		want    string
		wantErr error
	}{
		{
			name: "single match",
			stdout: `  1) ABC123 "Developer ID Application: ACME Corp (TEAM1)"
  1 valid identities found
`,
			want: "Developer ID Application: ACME Corp (TEAM1)",
		},
		{
			name: "multiple matches picks last",
			stdout: `  1) ABC123 "Developer ID Application: ACME Corp (TEAM1)"
  2) DEF456 "Developer ID Application: ACME Corp (TEAM2)"
  2 valid identities found
`,
			want: "Developer ID Application: ACME Corp (TEAM2)",
		},
		{
			name: "non-matching identities ignored",
			stdout: `  1) ABC123 "Apple Development: dev@acme.example (TEAM1)"
  1 valid identities found
`,
			wantErr: core.ErrIdentityNotFound,
		},
		{
			name:    "zero identities",
			stdout:  "  0 valid identities found\n",
			wantErr: core.ErrIdentityNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := newScriptedRunner()
			runner.results["find-identity"] = &core.RunResult{Stdout: tt.stdout}

			kc, err := Open(context.Background(), runner, testConfig(t))
			require.NoError(t, err)
			t.Cleanup(func() { _ = kc.Close() })

			identity, err := kc.FindIdentity(context.Background(), class)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, identity)
		})
	}
}

func TestScratchFile(t *testing.T) {
	t.Parallel()

	runner := newScriptedRunner()
	kc, err := Open(context.Background(), runner, testConfig(t))
	require.NoError(t, err)

	path, err := kc.ScratchFile("AuthKey.p8", []byte("secret key material"))
	require.NoError(t, err)

	// Scoped inside the run directory, owner-only.
	assert.True(t, strings.HasPrefix(path, filepath.Dir(kc.Path())))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// One Close removes the keychain and every scratch file together.
	require.NoError(t, kc.Close())
	assert.NoFileExists(t, path)
}
