package relsign

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/relsign/core"
)

func windowsCreds() Credentials {
	return Credentials{SigningAccount: "ACME123"}
}

func writeTemplate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.json.tmpl")
	content := `{"Endpoint":"https://eus.codesigning.azure.net","CodeSigningAccountName":"{{SIGNING_ACCOUNT}}","CertificateProfileName":"release"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestTrustedSigning_MissingAccount(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	s := NewTrustedSigningStrategy(runner)

	err := s.Sign(context.Background(), "app.exe", Credentials{})
	require.ErrorIs(t, err, core.ErrCredentialsIncomplete)
	assert.Empty(t, runner.callKeys())
}

func TestTrustedSigning_SubstitutesAccountVerbatim(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()

	// Capture the materialized metadata while it exists: it is removed
	// when Sign returns.
	var metadata string
	var metaPath string
	runner.onCall = func(c fakeCall) {
		metaPath = c.flagValue("/dmdf")
		data, err := os.ReadFile(metaPath)
		if err == nil {
			metadata = string(data)
		}
	}

	s := NewTrustedSigningStrategy(runner, TrustedSigningWithTemplate(writeTemplate(t)))
	require.NoError(t, s.Sign(context.Background(), "app.exe", windowsCreds()))

	assert.Contains(t, metadata, `"CodeSigningAccountName":"ACME123"`)
	assert.NotContains(t, metadata, "SIGNING_ACCOUNT")

	// The populated metadata carries the account identifier and must not
	// survive the run.
	_, err := os.Stat(metaPath)
	assert.True(t, os.IsNotExist(err))
}

func TestTrustedSigning_FixedToolParameters(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	s := NewTrustedSigningStrategy(runner, TrustedSigningWithTemplate(writeTemplate(t)))
	require.NoError(t, s.Sign(context.Background(), "app.exe", windowsCreds()))

	call, ok := runner.find("signtool sign")
	require.True(t, ok)

	assert.Equal(t, "SHA256", call.flagValue("/fd"))
	assert.Equal(t, "SHA256", call.flagValue("/td"))
	assert.Equal(t, "http://timestamp.acs.microsoft.com", call.flagValue("/tr"))
	assert.Equal(t, "app.exe", call.args[len(call.args)-1])
}

func TestTrustedSigning_ToolFailure(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	runner.results["signtool sign"] = &core.RunResult{
		ExitCode: 2,
		Stderr:   "SignTool Error: timestamp server unreachable",
	}

	s := NewTrustedSigningStrategy(runner, TrustedSigningWithTemplate(writeTemplate(t)))
	err := s.Sign(context.Background(), "app.exe", windowsCreds())

	require.ErrorIs(t, err, core.ErrToolInvocation)
	var toolErr *core.ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "signtool", toolErr.Tool)
	assert.Equal(t, "sign", toolErr.Stage)
	assert.Equal(t, 2, toolErr.ExitCode)
	assert.Contains(t, toolErr.Stderr, "timestamp server unreachable")
}

func TestTrustedSigning_ResignIsIdempotent(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	s := NewTrustedSigningStrategy(runner, TrustedSigningWithTemplate(writeTemplate(t)))

	require.NoError(t, s.Sign(context.Background(), "app.exe", windowsCreds()))
	require.NoError(t, s.Sign(context.Background(), "app.exe", windowsCreds()))

	assert.Equal(t, []string{"signtool sign", "signtool sign"}, runner.callKeys())
}

func TestTrustedSigning_MissingTemplate(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	s := NewTrustedSigningStrategy(runner,
		TrustedSigningWithTemplate(filepath.Join(t.TempDir(), "absent.tmpl")))

	err := s.Sign(context.Background(), "app.exe", windowsCreds())
	require.ErrorIs(t, err, core.ErrToolInvocation)
	assert.Empty(t, runner.callKeys())
}
