//go:build integration

package main_test

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/meigma/relsign/cmd/relsign/cli"
)

func TestMain(m *testing.M) {
	exitCode := testscript.RunMain(m, map[string]func() int{
		"relsign": func() int {
			if err := cli.Execute(); err != nil {
				return 1
			}
			return 0
		},
	})
	os.Exit(exitCode)
}

func TestCLI(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata/script",
		Setup: func(env *testscript.Env) error {
			// Keep config lookups inside the work directory (testscript
			// sets HOME=/no-home which is read-only).
			env.Setenv("XDG_CONFIG_HOME", env.WorkDir+"/.config")
			return nil
		},
	})
}
