// Package cli implements the relsign command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/relsign"
	"github.com/meigma/relsign/cmd/relsign/cli/config"
)

// Build information set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	verbose   bool
	outputDir string
)

// cfg holds the unmarshaled config file settings.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "relsign",
	Short: "Sign and publish release artifacts",
	Long: `Relsign turns a freshly built executable or app bundle into a
platform-trusted signed artifact ready for distribution.

Signing credentials come from the environment. When the platform's master
credential is absent the artifact is published unsigned and relsign exits
zero: that is the supported dev-build mode, not an error.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose debug logging")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "dist", "Directory the final artifact is published into")
	rootCmd.Version = version
}

// initConfig loads the config file and enables RELSIGN_* env overrides.
func initConfig() {
	if dir, err := config.Dir(); err == nil {
		viper.AddConfigPath(dir)
	}
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("RELSIGN")
	viper.AutomaticEnv()

	// Missing config file is fine; everything has a default.
	var notFound viper.ConfigFileNotFoundError
	if err := viper.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		fmt.Fprintf(os.Stderr, "Warning: could not read config: %v\n", err)
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid config: %v\n", err)
	}
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
	}
	return err
}

// newLogger creates the CLI logger honoring --verbose.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// signalContext returns a context that is canceled on SIGINT or SIGTERM.
// Cancellation unwinds through the strategies' deferred cleanup, so an
// aborted CI job still destroys the ephemeral keychain and key files.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// formatError converts relsign errors to user-friendly messages.
func formatError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, relsign.ErrCredentialsIncomplete):
		return fmt.Sprintf("Error: incomplete signing credentials: %v", err)
	case errors.Is(err, relsign.ErrKeystoreSetup):
		return fmt.Sprintf("Error: keychain setup failed: %v", err)
	case errors.Is(err, relsign.ErrIdentityNotFound):
		return fmt.Sprintf("Error: signing identity not found: %v", err)
	case errors.Is(err, relsign.ErrCodesign):
		return fmt.Sprintf("Error: codesign failed: %v", err)
	case errors.Is(err, relsign.ErrNotarization):
		return fmt.Sprintf("Error: notarization failed: %v", err)
	case errors.Is(err, relsign.ErrToolInvocation):
		return fmt.Sprintf("Error: signing tool failed: %v", err)
	case errors.Is(err, relsign.ErrPublish):
		return fmt.Sprintf("Error: publish failed: %v", err)
	case errors.Is(err, context.Canceled):
		return "Error: operation canceled"
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}

// configPath returns the effective config file location for display.
func configPath() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
