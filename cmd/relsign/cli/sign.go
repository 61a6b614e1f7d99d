package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/meigma/relsign"
	"github.com/meigma/relsign/internal/execx"
)

var (
	signPlatform     string
	signBundleID     string
	signEntitlements string
	signCert         string
	signTemplate     string
	signTimestampURL string
	signDlib         string
	signNotaryWait   time.Duration
)

var signCmd = &cobra.Command{
	Use:   "sign <artifact>",
	Short: "Sign an artifact and publish it to the output directory",
	Long: `Sign takes one unsigned executable or app bundle and produces the
signed artifact in the output directory.

Examples:
  relsign sign build/app.exe --platform windows
  relsign sign build/MyApp.app --platform darwin --bundle-id com.example.myapp`,
	Args: cobra.ExactArgs(1),
	RunE: runSign,
}

func init() {
	signCmd.Flags().StringVar(&signPlatform, "platform", string(relsign.CurrentPlatform()), "Signing platform (windows, darwin)")
	signCmd.Flags().StringVar(&signBundleID, "bundle-id", "", "Bundle identifier passed to codesign")
	signCmd.Flags().StringVar(&signEntitlements, "entitlements", "", "Entitlements file passed to codesign")
	signCmd.Flags().StringVar(&signCert, "cert", "", "Certificate bundle (.p12) imported into the ephemeral keychain")
	signCmd.Flags().StringVar(&signTemplate, "template", "", "Signtool metadata template path")
	signCmd.Flags().StringVar(&signTimestampURL, "timestamp-url", "", "Timestamp authority URL")
	signCmd.Flags().StringVar(&signDlib, "dlib", "", "Azure Trusted Signing dlib path")
	signCmd.Flags().DurationVar(&signNotaryWait, "notary-wait", 0, "Bound on the blocking notarization wait")
	rootCmd.AddCommand(signCmd)
}

func runSign(_ *cobra.Command, args []string) error {
	platform, err := relsign.ParsePlatform(signPlatform)
	if err != nil {
		return err
	}

	logger := newLogger()
	runner := execx.New(execx.WithLogger(logger))

	var strategy relsign.Strategy
	switch platform {
	case relsign.PlatformWindows:
		opts := []relsign.TrustedSigningOption{relsign.TrustedSigningWithLogger(logger)}
		if v := setting(signTemplate, cfg.Windows.Template); v != "" {
			opts = append(opts, relsign.TrustedSigningWithTemplate(v))
		}
		if v := setting(signTimestampURL, cfg.Windows.TimestampURL); v != "" {
			opts = append(opts, relsign.TrustedSigningWithTimestampURL(v))
		}
		if v := setting(signDlib, cfg.Windows.Dlib); v != "" {
			opts = append(opts, relsign.TrustedSigningWithDlib(v))
		}
		strategy = relsign.NewTrustedSigningStrategy(runner, opts...)
	case relsign.PlatformDarwin:
		opts := []relsign.NotarizeOption{relsign.NotarizeWithLogger(logger)}
		if v := setting(signBundleID, cfg.Darwin.BundleID); v != "" {
			opts = append(opts, relsign.NotarizeWithBundleID(v))
		}
		if v := setting(signEntitlements, cfg.Darwin.Entitlements); v != "" {
			opts = append(opts, relsign.NotarizeWithEntitlements(v))
		}
		if v := setting(signCert, cfg.Darwin.Cert); v != "" {
			opts = append(opts, relsign.NotarizeWithCert(v))
		}
		if wait := waitSetting(signNotaryWait, cfg.Darwin.NotaryWait); wait > 0 {
			opts = append(opts, relsign.NotarizeWithWait(wait))
		}
		strategy = relsign.NewNotarizeStrategy(runner, opts...)
	}

	pipeline, err := relsign.New(
		relsign.WithLogger(logger),
		relsign.WithRunner(runner),
		relsign.WithPlatform(platform),
		relsign.WithStrategy(strategy),
		relsign.WithOutputDir(outputDir),
	)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return pipeline.Run(ctx, args[0])
}

// setting returns the flag value if set, falling back to the config file.
func setting(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

// waitSetting returns the flag duration if set, falling back to the config
// file.
func waitSetting(flagValue, configValue time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}
