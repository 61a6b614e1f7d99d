package config

import "time"

// Config represents the relsign CLI configuration.
// Use mapstructure tags for Viper unmarshaling.
type Config struct {
	Windows WindowsConfig `mapstructure:"windows"`
	Darwin  DarwinConfig  `mapstructure:"darwin"`
}

// WindowsConfig holds Azure Trusted Signing settings.
type WindowsConfig struct {
	Template     string `mapstructure:"template"`
	TimestampURL string `mapstructure:"timestamp_url"`
	Dlib         string `mapstructure:"dlib"`
}

// DarwinConfig holds codesign and notarization settings.
type DarwinConfig struct {
	BundleID     string        `mapstructure:"bundle_id"`
	Entitlements string        `mapstructure:"entitlements"`
	Cert         string        `mapstructure:"cert"`
	NotaryWait   time.Duration `mapstructure:"notary_wait"`
}
