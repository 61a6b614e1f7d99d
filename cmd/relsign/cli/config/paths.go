// Package config provides configuration management for the relsign CLI.
package config

import (
	"os"
	"path/filepath"
)

// Dir returns the relsign config directory.
// Uses XDG_CONFIG_HOME/relsign, defaulting to ~/.config/relsign.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "relsign"), nil
}
