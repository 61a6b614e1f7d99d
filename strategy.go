package relsign

import (
	"fmt"
	"log/slog"
	"runtime"
)

// Platform identifies a signing target platform.
type Platform string

// Supported signing platforms.
const (
	// PlatformWindows signs executables via Azure Trusted Signing.
	PlatformWindows Platform = "windows"

	// PlatformDarwin signs app bundles via codesign and notarization.
	PlatformDarwin Platform = "darwin"
)

// ParsePlatform converts a string to a Platform.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformWindows, PlatformDarwin:
		return Platform(s), nil
	default:
		return "", fmt.Errorf("unknown platform %q (expected windows or darwin)", s)
	}
}

// CurrentPlatform returns the platform of the running build target.
func CurrentPlatform() Platform {
	if runtime.GOOS == "darwin" {
		return PlatformDarwin
	}
	return PlatformWindows
}

// StrategyFor returns the default strategy for a platform, with default
// tool configuration. Use the strategy constructors directly to override
// template paths, timestamp URLs, bundle identifiers, and timeouts.
func StrategyFor(p Platform, runner Runner, logger *slog.Logger) (Strategy, error) {
	switch p {
	case PlatformWindows:
		return NewTrustedSigningStrategy(runner, TrustedSigningWithLogger(logger)), nil
	case PlatformDarwin:
		return NewNotarizeStrategy(runner, NotarizeWithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("no signing strategy for platform %q", p)
	}
}
