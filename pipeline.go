package relsign

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/meigma/relsign/core"
	"github.com/meigma/relsign/internal/execx"
)

// Pipeline orchestrates one signing run: resolve credentials, run the
// platform strategy, publish the artifact.
//
// Each invocation owns its secret material exclusively; concurrent runs on
// the same host never collide because every keychain, key file, and
// metadata file uses a per-run unique name.
type Pipeline struct {
	logger    *slog.Logger
	runner    Runner
	strategy  Strategy
	publisher Publisher
	platform  Platform
	outputDir string
	lookup    LookupFunc
}

// New creates a signing pipeline.
//
// By default the platform is the current build target, tools run as local
// child processes, and strategies use their default tool configuration.
func New(opts ...PipelineOption) (*Pipeline, error) {
	p := &Pipeline{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		platform:  CurrentPlatform(),
		outputDir: "dist",
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	// Wire up default implementations
	if p.runner == nil {
		p.runner = execx.New(execx.WithLogger(p.logger))
	}
	if p.strategy == nil {
		strategy, err := StrategyFor(p.platform, p.runner, p.logger)
		if err != nil {
			return nil, err
		}
		p.strategy = strategy
	}
	if p.publisher == nil {
		p.publisher = NewPublisher(p.logger)
	}

	return p, nil
}

// Run signs the artifact at path and publishes it into the output
// directory.
//
// When the platform's master credential is absent the artifact is
// published unsigned and Run returns nil: CI depends on this bifurcation
// to distinguish "dev build, no secrets" from "release build, signing
// broke". Any hard signing failure aborts before publishing; a staple
// failure is logged and the signed artifact is published anyway.
func (p *Pipeline) Run(ctx context.Context, path string) error {
	creds := ResolveCredentials(p.lookup)

	if !creds.EnabledFor(p.platform) {
		p.logger.Info("signing credentials absent, publishing unsigned",
			"platform", string(p.platform), "artifact", path)
		return p.publisher.Publish(ctx, path, p.outputDir)
	}

	if err := p.strategy.Sign(ctx, path, creds); err != nil {
		if !errors.Is(err, core.ErrStaple) {
			return fmt.Errorf("sign %s: %w", path, err)
		}
		p.logger.Warn("staple failed; artifact is signed and notarized but not offline-verifiable",
			"error", err)
	}

	return p.publisher.Publish(ctx, path, p.outputDir)
}
