package relsign

import "log/slog"

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline) error

// WithLogger sets the pipeline logger. Defaults to discard.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) error {
		p.logger = logger
		return nil
	}
}

// WithRunner sets the external-tool runner. Defaults to local child
// processes.
func WithRunner(runner Runner) PipelineOption {
	return func(p *Pipeline) error {
		p.runner = runner
		return nil
	}
}

// WithStrategy sets the signing strategy, overriding platform selection.
func WithStrategy(strategy Strategy) PipelineOption {
	return func(p *Pipeline) error {
		p.strategy = strategy
		return nil
	}
}

// WithPlatform selects the signing platform. Defaults to the current
// build target.
func WithPlatform(platform Platform) PipelineOption {
	return func(p *Pipeline) error {
		p.platform = platform
		return nil
	}
}

// WithOutputDir sets the directory the final artifact is published into.
// Defaults to "dist".
func WithOutputDir(dir string) PipelineOption {
	return func(p *Pipeline) error {
		p.outputDir = dir
		return nil
	}
}

// WithPublisher sets a custom artifact publisher.
func WithPublisher(publisher Publisher) PipelineOption {
	return func(p *Pipeline) error {
		p.publisher = publisher
		return nil
	}
}

// WithEnviron sets the credential lookup function. Defaults to
// os.LookupEnv. Tests substitute a map-backed lookup.
func WithEnviron(lookup LookupFunc) PipelineOption {
	return func(p *Pipeline) error {
		p.lookup = lookup
		return nil
	}
}
