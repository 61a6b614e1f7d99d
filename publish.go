package relsign

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	cp "github.com/otiai10/copy"

	"github.com/meigma/relsign/core"
	"github.com/meigma/relsign/internal/archive"
)

// publisher copies or archives the final artifact into the output
// directory. It runs unconditionally after the strategy returns, except on
// hard signing failures which abort the pipeline before publishing.
type publisher struct {
	logger *slog.Logger
}

// NewPublisher creates the default artifact publisher.
// A nil logger defaults to discard.
func NewPublisher(logger *slog.Logger) Publisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &publisher{logger: logger}
}

// Publish implements Publisher.
//
// Plain files are copied byte-for-byte into outputDir. Bundle directories
// are archived into a single zip named after the bundle. The output
// location is written exactly once per run.
func (p *publisher) Publish(ctx context.Context, path, outputDir string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrPublish, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: stat artifact: %w", core.ErrPublish, err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("%w: create output dir: %w", core.ErrPublish, err)
	}

	base := filepath.Base(filepath.Clean(path))
	if info.IsDir() {
		dest := filepath.Join(outputDir, base+".zip")
		if err := archive.Zip(path, dest); err != nil {
			return fmt.Errorf("%w: archive bundle: %w", core.ErrPublish, err)
		}
		if zinfo, serr := os.Stat(dest); serr == nil {
			p.logger.Info("published bundle archive",
				"dest", dest, "size", humanize.Bytes(uint64(zinfo.Size())))
		}
		return nil
	}

	dest := filepath.Join(outputDir, base)
	if err := cp.Copy(path, dest); err != nil {
		return fmt.Errorf("%w: copy artifact: %w", core.ErrPublish, err)
	}
	p.logger.Info("published artifact",
		"dest", dest, "size", humanize.Bytes(uint64(info.Size())))
	return nil
}
