// Package collector runs a complete collection: enumerate candidate paths,
// build the archive, upload it and remove the local copy.
package collector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/forensicgo/collector/archive"
	"github.com/forensicgo/collector/artifacts"
	"github.com/forensicgo/collector/model"
	"github.com/forensicgo/collector/upload"
)

// Uploader sends a finished archive to its destination.
type Uploader interface {
	Upload(ctx context.Context, target, archivePath string) error
}

// Collector sequences a single collection run.
type Collector struct {
	logger   zerolog.Logger
	builder  *archive.Builder
	uploader Uploader
	tempDir  string
	manifest bool
	args     []string
	host     *model.Host
}

// Option configures a Collector.
type Option func(*Collector)

// WithTempDir sets where the temporary archive is created. Defaults to
// os.TempDir.
func WithTempDir(dir string) Option {
	return func(c *Collector) {
		c.tempDir = dir
	}
}

// WithManifest stores the run record inside the archive.
func WithManifest(enabled bool) Option {
	return func(c *Collector) {
		c.manifest = enabled
	}
}

// WithArgs records the command line in the run. URL query strings are
// redacted.
func WithArgs(args []string) Option {
	return func(c *Collector) {
		c.args = args
	}
}

// WithHost overrides the detected host information.
func WithHost(host *model.Host) Option {
	return func(c *Collector) {
		c.host = host
	}
}

// New creates a collector.
func New(logger zerolog.Logger, builder *archive.Builder, uploader Uploader, opts ...Option) *Collector {
	c := &Collector{
		logger:   logger,
		builder:  builder,
		uploader: uploader,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.host == nil {
		c.host = detectHost()
	}
	return c
}

// Run collects list into a temporary archive and uploads it to target. The
// returned run is always non-nil and ends in StageDone or StageFailed; the
// error is non-nil exactly when the run failed. The temporary archive is
// removed in both cases.
func (c *Collector) Run(ctx context.Context, list artifacts.List, target string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Args:      redactArgs(c.args),
		Host:      c.host,
		Stage:     model.StageStart,
	}
	c.logger.Info().Str("id", run.ID).Msg("Starting collection")

	c.advance(run, model.StageEnumerate)
	run.Candidates = list.Paths()
	c.logger.Debug().Int("candidates", len(run.Candidates)).Msg("Enumerated artifact paths")

	c.advance(run, model.StageBuild)
	var buildOpts []archive.BuildOption
	if c.manifest {
		buildOpts = append(buildOpts, archive.WithManifest(run))
	}
	archivePath, summary, err := c.builder.BuildFile(ctx, run.Candidates, c.tempDir, buildOpts...)
	run.Summary = summary
	if archivePath != "" {
		run.Archive = &model.Archive{
			Path:    archivePath,
			Entries: summary.Count(model.OutcomeFound),
		}
	}
	if err != nil {
		return c.finish(run, fmt.Errorf("failed to build archive: %w", err))
	}
	if info, err := os.Stat(archivePath); err == nil {
		run.Archive.Size = info.Size()
	}

	c.advance(run, model.StageUpload)
	c.logger.Info().
		Str("target", upload.Redact(target)).
		Int64("size", run.Archive.Size).
		Msg("Uploading archive")
	if err := c.uploader.Upload(ctx, target, archivePath); err != nil {
		return c.finish(run, err)
	}

	return c.finish(run, nil)
}

// finish removes the archive and moves run into its terminal stage.
func (c *Collector) finish(run *model.Run, runErr error) (*model.Run, error) {
	failedStage := run.Stage

	c.advance(run, model.StageCleanup)
	c.cleanup(run)
	run.Duration = time.Since(run.Timestamp)

	if runErr != nil {
		run.FailedStage = failedStage
		run.ExitCode = 1
		run.Error = runErr.Error()
		c.advance(run, model.StageFailed)
		c.logger.Error().
			Err(runErr).
			Str("id", run.ID).
			Str("stage", string(failedStage)).
			Dur("duration", run.Duration).
			Msg("Collection failed")
		return run, runErr
	}

	c.advance(run, model.StageDone)
	c.logger.Info().
		Str("id", run.ID).
		Int("entries", run.Summary.Count(model.OutcomeFound)).
		Int("missing", run.Summary.Count(model.OutcomeMissing)).
		Int("unreadable", run.Summary.Count(model.OutcomeUnreadable)).
		Int("skipped", run.Summary.Count(model.OutcomeSkipped)).
		Dur("duration", run.Duration).
		Msg("Collection complete")
	return run, nil
}

func (c *Collector) cleanup(run *model.Run) {
	if run.Archive == nil {
		return
	}

	c.logger.Info().Str("path", run.Archive.Path).Msg("Cleaning up temporary archive")
	err := os.Remove(run.Archive.Path)
	switch {
	case err == nil, errors.Is(err, os.ErrNotExist):
		run.Archive.Removed = true
	default:
		c.logger.Warn().Err(err).Str("path", run.Archive.Path).Msg("Failed to remove temporary archive")
	}
}

func (c *Collector) advance(run *model.Run, to model.Stage) {
	c.logger.Debug().
		Str("from", string(run.Stage)).
		Str("to", string(to)).
		Msg("Stage transition")
	run.Stage = to
}

func detectHost() *model.Host {
	host := &model.Host{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
	if hostname, err := os.Hostname(); err == nil {
		host.Hostname = hostname
	}
	return host
}

func redactArgs(args []string) []string {
	if len(args) == 0 {
		return nil
	}
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = upload.Redact(arg)
	}
	return out
}
