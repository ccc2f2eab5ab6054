package cli

// This file contains the default action: collect the artifacts and upload
// the archive to a pre-signed URL.

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/forensicgo/collector/archive"
	"github.com/forensicgo/collector/artifacts"
	"github.com/forensicgo/collector/collector"
	"github.com/forensicgo/collector/upload"
)

func (a *App) collect(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		fmt.Fprintf(ctx.App.ErrWriter, "Usage: %s [options] <presigned-url>\n", AppName)
		return errUsage
	}
	target := ctx.Args().First()
	if err := upload.ValidateTarget(target); err != nil {
		return err
	}

	list := a.artifactList(ctx)

	builder, err := archive.New(a.logger, archive.WithCompressionLevel(ctx.Int("compression-level")))
	if err != nil {
		return err
	}
	uploader := upload.New(a.logger, upload.WithTimeout(ctx.Duration("timeout")))

	c := collector.New(a.logger, builder, uploader,
		collector.WithTempDir(ctx.String("temp-dir")),
		collector.WithManifest(ctx.Bool("manifest")),
		collector.WithArgs(a.args),
	)

	// Interrupted runs still remove the temporary archive.
	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = c.Run(runCtx, list, target)
	return err
}

// artifactList returns the candidate paths for this invocation.
func (a *App) artifactList(ctx *cli.Context) artifacts.List {
	var list artifacts.List
	if ctx.IsSet("artifact") {
		list = artifacts.New(ctx.StringSlice("artifact")...)
	} else {
		home, err := a.homeDir()
		if err != nil {
			a.logger.Warn().Err(err).Msg("Failed to determine home directory, skipping per-user artifacts")
			home = ""
		}
		list = artifacts.Default(home)
	}
	list = list.With(ctx.StringSlice("extra-artifact")...)
	a.logger.Debug().Strs("paths", list.Paths()).Msg("Artifact list")
	return list
}
