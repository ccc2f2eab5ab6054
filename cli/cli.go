package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/forensicgo/collector/presign"
	"github.com/forensicgo/collector/upload"
)

const AppName = "collector"

// errUsage is returned after the usage message has been printed.
var errUsage = errors.New("invalid arguments")

type App struct {
	logger zerolog.Logger
	cli    *cli.App

	// homeDir resolves the directory the per-user artifacts are relative to.
	homeDir func() (string, error)
	// presignOptions are appended to the options derived from flags.
	presignOptions []presign.Option
	// args of the current invocation, recorded in the run
	args []string
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	return newApp(logger, os.Stdout, os.Stderr)
}

func newApp(logger zerolog.Logger, stdout, stderr io.Writer) *App {
	app := &App{
		logger:  logger,
		homeDir: os.UserHomeDir,
	}
	app.cli = &cli.App{
		Name:      AppName,
		Usage:     "Collect forensic artifacts into a zip archive and upload it to a pre-signed URL",
		ArgsUsage: "<presigned-url>",
		Writer:    stdout,
		ErrWriter: stderr,
		// Paths may contain commas.
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose (debug) logging",
				EnvVars: []string{"COLLECTOR_VERBOSE"},
			},
			&cli.StringSliceFlag{
				Name:  "artifact",
				Usage: "Path to collect; replaces the built-in artifact list (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "extra-artifact",
				Usage: "Path to collect in addition to the artifact list (repeatable)",
			},
			&cli.StringFlag{
				Name:    "temp-dir",
				Usage:   "Directory for the temporary archive (default: system temp directory)",
				EnvVars: []string{"COLLECTOR_TEMP_DIR"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "Timeout for the upload request",
				Value:   upload.DefaultTimeout,
				EnvVars: []string{"COLLECTOR_TIMEOUT"},
			},
			&cli.IntFlag{
				Name:    "compression-level",
				Usage:   fmt.Sprintf("Deflate level from %d (huffman only) to %d (best)", flate.HuffmanOnly, flate.BestCompression),
				Value:   flate.DefaultCompression,
				EnvVars: []string{"COLLECTOR_COMPRESSION_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "manifest",
				Usage:   "Store a run manifest in the archive",
				EnvVars: []string{"COLLECTOR_MANIFEST"},
			},
		},
		Before: func(ctx *cli.Context) error {
			if ctx.Bool("verbose") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			return nil
		},
		Action: app.collect,
	}
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "presign",
		Usage:  "Generate a pre-signed S3 PUT URL for an upload",
		Action: app.presign,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "bucket",
				Aliases:  []string{"b"},
				Usage:    "S3 bucket that receives the archive",
				Required: true,
				EnvVars:  []string{"COLLECTOR_BUCKET"},
			},
			&cli.StringFlag{
				Name:    "key",
				Aliases: []string{"k"},
				Usage:   "Object key (default: <hostname>-<timestamp>.zip)",
			},
			&cli.StringFlag{
				Name:    "region",
				Usage:   "AWS region (default: from the AWS configuration, else " + presign.DefaultRegion + ")",
				EnvVars: []string{"AWS_REGION"},
			},
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "S3 endpoint URL (default: the regional AWS endpoint)",
			},
			&cli.BoolFlag{
				Name:  "path-style",
				Usage: "Use path-style URLs, as most S3-compatible stores require",
			},
			&cli.DurationFlag{
				Name:  "expires",
				Usage: "How long the URL stays valid",
				Value: presign.DefaultExpiry,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "inspect",
		Usage:     "List the contents of a collected archive",
		ArgsUsage: "<archive.zip>",
		Action:    app.inspect,
	})
	return app
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && commit != "" {
		if len(commit) > 8 {
			commit = commit[:8]
		}
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	}
}

func (a *App) Run(args []string) error {
	a.args = args
	return a.cli.Run(args)
}
