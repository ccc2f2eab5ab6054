package cli

// This file contains the inspect command for looking at a collected archive.

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/forensicgo/collector/archive"
	"github.com/forensicgo/collector/model"
)

func (a *App) inspect(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		fmt.Fprintf(ctx.App.ErrWriter, "Usage: %s inspect <archive.zip>\n", AppName)
		return errUsage
	}

	r, err := archive.Open(ctx.Args().First())
	if err != nil {
		return err
	}
	defer r.Close()

	w := ctx.App.Writer
	entries := r.Entries()
	var total uint64
	for _, e := range entries {
		total += e.Size
	}

	fmt.Fprintf(w, "\n=== Entries (%d files, %.1f KB) ===\n\n", len(entries), float64(total)/1024)
	for _, e := range entries {
		fmt.Fprintf(w, "%10d  %s  %s\n", e.Size, e.Modified.Format("2006-01-02 15:04:05"), e.Name)
	}

	run, err := r.Manifest()
	if errors.Is(err, archive.ErrNoManifest) {
		a.logger.Debug().Msg("Archive has no manifest")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n=== Run %s ===\n\n", run.ID)
	fmt.Fprintf(w, "Started: %s\n", run.Timestamp.Format(time.RFC3339))
	if run.Host != nil {
		fmt.Fprintf(w, "Host:    %s (%s/%s)\n", run.Host.Hostname, run.Host.OS, run.Host.Arch)
	}
	if len(run.Args) > 1 {
		fmt.Fprintf(w, "Args:    %s\n", strings.Join(run.Args[1:], " "))
	}
	fmt.Fprintf(w, "Found: %d  Missing: %d  Unreadable: %d  Skipped: %d\n\n",
		run.Summary.Count(model.OutcomeFound),
		run.Summary.Count(model.OutcomeMissing),
		run.Summary.Count(model.OutcomeUnreadable),
		run.Summary.Count(model.OutcomeSkipped),
	)

	for _, res := range run.Summary.Results {
		status := "✓"
		if res.Outcome != model.OutcomeFound {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %-10s %s", status, res.Outcome, res.Path)
		switch {
		case res.Outcome == model.OutcomeFound:
			fmt.Fprintf(w, " (%s, sha256:%s)", res.MIMEType, shortDigest(res.SHA256))
		case res.Reason != "":
			fmt.Fprintf(w, " (%s)", res.Reason)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
