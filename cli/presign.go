package cli

// This file contains the presign command, which prepares the upload target
// for a collection run.

import (
	"fmt"
	"os"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/urfave/cli/v2"

	"github.com/forensicgo/collector/presign"
)

func (a *App) presign(ctx *cli.Context) error {
	var opts []presign.Option
	if region := ctx.String("region"); region != "" {
		opts = append(opts, presign.WithRegion(region))
	}
	if endpoint := ctx.String("endpoint"); endpoint != "" {
		opts = append(opts, presign.WithEndpoint(endpoint))
	}
	if ctx.Bool("path-style") {
		opts = append(opts, presign.WithPathStyle(true))
	}
	opts = append(opts, a.presignOptions...)

	p, err := presign.New(ctx.Context, a.logger, opts...)
	if err != nil {
		return err
	}

	key := ctx.String("key")
	if key == "" {
		hostname, err := os.Hostname()
		if err != nil {
			a.logger.Warn().Err(err).Msg("Failed to determine hostname")
		}
		key = presign.DefaultKey(hostname, time.Now())
	}

	u, err := p.PutURL(ctx.Context, presign.Request{
		Bucket:  ctx.String("bucket"),
		Key:     key,
		Expires: ctx.Duration("expires"),
	})
	if err != nil {
		return err
	}

	w := ctx.App.Writer
	fmt.Fprintf(w, "URL:     %s\n", u.URL)
	fmt.Fprintf(w, "Object:  s3://%s/%s\n", u.Bucket, u.Key)
	fmt.Fprintf(w, "Expires: %s\n", u.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintf(w, "\nRun on the target host:\n  %s %s\n", AppName, shellescape.Quote(u.URL))
	return nil
}
