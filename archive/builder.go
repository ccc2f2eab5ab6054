// Package archive builds and reads the zip archives produced by a collection
// run.
package archive

// This file contains the archive builder, which walks candidate paths and
// writes every regular file it finds into a single zip archive.

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"

	"github.com/forensicgo/collector/model"
)

// ManifestName is the entry name of the optional run manifest.
const ManifestName = "collector/manifest.json"

// sniffLen is the number of leading bytes used for MIME detection.
const sniffLen = 3072

// ErrCreate is returned when the archive container itself cannot be written.
// Problems with individual artifacts never produce it.
var ErrCreate = errors.New("archive creation failed")

// Builder writes candidate paths into zip archives.
type Builder struct {
	logger zerolog.Logger
	fs     billy.Filesystem
	level  int
}

// Option configures a Builder.
type Option func(*Builder)

// WithFilesystem sets the filesystem artifacts are read from. Paths handed
// to the builder are absolute paths within this filesystem. Defaults to the
// host filesystem rooted at /.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(b *Builder) {
		b.fs = fs
	}
}

// WithCompressionLevel sets the deflate level, from flate.HuffmanOnly (-2)
// to flate.BestCompression (9).
func WithCompressionLevel(level int) Option {
	return func(b *Builder) {
		b.level = level
	}
}

// New creates a builder.
func New(logger zerolog.Logger, opts ...Option) (*Builder, error) {
	b := &Builder{
		logger: logger,
		level:  flate.DefaultCompression,
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.level < flate.HuffmanOnly || b.level > flate.BestCompression {
		return nil, fmt.Errorf("invalid compression level %d: must be between %d and %d", b.level, flate.HuffmanOnly, flate.BestCompression)
	}
	if b.fs == nil {
		b.fs = osfs.New("/")
	}

	return b, nil
}

type buildConfig struct {
	manifest *model.Run
}

// BuildOption configures a single build.
type BuildOption func(*buildConfig)

// WithManifest appends ManifestName as the last entry, holding run with its
// Summary set to the outcome of the build.
func WithManifest(run *model.Run) BuildOption {
	return func(c *buildConfig) {
		c.manifest = run
	}
}

// EntryName returns the archive entry name for an absolute path: the path
// without its volume name and leading separators, using forward slashes.
func EntryName(path string) string {
	path = filepath.Clean(path)
	path = strings.TrimPrefix(path, filepath.VolumeName(path))
	return strings.TrimLeft(filepath.ToSlash(path), "/")
}

// BuildFile creates a new archive in dir (os.TempDir when empty) and builds
// it from paths. The archive path is returned whenever the file was created,
// even if the build failed, so the caller can remove it.
func (b *Builder) BuildFile(ctx context.Context, paths []string, dir string, opts ...BuildOption) (string, model.Summary, error) {
	f, err := os.CreateTemp(dir, "collector-*.zip")
	if err != nil {
		return "", model.Summary{}, fmt.Errorf("%w: %w", ErrCreate, err)
	}
	archivePath := f.Name()

	b.logger.Info().Str("path", archivePath).Msg("Creating zip archive")

	summary, err := b.Build(ctx, paths, f, opts...)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("%w: %w", ErrCreate, cerr)
	}
	return archivePath, summary, err
}

// Build writes every regular file reachable from paths into a zip archive on
// w. Missing, unreadable and non-regular paths are recorded in the returned
// summary and never abort the build. An error is only returned when the
// archive cannot be written (wrapping ErrCreate) or ctx is done.
func (b *Builder) Build(ctx context.Context, paths []string, w io.Writer, opts ...BuildOption) (model.Summary, error) {
	var cfg buildConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, b.level)
	})

	bs := &buildState{
		Builder: b,
		ctx:     ctx,
		zw:      zw,
		seen:    make(map[string]struct{}),
	}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return bs.summary, err
		}
		if err := bs.addPath(p); err != nil {
			return bs.summary, err
		}
	}

	if cfg.manifest != nil {
		if err := writeManifest(zw, cfg.manifest, bs.summary); err != nil {
			return bs.summary, err
		}
	}

	if err := zw.Close(); err != nil {
		return bs.summary, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	b.logger.Info().
		Int("entries", bs.summary.Count(model.OutcomeFound)).
		Int("missing", bs.summary.Count(model.OutcomeMissing)).
		Int("unreadable", bs.summary.Count(model.OutcomeUnreadable)).
		Int("skipped", bs.summary.Count(model.OutcomeSkipped)).
		Int64("bytes", bs.summary.Bytes()).
		Msg("Archive built")

	return bs.summary, nil
}

// buildState is the state of a single Build call.
type buildState struct {
	*Builder
	ctx     context.Context
	zw      *zip.Writer
	summary model.Summary
	// entry names already written; overlapping candidates add a file once
	seen map[string]struct{}
}

func (bs *buildState) addPath(candidate string) error {
	path, err := filepath.Abs(candidate)
	if err != nil {
		bs.record(model.PathResult{Path: candidate, Root: candidate, Outcome: model.OutcomeUnreadable, Reason: err.Error()})
		return nil
	}

	// A named candidate is resolved once, even if it is a symlink.
	info, err := bs.fs.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		bs.record(model.PathResult{Path: path, Root: path, Outcome: model.OutcomeMissing, Reason: "path does not exist"})
		return nil
	case err != nil:
		bs.record(model.PathResult{Path: path, Root: path, Outcome: model.OutcomeUnreadable, Reason: err.Error()})
		return nil
	}

	switch {
	case info.Mode().IsRegular():
		return bs.addFile(path, path, info)
	case info.IsDir():
		return bs.walkDir(path, path)
	default:
		bs.record(model.PathResult{Path: path, Root: path, Outcome: model.OutcomeSkipped, Reason: describeMode(info.Mode())})
		return nil
	}
}

// walkDir adds all regular files below dir. Entries returned by ReadDir
// describe the entry itself, so symlinks are seen as symlinks and skipped.
func (bs *buildState) walkDir(root, dir string) error {
	infos, err := bs.fs.ReadDir(dir)
	if err != nil {
		bs.record(model.PathResult{Path: dir, Root: root, Outcome: model.OutcomeUnreadable, Reason: err.Error()})
		return nil
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name() < infos[j].Name()
	})

	for _, info := range infos {
		if err := bs.ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(dir, info.Name())
		mode := info.Mode()
		switch {
		case mode.IsDir():
			if err := bs.walkDir(root, path); err != nil {
				return err
			}
		case mode.IsRegular():
			if err := bs.addFile(root, path, info); err != nil {
				return err
			}
		default:
			bs.record(model.PathResult{Path: path, Root: root, Outcome: model.OutcomeSkipped, Reason: describeMode(mode)})
		}
	}
	return nil
}

func (bs *buildState) addFile(root, path string, info os.FileInfo) error {
	name := EntryName(path)
	if _, ok := bs.seen[name]; ok {
		bs.logger.Debug().Str("path", path).Str("root", root).Msg("File already archived")
		return nil
	}

	f, err := bs.fs.Open(path)
	if err != nil {
		bs.record(model.PathResult{Path: path, Root: root, Outcome: model.OutcomeUnreadable, Reason: err.Error()})
		return nil
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		bs.record(model.PathResult{Path: path, Root: root, Outcome: model.OutcomeUnreadable, Reason: err.Error()})
		return nil
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		bs.record(model.PathResult{Path: path, Root: root, Outcome: model.OutcomeUnreadable, Reason: err.Error()})
		return nil
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	ew, err := bs.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}
	bs.seen[name] = struct{}{}

	h := sha256.New()
	tw := &trackingWriter{w: ew}
	n, err := io.Copy(io.MultiWriter(tw, h), br)
	if err != nil {
		if tw.err != nil {
			return fmt.Errorf("%w: %w", ErrCreate, tw.err)
		}
		// The entry is already in the archive, truncated at n bytes.
		bs.record(model.PathResult{
			Path:    path,
			Root:    root,
			Outcome: model.OutcomeUnreadable,
			Entry:   name,
			Size:    n,
			Reason:  fmt.Sprintf("read failed after %d bytes: %v", n, err),
		})
		return nil
	}

	bs.record(model.PathResult{
		Path:     path,
		Root:     root,
		Outcome:  model.OutcomeFound,
		Entry:    name,
		Size:     n,
		SHA256:   hex.EncodeToString(h.Sum(nil)),
		MIMEType: mimetype.Detect(head).String(),
	})
	return nil
}

func (bs *buildState) record(r model.PathResult) {
	bs.summary.Add(r)

	switch r.Outcome {
	case model.OutcomeFound:
		bs.logger.Debug().
			Str("path", r.Path).
			Str("entry", r.Entry).
			Int64("size", r.Size).
			Msg("Added file to archive")
	case model.OutcomeMissing:
		bs.logger.Warn().Str("path", r.Path).Msg("Skipping missing path")
	default:
		bs.logger.Warn().
			Str("path", r.Path).
			Str("outcome", r.Outcome.String()).
			Str("reason", r.Reason).
			Msg("Skipping path")
	}
}

func writeManifest(zw *zip.Writer, run *model.Run, summary model.Summary) error {
	manifest := *run
	manifest.Summary = summary

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	ew, err := zw.CreateHeader(&zip.FileHeader{
		Name:     ManifestName,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}
	if _, err := ew.Write(data); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}
	return nil
}

func describeMode(mode os.FileMode) string {
	switch {
	case mode&os.ModeSymlink != 0:
		return "symbolic link"
	case mode&os.ModeDevice != 0:
		return "device file"
	case mode&os.ModeNamedPipe != 0:
		return "named pipe"
	case mode&os.ModeSocket != 0:
		return "socket"
	default:
		return fmt.Sprintf("not a regular file (%s)", mode.Type())
	}
}

// trackingWriter remembers the first write error so that copy failures can
// be attributed to the archive rather than the source file.
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil && t.err == nil {
		t.err = err
	}
	return n, err
}
