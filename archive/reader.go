package archive

// This file contains read access to produced archives, used by the inspect
// command to look at a collection after the fact.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/forensicgo/collector/model"
)

var (
	// ErrNoManifest is returned by Reader.Manifest for archives built without one.
	ErrNoManifest = errors.New("archive has no manifest")
	// ErrEntryNotFound is returned by Reader.ReadEntry for unknown names.
	ErrEntryNotFound = errors.New("entry not found")
)

// Entry describes a collected file inside an archive.
type Entry struct {
	Name           string
	Size           uint64
	CompressedSize uint64
	Modified       time.Time
}

// Reader gives access to the entries of an archive on disk.
type Reader struct {
	zr *zip.ReadCloser
}

// Open opens the archive at path.
func Open(path string) (*Reader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return &Reader{zr: zr}, nil
}

// Entries returns the collected files in archive order. The manifest is not
// included.
func (r *Reader) Entries() []Entry {
	var entries []Entry
	for _, f := range r.zr.File {
		if f.Name == ManifestName {
			continue
		}
		entries = append(entries, Entry{
			Name:           f.Name,
			Size:           f.UncompressedSize64,
			CompressedSize: f.CompressedSize64,
			Modified:       f.Modified,
		})
	}
	return entries
}

// ReadEntry returns the contents of the named entry.
func (r *Reader) ReadEntry(name string) ([]byte, error) {
	for _, f := range r.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open entry %s: %w", name, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to read entry %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
}

// Manifest parses the run manifest stored in the archive.
func (r *Reader) Manifest() (*model.Run, error) {
	data, err := r.ReadEntry(ManifestName)
	if errors.Is(err, ErrEntryNotFound) {
		return nil, ErrNoManifest
	}
	if err != nil {
		return nil, err
	}

	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &run, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.zr.Close()
}
