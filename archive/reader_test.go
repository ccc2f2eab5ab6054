package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicgo/collector/model"
)

func TestReaderWithManifest(t *testing.T) {
	fs := newMemFS(t, map[string]string{
		"/etc/passwd":     "root:x:0:0",
		"/var/log/syslog": "boot",
	})
	b := newBuilder(t, fs)

	run := &model.Run{
		ID:        "0f8fad5b-d9cb-469f-a165-70867728950e",
		Timestamp: time.Date(2026, 10, 15, 6, 0, 0, 0, time.UTC),
		Host:      &model.Host{Hostname: "web-01", OS: "linux", Arch: "amd64"},
		Stage:     model.StageBuild,
	}
	path, _, err := b.BuildFile(context.Background(), []string{"/etc/passwd", "/var/log", "/etc/shadow"}, t.TempDir(), WithManifest(run))
	require.NoError(t, err)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, e := range r.Entries() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"etc/passwd", "var/log/syslog"}, names)

	data, err := r.ReadEntry("var/log/syslog")
	require.NoError(t, err)
	assert.Equal(t, "boot", string(data))

	manifest, err := r.Manifest()
	require.NoError(t, err)
	assert.Equal(t, run.ID, manifest.ID)
	assert.Equal(t, "web-01", manifest.Host.Hostname)
	require.Len(t, manifest.Summary.Results, 3)
	assert.Equal(t, model.OutcomeMissing, manifest.Summary.Results[2].Outcome)
	assert.Equal(t, "/etc/shadow", manifest.Summary.Results[2].Path)

	// the caller's run is not modified
	assert.Empty(t, run.Summary.Results)
}

func TestReaderWithoutManifest(t *testing.T) {
	fs := newMemFS(t, map[string]string{
		"/etc/passwd": "root:x:0:0",
	})
	b := newBuilder(t, fs)

	path, _, err := b.BuildFile(context.Background(), []string{"/etc/passwd"}, t.TempDir())
	require.NoError(t, err)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Manifest()
	assert.ErrorIs(t, err, ErrNoManifest)

	_, err = r.ReadEntry("etc/shadow")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestOpenInvalidArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-zip.zip")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}
