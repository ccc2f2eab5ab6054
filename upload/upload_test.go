package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArchive(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collector-test.zip")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestUploadSuccess(t *testing.T) {
	var (
		gotMethod      string
		gotContentType string
		gotLength      int64
		gotBody        []byte
		gotQuery       string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotLength = r.ContentLength
		gotQuery = r.URL.RawQuery
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := writeArchive(t, "PK-archive-bytes")
	c := New(zerolog.Nop())

	err := c.Upload(context.Background(), server.URL+"/bucket/host.zip?X-Amz-Signature=abc", path)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "application/zip", gotContentType)
	assert.Equal(t, int64(len("PK-archive-bytes")), gotLength)
	assert.Equal(t, "PK-archive-bytes", string(gotBody))
	assert.Equal(t, "X-Amz-Signature=abc", gotQuery)
}

func TestUploadStatusClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "created", status: http.StatusCreated},
		{name: "no content", status: http.StatusNoContent},
		{name: "forbidden", status: http.StatusForbidden, body: "<Error><Code>SignatureDoesNotMatch</Code></Error>", wantErr: true},
		{name: "redirect", status: http.StatusMultipleChoices, wantErr: true},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			err := New(zerolog.Nop()).Put(context.Background(), server.URL+"/key", []byte("zip"))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnexpectedStatus)
			assert.False(t, IsTransport(err))
			assert.Equal(t, tt.status, StatusCode(err))
			assert.Contains(t, err.Error(), http.StatusText(tt.status))
		})
	}
}

func TestUploadForbiddenIncludesStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Request has expired", http.StatusForbidden)
	}))
	defer server.Close()

	err := New(zerolog.Nop()).Upload(context.Background(), server.URL+"/key", writeArchive(t, "zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "Request has expired")

	var uerr *Error
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, http.StatusForbidden, uerr.StatusCode)
}

func TestUploadConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := server.URL + "/bucket/key.zip?X-Amz-Credential=AKIA&X-Amz-Signature=secret"
	server.Close()

	err := New(zerolog.Nop()).Upload(context.Background(), target, writeArchive(t, "zip"))
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, 0, StatusCode(err))
	assert.Contains(t, err.Error(), "upload failed")
	assert.NotContains(t, err.Error(), "secret")
}

func TestUploadTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	c := New(zerolog.Nop(), WithTimeout(50*time.Millisecond))
	err := c.Put(context.Background(), server.URL, []byte("zip"))
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUploadInvalidTarget(t *testing.T) {
	for _, target := range []string{"", "not a url", "/relative/path", "://missing-scheme", "ftp://example.com/key"} {
		err := New(zerolog.Nop()).Put(context.Background(), target, nil)
		assert.ErrorIs(t, err, ErrInvalidTarget, "target %q", target)
	}
}

func TestValidateTarget(t *testing.T) {
	assert.NoError(t, ValidateTarget("https://bucket.s3.amazonaws.com/key?X-Amz-Signature=abc"))
	assert.NoError(t, ValidateTarget("http://127.0.0.1:9000/bucket/key"))

	err := ValidateTarget("s3://bucket/key?X-Amz-Signature=secret")
	assert.ErrorIs(t, err, ErrInvalidTarget)
	assert.NotContains(t, err.Error(), "secret")
}

func TestUploadMissingArchive(t *testing.T) {
	err := New(zerolog.Nop()).Upload(context.Background(), "http://127.0.0.1:1/key", filepath.Join(t.TempDir(), "gone.zip"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWithHTTPClient(t *testing.T) {
	var called bool
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		called = true
		return &http.Response{StatusCode: http.StatusOK, Status: "200 OK", Body: http.NoBody, Request: r}, nil
	})}

	err := New(zerolog.Nop(), WithHTTPClient(client)).Put(context.Background(), "https://bucket.s3.amazonaws.com/key", []byte("zip"))
	require.NoError(t, err)
	assert.True(t, called)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "https://b.s3.amazonaws.com/k.zip?REDACTED", Redact("https://b.s3.amazonaws.com/k.zip?X-Amz-Signature=abc"))
	assert.Equal(t, "https://b.s3.amazonaws.com/k.zip", Redact("https://b.s3.amazonaws.com/k.zip"))
	assert.Equal(t, "--verbose", Redact("--verbose"))
}
