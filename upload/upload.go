// Package upload sends a finished archive to a pre-signed object store URL.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ContentType is sent with every upload.
const ContentType = "application/zip"

// DefaultTimeout bounds a single upload attempt.
const DefaultTimeout = 15 * time.Minute

// maxErrorBody limits how much of an error response is kept.
const maxErrorBody = 512

// Client performs single-attempt HTTP PUT uploads. There are no retries.
type Client struct {
	logger     zerolog.Logger
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for the request.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Client) {
		u.httpClient = c
	}
}

// WithTimeout sets the deadline for the whole attempt. Zero disables it and
// leaves only the transport's own timeouts.
func WithTimeout(d time.Duration) Option {
	return func(u *Client) {
		u.timeout = d
	}
}

// New creates an upload client.
func New(logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		logger:     logger,
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload reads the archive at archivePath into memory and PUTs it to target.
// Any 2xx response is success. Failures are returned as *Error.
func (c *Client) Upload(ctx context.Context, target, archivePath string) error {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	return c.Put(ctx, target, data)
}

// Put sends body to target in a single PUT request.
func (c *Client) Put(ctx context.Context, target string, body []byte) error {
	u, err := parseTarget(target)
	if err != nil {
		return err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	req.Header.Set("Content-Type", ContentType)
	req.ContentLength = int64(len(body))

	c.logger.Debug().
		Str("host", u.Host).
		Int("bytes", len(body)).
		Msg("Sending PUT request")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Err: fmt.Errorf("%w: %w", ErrTransport, stripURL(err))}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(snippet)),
			Err:        ErrUnexpectedStatus,
		}
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Info().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Msg("Upload complete")
	return nil
}

// ValidateTarget checks that target is an absolute http or https URL.
func ValidateTarget(target string) error {
	_, err := parseTarget(target)
	return err
}

func parseTarget(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, Redact(target))
	}
	return u, nil
}

// stripURL redacts the request URL in errors returned by http.Client.
func stripURL(err error) error {
	if uerr, ok := err.(*url.Error); ok {
		return fmt.Errorf("%s %s: %w", uerr.Op, Redact(uerr.URL), uerr.Err)
	}
	return err
}

// Redact drops the query string of a URL. Pre-signed URLs carry their
// signature there.
func Redact(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i] + "?REDACTED"
	}
	return target
}
