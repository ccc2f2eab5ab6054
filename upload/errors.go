package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTarget indicates the upload URL could not be used to build a request.
	ErrInvalidTarget = errors.New("upload: invalid target URL")
	// ErrUnexpectedStatus indicates the server answered with a non-2xx status.
	ErrUnexpectedStatus = errors.New("upload: unexpected status")
	// ErrTransport indicates the request did not complete (DNS, connection, timeout).
	ErrTransport = errors.New("upload: transport error")
)

// Error describes a failed upload attempt.
type Error struct {
	// StatusCode is the HTTP status of the response, zero if none was received
	StatusCode int
	// Status is the HTTP status line text
	Status string
	// Body holds the start of the response body, which for object stores
	// usually carries the reason (e.g. an expired signature)
	Body string
	// Err is ErrUnexpectedStatus or the transport error
	Err error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		msg := fmt.Sprintf("upload failed with status %s", e.Status)
		if e.Body != "" {
			msg += ": " + e.Body
		}
		return msg
	}
	return fmt.Sprintf("upload failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is an upload failure without a response.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr.StatusCode
	}
	return 0
}
