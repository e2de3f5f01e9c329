// Package upstream holds the error taxonomy and retry policy shared by the
// remote catalog client and the metadata enrichment client.
package upstream

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to callers once a request is given up on.
var (
	// ErrRateLimited means the upstream kept answering 429 past the retry cap.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrParse means the upstream body could not be decoded.
	ErrParse = errors.New("upstream response parse error")

	// ErrNotConfigured is returned by clients whose credentials are absent;
	// no request is made.
	ErrNotConfigured = errors.New("client not configured")

	// ErrTimeout signals an operation exceeded its overall bound.
	ErrTimeout = errors.New("operation timed out")

	// ErrNotFound signals a missing provider or entity.
	ErrNotFound = errors.New("not found")

	// ErrSyncRunning signals a sync for the provider is already in flight.
	ErrSyncRunning = errors.New("sync already running")
)

// HTTPError is a terminal non-2xx response (anything but 429, which retries).
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream http error: status %d", e.Status)
}

// TransportError wraps a network-level failure (DNS, refused connection,
// timeout) that exhausted its retries.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
