package gequbao

import "errors"

// Exported error variables for better error handling
var (
	// ErrInvalidInput means the caller supplied a bad argument (e.g. an
	// empty keyword). No network request is made in this case.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNetwork covers transport-level failures: DNS, connection refused,
	// request timeout.
	ErrNetwork = errors.New("network request failed")

	// ErrUpstream means the music site responded, but with a non-success
	// status or a body we could not parse.
	ErrUpstream = errors.New("unexpected upstream response")

	// ErrTrackUnavailable means the detail page yielded no playable URL.
	// This is a per-track outcome, not a failure of the whole search.
	ErrTrackUnavailable = errors.New("no playable url for track")
)
