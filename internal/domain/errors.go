package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrNotFound        = errors.New("not found")
	ErrAllocation      = errors.New("capture buffer allocation failed")
	ErrLinkDown        = errors.New("network link not associated")
	ErrConnect         = errors.New("connect failed")
	ErrResponseTimeout = errors.New("response timeout")
	ErrHTTPStatus      = errors.New("unexpected http status")
	ErrNoContent       = errors.New("missing or zero content length")
	ErrTruncated       = errors.New("response body truncated")
	ErrStorage         = errors.New("response storage failed")
	ErrPlaybackRefused = errors.New("playback engine refused file")
)
