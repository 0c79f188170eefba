package registry

import "errors"

var (
	// ErrPartialResolution is logged when some auction ids failed to resolve in a cycle.
	// Failed records are omitted from that cycle's view and retried on the next one.
	ErrPartialResolution = errors.New("partial auction resolution")

	ErrAlreadyRunning = errors.New("registry synchronizer already running")
	ErrNotRunning     = errors.New("registry synchronizer not running")
)
