package pacing

import "errors"

var (
	// ErrInvalidConfig indicates a pacer configuration that cannot limit anything.
	ErrInvalidConfig = errors.New("pacing: invalid config")

	// ErrStoreUnavailable wraps failures of the backing token store.
	ErrStoreUnavailable = errors.New("pacing: token store unavailable")
)
