package api

import "errors"

var (
	// ErrDispatcherNil is returned by NewRouter when no dispatcher is provided.
	ErrDispatcherNil = errors.New("api: dispatcher is nil")
	// ErrNoAuthMethod is returned when neither a shared secret nor a
	// session checker is configured.
	ErrNoAuthMethod = errors.New("api: no authentication method configured")
)
