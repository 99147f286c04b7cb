package dispatch

import "errors"

var (
	// ErrStorageNil is returned when a nil storage is provided.
	ErrStorageNil = errors.New("dispatch: storage cannot be nil")

	// ErrSenderNil is returned when a nil sender is provided.
	ErrSenderNil = errors.New("dispatch: sender cannot be nil")

	// ErrEventNotFound is returned when an event id has no row.
	ErrEventNotFound = errors.New("dispatch: event not found")

	// ErrSubscriberNotFound is returned when a subscriber id has no row.
	ErrSubscriberNotFound = errors.New("dispatch: subscriber not found")

	// ErrAnchorNotFound is returned when an anchor lookup misses.
	ErrAnchorNotFound = errors.New("dispatch: anchor not found")

	// ErrAnchorConflict is returned when creating an anchor whose natural
	// key already exists. Callers re-read instead of failing.
	ErrAnchorConflict = errors.New("dispatch: anchor natural key already exists")

	// ErrDeliveryConflict is returned when a delivery already exists for
	// the (event, anchor) pair. Not fatal; the subscriber is skipped.
	ErrDeliveryConflict = errors.New("dispatch: delivery already exists for event and anchor")

	// ErrDeliveryNotFound is returned when a delivery id has no row.
	ErrDeliveryNotFound = errors.New("dispatch: delivery not found")

	// ErrStoreUnavailable wraps store-level failures before any claim
	// succeeded; the only case the trigger surface reports as a hard error.
	ErrStoreUnavailable = errors.New("dispatch: event store unavailable")
)
