package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventStore is the dispatch engine's view of event persistence.
type EventStore interface {
	// DueEvents returns up to limit events claimable at now: status
	// pending or failed with a nil or elapsed next attempt time, plus
	// processing rows stale for longer than staleAfter (a crashed run
	// must not orphan events). Ordered status-ascending then by creation,
	// so older failures retry before newer pending events.
	DueEvents(ctx context.Context, now time.Time, staleAfter time.Duration, limit int) ([]Event, error)

	// GetEvent fetches one event or ErrEventNotFound.
	GetEvent(ctx context.Context, id uuid.UUID) (*Event, error)

	// EventsByIDs fetches events preserving no particular order.
	EventsByIDs(ctx context.Context, ids []uuid.UUID) ([]Event, error)

	// ClaimEvent atomically moves the event to processing and increments
	// attempts, but only while its status is still claimable (pending,
	// failed, or stale processing). Returns false when a concurrent run
	// won the claim.
	ClaimEvent(ctx context.Context, id uuid.UUID, now time.Time, staleAfter time.Duration) (bool, error)

	// ForceClaimEvent claims regardless of current status. Manual
	// reprocessing only.
	ForceClaimEvent(ctx context.Context, id uuid.UUID, now time.Time) error

	// MarkEventDone finishes a successful fan-out.
	MarkEventDone(ctx context.Context, id uuid.UUID, now time.Time) error

	// MarkEventFailed records the failure and when to retry.
	MarkEventFailed(ctx context.Context, id uuid.UUID, lastError string, nextAttemptAt time.Time) error
}

// SubscriberStore lists and fetches notification recipients.
type SubscriberStore interface {
	// ActiveSubscribers returns up to limit subscribers considered for
	// fan-out, in stable order.
	ActiveSubscribers(ctx context.Context, limit int) ([]Subscriber, error)

	// GetSubscriber fetches one subscriber or ErrSubscriberNotFound.
	GetSubscriber(ctx context.Context, id uuid.UUID) (*Subscriber, error)
}

// AnchorStore persists subscription anchors.
type AnchorStore interface {
	// FindAnchor looks up by natural key; ErrAnchorNotFound on miss.
	FindAnchor(ctx context.Context, key AnchorKey) (*Anchor, error)

	// GetAnchor fetches by id; ErrAnchorNotFound on miss.
	GetAnchor(ctx context.Context, id uuid.UUID) (*Anchor, error)

	// CreateAnchor inserts a new anchor; ErrAnchorConflict when the
	// natural key already exists.
	CreateAnchor(ctx context.Context, a *Anchor) error

	// UpdateAnchorCadence refreshes the digest cadence after a
	// preference change.
	UpdateAnchorCadence(ctx context.Context, id uuid.UUID, cadence *DigestCadence, now time.Time) error

	// MarkAnchorTriggered stamps lastTriggeredAt after a successful send
	// (or an intentionally empty digest window).
	MarkAnchorTriggered(ctx context.Context, id uuid.UUID, at time.Time) error
}

// DeliveryStore persists delivery records.
type DeliveryStore interface {
	// CreateDelivery inserts a queued delivery; ErrDeliveryConflict when
	// one already exists for the (event, anchor) pair.
	CreateDelivery(ctx context.Context, d *Delivery) error

	// CloseDelivery transitions one delivery to sent or failed.
	CloseDelivery(ctx context.Context, id uuid.UUID, status DeliveryStatus, at time.Time, errMsg string) error

	// CloseDeliveries is the bulk form used by the digest flush.
	CloseDeliveries(ctx context.Context, ids []uuid.UUID, status DeliveryStatus, at time.Time, errMsg string) error

	// QueuedDeliveries returns up to limit queued deliveries for the
	// anchor, most recent first; older excess stays queued.
	QueuedDeliveries(ctx context.Context, anchorID uuid.UUID, limit int) ([]Delivery, error)
}

// DeadLetterStore records digest sends that failed terminally.
type DeadLetterStore interface {
	CreateDeadLetter(ctx context.Context, dl *DeadLetter) error
}

// Storage is the full persistence surface the engine needs.
type Storage interface {
	EventStore
	SubscriberStore
	AnchorStore
	DeliveryStore
	DeadLetterStore
}
