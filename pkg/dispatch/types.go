package dispatch

import (
	"time"

	"github.com/google/uuid"

	"github.com/legiswatch/notify/pkg/prefs"
)

// EventStatus tracks an event through the dispatch state machine.
// No transition may skip Processing.
type EventStatus string

const (
	EventStatusPending    EventStatus = "pending"
	EventStatusProcessing EventStatus = "processing"
	EventStatusDone       EventStatus = "done"
	EventStatusFailed     EventStatus = "failed"
)

// Event is a discrete domain occurrence requiring possible notification.
// Rows are created by the external ingestion pipeline in pending status.
type Event struct {
	ID            uuid.UUID      `json:"id"`
	Kind          prefs.Kind     `json:"kind"`
	Priority      bool           `json:"priority"` // Forces instant delivery regardless of cadence
	Context       map[string]any `json:"context,omitempty"`
	Status        EventStatus    `json:"status"`
	Attempts      int            `json:"attempts"`
	LastError     *string        `json:"last_error,omitempty"`
	NextAttemptAt *time.Time     `json:"next_attempt_at,omitempty"` // Nil means due now
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Chamber returns the event's chamber from its context payload, empty
// when absent. Only calendar kinds carry one.
func (e *Event) Chamber() string {
	if e.Context == nil {
		return ""
	}
	if s, ok := e.Context["chamber"].(string); ok {
		return s
	}
	return ""
}

// Subscriber is a notification recipient with validated preferences.
// Read-only input to the engine; managed elsewhere.
type Subscriber struct {
	ID    uuid.UUID         `json:"id"`
	Email string            `json:"email"`
	Prefs prefs.Preferences `json:"prefs"`
}

// SendMode is how deliveries through an anchor leave the system.
type SendMode string

const (
	SendModeInstant SendMode = "INSTANT"
	SendModeDigest  SendMode = "DIGEST"
)

// DigestCadence is the anchor-level digest schedule.
type DigestCadence string

const (
	DigestDaily  DigestCadence = "DAILY"
	DigestWeekly DigestCadence = "WEEKLY"
)

// ModeFor derives the anchor send mode and digest cadence from a
// resolver decision. A forced decision yields an instant send, but the
// subscriber's digest cadence is still recorded on the anchor so a later
// non-forced event aggregates on the same schedule.
func ModeFor(d prefs.Decision) (SendMode, *DigestCadence) {
	var cadence *DigestCadence
	switch d.Cadence {
	case prefs.CadenceDaily:
		c := DigestDaily
		cadence = &c
	case prefs.CadenceWeekly:
		c := DigestWeekly
		cadence = &c
	}

	if d.Forced || d.Cadence == prefs.CadenceInstant {
		return SendModeInstant, cadence
	}
	return SendModeDigest, cadence
}

// AnchorKey is the natural key of a subscription anchor.
// The store enforces uniqueness over exactly these fields.
type AnchorKey struct {
	SubscriberID uuid.UUID     `json:"subscriber_id"`
	KindFilter   prefs.Key     `json:"kind_filter"`
	Channel      prefs.Channel `json:"channel"`
	Target       string        `json:"target"`
	SendMode     SendMode      `json:"send_mode"`
}

// Anchor is the durable identity of one subscription, used only for
// delivery bookkeeping and digest timing. Created lazily on the first
// matching event and kept indefinitely.
type Anchor struct {
	ID              uuid.UUID      `json:"id"`
	Key             AnchorKey      `json:"key"`
	DigestCadence   *DigestCadence `json:"digest_cadence,omitempty"`
	LastTriggeredAt *time.Time     `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// DeliveryStatus tracks one delivery record.
type DeliveryStatus string

const (
	DeliveryQueued DeliveryStatus = "QUEUED"
	DeliverySent   DeliveryStatus = "SENT"
	DeliveryFailed DeliveryStatus = "FAILED"
)

// Delivery records one attempt to notify one subscriber about one event
// through one anchor. At most one delivery exists per (event, anchor).
type Delivery struct {
	ID        uuid.UUID      `json:"id"`
	EventID   uuid.UUID      `json:"event_id"`
	AnchorID  uuid.UUID      `json:"anchor_id"`
	Status    DeliveryStatus `json:"status"`
	SentAt    *time.Time     `json:"sent_at,omitempty"`
	Error     *string        `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// DeadLetter records a digest send that failed after its deliveries were
// closed, so the affected updates stay visible to operators instead of
// silently dropping.
type DeadLetter struct {
	ID          uuid.UUID   `json:"id"`
	AnchorID    uuid.UUID   `json:"anchor_id"`
	DeliveryIDs []uuid.UUID `json:"delivery_ids"`
	Error       string      `json:"error"`
	CreatedAt   time.Time   `json:"created_at"`
}
