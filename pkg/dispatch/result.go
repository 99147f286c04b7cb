package dispatch

import (
	"github.com/google/uuid"

	"github.com/legiswatch/notify/pkg/prefs"
)

// EventOutcome summarizes one event's fan-out.
type EventOutcome struct {
	EventID   uuid.UUID  `json:"event_id"`
	Kind      prefs.Kind `json:"kind"`
	Status    string     `json:"status"` // done, failed, claim_lost
	Attempted int        `json:"attempted"`
	Sent      int        `json:"sent"`
	Queued    int        `json:"queued"`
	Skipped   int        `json:"skipped"`
	Failed    int        `json:"failed"`
	Error     string     `json:"error,omitempty"`
}

// FlushResult summarizes one digest flush pass.
type FlushResult struct {
	Anchors      int `json:"anchors"`       // Touched anchors examined
	Attempted    int `json:"attempted"`     // Digests actually sent to the provider
	Sent         int `json:"sent"`          // Digests delivered
	Failed       int `json:"failed"`        // Digest sends that failed
	Skipped      int `json:"skipped"`       // Not due, wrong mode, or preference changed
	DeadLettered int `json:"dead_lettered"` // Failed digests recorded for operator review
}

// BatchResult is the structured report a dispatch run returns to its
// trigger. Individual failures are data here, not errors; only store
// unavailability before any claim surfaces as a hard error.
type BatchResult struct {
	Fetched       int            `json:"fetched"`
	Claimed       int            `json:"claimed"`
	Outcomes      []EventOutcome `json:"outcomes"`
	UnmappedKinds []string       `json:"unmapped_kinds,omitempty"`
	Digest        FlushResult    `json:"digest"`
}
