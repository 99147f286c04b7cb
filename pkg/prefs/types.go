package prefs

import (
	"fmt"
	"time"
)

// Kind identifies a domain event type produced by the ingestion pipeline.
type Kind string

const (
	KindBillIntroduced      Kind = "bill_introduced"
	KindBillStatusChanged   Kind = "bill_status_changed"
	KindVoteRecorded        Kind = "vote_recorded"
	KindHearingScheduled    Kind = "hearing_scheduled"
	KindHearingRescheduled  Kind = "hearing_rescheduled"
	KindHearingCanceled     Kind = "hearing_canceled"
	KindFloorCalendar       Kind = "floor_calendar_published"
	KindCommitteeCalendar   Kind = "committee_calendar_published"
)

// Key is the subscriber-facing preference a kind maps onto.
// Multiple kinds may alias to one key.
type Key string

const (
	KeyBills     Key = "bills"
	KeyVotes     Key = "votes"
	KeyHearings  Key = "hearings"
	KeyCalendars Key = "calendars"
)

// Channel is the delivery channel for a subscription.
type Channel string

const (
	ChannelEmail Channel = "email"
)

// Cadence is the subscriber's configured delivery rhythm.
type Cadence string

const (
	CadenceInstant Cadence = "instant"
	CadenceDaily   Cadence = "daily_digest"
	CadenceWeekly  Cadence = "weekly_digest"
)

// IsDigest reports whether the cadence batches deliveries.
func (c Cadence) IsDigest() bool {
	return c == CadenceDaily || c == CadenceWeekly
}

// Preferences is the typed per-subscriber delivery configuration.
// It is a read-only input to the dispatch engine; storage and editing
// live elsewhere.
type Preferences struct {
	Channel       Channel      `json:"channel"`
	Cadence       Cadence      `json:"cadence"`
	DigestHour    int          `json:"digest_hour"`    // 0-23, local to the reference zone
	DigestMinute  int          `json:"digest_minute"`  // 0-59
	DigestWeekday time.Weekday `json:"digest_weekday"` // Weekly digests only
	Keys          map[Key]bool `json:"keys"`           // Enabled preference keys

	// Chambers restricts calendar notifications to the named chambers.
	// Empty means no restriction.
	Chambers map[string]bool `json:"chambers,omitempty"`
}

// Validate rejects preference structs the dispatcher cannot act on.
// Run once when loading subscribers, never in the hot path.
func (p Preferences) Validate() error {
	switch p.Channel {
	case ChannelEmail:
	default:
		return fmt.Errorf("%w: unknown channel %q", ErrInvalidPreferences, p.Channel)
	}
	switch p.Cadence {
	case CadenceInstant, CadenceDaily, CadenceWeekly:
	default:
		return fmt.Errorf("%w: unknown cadence %q", ErrInvalidPreferences, p.Cadence)
	}
	if p.DigestHour < 0 || p.DigestHour > 23 {
		return fmt.Errorf("%w: digest hour %d out of range", ErrInvalidPreferences, p.DigestHour)
	}
	if p.DigestMinute < 0 || p.DigestMinute > 59 {
		return fmt.Errorf("%w: digest minute %d out of range", ErrInvalidPreferences, p.DigestMinute)
	}
	if p.DigestWeekday < time.Sunday || p.DigestWeekday > time.Saturday {
		return fmt.Errorf("%w: digest weekday %d out of range", ErrInvalidPreferences, p.DigestWeekday)
	}
	return nil
}

// HasAnyKey reports whether at least one preference key is enabled.
// Subscribers with nothing enabled are skipped before resolution.
func (p Preferences) HasAnyKey() bool {
	for _, on := range p.Keys {
		if on {
			return true
		}
	}
	return false
}
