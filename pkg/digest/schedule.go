package digest

import (
	"time"

	"github.com/legiswatch/notify/pkg/prefs"
)

const (
	// DefaultTolerance is the half-width of the due window around the
	// configured digest time.
	DefaultTolerance = 5 * time.Minute

	// DefaultMinGap is the minimum spacing between two sends through the
	// same anchor.
	DefaultMinGap = 30 * time.Minute

	// DefaultTimezone is the reference zone all digest times are read in.
	DefaultTimezone = "America/New_York"
)

// Window evaluates digest due-ness in a fixed reference time zone.
type Window struct {
	loc       *time.Location
	tolerance time.Duration
}

// NewWindow builds a Window for the named zone.
func NewWindow(timezone string, tolerance time.Duration) (*Window, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Window{loc: loc, tolerance: tolerance}, nil
}

// MustNewWindow panics on an unknown zone name.
// The zone ships in configuration, so failure belongs at startup.
func MustNewWindow(timezone string, tolerance time.Duration) *Window {
	w, err := NewWindow(timezone, tolerance)
	if err != nil {
		panic(err)
	}
	return w
}

// Due reports whether a digest configured by p is due at now.
// p.Cadence must be a digest cadence; instant cadences are never due.
func (w *Window) Due(p prefs.Preferences, now time.Time) bool {
	if !p.Cadence.IsDigest() {
		return false
	}

	local := now.In(w.loc)
	if p.Cadence == prefs.CadenceWeekly && local.Weekday() != p.DigestWeekday {
		return false
	}

	target := time.Date(local.Year(), local.Month(), local.Day(),
		p.DigestHour, p.DigestMinute, 0, 0, w.loc)

	diff := local.Sub(target)
	if diff < 0 {
		diff = -diff
	}
	return diff <= w.tolerance
}

// GapElapsed reports whether enough time has passed since the anchor's
// last trigger to allow another send. A nil lastTriggeredAt always allows.
func GapElapsed(lastTriggeredAt *time.Time, now time.Time, minGap time.Duration) bool {
	if lastTriggeredAt == nil {
		return true
	}
	return now.Sub(*lastTriggeredAt) >= minGap
}
