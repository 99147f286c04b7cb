// Package digest holds the pure scheduling math behind digest flushes.
//
// A daily digest is due when the current local time-of-day, evaluated in
// one fixed reference time zone, falls within a small tolerance window of
// the subscriber's configured digest time. A weekly digest additionally
// requires the local weekday to match. An anti-spam gap on the anchor's
// last trigger prevents double-firing when dispatch runs more often than
// the tolerance window is wide.
//
// Nothing here reads a clock or touches storage; the caller passes now.
package digest
