// Package prefs answers the only question the dispatcher asks about a
// subscriber: does this subscriber want this event, and at what cadence.
//
// Event kinds do not map one-to-one onto subscriber-facing settings.
// Several hearing kinds share one "hearings" preference, and calendar
// kinds carry an extra chamber restriction. That mapping lives in a single
// versioned lookup table (kinds.yaml, embedded at build time) owned by
// this package; kinds missing from the table resolve to an explicit
// unmapped decision the dispatcher surfaces for observability instead of
// silently dropping.
//
// Preferences are a typed struct validated once at load time, not a
// loose blob re-parsed on every access. The Resolver itself is pure:
// no storage, no clock.
package prefs
