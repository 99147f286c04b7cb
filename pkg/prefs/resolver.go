package prefs

// SkipReason explains why a subscriber was not matched.
// These are observability outcomes, not errors.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipUnmappedKind    SkipReason = "unmapped_kind"
	SkipKeyDisabled     SkipReason = "key_disabled"
	SkipChamberFiltered SkipReason = "chamber_filtered"
)

// Decision is the resolver's verdict for one (subscriber, event) pair.
type Decision struct {
	Eligible bool
	Forced   bool // Priority event; delivery mode is instant regardless of cadence
	Key      Key
	Cadence  Cadence
	Skip     SkipReason
}

// Resolver evaluates subscriber preferences against events.
type Resolver struct {
	mapping *KindMap
}

// NewResolver creates a resolver over the given mapping table.
// A nil mapping falls back to the embedded default.
func NewResolver(mapping *KindMap) *Resolver {
	if mapping == nil {
		mapping = MustDefaultKindMap()
	}
	return &Resolver{mapping: mapping}
}

// Resolve decides whether a subscriber wants an event.
//
// Priority events force eligibility and instant delivery, but the
// subscriber's own cadence is still reported in the decision: the anchor
// created for a forced send later aggregates the subscriber's non-forced
// events, so forcing must not corrupt cadence bookkeeping.
//
// The chamber filter applies only to kinds flagged in the mapping table
// and only when the event is not forced; chamber is the event's chamber
// from its context payload, empty when absent.
func (r *Resolver) Resolve(p Preferences, kind Kind, forced bool, chamber string) Decision {
	key, chamberFiltered, ok := r.mapping.Lookup(kind)
	if !ok {
		// The kind itself stands in as the preference key so anchors for
		// forced sends of unmapped kinds still get a stable identity.
		fallback := Key(kind)
		if forced {
			return Decision{Eligible: true, Forced: true, Key: fallback, Cadence: p.Cadence, Skip: SkipUnmappedKind}
		}
		return Decision{Key: fallback, Cadence: p.Cadence, Skip: SkipUnmappedKind}
	}

	if forced {
		return Decision{Eligible: true, Forced: true, Key: key, Cadence: p.Cadence}
	}

	if !p.Keys[key] {
		return Decision{Key: key, Cadence: p.Cadence, Skip: SkipKeyDisabled}
	}

	if chamberFiltered && len(p.Chambers) > 0 && chamber != "" && !p.Chambers[chamber] {
		return Decision{Key: key, Cadence: p.Cadence, Skip: SkipChamberFiltered}
	}

	return Decision{Eligible: true, Key: key, Cadence: p.Cadence}
}
