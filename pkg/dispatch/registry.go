package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Registry resolves subscription anchors idempotently.
//
// Get-or-create is find-then-create; that is safe here because the store
// enforces a uniqueness constraint on the natural key and the create path
// tolerates ErrAnchorConflict by re-reading. Two concurrent calls with
// the same key always converge on one anchor id.
type Registry struct {
	store AnchorStore
	clock func() time.Time
}

// NewRegistry creates a registry over the anchor store.
func NewRegistry(store AnchorStore, clock func() time.Time) *Registry {
	if clock == nil {
		clock = time.Now
	}
	return &Registry{store: store, clock: clock}
}

// Resolve returns the anchor for key, creating it on first use.
//
// An existing anchor is returned with its digest cadence refreshed when
// the subscriber's preferences changed since it was created; refreshing
// is an explicit update, never a side effect of the read itself.
func (r *Registry) Resolve(ctx context.Context, key AnchorKey, cadence *DigestCadence) (*Anchor, error) {
	now := r.clock()

	a, err := r.store.FindAnchor(ctx, key)
	switch {
	case err == nil:
		if !cadenceEqual(a.DigestCadence, cadence) {
			if err := r.store.UpdateAnchorCadence(ctx, a.ID, cadence, now); err != nil {
				return nil, err
			}
			a.DigestCadence = cadence
			a.UpdatedAt = now
		}
		return a, nil
	case errors.Is(err, ErrAnchorNotFound):
		// Fall through to create.
	default:
		return nil, err
	}

	a = &Anchor{
		ID:            uuid.New(),
		Key:           key,
		DigestCadence: cadence,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = r.store.CreateAnchor(ctx, a)
	if err == nil {
		return a, nil
	}
	if errors.Is(err, ErrAnchorConflict) {
		// A concurrent run created it between our find and create.
		return r.store.FindAnchor(ctx, key)
	}
	return nil, err
}

func cadenceEqual(a, b *DigestCadence) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
