package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Recorder opens and closes delivery records.
type Recorder struct {
	store DeliveryStore
	clock func() time.Time
}

// NewRecorder creates a recorder over the delivery store.
func NewRecorder(store DeliveryStore, clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{store: store, clock: clock}
}

// Open creates a queued delivery for the (event, anchor) pair.
// Returns ErrDeliveryConflict when one already exists; callers treat
// that as a skip, which is what keeps the at-most-one invariant from
// producing duplicate notifications across retried fan-outs.
func (r *Recorder) Open(ctx context.Context, eventID, anchorID uuid.UUID) (*Delivery, error) {
	d := &Delivery{
		ID:        uuid.New(),
		EventID:   eventID,
		AnchorID:  anchorID,
		Status:    DeliveryQueued,
		CreatedAt: r.clock(),
	}
	if err := r.store.CreateDelivery(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// CloseSent marks one delivery sent at now.
func (r *Recorder) CloseSent(ctx context.Context, id uuid.UUID) error {
	return r.store.CloseDelivery(ctx, id, DeliverySent, r.clock(), "")
}

// CloseFailed marks one delivery failed with the error text.
func (r *Recorder) CloseFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.store.CloseDelivery(ctx, id, DeliveryFailed, r.clock(), errMsg)
}

// CloseBatch transitions many deliveries at once; the digest flush path.
func (r *Recorder) CloseBatch(ctx context.Context, ids []uuid.UUID, status DeliveryStatus, errMsg string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.store.CloseDeliveries(ctx, ids, status, r.clock(), errMsg)
}
