package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements Storage in process, for tests and local
// development. All operations take one mutex, which makes the claim a
// true compare-and-set just like the SQL implementation.
type MemoryStorage struct {
	mu          sync.Mutex
	events      map[uuid.UUID]*Event
	subscribers map[uuid.UUID]*Subscriber
	subOrder    []uuid.UUID
	anchors     map[uuid.UUID]*Anchor
	anchorByKey map[AnchorKey]uuid.UUID
	deliveries  map[uuid.UUID]*Delivery
	deadLetters []*DeadLetter
}

// NewMemoryStorage creates empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		events:      make(map[uuid.UUID]*Event),
		subscribers: make(map[uuid.UUID]*Subscriber),
		anchors:     make(map[uuid.UUID]*Anchor),
		anchorByKey: make(map[AnchorKey]uuid.UUID),
		deliveries:  make(map[uuid.UUID]*Delivery),
	}
}

// AddEvent seeds an event. Stands in for the external ingestion pipeline.
func (ms *MemoryStorage) AddEvent(ev Event) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	cp := ev
	ms.events[ev.ID] = &cp
}

// AddSubscriber seeds a subscriber.
func (ms *MemoryStorage) AddSubscriber(s Subscriber) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	cp := s
	ms.subscribers[s.ID] = &cp
	ms.subOrder = append(ms.subOrder, s.ID)
}

func statusRank(s EventStatus) int {
	// Failed sorts before pending so older failures retry first.
	switch s {
	case EventStatusFailed:
		return 0
	case EventStatusPending:
		return 1
	default:
		return 2
	}
}

func (ms *MemoryStorage) claimable(ev *Event, now time.Time, staleAfter time.Duration) bool {
	switch ev.Status {
	case EventStatusPending, EventStatusFailed:
		return ev.NextAttemptAt == nil || !ev.NextAttemptAt.After(now)
	case EventStatusProcessing:
		// A run killed mid-batch must not orphan its events.
		return now.Sub(ev.UpdatedAt) >= staleAfter
	default:
		return false
	}
}

// DueEvents implements EventStore.
func (ms *MemoryStorage) DueEvents(ctx context.Context, now time.Time, staleAfter time.Duration, limit int) ([]Event, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var due []Event
	for _, ev := range ms.events {
		if ms.claimable(ev, now, staleAfter) {
			due = append(due, *ev)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		ri, rj := statusRank(due[i].Status), statusRank(due[j].Status)
		if ri != rj {
			return ri < rj
		}
		if !due[i].CreatedAt.Equal(due[j].CreatedAt) {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		return due[i].ID.String() < due[j].ID.String()
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// GetEvent implements EventStore.
func (ms *MemoryStorage) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ev, ok := ms.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *ev
	return &cp, nil
}

// EventsByIDs implements EventStore.
func (ms *MemoryStorage) EventsByIDs(ctx context.Context, ids []uuid.UUID) ([]Event, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make([]Event, 0, len(ids))
	for _, id := range ids {
		if ev, ok := ms.events[id]; ok {
			out = append(out, *ev)
		}
	}
	return out, nil
}

// ClaimEvent implements EventStore. The check and the transition happen
// under one lock, so exactly one concurrent caller wins.
func (ms *MemoryStorage) ClaimEvent(ctx context.Context, id uuid.UUID, now time.Time, staleAfter time.Duration) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ev, ok := ms.events[id]
	if !ok {
		return false, ErrEventNotFound
	}
	if !ms.claimable(ev, now, staleAfter) {
		return false, nil
	}
	ev.Status = EventStatusProcessing
	ev.Attempts++
	ev.UpdatedAt = now
	return true, nil
}

// ForceClaimEvent implements EventStore.
func (ms *MemoryStorage) ForceClaimEvent(ctx context.Context, id uuid.UUID, now time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ev, ok := ms.events[id]
	if !ok {
		return ErrEventNotFound
	}
	ev.Status = EventStatusProcessing
	ev.Attempts++
	ev.UpdatedAt = now
	return nil
}

// MarkEventDone implements EventStore.
func (ms *MemoryStorage) MarkEventDone(ctx context.Context, id uuid.UUID, now time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ev, ok := ms.events[id]
	if !ok {
		return ErrEventNotFound
	}
	ev.Status = EventStatusDone
	ev.LastError = nil
	ev.NextAttemptAt = nil
	ev.UpdatedAt = now
	return nil
}

// MarkEventFailed implements EventStore.
func (ms *MemoryStorage) MarkEventFailed(ctx context.Context, id uuid.UUID, lastError string, nextAttemptAt time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ev, ok := ms.events[id]
	if !ok {
		return ErrEventNotFound
	}
	ev.Status = EventStatusFailed
	ev.LastError = &lastError
	ev.NextAttemptAt = &nextAttemptAt
	ev.UpdatedAt = nextAttemptAt
	return nil
}

// ActiveSubscribers implements SubscriberStore, in insertion order.
func (ms *MemoryStorage) ActiveSubscribers(ctx context.Context, limit int) ([]Subscriber, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make([]Subscriber, 0, len(ms.subOrder))
	for _, id := range ms.subOrder {
		if s, ok := ms.subscribers[id]; ok {
			out = append(out, *s)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// GetSubscriber implements SubscriberStore.
func (ms *MemoryStorage) GetSubscriber(ctx context.Context, id uuid.UUID) (*Subscriber, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	s, ok := ms.subscribers[id]
	if !ok {
		return nil, ErrSubscriberNotFound
	}
	cp := *s
	return &cp, nil
}

// FindAnchor implements AnchorStore.
func (ms *MemoryStorage) FindAnchor(ctx context.Context, key AnchorKey) (*Anchor, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.findAnchorLocked(key)
}

func (ms *MemoryStorage) findAnchorLocked(key AnchorKey) (*Anchor, error) {
	id, ok := ms.anchorByKey[key]
	if !ok {
		return nil, ErrAnchorNotFound
	}
	cp := *ms.anchors[id]
	return &cp, nil
}

// GetAnchor implements AnchorStore.
func (ms *MemoryStorage) GetAnchor(ctx context.Context, id uuid.UUID) (*Anchor, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	a, ok := ms.anchors[id]
	if !ok {
		return nil, ErrAnchorNotFound
	}
	cp := *a
	return &cp, nil
}

// CreateAnchor implements AnchorStore; the natural key is unique.
func (ms *MemoryStorage) CreateAnchor(ctx context.Context, a *Anchor) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.anchorByKey[a.Key]; exists {
		return ErrAnchorConflict
	}
	cp := *a
	ms.anchors[a.ID] = &cp
	ms.anchorByKey[a.Key] = a.ID
	return nil
}

// UpdateAnchorCadence implements AnchorStore.
func (ms *MemoryStorage) UpdateAnchorCadence(ctx context.Context, id uuid.UUID, cadence *DigestCadence, now time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	a, ok := ms.anchors[id]
	if !ok {
		return ErrAnchorNotFound
	}
	a.DigestCadence = cadence
	a.UpdatedAt = now
	return nil
}

// MarkAnchorTriggered implements AnchorStore.
func (ms *MemoryStorage) MarkAnchorTriggered(ctx context.Context, id uuid.UUID, at time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	a, ok := ms.anchors[id]
	if !ok {
		return ErrAnchorNotFound
	}
	t := at
	a.LastTriggeredAt = &t
	a.UpdatedAt = at
	return nil
}

// CreateDelivery implements DeliveryStore; (event, anchor) is unique.
func (ms *MemoryStorage) CreateDelivery(ctx context.Context, d *Delivery) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, existing := range ms.deliveries {
		if existing.EventID == d.EventID && existing.AnchorID == d.AnchorID {
			return ErrDeliveryConflict
		}
	}
	cp := *d
	ms.deliveries[d.ID] = &cp
	return nil
}

// CloseDelivery implements DeliveryStore.
func (ms *MemoryStorage) CloseDelivery(ctx context.Context, id uuid.UUID, status DeliveryStatus, at time.Time, errMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.closeDeliveryLocked(id, status, at, errMsg)
}

func (ms *MemoryStorage) closeDeliveryLocked(id uuid.UUID, status DeliveryStatus, at time.Time, errMsg string) error {
	d, ok := ms.deliveries[id]
	if !ok {
		return ErrDeliveryNotFound
	}
	d.Status = status
	if status == DeliverySent {
		t := at
		d.SentAt = &t
	}
	if errMsg != "" {
		d.Error = &errMsg
	}
	return nil
}

// CloseDeliveries implements DeliveryStore.
func (ms *MemoryStorage) CloseDeliveries(ctx context.Context, ids []uuid.UUID, status DeliveryStatus, at time.Time, errMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, id := range ids {
		if err := ms.closeDeliveryLocked(id, status, at, errMsg); err != nil {
			return err
		}
	}
	return nil
}

// QueuedDeliveries implements DeliveryStore, most recent first.
func (ms *MemoryStorage) QueuedDeliveries(ctx context.Context, anchorID uuid.UUID, limit int) ([]Delivery, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var out []Delivery
	for _, d := range ms.deliveries {
		if d.AnchorID == anchorID && d.Status == DeliveryQueued {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateDeadLetter implements DeadLetterStore.
func (ms *MemoryStorage) CreateDeadLetter(ctx context.Context, dl *DeadLetter) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cp := *dl
	ms.deadLetters = append(ms.deadLetters, &cp)
	return nil
}

// Test inspection helpers.

// DeliveriesFor returns copies of all deliveries for an event.
func (ms *MemoryStorage) DeliveriesFor(eventID uuid.UUID) []Delivery {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var out []Delivery
	for _, d := range ms.deliveries {
		if d.EventID == eventID {
			out = append(out, *d)
		}
	}
	return out
}

// AnchorCount returns the number of stored anchors.
func (ms *MemoryStorage) AnchorCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.anchors)
}

// DeadLetters returns copies of all dead letter records.
func (ms *MemoryStorage) DeadLetters() []DeadLetter {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make([]DeadLetter, 0, len(ms.deadLetters))
	for _, dl := range ms.deadLetters {
		out = append(out, *dl)
	}
	return out
}
