package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legiswatch/notify/pkg/dispatch"
	"github.com/legiswatch/notify/pkg/prefs"
	"github.com/legiswatch/notify/pkg/sender"
)

// fakeSender records messages and fails on demand.
type fakeSender struct {
	mu       sync.Mutex
	sent     []sender.Message
	failWith error
	failN    int // Fail this many sends, then succeed; 0 with failWith set fails all
	failed   int
}

func (f *fakeSender) Send(ctx context.Context, msg sender.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil && (f.failN == 0 || f.failed < f.failN) {
		f.failed++
		return f.failWith
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) messages() []sender.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sender.Message, len(f.sent))
	copy(out, f.sent)
	return out
}

var fixedNow = time.Date(2025, time.June, 4, 12, 0, 0, 0, time.UTC)

func newTestDispatcher(t *testing.T, store dispatch.Storage, snd sender.Sender, now time.Time) *dispatch.Dispatcher {
	t.Helper()
	d, err := dispatch.NewDispatcher(store, snd,
		dispatch.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	return d
}

func instantSubscriber(email string) dispatch.Subscriber {
	return dispatch.Subscriber{
		ID:    uuid.New(),
		Email: email,
		Prefs: prefs.Preferences{
			Channel: prefs.ChannelEmail,
			Cadence: prefs.CadenceInstant,
			Keys:    map[prefs.Key]bool{prefs.KeyBills: true, prefs.KeyVotes: true},
		},
	}
}

func pendingEvent(kind prefs.Kind, createdAt time.Time) dispatch.Event {
	return dispatch.Event{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    dispatch.EventStatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		Context:   map[string]any{"bill_id": "HB-1042"},
	}
}

func TestNewDispatcherRequiresStorageAndSender(t *testing.T) {
	t.Parallel()

	_, err := dispatch.NewDispatcher(nil, &fakeSender{})
	require.ErrorIs(t, err, dispatch.ErrStorageNil)

	_, err = dispatch.NewDispatcher(dispatch.NewMemoryStorage(), nil)
	require.ErrorIs(t, err, dispatch.ErrSenderNil)
}

func TestRunDispatchInstantDelivery(t *testing.T) {
	t.Parallel()

	store := dispatch.NewMemoryStorage()
	snd := &fakeSender{}

	sub := instantSubscriber("sub@example.com")
	store.AddSubscriber(sub)

	// A second subscriber with the key disabled must be skipped.
	off := instantSubscriber("off@example.com")
	off.Prefs.Keys = map[prefs.Key]bool{prefs.KeyBills: false, prefs.KeyVotes: true}
	store.AddSubscriber(off)

	ev := pendingEvent(prefs.KindBillIntroduced, fixedNow.Add(-time.Minute))
	store.AddEvent(ev)

	d := newTestDispatcher(t, store, snd, fixedNow)
	result, err := d.RunDispatch(context.Background(), 0, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 1, result.Claimed)
	require.Len(t, result.Outcomes, 1)
	outcome := result.Outcomes[0]
	assert.Equal(t, "done", outcome.Status)
	assert.Equal(t, 1, outcome.Attempted)
	assert.Equal(t, 1, outcome.Sent)
	assert.Equal(t, 1, outcome.Skipped)
	assert.Zero(t, outcome.Failed)

	msgs := snd.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "sub@example.com", msgs[0].To)
	assert.Equal(t, "Bill HB-1042 was introduced", msgs[0].Subject)

	stored, err := store.GetEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, dispatch.EventStatusDone, stored.Status)
	assert.Equal(t, 1, stored.Attempts)

	deliveries := store.DeliveriesFor(ev.ID)
	require.Len(t, deliveries, 1)
	assert.Equal(t, dispatch.DeliverySent, deliveries[0].Status)
	assert.Equal(t, 1, store.AnchorCount())
}

func TestRunDispatchNoDuplicateDeliveryOnReprocess(t *testing.T) {
	t.Parallel()

	store := dispatch.NewMemoryStorage()
	snd := &fakeSender{}
	store.AddSubscriber(instantSubscriber("sub@example.com"))

	ev := pendingEvent(prefs.KindBillIntroduced, fixedNow.Add(-time.Minute))
	store.AddEvent(ev)

	d := newTestDispatcher(t, store, snd, fixedNow)
	ctx := context.Background()

	_, err := d.RunDispatch(ctx, 0, nil)
	require.NoError(t, err)

	// Force the same event through again; the existing delivery blocks a
	// second send.
	result, err := d.RunDispatch(ctx, 0, &ev.ID)
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, "done", result.Outcomes[0].Status)
	assert.Zero(t, result.Outcomes[0].Sent)
	assert.Equal(t, 1, result.Outcomes[0].Skipped)

	assert.Len(t, snd.messages(), 1)
	assert.Len(t, store.DeliveriesFor(ev.ID), 1)
}

func TestRunDispatchRateLimitedFailure(t *testing.T) {
	t.Parallel()

	store := dispatch.NewMemoryStorage()
	snd := &fakeSender{failWith: fmt.Errorf("send: %w", sender.ErrRateLimited)}
	store.AddSubscriber(instantSubscriber("sub@example.com"))

	ev := pendingEvent(prefs.KindBillIntroduced, fixedNow.Add(-time.Minute))
	store.AddEvent(ev)

	d := newTestDispatcher(t, store, snd, fixedNow)
	result, err := d.RunDispatch(context.Background(), 0, nil)
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 1)
	outcome := result.Outcomes[0]
	assert.Equal(t, "failed", outcome.Status)
	assert.Equal(t, 1, outcome.Failed)
	assert.NotEmpty(t, outcome.Error)

	stored, err := store.GetEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, dispatch.EventStatusFailed, stored.Status)
	require.NotNil(t, stored.NextAttemptAt)
	assert.Equal(t, fixedNow.Add(15*time.Minute), *stored.NextAttemptAt)

	deliveries := store.DeliveriesFor(ev.ID)
	require.Len(t, deliveries, 1)
	assert.Equal(t, dispatch.DeliveryFailed, deliveries[0].Status)
}

func TestRunDispatchGenericFailureBacksOff(t *testing.T) {
	t.Parallel()

	store := dispatch.NewMemoryStorage()
	snd := &fakeSender{failWith: errors.New("connection reset")}
	store.AddSubscriber(instantSubscriber("sub@example.com"))

	ev := pendingEvent(prefs.KindBillIntroduced, fixedNow.Add(-time.Minute))
	store.AddEvent(ev)

	d := newTestDispatcher(t, store, snd, fixedNow)
	_, err := d.RunDispatch(context.Background(), 0, nil)
	require.NoError(t, err)

	stored, err := store.GetEvent(context.Background(), ev.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.NextAttemptAt)
	// First attempt lands on the first schedule entry.
	assert.Equal(t, fixedNow.Add(2*time.Minute), *stored.NextAttemptAt)
	require.NotNil(t, stored.LastError)
	assert.Contains(t, *stored.LastError, "connection reset")
}

func TestRunDispatchFailureDoesNotAbortFanOut(t *testing.T) {
	t.Parallel()

	store := dispatch.NewMemoryStorage()
	// First send fails, the rest succeed.
	snd := &fakeSender{failWith: errors.New("connection reset"), failN: 1}

	store.AddSubscriber(instantSubscriber("first@example.com"))
	store.AddSubscriber(instantSubscriber("second@example.com"))
	store.AddSubscriber(instantSubscriber("third@example.com"))

	ev := pendingEvent(prefs.KindBillIntroduced, fixedNow.Add(-time.Minute))
	store.AddEvent(ev)

	d := newTestDispatcher(t, store, snd, fixedNow)
	result, err := d.RunDispatch(context.Background(), 0, nil)
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 1)
	outcome := result.Outcomes[0]
	// The failure is remembered but the other two subscribers still get
	// their notifications.
	assert.Equal(t, "failed", outcome.Status)
	assert.Equal(t, 2, outcome.Sent)
	assert.Equal(t, 1, outcome.Failed)
	assert.Len(t, snd.messages(), 2)

	// On retry, the two sent deliveries block re-sends; only the failed
	// subscriber would be attempted again.
	deliveries := store.DeliveriesFor(ev.ID)
	assert.Len(t, deliveries, 3)
}

func TestRunDispatchBatchOrderFailedBeforePending(t *testing.T) {
	t.Parallel()

	store := dispatch.NewMemoryStorage()
	snd := &fakeSender{}
	store.AddSubscriber(instantSubscriber("sub@example.com"))

	older := pendingEvent(prefs.KindBillIntroduced, fixedNow.Add(-2*time.Hour))
	retry := pendingEvent(prefs.KindVoteRecorded, fixedNow.Add(-time.Hour))
	retry.Status = dispatch.EventStatusFailed
	store.AddEvent(older)
	store.AddEvent(retry)

	d := newTestDispatcher(t, store, snd, fixedNow)
	result, err := d.RunDispatch(context.Background(), 0, nil)
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 2)
	// The failed event retries before the older pending one.
	assert.Equal(t, retry.ID, result.Outcomes[0].EventID)
	assert.Equal(t, older.ID, result.Outcomes[1].EventID)
}

func TestRunDispatchSkipsFutureRetry(t *testing.T) {
	t.Parallel()

	store := dispatch.NewMemoryStorage()
	snd := &fakeSender{}
	store.AddSubscriber(instantSubscriber("sub@example.com"))

	ev := pendingEvent(prefs.KindBillIntroduced, fixedNow.Add(-time.Hour))
	ev.Status = dispatch.EventStatusFailed
	next := fixedNow.Add(10 * time.Minute)
	ev.NextAttemptAt = &next
	store.AddEvent(ev)

	d := newTestDispatcher(t, store, snd, fixedNow)
	result, err := d.RunDispatch(context.Background(), 0, nil)
	require.NoError(t, err)

	assert.Zero(t, result.Fetched)
	assert.Empty(t, snd.messages())
}

func TestRunDispatchReclaimsStaleProcessing(t *testing.T) {
	t.Parallel()

	store := dispatch.NewMemoryStorage()
	snd := &fakeSender{}
	store.AddSubscriber(instantSubscriber("sub@example.com"))

	// A run died holding this event 45 minutes ago.
	ev := pendingEvent(prefs.KindBillIntroduced, fixedNow.Add(-2*time.Hour))
	ev.Status = dispatch.EventStatusProcessing
	ev.Attempts = 1
	ev.UpdatedAt = fixedNow.Add(-45 * time.Minute)
	store.AddEvent(ev)

	// A fresh claim must stay untouchable.
	fresh := pendingEvent(prefs.KindVoteRecorded, fixedNow.Add(-time.Hour))
	fresh.Status = dispatch.EventStatusProcessing
	fresh.UpdatedAt = fixedNow.Add(-time.Minute)
	store.AddEvent(fresh)

	d := newTestDispatcher(t, store, snd, fixedNow)
	result, err := d.RunDispatch(context.Background(), 0, nil)
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, ev.ID, result.Outcomes[0].EventID)
	assert.Equal(t, "done", result.Outcomes[0].Status)
}

func TestRunDispatchUnmappedKindSurfaces(t *testing.T) {
	t.Parallel()

	store := dispatch.NewMemoryStorage()
	snd := &fakeSender{}
	store.AddSubscriber(instantSubscriber("sub@example.com"))

	ev := pendingEvent(prefs.Kind("executive_order_signed"), fixedNow.Add(-time.Minute))
	store.AddEvent(ev)

	d := newTestDispatcher(t, store, snd, fixedNow)
	result, err := d.RunDispatch(context.Background(), 0, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"executive_order_signed"}, result.UnmappedKinds)
	require.Len(t, result.Outcomes, 1)
	// Nobody is subscribed to an unknown kind, but the event completes.
	assert.Equal(t, "done", result.Outcomes[0].Status)
	assert.Empty(t, snd.messages())
}

func TestRunDispatchForcedPriorityOverridesCadence(t *testing.T) {
	t.Parallel()

	store := dispatch.NewMemoryStorage()
	snd := &fakeSender{}

	sub := dispatch.Subscriber{
		ID:    uuid.New(),
		Email: "weekly@example.com",
		Prefs: prefs.Preferences{
			Channel:       prefs.ChannelEmail,
			Cadence:       prefs.CadenceWeekly,
			DigestHour:    6,
			DigestWeekday: time.Monday,
			Keys:          map[prefs.Key]bool{prefs.KeyBills: true},
		},
	}
	store.AddSubscriber(sub)

	ev := pendingEvent(prefs.KindBillIntroduced, fixedNow.Add(-time.Minute))
	ev.Priority = true
	store.AddEvent(ev)

	d := newTestDispatcher(t, store, snd, fixedNow)
	result, err := d.RunDispatch(context.Background(), 0, nil)
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, 1, result.Outcomes[0].Sent)
	assert.Zero(t, result.Outcomes[0].Queued)

	msgs := snd.messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Priority)

	// The forced send runs through an instant anchor that still records
	// the subscriber's weekly cadence.
	anchor, err := store.FindAnchor(context.Background(), dispatch.AnchorKey{
		SubscriberID: sub.ID,
		KindFilter:   prefs.KeyBills,
		Channel:      prefs.ChannelEmail,
		Target:       sub.Email,
		SendMode:     dispatch.SendModeInstant,
	})
	require.NoError(t, err)
	require.NotNil(t, anchor.DigestCadence)
	assert.Equal(t, dispatch.DigestWeekly, *anchor.DigestCadence)
}

func TestRunDispatchOverrideUnknownEvent(t *testing.T) {
	t.Parallel()

	store := dispatch.NewMemoryStorage()
	d := newTestDispatcher(t, store, &fakeSender{}, fixedNow)

	missing := uuid.New()
	_, err := d.RunDispatch(context.Background(), 0, &missing)
	require.ErrorIs(t, err, dispatch.ErrEventNotFound)
}

func TestRunDispatchLimitClamp(t *testing.T) {
	t.Parallel()

	store := dispatch.NewMemoryStorage()
	snd := &fakeSender{}
	store.AddSubscriber(instantSubscriber("sub@example.com"))

	for i := 0; i < 5; i++ {
		store.AddEvent(pendingEvent(prefs.KindBillIntroduced, fixedNow.Add(-time.Duration(i+1)*time.Minute)))
	}

	d := newTestDispatcher(t, store, snd, fixedNow)
	result, err := d.RunDispatch(context.Background(), 2, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 2, result.Claimed)
}
