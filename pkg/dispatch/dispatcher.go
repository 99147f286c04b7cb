package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/legiswatch/notify/pkg/backoff"
	"github.com/legiswatch/notify/pkg/digest"
	"github.com/legiswatch/notify/pkg/pacing"
	"github.com/legiswatch/notify/pkg/prefs"
	"github.com/legiswatch/notify/pkg/render"
	"github.com/legiswatch/notify/pkg/sender"
)

// Dispatcher claims due events and fans them out to subscribers.
// Safe to invoke concurrently from several processes: the atomic claim
// in the event store guarantees single-owner processing per event.
type Dispatcher struct {
	storage  Storage
	sender   sender.Sender
	resolver *prefs.Resolver
	renderer *render.Renderer
	pacer    *pacing.Pacer
	policy   backoff.Policy
	registry *Registry
	recorder *Recorder
	flusher  *Flusher
	clock    func() time.Time
	log      *slog.Logger
	cfg      Config
}

// NewDispatcher wires the engine. Storage and sender are required;
// everything else has a production default.
func NewDispatcher(storage Storage, snd sender.Sender, opts ...Option) (*Dispatcher, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	if snd == nil {
		return nil, ErrSenderNil
	}

	o := &options{
		clock:  time.Now,
		logger: slog.Default(),
		policy: backoff.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.cfg = o.cfg.withDefaults()

	if o.resolver == nil {
		o.resolver = prefs.NewResolver(nil)
	}
	if o.renderer == nil {
		r, err := render.NewRenderer(o.cfg.CalendarRowCap)
		if err != nil {
			return nil, err
		}
		o.renderer = r
	}

	window, err := digest.NewWindow(o.cfg.Timezone, o.cfg.DigestTolerance)
	if err != nil {
		return nil, fmt.Errorf("dispatch: load timezone %q: %w", o.cfg.Timezone, err)
	}

	registry := NewRegistry(storage, o.clock)
	recorder := NewRecorder(storage, o.clock)

	d := &Dispatcher{
		storage:  storage,
		sender:   snd,
		resolver: o.resolver,
		renderer: o.renderer,
		pacer:    o.pacer,
		policy:   o.policy,
		registry: registry,
		recorder: recorder,
		clock:    o.clock,
		log:      o.logger,
		cfg:      o.cfg,
	}
	d.flusher = &Flusher{
		storage:  storage,
		sender:   snd,
		recorder: recorder,
		renderer: o.renderer,
		pacer:    o.pacer,
		window:   window,
		clock:    o.clock,
		log:      o.logger,
		cfg:      o.cfg,
	}
	return d, nil
}

// RunDispatch executes one dispatch batch: claim up to limit due events,
// fan each out, then flush digests for every anchor the batch touched.
// A non-positive limit, or one above the configured maximum, falls back
// to the configured batch limit.
//
// override names a single event to reprocess regardless of its status;
// manual debugging only.
func (d *Dispatcher) RunDispatch(ctx context.Context, limit int, override *uuid.UUID) (*BatchResult, error) {
	if limit <= 0 || limit > d.cfg.BatchLimit {
		limit = d.cfg.BatchLimit
	}
	now := d.clock()
	result := &BatchResult{}

	var events []Event
	if override != nil {
		ev, err := d.storage.GetEvent(ctx, *override)
		if err != nil {
			return nil, errors.Join(ErrStoreUnavailable, err)
		}
		events = []Event{*ev}
	} else {
		due, err := d.storage.DueEvents(ctx, now, d.cfg.StaleClaimAfter, limit)
		if err != nil {
			return nil, errors.Join(ErrStoreUnavailable, err)
		}
		events = due
	}
	result.Fetched = len(events)

	subs, err := d.storage.ActiveSubscribers(ctx, d.cfg.MaxSubscribers)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	subs = d.validSubscribers(ctx, subs)

	touched := make(map[uuid.UUID]struct{})
	unmapped := make(map[prefs.Kind]struct{})

	for i := range events {
		ev := events[i]

		if override != nil {
			if err := d.storage.ForceClaimEvent(ctx, ev.ID, d.clock()); err != nil {
				return nil, errors.Join(ErrStoreUnavailable, err)
			}
		} else {
			claimed, err := d.storage.ClaimEvent(ctx, ev.ID, d.clock(), d.cfg.StaleClaimAfter)
			if err != nil {
				if result.Claimed == 0 {
					return nil, errors.Join(ErrStoreUnavailable, err)
				}
				d.log.ErrorContext(ctx, "claim failed mid-batch",
					slog.String("event_id", ev.ID.String()),
					slog.String("error", err.Error()))
				continue
			}
			if !claimed {
				// Another run won the race. Normal, not an error.
				continue
			}
		}
		result.Claimed++
		ev.Attempts++

		outcome := d.processEvent(ctx, &ev, subs, touched, unmapped)
		result.Outcomes = append(result.Outcomes, outcome)
	}

	for kind := range unmapped {
		result.UnmappedKinds = append(result.UnmappedKinds, string(kind))
	}
	sort.Strings(result.UnmappedKinds)

	result.Digest = d.flusher.Run(ctx, touchedIDs(touched))
	return result, nil
}

// RunDigestFlush flushes due digests for the given anchors without
// claiming any events. Exposed for the flush-only trigger path.
func (d *Dispatcher) RunDigestFlush(ctx context.Context, anchorIDs []uuid.UUID) FlushResult {
	return d.flusher.Run(ctx, anchorIDs)
}

// validSubscribers drops subscribers whose preferences fail validation.
// Validation happens once per run, never inside the per-event fan-out.
func (d *Dispatcher) validSubscribers(ctx context.Context, subs []Subscriber) []Subscriber {
	out := subs[:0]
	for _, s := range subs {
		if err := s.Prefs.Validate(); err != nil {
			d.log.WarnContext(ctx, "subscriber has invalid preferences, skipping",
				slog.String("subscriber_id", s.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, s)
	}
	return out
}

// processEvent runs the subscriber fan-out for one claimed event and
// settles the event's terminal status for this attempt.
//
// Delivery is best-effort per subscriber, never all-or-nothing per
// event: a send failure marks that delivery failed and the fan-out
// continues, but the event itself retries on the backoff schedule so the
// failed subscribers get another chance. Deliveries already sent are
// protected from re-sending by the per-(event, anchor) uniqueness.
func (d *Dispatcher) processEvent(ctx context.Context, ev *Event, subs []Subscriber, touched map[uuid.UUID]struct{}, unmapped map[prefs.Kind]struct{}) EventOutcome {
	outcome := EventOutcome{EventID: ev.ID, Kind: ev.Kind}

	var firstSendErr error
	for i := range subs {
		sub := subs[i]

		if sub.Email == "" || !sub.Prefs.HasAnyKey() {
			outcome.Skipped++
			continue
		}

		dec := d.resolver.Resolve(sub.Prefs, ev.Kind, ev.Priority, ev.Chamber())
		if dec.Skip == prefs.SkipUnmappedKind {
			unmapped[ev.Kind] = struct{}{}
		}
		if !dec.Eligible {
			outcome.Skipped++
			continue
		}
		outcome.Attempted++

		mode, cadence := ModeFor(dec)
		anchor, err := d.registry.Resolve(ctx, AnchorKey{
			SubscriberID: sub.ID,
			KindFilter:   dec.Key,
			Channel:      sub.Prefs.Channel,
			Target:       sub.Email,
			SendMode:     mode,
		}, cadence)
		if err != nil {
			return d.failEvent(ctx, ev, outcome, err)
		}

		delivery, err := d.recorder.Open(ctx, ev.ID, anchor.ID)
		if err != nil {
			if errors.Is(err, ErrDeliveryConflict) {
				outcome.Attempted--
				outcome.Skipped++
				continue
			}
			return d.failEvent(ctx, ev, outcome, err)
		}

		if mode == SendModeDigest {
			touched[anchor.ID] = struct{}{}
			outcome.Queued++
			continue
		}

		msg, err := d.renderer.Instant(render.Item{
			Kind:      ev.Kind,
			Context:   ev.Context,
			CreatedAt: ev.CreatedAt,
		}, sub.Email)
		if err != nil {
			return d.failEvent(ctx, ev, outcome, err)
		}
		msg.Priority = ev.Priority

		if sendErr := d.sendPaced(ctx, msg); sendErr != nil {
			outcome.Failed++
			if err := d.recorder.CloseFailed(ctx, delivery.ID, sendErr.Error()); err != nil {
				return d.failEvent(ctx, ev, outcome, err)
			}
			if firstSendErr == nil {
				firstSendErr = sendErr
			}
			if backoff.Classify(sendErr) == backoff.ClassRateLimited && d.pacer != nil {
				if err := d.pacer.Pause(ctx, d.cfg.RateLimitPause); err != nil {
					return d.failEvent(ctx, ev, outcome, err)
				}
			}
			continue
		}

		if err := d.recorder.CloseSent(ctx, delivery.ID); err != nil {
			return d.failEvent(ctx, ev, outcome, err)
		}
		if err := d.storage.MarkAnchorTriggered(ctx, anchor.ID, d.clock()); err != nil {
			return d.failEvent(ctx, ev, outcome, err)
		}
		outcome.Sent++
	}

	if firstSendErr != nil {
		return d.failEvent(ctx, ev, outcome, firstSendErr)
	}

	if err := d.storage.MarkEventDone(ctx, ev.ID, d.clock()); err != nil {
		return d.failEvent(ctx, ev, outcome, err)
	}
	outcome.Status = "done"
	return outcome
}

// failEvent settles the event as failed with a backoff-scheduled retry.
func (d *Dispatcher) failEvent(ctx context.Context, ev *Event, outcome EventOutcome, cause error) EventOutcome {
	now := d.clock()
	class := backoff.Classify(cause)
	next := d.policy.NextAttempt(ev.Attempts, class, now)

	if err := d.storage.MarkEventFailed(ctx, ev.ID, cause.Error(), next); err != nil {
		d.log.ErrorContext(ctx, "failed to mark event failed",
			slog.String("event_id", ev.ID.String()),
			slog.String("error", err.Error()))
	}

	d.log.WarnContext(ctx, "event fan-out failed, scheduled for retry",
		slog.String("event_id", ev.ID.String()),
		slog.String("kind", string(ev.Kind)),
		slog.Int("attempts", ev.Attempts),
		slog.String("class", class.String()),
		slog.Time("next_attempt_at", next),
		slog.String("error", cause.Error()))

	outcome.Status = "failed"
	outcome.Error = cause.Error()
	return outcome
}

// sendPaced waits for a pacing token, then sends.
func (d *Dispatcher) sendPaced(ctx context.Context, msg sender.Message) error {
	if d.pacer != nil {
		if err := d.pacer.Wait(ctx); err != nil {
			return err
		}
	}
	return d.sender.Send(ctx, msg)
}

func touchedIDs(touched map[uuid.UUID]struct{}) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
