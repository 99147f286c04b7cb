package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/legiswatch/notify/pkg/digest"
	"github.com/legiswatch/notify/pkg/pacing"
	"github.com/legiswatch/notify/pkg/render"
	"github.com/legiswatch/notify/pkg/sender"
)

// Flusher walks anchors touched by a dispatch batch and sends due
// digests. Anchors nothing queued against are never examined, so an
// idle system does no digest work at all.
type Flusher struct {
	storage  Storage
	sender   sender.Sender
	recorder *Recorder
	renderer *render.Renderer
	pacer    *pacing.Pacer
	window   *digest.Window
	clock    func() time.Time
	log      *slog.Logger
	cfg      Config
}

// Run evaluates each touched anchor once. Per-anchor problems are
// counted and logged, never propagated: one broken anchor must not stop
// the others from flushing.
func (f *Flusher) Run(ctx context.Context, anchorIDs []uuid.UUID) FlushResult {
	result := FlushResult{Anchors: len(anchorIDs)}

	for _, id := range anchorIDs {
		f.flushAnchor(ctx, id, &result)
	}
	return result
}

func (f *Flusher) flushAnchor(ctx context.Context, anchorID uuid.UUID, result *FlushResult) {
	now := f.clock()

	anchor, err := f.storage.GetAnchor(ctx, anchorID)
	if err != nil {
		result.Skipped++
		f.log.ErrorContext(ctx, "digest flush: anchor fetch failed",
			slog.String("anchor_id", anchorID.String()),
			slog.String("error", err.Error()))
		return
	}

	// Preferences may have changed since the deliveries were queued;
	// mode and channel are re-validated at flush time, not trusted from
	// queue time.
	if anchor.Key.SendMode != SendModeDigest {
		result.Skipped++
		return
	}

	sub, err := f.storage.GetSubscriber(ctx, anchor.Key.SubscriberID)
	if err != nil {
		result.Skipped++
		f.log.ErrorContext(ctx, "digest flush: subscriber fetch failed",
			slog.String("anchor_id", anchorID.String()),
			slog.String("error", err.Error()))
		return
	}
	if sub.Email == "" || sub.Prefs.Channel != anchor.Key.Channel || !sub.Prefs.Cadence.IsDigest() {
		result.Skipped++
		return
	}

	if !f.window.Due(sub.Prefs, now) {
		result.Skipped++
		return
	}
	if !digest.GapElapsed(anchor.LastTriggeredAt, now, f.cfg.DigestMinGap) {
		// Dispatch runs more often than the due window is wide; the gap
		// keeps one window from firing twice.
		result.Skipped++
		return
	}

	deliveries, err := f.storage.QueuedDeliveries(ctx, anchor.ID, f.cfg.DigestItemCap)
	if err != nil {
		result.Skipped++
		f.log.ErrorContext(ctx, "digest flush: queued deliveries fetch failed",
			slog.String("anchor_id", anchorID.String()),
			slog.String("error", err.Error()))
		return
	}

	if len(deliveries) == 0 {
		// Stamp anyway so an empty window is not re-evaluated every run.
		if err := f.storage.MarkAnchorTriggered(ctx, anchor.ID, now); err != nil {
			f.log.ErrorContext(ctx, "digest flush: trigger stamp failed",
				slog.String("anchor_id", anchorID.String()),
				slog.String("error", err.Error()))
		}
		result.Skipped++
		return
	}

	eventIDs := make([]uuid.UUID, 0, len(deliveries))
	deliveryIDs := make([]uuid.UUID, 0, len(deliveries))
	for _, dl := range deliveries {
		eventIDs = append(eventIDs, dl.EventID)
		deliveryIDs = append(deliveryIDs, dl.ID)
	}

	events, err := f.storage.EventsByIDs(ctx, eventIDs)
	if err != nil {
		result.Skipped++
		f.log.ErrorContext(ctx, "digest flush: events fetch failed",
			slog.String("anchor_id", anchorID.String()),
			slog.String("error", err.Error()))
		return
	}

	items := make([]render.Item, 0, len(events))
	for _, ev := range events {
		items = append(items, render.Item{
			Kind:      ev.Kind,
			Context:   ev.Context,
			CreatedAt: ev.CreatedAt,
		})
	}

	msg, err := f.renderer.Digest(items, sub.Email, sub.Prefs.Cadence)
	if err != nil {
		result.Skipped++
		f.log.ErrorContext(ctx, "digest flush: render failed",
			slog.String("anchor_id", anchorID.String()),
			slog.String("error", err.Error()))
		return
	}

	if f.pacer != nil {
		if err := f.pacer.Wait(ctx); err != nil {
			result.Skipped++
			return
		}
	}

	result.Attempted++
	sendErr := f.sender.Send(ctx, msg)
	if sendErr != nil {
		result.Failed++
		if err := f.recorder.CloseBatch(ctx, deliveryIDs, DeliveryFailed, sendErr.Error()); err != nil {
			f.log.ErrorContext(ctx, "digest flush: bulk close failed",
				slog.String("anchor_id", anchorID.String()),
				slog.String("error", err.Error()))
		}
		// Failed digest deliveries do not re-queue; the dead letter keeps
		// them visible to operators instead.
		dl := &DeadLetter{
			ID:          uuid.New(),
			AnchorID:    anchor.ID,
			DeliveryIDs: deliveryIDs,
			Error:       sendErr.Error(),
			CreatedAt:   f.clock(),
		}
		if err := f.storage.CreateDeadLetter(ctx, dl); err != nil {
			f.log.ErrorContext(ctx, "digest flush: dead letter write failed",
				slog.String("anchor_id", anchorID.String()),
				slog.String("error", err.Error()))
		} else {
			result.DeadLettered++
		}
		f.log.WarnContext(ctx, "digest send failed",
			slog.String("anchor_id", anchorID.String()),
			slog.Int("deliveries", len(deliveryIDs)),
			slog.String("error", sendErr.Error()))
		return
	}

	if err := f.recorder.CloseBatch(ctx, deliveryIDs, DeliverySent, ""); err != nil {
		f.log.ErrorContext(ctx, "digest flush: bulk close failed",
			slog.String("anchor_id", anchorID.String()),
			slog.String("error", err.Error()))
	}
	if err := f.storage.MarkAnchorTriggered(ctx, anchor.ID, f.clock()); err != nil {
		f.log.ErrorContext(ctx, "digest flush: trigger stamp failed",
			slog.String("anchor_id", anchorID.String()),
			slog.String("error", err.Error()))
	}
	result.Sent++

	f.log.InfoContext(ctx, "digest sent",
		slog.String("anchor_id", anchor.ID.String()),
		slog.String("to", sub.Email),
		slog.Int("deliveries", len(deliveryIDs)))
}
