package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/google/uuid"
)

// pgUniqueViolation is the Postgres error code for unique constraint hits.
const pgUniqueViolation = "23505"

// PGStorage implements Storage on PostgreSQL.
//
// The claim relies on a single conditional UPDATE: the status check and
// the transition to processing happen in one statement, so concurrent
// runs can never both claim one event. Anchor and delivery uniqueness
// lean on the schema's constraints rather than application locks.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage wraps a connection pool. Migrations are applied
// separately at startup.
func NewPGStorage(pool *pgxpool.Pool) (*PGStorage, error) {
	if pool == nil {
		return nil, ErrStorageNil
	}
	return &PGStorage{pool: pool}, nil
}

const eventColumns = `id, kind, priority, context, status, attempts, last_error, next_attempt_at, created_at, updated_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var ev Event
	err := row.Scan(&ev.ID, &ev.Kind, &ev.Priority, &ev.Context, &ev.Status,
		&ev.Attempts, &ev.LastError, &ev.NextAttemptAt, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &ev, nil
}

// DueEvents implements EventStore.
func (s *PGStorage) DueEvents(ctx context.Context, now time.Time, staleAfter time.Duration, limit int) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE (status IN ('pending', 'failed') AND (next_attempt_at IS NULL OR next_attempt_at <= $1))
		   OR (status = 'processing' AND updated_at <= $2)
		ORDER BY CASE status WHEN 'failed' THEN 0 WHEN 'pending' THEN 1 ELSE 2 END,
		         created_at, id
		LIMIT $3`,
		now, now.Add(-staleAfter), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Priority, &ev.Context, &ev.Status,
			&ev.Attempts, &ev.LastError, &ev.NextAttemptAt, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// GetEvent implements EventStore.
func (s *PGStorage) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	return scanEvent(row)
}

// EventsByIDs implements EventStore.
func (s *PGStorage) EventsByIDs(ctx context.Context, ids []uuid.UUID) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Priority, &ev.Context, &ev.Status,
			&ev.Attempts, &ev.LastError, &ev.NextAttemptAt, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ClaimEvent implements EventStore. One statement, one winner.
func (s *PGStorage) ClaimEvent(ctx context.Context, id uuid.UUID, now time.Time, staleAfter time.Duration) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE events
		SET status = 'processing', attempts = attempts + 1, updated_at = $2
		WHERE id = $1
		  AND ((status IN ('pending', 'failed') AND (next_attempt_at IS NULL OR next_attempt_at <= $2))
		    OR (status = 'processing' AND updated_at <= $3))`,
		id, now, now.Add(-staleAfter))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ForceClaimEvent implements EventStore.
func (s *PGStorage) ForceClaimEvent(ctx context.Context, id uuid.UUID, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE events
		SET status = 'processing', attempts = attempts + 1, updated_at = $2
		WHERE id = $1`,
		id, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// MarkEventDone implements EventStore.
func (s *PGStorage) MarkEventDone(ctx context.Context, id uuid.UUID, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE events
		SET status = 'done', last_error = NULL, next_attempt_at = NULL, updated_at = $2
		WHERE id = $1`,
		id, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// MarkEventFailed implements EventStore.
func (s *PGStorage) MarkEventFailed(ctx context.Context, id uuid.UUID, lastError string, nextAttemptAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE events
		SET status = 'failed', last_error = $2, next_attempt_at = $3, updated_at = $3
		WHERE id = $1`,
		id, lastError, nextAttemptAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// ActiveSubscribers implements SubscriberStore.
func (s *PGStorage) ActiveSubscribers(ctx context.Context, limit int) ([]Subscriber, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, email, prefs
		FROM subscribers
		WHERE active
		ORDER BY created_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		var sub Subscriber
		if err := rows.Scan(&sub.ID, &sub.Email, &sub.Prefs); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// GetSubscriber implements SubscriberStore.
func (s *PGStorage) GetSubscriber(ctx context.Context, id uuid.UUID) (*Subscriber, error) {
	var sub Subscriber
	err := s.pool.QueryRow(ctx, `SELECT id, email, prefs FROM subscribers WHERE id = $1`, id).
		Scan(&sub.ID, &sub.Email, &sub.Prefs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriberNotFound
		}
		return nil, err
	}
	return &sub, nil
}

const anchorColumns = `id, subscriber_id, kind_filter, channel, target, send_mode, digest_cadence, last_triggered_at, created_at, updated_at`

func scanAnchor(row pgx.Row) (*Anchor, error) {
	var a Anchor
	err := row.Scan(&a.ID, &a.Key.SubscriberID, &a.Key.KindFilter, &a.Key.Channel,
		&a.Key.Target, &a.Key.SendMode, &a.DigestCadence, &a.LastTriggeredAt,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnchorNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindAnchor implements AnchorStore.
func (s *PGStorage) FindAnchor(ctx context.Context, key AnchorKey) (*Anchor, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+anchorColumns+`
		FROM anchors
		WHERE subscriber_id = $1 AND kind_filter = $2 AND channel = $3 AND target = $4 AND send_mode = $5`,
		key.SubscriberID, key.KindFilter, key.Channel, key.Target, key.SendMode)
	return scanAnchor(row)
}

// GetAnchor implements AnchorStore.
func (s *PGStorage) GetAnchor(ctx context.Context, id uuid.UUID) (*Anchor, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+anchorColumns+` FROM anchors WHERE id = $1`, id)
	return scanAnchor(row)
}

// CreateAnchor implements AnchorStore.
func (s *PGStorage) CreateAnchor(ctx context.Context, a *Anchor) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO anchors (id, subscriber_id, kind_filter, channel, target, send_mode, digest_cadence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Key.SubscriberID, a.Key.KindFilter, a.Key.Channel, a.Key.Target,
		a.Key.SendMode, a.DigestCadence, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrAnchorConflict
		}
		return err
	}
	return nil
}

// UpdateAnchorCadence implements AnchorStore.
func (s *PGStorage) UpdateAnchorCadence(ctx context.Context, id uuid.UUID, cadence *DigestCadence, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE anchors SET digest_cadence = $2, updated_at = $3 WHERE id = $1`,
		id, cadence, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAnchorNotFound
	}
	return nil
}

// MarkAnchorTriggered implements AnchorStore.
func (s *PGStorage) MarkAnchorTriggered(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE anchors SET last_triggered_at = $2, updated_at = $2 WHERE id = $1`,
		id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAnchorNotFound
	}
	return nil
}

// CreateDelivery implements DeliveryStore.
func (s *PGStorage) CreateDelivery(ctx context.Context, d *Delivery) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO deliveries (id, event_id, anchor_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.EventID, d.AnchorID, d.Status, d.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDeliveryConflict
		}
		return err
	}
	return nil
}

// CloseDelivery implements DeliveryStore.
func (s *PGStorage) CloseDelivery(ctx context.Context, id uuid.UUID, status DeliveryStatus, at time.Time, errMsg string) error {
	return s.CloseDeliveries(ctx, []uuid.UUID{id}, status, at, errMsg)
}

// CloseDeliveries implements DeliveryStore.
func (s *PGStorage) CloseDeliveries(ctx context.Context, ids []uuid.UUID, status DeliveryStatus, at time.Time, errMsg string) error {
	var sentAt *time.Time
	if status == DeliverySent {
		sentAt = &at
	}
	var errText *string
	if errMsg != "" {
		errText = &errMsg
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE deliveries SET status = $2, sent_at = $3, error = $4 WHERE id = ANY($1)`,
		ids, status, sentAt, errText)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

// QueuedDeliveries implements DeliveryStore, most recent first.
func (s *PGStorage) QueuedDeliveries(ctx context.Context, anchorID uuid.UUID, limit int) ([]Delivery, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_id, anchor_id, status, sent_at, error, created_at
		FROM deliveries
		WHERE anchor_id = $1 AND status = 'QUEUED'
		ORDER BY created_at DESC, id
		LIMIT $2`, anchorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.EventID, &d.AnchorID, &d.Status, &d.SentAt, &d.Error, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateDeadLetter implements DeadLetterStore.
func (s *PGStorage) CreateDeadLetter(ctx context.Context, dl *DeadLetter) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dead_letters (id, anchor_id, delivery_ids, error, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		dl.ID, dl.AnchorID, dl.DeliveryIDs, dl.Error, dl.CreatedAt)
	return err
}
