package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data/pgxutil"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// ReminderRepo provides database operations for the reminder scan and its
// send-once ledger.
type ReminderRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewReminderRepo creates a new ReminderRepo with real time provider.
func NewReminderRepo(db *sql.DB) *ReminderRepo {
	return &ReminderRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewReminderRepoWithTimeProvider creates a new ReminderRepo with a custom time provider (useful for tests).
func NewReminderRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ReminderRepo {
	return &ReminderRepo{DB: db, timeProvider: tp}
}

// ListDueCandidates returns reminder-eligible RSVPs for approved events
// starting within [From, To): going status, reminders enabled, recipient not
// opted out, and no reminder logged yet for the (rsvp, event) pair.
func (r *ReminderRepo) ListDueCandidates(
	ctx context.Context,
	params core.ReminderWindowParams,
) ([]*model.ReminderCandidate, error) {
	if !params.To.After(params.From) {
		return nil, errors.New("reminder window end must be after start")
	}
	limit := params.Limit
	if limit <= 0 || limit > 1000 {
		limit = 500
	}

	var rowsOut []model.ReminderCandidate
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, reminderCandidatesQuery,
			params.From.UTC(), params.To.UTC(), limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.ReminderCandidate])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder candidates: %w", err)
	}
	res := make([]*model.ReminderCandidate, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// RecordSent logs a sent reminder. Returns false when a log row already
// exists for the (rsvp, event) pair, making sends idempotent.
func (r *ReminderRepo) RecordSent(ctx context.Context, params core.RecordReminderParams) (bool, error) {
	if params.RSVPID == "" || params.EventID == "" {
		return false, errors.New("rsvp ID and event ID are required")
	}
	sentAt := params.SentAt
	if sentAt.IsZero() {
		sentAt = r.timeProvider.Now()
	}

	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `
			INSERT INTO reminder_log (rsvp_id, event_id, email, sent_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (rsvp_id, event_id) DO NOTHING
		`, params.RSVPID, params.EventID, params.Email, sentAt.UTC())
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to record reminder: %w", err)
	}
	return rows > 0, nil
}

// DeleteOldLogs removes reminder logs older than maxAge, up to batchSize rows.
func (r *ReminderRepo) DeleteOldLogs(
	ctx context.Context,
	maxAge time.Duration,
	batchSize int,
) (int64, error) {
	if batchSize <= 0 {
		batchSize = 5000
	}
	cutoff := r.timeProvider.Now().Add(-maxAge).UTC()

	var deleted int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `
			DELETE FROM reminder_log
			WHERE id IN (
				SELECT id FROM reminder_log
				WHERE sent_at < $1
				ORDER BY sent_at
				LIMIT $2
			)
		`, cutoff, batchSize)
		if err != nil {
			return err
		}
		deleted = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old reminder logs: %w", err)
	}
	return deleted, nil
}

// --- helpers ---

// reminderCandidatesQuery resolves the recipient per row: profile RSVPs use
// the profile's email and notification flags, guest RSVPs use the stored
// guest fields and the opt-out table.
const reminderCandidatesQuery = `
	SELECT r.id AS rsvp_id,
		e.id AS event_id,
		e.title AS event_title,
		e.address AS event_address,
		e.start_time AS event_start,
		b.name AS business_name,
		COALESCE(p.email, r.guest_email) AS email,
		COALESCE(NULLIF(p.first_name, ''), r.guest_name, '') AS name,
		r.profile_id,
		r.unsubscribe_token
	FROM rsvps r
	JOIN events e ON e.id = r.event_id
	JOIN businesses b ON b.id = e.business_id
	LEFT JOIN profiles p ON p.id = r.profile_id
	WHERE e.status = 'approved'
	  AND e.start_time >= $1 AND e.start_time < $2
	  AND r.status = 'going'
	  AND r.reminders_enabled
	  AND (
		(r.profile_id IS NOT NULL AND p.email_notifications AND p.event_reminders)
		OR
		(r.profile_id IS NULL AND NOT EXISTS (
			SELECT 1 FROM guest_email_preferences gp
			WHERE gp.email = r.guest_email AND gp.unsubscribed
		))
	  )
	  AND NOT EXISTS (
		SELECT 1 FROM reminder_log rl
		WHERE rl.rsvp_id = r.id AND rl.event_id = e.id
	  )
	ORDER BY e.start_time, r.id
	LIMIT $3`
