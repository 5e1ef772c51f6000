package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data/pgxutil"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// ErrRSVPNotFound is returned when an RSVP is not found.
var ErrRSVPNotFound = errors.New("rsvp not found")

// RSVPRepo provides database operations for event RSVPs.
type RSVPRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewRSVPRepo creates a new RSVPRepo with real time provider.
func NewRSVPRepo(db *sql.DB) *RSVPRepo {
	return &RSVPRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewRSVPRepoWithTimeProvider creates a new RSVPRepo with a custom time provider (useful for tests).
func NewRSVPRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *RSVPRepo {
	return &RSVPRepo{DB: db, timeProvider: tp}
}

// Upsert creates or updates the RSVP for (event, profile) or (event, guest
// email). Repeat submissions refresh status and guest name rather than
// erroring; the partial unique indexes arbitrate races.
func (r *RSVPRepo) Upsert(ctx context.Context, req *model.UpsertRSVPRequest) (*model.RSVP, error) {
	if req == nil {
		return nil, errors.New("upsert rsvp request is required")
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	query := rsvpUpsertByProfileQuery
	var principal string
	if req.ProfileID != nil && *req.ProfileID != "" {
		principal = *req.ProfileID
	} else {
		query = rsvpUpsertByGuestQuery
		principal = *req.GuestEmail
	}

	createdAt := r.timeProvider.Now().UTC()
	var out model.RSVP
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query,
			req.EventID,
			principal,
			req.GuestName,
			string(req.Status),
			createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.RSVP])
		return err
	}); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to upsert rsvp: %w", err)
	}
	return &out, nil
}

// GetByID retrieves an RSVP by ID.
func (r *RSVPRepo) GetByID(ctx context.Context, id string) (*model.RSVP, error) {
	return r.getByQuery(ctx, rsvpGetByIDQuery, "failed to get rsvp by ID", id)
}

// GetByUnsubscribeToken retrieves an RSVP by its unsubscribe token.
// Tokens arrive from email links, so an unknown token is a routine miss.
func (r *RSVPRepo) GetByUnsubscribeToken(ctx context.Context, token string) (*model.RSVP, error) {
	return r.getByQuery(ctx, rsvpGetByTokenQuery, "failed to get rsvp by unsubscribe token", token)
}

// ListByProfile retrieves all RSVPs for a profile, newest first.
func (r *RSVPRepo) ListByProfile(ctx context.Context, profileID string) ([]*model.RSVP, error) {
	return r.listByQuery(ctx, rsvpListByProfileQuery, "failed to list rsvps by profile", profileID)
}

// ListByEvent retrieves all RSVPs for an event, newest first.
func (r *RSVPRepo) ListByEvent(ctx context.Context, eventID string) ([]*model.RSVP, error) {
	return r.listByQuery(ctx, rsvpListByEventQuery, "failed to list rsvps by event", eventID)
}

// CountsByEvent aggregates RSVP totals for an event in one query.
func (r *RSVPRepo) CountsByEvent(ctx context.Context, eventID string) (*model.RSVPCounts, error) {
	var counts model.RSVPCounts
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT
				COUNT(*) FILTER (WHERE status = 'interested') AS interested,
				COUNT(*) FILTER (WHERE status = 'going') AS going
			FROM rsvps
			WHERE event_id = $1
		`, eventID).Scan(&counts.Interested, &counts.Going)
	}); err != nil {
		return nil, fmt.Errorf("failed to count rsvps by event: %w", err)
	}
	return &counts, nil
}

// Remove deletes the RSVP identified by event and principal.
func (r *RSVPRepo) Remove(ctx context.Context, params core.RemoveRSVPParams) (bool, error) {
	query := `DELETE FROM rsvps WHERE event_id = $1 AND profile_id = $2`
	var principal string
	switch {
	case params.ProfileID != nil && *params.ProfileID != "":
		principal = *params.ProfileID
	case params.GuestEmail != nil && strings.TrimSpace(*params.GuestEmail) != "":
		query = `DELETE FROM rsvps WHERE event_id = $1 AND guest_email = $2`
		principal = strings.ToLower(strings.TrimSpace(*params.GuestEmail))
	default:
		return false, errors.New("a profile or guest email is required to remove an rsvp")
	}

	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, query, params.EventID, principal)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove rsvp: %w", err)
	}
	return rows > 0, nil
}

// SetRemindersEnabled toggles reminder delivery for one RSVP.
func (r *RSVPRepo) SetRemindersEnabled(ctx context.Context, id string, enabled bool) error {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx,
			`UPDATE rsvps SET reminders_enabled = $2 WHERE id = $1`,
			id, enabled,
		)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set rsvp reminders: %w", err)
	}
	if rows == 0 {
		return ErrRSVPNotFound
	}
	return nil
}

// MergeGuestRSVPs attaches guest rows matching email to the profile. Guest
// rows that would collide with an existing profile RSVP for the same event
// are dropped instead, keeping the profile row authoritative.
func (r *RSVPRepo) MergeGuestRSVPs(ctx context.Context, email, profileID string) (int, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(profileID) == "" {
		return 0, errors.New("email and profile ID are required to merge rsvps")
	}

	var merged int
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `
				DELETE FROM rsvps g
				WHERE g.guest_email = $1
				  AND EXISTS (
					SELECT 1 FROM rsvps p
					WHERE p.event_id = g.event_id AND p.profile_id = $2
				  )
			`, email, profileID); err != nil {
				return fmt.Errorf("drop duplicate guest rsvps: %w", err)
			}

			ct, err := tx.Exec(ctx, `
				UPDATE rsvps
				SET profile_id = $2, guest_email = NULL, guest_name = NULL
				WHERE guest_email = $1
			`, email, profileID)
			if err != nil {
				return fmt.Errorf("attach guest rsvps: %w", err)
			}
			merged = int(ct.RowsAffected())
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to merge guest rsvps: %w", err)
	}
	return merged, nil
}

// --- helpers ---

const rsvpColumns = `id, event_id, profile_id, guest_email, guest_name, status,
			unsubscribe_token, reminders_enabled, created_at, updated_at`

// SQL query constants. The upsert pair differs only in the conflict target;
// each matches one of the partial unique indexes on rsvps.
const (
	rsvpUpsertByProfileQuery = `
		INSERT INTO rsvps (event_id, profile_id, guest_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id, profile_id) WHERE profile_id IS NOT NULL
		DO UPDATE SET status = EXCLUDED.status
		RETURNING ` + rsvpColumns

	rsvpUpsertByGuestQuery = `
		INSERT INTO rsvps (event_id, guest_email, guest_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id, guest_email) WHERE guest_email IS NOT NULL
		DO UPDATE SET status = EXCLUDED.status,
			guest_name = COALESCE(EXCLUDED.guest_name, rsvps.guest_name)
		RETURNING ` + rsvpColumns

	rsvpGetByIDQuery = `
		SELECT ` + rsvpColumns + `
		FROM rsvps
		WHERE id = $1`

	rsvpGetByTokenQuery = `
		SELECT ` + rsvpColumns + `
		FROM rsvps
		WHERE unsubscribe_token = $1`

	rsvpListByProfileQuery = `
		SELECT ` + rsvpColumns + `
		FROM rsvps
		WHERE profile_id = $1
		ORDER BY created_at DESC`

	rsvpListByEventQuery = `
		SELECT ` + rsvpColumns + `
		FROM rsvps
		WHERE event_id = $1
		ORDER BY created_at DESC`
)

// getByQuery is a helper function to execute a query and return a single RSVP.
func (r *RSVPRepo) getByQuery(
	ctx context.Context,
	q string,
	errMsg string,
	args ...any,
) (*model.RSVP, error) {
	var rsvp model.RSVP
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rsvp, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.RSVP])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRSVPNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return &rsvp, nil
}

func (r *RSVPRepo) listByQuery(
	ctx context.Context,
	q string,
	errMsg string,
	args ...any,
) ([]*model.RSVP, error) {
	var rowsOut []model.RSVP
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.RSVP])
		return err
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	res := make([]*model.RSVP, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}
