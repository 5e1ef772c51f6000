package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/popmap/popmap-api/internal/data/pgxutil"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// GuestPreferenceRepo provides database operations for guest email opt-outs.
type GuestPreferenceRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewGuestPreferenceRepo creates a new GuestPreferenceRepo with real time provider.
func NewGuestPreferenceRepo(db *sql.DB) *GuestPreferenceRepo {
	return &GuestPreferenceRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewGuestPreferenceRepoWithTimeProvider creates a new GuestPreferenceRepo with a custom time provider (useful for tests).
func NewGuestPreferenceRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *GuestPreferenceRepo {
	return &GuestPreferenceRepo{DB: db, timeProvider: tp}
}

// Unsubscribe upserts the opt-out row for a normalized email. Re-running for
// an already opted-out address is a no-op that returns the existing row.
func (r *GuestPreferenceRepo) Unsubscribe(
	ctx context.Context,
	email string,
) (*model.GuestEmailPreference, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, errors.New("email is required")
	}

	now := r.timeProvider.Now().UTC()
	var out model.GuestEmailPreference
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO guest_email_preferences (email, unsubscribed, created_at, updated_at)
			VALUES ($1, TRUE, $2, $2)
			ON CONFLICT (email)
			DO UPDATE SET unsubscribed = TRUE, updated_at = EXCLUDED.updated_at
			RETURNING id, email, unsubscribed, created_at, updated_at
		`, email, now)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.GuestEmailPreference])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unsubscribe guest email: %w", err)
	}
	return &out, nil
}

// IsUnsubscribed reports whether a normalized email has opted out.
func (r *GuestPreferenceRepo) IsUnsubscribed(ctx context.Context, email string) (bool, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return false, nil
	}

	var unsubscribed bool
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT unsubscribed FROM guest_email_preferences WHERE email = $1
		`, email).Scan(&unsubscribed)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check guest email preference: %w", err)
	}
	return unsubscribed, nil
}
