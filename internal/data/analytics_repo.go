package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/popmap/popmap-api/internal/data/pgxutil"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// Advisory lock keys for analytics maintenance. Major key 1002 namespaces
// analytics jobs away from the job reaper (1000) and queue requeue (1001).
const (
	advisoryLockAnalyticsMajor  = 1002
	advisoryLockAnalyticsRollup = 1
	advisoryLockAnalyticsPrune  = 2
)

// AnalyticsRepo provides database operations for raw tracking rows and the
// daily rollup table.
type AnalyticsRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewAnalyticsRepo creates a new AnalyticsRepo with real time provider.
func NewAnalyticsRepo(db *sql.DB) *AnalyticsRepo {
	return &AnalyticsRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewAnalyticsRepoWithTimeProvider creates a new AnalyticsRepo with a custom time provider (useful for tests).
func NewAnalyticsRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *AnalyticsRepo {
	return &AnalyticsRepo{DB: db, timeProvider: tp}
}

// InsertPageView records one tracked page load.
func (r *AnalyticsRepo) InsertPageView(ctx context.Context, pv *model.PageView) error {
	if pv == nil {
		return errors.New("page view is required")
	}
	createdAt := pv.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.timeProvider.Now().UTC()
	}
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO page_views (session_id, path, business_id, event_id,
				referrer, referrer_category, device, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, pv.SessionID, pv.Path, pv.BusinessID, pv.EventID,
			pv.Referrer, string(pv.ReferrerCategory), string(pv.Device), createdAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert page view: %w", err)
	}
	return nil
}

// InsertInteraction records one tracked user action.
func (r *AnalyticsRepo) InsertInteraction(ctx context.Context, in *model.Interaction) error {
	if in == nil {
		return errors.New("interaction is required")
	}
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.timeProvider.Now().UTC()
	}
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO interactions (session_id, kind, business_id, event_id, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, in.SessionID, in.Kind, in.BusinessID, in.EventID, in.Metadata, createdAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

// AggregateDay upserts analytics_daily rows for every business with raw
// traffic on the given UTC day. Re-running for the same day replaces the
// counts, so late rollups stay correct. Returns businesses aggregated.
func (r *AnalyticsRepo) AggregateDay(ctx context.Context, day time.Time) (int, error) {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	var aggregated int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
				advisoryLockAnalyticsMajor, advisoryLockAnalyticsRollup).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				aggregated = 0
				return nil
			}

			res, err := tx.ExecContext(ctx, analyticsAggregateDayQuery,
				dayStart, dayEnd, r.timeProvider.Now().UTC())
			if err != nil {
				return fmt.Errorf("aggregate day: %w", err)
			}
			aggregated, err = res.RowsAffected()
			return err
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate analytics day: %w", err)
	}
	return int(aggregated), nil
}

// DeleteRawBefore removes raw page views and interactions older than cutoff,
// up to batchSize rows per table per call.
func (r *AnalyticsRepo) DeleteRawBefore(
	ctx context.Context,
	cutoff time.Time,
	batchSize int,
) (int64, error) {
	if batchSize <= 0 {
		batchSize = 5000
	}

	var deleted int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
				advisoryLockAnalyticsMajor, advisoryLockAnalyticsPrune).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				deleted = 0
				return nil
			}

			for _, table := range []string{"page_views", "interactions"} {
				res, err := tx.ExecContext(ctx, fmt.Sprintf(`
					DELETE FROM %s
					WHERE id IN (
						SELECT id FROM %s
						WHERE created_at < $1
						ORDER BY created_at
						LIMIT $2
					)
				`, table, table), cutoff.UTC(), batchSize)
				if err != nil {
					return fmt.Errorf("prune %s: %w", table, err)
				}
				ra, err := res.RowsAffected()
				if err != nil {
					return fmt.Errorf("rows affected: %w", err)
				}
				deleted += ra
			}
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete raw analytics rows: %w", err)
	}
	return deleted, nil
}

// Overview aggregates dashboard metrics for a business over a range. It reads
// the raw tables; ranges are expected to sit inside the raw retention window,
// with analytics_daily carrying the long-horizon history.
func (r *AnalyticsRepo) Overview(
	ctx context.Context,
	rng model.AnalyticsRange,
) (*model.BusinessOverview, error) {
	if rng.BusinessID == "" {
		return nil, errors.New("business ID is required")
	}

	out := &model.BusinessOverview{
		BusinessID: rng.BusinessID,
		RangeDays:  int(rng.To.Sub(rng.From).Hours() / 24),
	}
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		if err := conn.QueryRow(ctx, `
			SELECT COUNT(*), COUNT(DISTINCT session_id)
			FROM page_views
			WHERE business_id = $1 AND created_at >= $2 AND created_at < $3
		`, rng.BusinessID, rng.From, rng.To).Scan(&out.Views, &out.Uniques); err != nil {
			return fmt.Errorf("totals: %w", err)
		}
		if err := conn.QueryRow(ctx, `
			SELECT COUNT(*)
			FROM interactions
			WHERE business_id = $1 AND created_at >= $2 AND created_at < $3
		`, rng.BusinessID, rng.From, rng.To).Scan(&out.Interactions); err != nil {
			return fmt.Errorf("interactions: %w", err)
		}

		refRows, err := conn.Query(ctx, `
			SELECT referrer_category AS category, COUNT(*) AS views
			FROM page_views
			WHERE business_id = $1 AND created_at >= $2 AND created_at < $3
			GROUP BY referrer_category
			ORDER BY views DESC
			LIMIT 5
		`, rng.BusinessID, rng.From, rng.To)
		if err != nil {
			return fmt.Errorf("referrers: %w", err)
		}
		out.TopReferrers, err = pgx.CollectRows(refRows, pgx.RowToStructByName[model.ReferrerShare])
		if err != nil {
			return fmt.Errorf("referrers: %w", err)
		}

		devRows, err := conn.Query(ctx, `
			SELECT device, COUNT(*) AS views
			FROM page_views
			WHERE business_id = $1 AND created_at >= $2 AND created_at < $3
			GROUP BY device
			ORDER BY views DESC
		`, rng.BusinessID, rng.From, rng.To)
		if err != nil {
			return fmt.Errorf("devices: %w", err)
		}
		out.Devices, err = pgx.CollectRows(devRows, pgx.RowToStructByName[model.DeviceShare])
		if err != nil {
			return fmt.Errorf("devices: %w", err)
		}

		dayRows, err := conn.Query(ctx, `
			SELECT date_trunc('day', created_at) AS day, COUNT(*) AS views
			FROM page_views
			WHERE business_id = $1 AND created_at >= $2 AND created_at < $3
			GROUP BY 1
			ORDER BY 1
		`, rng.BusinessID, rng.From, rng.To)
		if err != nil {
			return fmt.Errorf("daily series: %w", err)
		}
		out.Daily, err = pgx.CollectRows(dayRows, pgx.RowToStructByName[model.DailyPoint])
		if err != nil {
			return fmt.Errorf("daily series: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build analytics overview: %w", err)
	}
	return out, nil
}

// EventStats returns per-event views and RSVP conversion over a range,
// busiest events first.
func (r *AnalyticsRepo) EventStats(
	ctx context.Context,
	rng model.AnalyticsRange,
) ([]*model.EventStats, error) {
	if rng.BusinessID == "" {
		return nil, errors.New("business ID is required")
	}

	type statsRow struct {
		EventID    string `db:"event_id"`
		Title      string `db:"title"`
		Views      int    `db:"views"`
		Uniques    int    `db:"uniques"`
		Interested int    `db:"interested"`
		Going      int    `db:"going"`
	}

	var rowsOut []statsRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, analyticsEventStatsQuery, rng.BusinessID, rng.From, rng.To)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[statsRow])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query event stats: %w", err)
	}

	stats := make([]*model.EventStats, len(rowsOut))
	for i, row := range rowsOut {
		s := &model.EventStats{
			EventID: row.EventID,
			Title:   row.Title,
			Views:   row.Views,
			Uniques: row.Uniques,
			RSVPCounts: model.RSVPCounts{
				Interested: row.Interested,
				Going:      row.Going,
			},
		}
		if row.Uniques > 0 {
			s.Conversion = float64(row.Interested+row.Going) / float64(row.Uniques)
		}
		stats[i] = s
	}
	return stats, nil
}

// --- helpers ---

const (
	// analyticsAggregateDayQuery folds one UTC day of raw traffic into
	// analytics_daily. The FULL JOIN keeps businesses that only have
	// interactions (or only views) on the day.
	analyticsAggregateDayQuery = `
		WITH pv AS (
			SELECT business_id, COUNT(*) AS views, COUNT(DISTINCT session_id) AS uniques
			FROM page_views
			WHERE business_id IS NOT NULL AND created_at >= $1 AND created_at < $2
			GROUP BY business_id
		), ia AS (
			SELECT business_id, COUNT(*) AS interactions
			FROM interactions
			WHERE business_id IS NOT NULL AND created_at >= $1 AND created_at < $2
			GROUP BY business_id
		)
		INSERT INTO analytics_daily (business_id, day, views, uniques, interactions, created_at)
		SELECT COALESCE(pv.business_id, ia.business_id), $1::date,
			COALESCE(pv.views, 0), COALESCE(pv.uniques, 0), COALESCE(ia.interactions, 0), $3
		FROM pv
		FULL OUTER JOIN ia ON ia.business_id = pv.business_id
		ON CONFLICT (business_id, day)
		DO UPDATE SET views = EXCLUDED.views,
			uniques = EXCLUDED.uniques,
			interactions = EXCLUDED.interactions`

	analyticsEventStatsQuery = `
		SELECT e.id AS event_id, e.title,
			COUNT(pv.id) AS views,
			COUNT(DISTINCT pv.session_id) AS uniques,
			COALESCE(rc.interested, 0) AS interested,
			COALESCE(rc.going, 0) AS going
		FROM events e
		LEFT JOIN page_views pv
			ON pv.event_id = e.id AND pv.created_at >= $2 AND pv.created_at < $3
		LEFT JOIN (
			SELECT event_id,
				COUNT(*) FILTER (WHERE status = 'interested') AS interested,
				COUNT(*) FILTER (WHERE status = 'going') AS going
			FROM rsvps
			GROUP BY event_id
		) rc ON rc.event_id = e.id
		WHERE e.business_id = $1
		GROUP BY e.id, e.title, rc.interested, rc.going
		ORDER BY views DESC, e.id`
)
