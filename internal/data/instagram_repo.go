package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/popmap/popmap-api/internal/data/pgxutil"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// ErrInstagramPostAlreadyImported is returned when a post was already logged
// for the business.
var ErrInstagramPostAlreadyImported = errors.New("instagram post already imported")

// InstagramPostLogRepo provides database operations for the import ledger.
type InstagramPostLogRepo struct {
	DB *sql.DB
}

// NewInstagramPostLogRepo creates a new InstagramPostLogRepo.
func NewInstagramPostLogRepo(db *sql.DB) *InstagramPostLogRepo {
	return &InstagramPostLogRepo{DB: db}
}

const instagramPostLogColumns = `id, business_id, instagram_post_id, event_id,
			original_permalink, original_caption, imported_at`

// Create records an imported post. The unique (business, post) index is the
// dedup arbiter for concurrent imports.
func (r *InstagramPostLogRepo) Create(
	ctx context.Context,
	log *model.InstagramPostLog,
) (*model.InstagramPostLog, error) {
	if log == nil {
		return nil, errors.New("instagram post log is required")
	}
	if log.BusinessID == "" || log.InstagramPostID == "" {
		return nil, errors.New("business_id and instagram_post_id are required")
	}

	var out model.InstagramPostLog
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO instagram_post_logs (
				business_id, instagram_post_id, event_id, original_permalink, original_caption
			) VALUES (
				$1, $2, $3, $4, $5
			) RETURNING `+instagramPostLogColumns,
			log.BusinessID,
			log.InstagramPostID,
			log.EventID,
			log.OriginalPermalink,
			log.OriginalCaption,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.InstagramPostLog])
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrInstagramPostAlreadyImported
		}
		return nil, fmt.Errorf("failed to create instagram post log: %w", err)
	}
	return &out, nil
}

// ListPostIDs returns every Instagram post ID already logged for the business.
func (r *InstagramPostLogRepo) ListPostIDs(ctx context.Context, businessID string) ([]string, error) {
	var ids []string
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT instagram_post_id
			FROM instagram_post_logs
			WHERE business_id = $1`,
			businessID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		ids, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list imported post ids: %w", err)
	}
	return ids, nil
}

// ListByBusiness returns recent import history, newest first, with the linked
// event's title resolved for display.
func (r *InstagramPostLogRepo) ListByBusiness(
	ctx context.Context,
	businessID string,
	limit int,
) ([]*model.InstagramImportLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	var rowsOut []model.InstagramImportLogEntry
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT l.id, l.business_id, l.instagram_post_id, l.event_id,
				l.original_permalink, l.original_caption, l.imported_at,
				e.title AS event_title
			FROM instagram_post_logs l
			LEFT JOIN events e ON e.id = l.event_id
			WHERE l.business_id = $1
			ORDER BY l.imported_at DESC
			LIMIT $2`,
			businessID, limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.InstagramImportLogEntry])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list instagram import history: %w", err)
	}

	res := make([]*model.InstagramImportLogEntry, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}
