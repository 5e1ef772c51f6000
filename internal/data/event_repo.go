// Package data provides database access layer and repository implementations for the popmap API.
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data/pgxutil"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// ErrEventNotFound is returned when an event is not found.
var ErrEventNotFound = errors.New("event not found")

// EventRepo provides database operations for popup events.
type EventRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewEventRepo creates a new EventRepo with real time provider.
func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewEventRepoWithTimeProvider creates a new EventRepo with a custom time provider (useful for tests).
func NewEventRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *EventRepo {
	return &EventRepo{DB: db, timeProvider: tp}
}

// Create inserts a new event and its category links in one transaction.
// Events enter moderation as pending regardless of who submits them.
func (r *EventRepo) Create(ctx context.Context, req *model.CreateEventRequest) (*model.Event, error) {
	if req == nil {
		return nil, errors.New("create event request is required")
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	createdAt := r.timeProvider.Now().UTC()
	var out model.Event
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx, `
				INSERT INTO events (
					business_id, creator_id, title, description, address,
					latitude, longitude, start_time, end_time, image_url, created_at
				) VALUES (
					$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
				) RETURNING `+eventColumns,
				req.BusinessID,
				req.CreatorID,
				strings.TrimSpace(req.Title),
				strings.TrimSpace(req.Description),
				strings.TrimSpace(req.Address),
				req.Latitude,
				req.Longitude,
				req.StartTime.UTC(),
				req.EndTime.UTC(),
				req.ImageURL,
				createdAt,
			)
			if err != nil {
				return err
			}
			out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Event])
			if err != nil {
				return err
			}

			kept, err := replaceEventCategoriesTx(ctx, tx, out.ID, req.CategoryIDs)
			if err != nil {
				return err
			}
			out.CategoryIDs = kept
			return nil
		},
	})
	if err != nil {
		return nil, r.mapWriteErr(err, false)
	}
	return &out, nil
}

// GetByID retrieves an event by ID, including its category links.
func (r *EventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var out model.Event
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, eventGetByIDQuery, id)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Event])
		if err != nil {
			return err
		}

		byEvent, err := loadEventCategoryIDs(ctx, conn, []string{out.ID})
		if err != nil {
			return err
		}
		out.CategoryIDs = byEvent[out.ID]
		if out.CategoryIDs == nil {
			out.CategoryIDs = []string{}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event by ID: %w", err)
	}
	return &out, nil
}

// List returns one page of events in (start_time, id) keyset order.
// Without an explicit Status or IncludeAll, only approved events that have
// not ended are returned; that is the public listing contract.
func (r *EventRepo) List(ctx context.Context, opts model.EventListOptions) (*model.EventListPage, error) {
	limit := clampLimit(opts.Limit)

	whereClause, args, argIndex, err := buildEventFilters(opts, r.timeProvider.Now().UTC())
	if err != nil {
		return nil, err
	}

	if opts.After != nil {
		if opts.After.ID == "" || opts.After.StartTime.IsZero() {
			return nil, errors.New("invalid cursor payload")
		}
		cursorCond := fmt.Sprintf("(start_time, id) > (%s)", placeholderList(argIndex, 2))
		if whereClause == "" {
			whereClause = " WHERE " + cursorCond
		} else {
			whereClause += " AND " + cursorCond
		}
		args = append(args, opts.After.StartTime.UTC(), opts.After.ID)
		argIndex += 2
	}

	query := `SELECT ` + eventColumns + ` FROM events` + whereClause +
		` ORDER BY start_time ASC, id ASC` +
		fmt.Sprintf(` LIMIT $%d`, argIndex)
	args = append(args, limit+1) // fetch one extra to know if another page exists

	var collected []model.Event
	var hasMore bool
	err = pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qErr := conn.Query(ctx, query, args...)
		if qErr != nil {
			return fmt.Errorf("query events: %w", qErr)
		}
		defer rows.Close()

		var collectErr error
		collected, collectErr = pgx.CollectRows(rows, pgx.RowToStructByName[model.Event])
		if collectErr != nil {
			return fmt.Errorf("collect events: %w", collectErr)
		}

		hasMore = len(collected) > limit
		if hasMore {
			collected = collected[:limit]
		}

		eventIDs := make([]string, len(collected))
		for i := range collected {
			eventIDs[i] = collected[i].ID
		}
		byEvent, catErr := loadEventCategoryIDs(ctx, conn, eventIDs)
		if catErr != nil {
			return catErr
		}
		for i := range collected {
			ids := byEvent[collected[i].ID]
			if ids == nil {
				ids = []string{}
			}
			collected[i].CategoryIDs = ids
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	events := make([]*model.Event, len(collected))
	for i := range collected {
		events[i] = &collected[i]
	}

	page := &model.EventListPage{Events: events}
	if hasMore && len(events) > 0 {
		last := events[len(events)-1]
		page.NextCursor = &model.EventCursor{StartTime: last.StartTime, ID: last.ID}
	}
	return page, nil
}

// ListMarkers returns the lean projection served to map clients. Each marker
// carries at most one category name, the first by display order.
func (r *EventRepo) ListMarkers(ctx context.Context, opts model.EventListOptions) ([]*model.MapMarker, error) {
	limit := clampLimit(opts.Limit)

	whereClause, args, argIndex, err := buildEventFilters(opts, r.timeProvider.Now().UTC())
	if err != nil {
		return nil, err
	}

	query := `
		SELECT events.id, events.title, events.latitude, events.longitude,
		       events.start_time, events.end_time, first_category.name AS category
		FROM events
		LEFT JOIN LATERAL (
			SELECT cat.name
			FROM event_categories ec
			JOIN categories cat ON cat.id = ec.category_id
			WHERE ec.event_id = events.id
			ORDER BY cat.sort_order ASC, cat.name ASC
			LIMIT 1
		) first_category ON TRUE` + whereClause +
		` ORDER BY start_time ASC, id ASC` +
		fmt.Sprintf(` LIMIT $%d`, argIndex)
	args = append(args, limit)

	var markers []*model.MapMarker
	err = pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qErr := conn.Query(ctx, query, args...)
		if qErr != nil {
			return fmt.Errorf("query map markers: %w", qErr)
		}
		defer rows.Close()

		for rows.Next() {
			var m model.MapMarker
			if scanErr := rows.Scan(
				&m.ID, &m.Title, &m.Latitude, &m.Longitude,
				&m.StartTime, &m.EndTime, &m.Category,
			); scanErr != nil {
				return fmt.Errorf("scan map marker: %w", scanErr)
			}
			markers = append(markers, &m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if markers == nil {
		markers = []*model.MapMarker{}
	}
	return markers, nil
}

// Update updates fields of an event, replacing category links in the same
// transaction when the request carries a category set.
func (r *EventRepo) Update(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out model.Event
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			setClause, args := r.buildUpdateClause(req)

			var rows pgx.Rows
			var err error
			if setClause == "" {
				rows, err = tx.Query(ctx, eventGetByIDQuery, id)
			} else {
				args = append(args, id)
				query := "UPDATE events SET " + setClause + " WHERE id = $" + strconv.Itoa(
					len(args),
				) + " RETURNING " + eventColumns
				rows, err = tx.Query(ctx, query, args...)
			}
			if err != nil {
				return err
			}
			out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Event])
			if err != nil {
				return err
			}

			if req.CategoryIDs != nil {
				kept, catErr := replaceEventCategoriesTx(ctx, tx, out.ID, *req.CategoryIDs)
				if catErr != nil {
					return catErr
				}
				out.CategoryIDs = kept
				return nil
			}

			byEvent, catErr := loadEventCategoryIDs(ctx, tx, []string{out.ID})
			if catErr != nil {
				return catErr
			}
			out.CategoryIDs = byEvent[out.ID]
			if out.CategoryIDs == nil {
				out.CategoryIDs = []string{}
			}
			return nil
		},
	})
	if err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return &out, nil
}

// buildUpdateClause builds the SQL SET clause and args for updating an event based on the request.
func (r *EventRepo) buildUpdateClause(req model.UpdateEventRequest) (string, []any) {
	setParts := make([]string, 0, 8)
	args := make([]any, 0, 8)
	nextIdx := func() int { return len(args) + 1 }

	if req.Title != nil {
		setParts = append(setParts, fmt.Sprintf("title = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.Title))
	}
	if req.Description != nil {
		setParts = append(setParts, fmt.Sprintf("description = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.Description))
	}
	if req.Address != nil {
		setParts = append(setParts, fmt.Sprintf("address = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.Address))
	}
	if req.Latitude != nil {
		setParts = append(setParts, fmt.Sprintf("latitude = $%d", nextIdx()))
		args = append(args, *req.Latitude)
	}
	if req.Longitude != nil {
		setParts = append(setParts, fmt.Sprintf("longitude = $%d", nextIdx()))
		args = append(args, *req.Longitude)
	}
	if req.StartTime != nil {
		setParts = append(setParts, fmt.Sprintf("start_time = $%d", nextIdx()))
		args = append(args, req.StartTime.UTC())
	}
	if req.EndTime != nil {
		setParts = append(setParts, fmt.Sprintf("end_time = $%d", nextIdx()))
		args = append(args, req.EndTime.UTC())
	}
	if req.ImageURL != nil {
		if strings.TrimSpace(*req.ImageURL) == "" {
			setParts = append(setParts, "image_url = NULL")
		} else {
			setParts = append(setParts, fmt.Sprintf("image_url = $%d", nextIdx()))
			args = append(args, *req.ImageURL)
		}
	}

	if len(setParts) == 0 {
		return "", nil
	}
	return strings.Join(setParts, ", "), args
}

// UpdateStatus applies a moderation or cancellation transition. A nil note
// clears any previous moderation note.
func (r *EventRepo) UpdateStatus(ctx context.Context, params core.UpdateEventStatusParams) (*model.Event, error) {
	if !params.Status.Valid() {
		return nil, fmt.Errorf("unsupported event status %q", params.Status)
	}

	var out model.Event
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE events
			SET status = $2, moderation_note = $3
			WHERE id = $1
			RETURNING `+eventColumns,
			params.ID, string(params.Status), params.Note,
		)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Event])
		if err != nil {
			return err
		}

		byEvent, err := loadEventCategoryIDs(ctx, conn, []string{out.ID})
		if err != nil {
			return err
		}
		out.CategoryIDs = byEvent[out.ID]
		if out.CategoryIDs == nil {
			out.CategoryIDs = []string{}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to update event status: %w", err)
	}
	return &out, nil
}

// ReplaceCategories replaces the event's category set.
func (r *EventRepo) ReplaceCategories(ctx context.Context, id string, categoryIDs []string) error {
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			_, err := replaceEventCategoriesTx(ctx, tx, id, categoryIDs)
			return err
		},
	})
	if err != nil {
		return r.mapWriteErr(err, false)
	}
	return nil
}

// CountByBusinessInMonth counts events a business submitted in the calendar
// month containing at. Plan quotas are enforced against this count.
func (r *EventRepo) CountByBusinessInMonth(ctx context.Context, businessID string, at time.Time) (int, error) {
	var count int
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT COUNT(*)
			FROM events
			WHERE business_id = $1
			  AND created_at >= date_trunc('month', $2::timestamptz)
			  AND created_at < date_trunc('month', $2::timestamptz) + INTERVAL '1 month'
		`, businessID, at.UTC()).Scan(&count)
	}); err != nil {
		return 0, fmt.Errorf("count events by business in month: %w", err)
	}
	return count, nil
}

// Delete deletes an event by ID. RSVPs and category links cascade.
func (r *EventRepo) Delete(ctx context.Context, id string) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete event: %w", err)
	}
	return rows > 0, nil
}

// --- helpers ---

const eventColumns = `id, business_id, creator_id, title, description, address,
			latitude, longitude, start_time, end_time, image_url, status,
			moderation_note, created_at, updated_at`

const eventGetByIDQuery = `
		SELECT ` + eventColumns + `
		FROM events
		WHERE id = $1`

// pgxQuerier is satisfied by both *pgx.Conn and pgx.Tx so category loading
// can run inside or outside a transaction.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// buildEventFilters constructs the WHERE clause and args for event listing.
func buildEventFilters(opts model.EventListOptions, now time.Time) (string, []any, int, error) {
	clauses := make([]string, 0, 8)
	args := make([]any, 0, 8)
	nextIdx := func() int { return len(args) + 1 }

	switch {
	case opts.Status != nil:
		if !opts.Status.Valid() {
			return "", nil, 0, fmt.Errorf("unsupported event status %q", *opts.Status)
		}
		clauses = append(clauses, fmt.Sprintf("status = $%d", nextIdx()))
		args = append(args, string(*opts.Status))
	case !opts.IncludeAll:
		// Public listings only surface approved events that have not ended.
		clauses = append(clauses, "status = 'approved'")
		clauses = append(clauses, fmt.Sprintf("end_time >= $%d", nextIdx()))
		args = append(args, now)
	}

	if opts.BusinessID != nil && *opts.BusinessID != "" {
		clauses = append(clauses, fmt.Sprintf("business_id = $%d", nextIdx()))
		args = append(args, *opts.BusinessID)
	}
	if opts.CreatorID != nil && *opts.CreatorID != "" {
		clauses = append(clauses, fmt.Sprintf("creator_id = $%d", nextIdx()))
		args = append(args, *opts.CreatorID)
	}
	if opts.CategoryID != nil && *opts.CategoryID != "" {
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM event_categories ec WHERE ec.event_id = events.id AND ec.category_id = $%d)",
			nextIdx(),
		))
		args = append(args, *opts.CategoryID)
	}
	if opts.Bounds != nil {
		if !opts.Bounds.Valid() {
			return "", nil, 0, errors.New("bounding box is invalid")
		}
		clauses = append(clauses, fmt.Sprintf("latitude BETWEEN $%d AND $%d", nextIdx(), nextIdx()+1))
		args = append(args, opts.Bounds.MinLat, opts.Bounds.MaxLat)
		clauses = append(clauses, fmt.Sprintf("longitude BETWEEN $%d AND $%d", nextIdx(), nextIdx()+1))
		args = append(args, opts.Bounds.MinLng, opts.Bounds.MaxLng)
	}
	if opts.StartAfter != nil {
		clauses = append(clauses, fmt.Sprintf("start_time >= $%d", nextIdx()))
		args = append(args, opts.StartAfter.UTC())
	}
	if opts.StartUntil != nil {
		clauses = append(clauses, fmt.Sprintf("start_time <= $%d", nextIdx()))
		args = append(args, opts.StartUntil.UTC())
	}
	if opts.Q != nil && strings.TrimSpace(*opts.Q) != "" {
		clauses = append(clauses, fmt.Sprintf("title ILIKE $%d", nextIdx()))
		args = append(args, "%"+strings.TrimSpace(*opts.Q)+"%")
	}

	if len(clauses) == 0 {
		return "", args, 1, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, len(args) + 1, nil
}

// loadEventCategoryIDs fetches category links for the given events in one query.
func loadEventCategoryIDs(ctx context.Context, q pgxQuerier, eventIDs []string) (map[string][]string, error) {
	if len(eventIDs) == 0 {
		return map[string][]string{}, nil
	}

	// Convert to []uuid.UUID for stricter binding and early validation.
	uids := make([]uuid.UUID, 0, len(eventIDs))
	for _, s := range eventIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid in eventIDs: %w", err)
		}
		uids = append(uids, id)
	}

	rows, err := q.Query(ctx, `
		SELECT event_id, category_id
		FROM event_categories
		WHERE event_id = ANY($1)
		ORDER BY event_id, category_id
	`, uids)
	if err != nil {
		return nil, fmt.Errorf("query event categories: %w", err)
	}
	defer rows.Close()

	byEvent := make(map[string][]string, len(eventIDs))
	for rows.Next() {
		var eventID, categoryID string
		if err := rows.Scan(&eventID, &categoryID); err != nil {
			return nil, fmt.Errorf("scan event category: %w", err)
		}
		byEvent[eventID] = append(byEvent[eventID], categoryID)
	}
	return byEvent, rows.Err()
}

// replaceEventCategoriesTx rewrites the event's category links inside tx,
// dropping blank and duplicate IDs, and returns the kept set.
func replaceEventCategoriesTx(ctx context.Context, tx pgx.Tx, eventID string, categoryIDs []string) ([]string, error) {
	if _, err := tx.Exec(ctx, `DELETE FROM event_categories WHERE event_id = $1`, eventID); err != nil {
		return nil, fmt.Errorf("clear event categories: %w", err)
	}

	kept := make([]string, 0, len(categoryIDs))
	seen := make(map[string]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		kept = append(kept, id)
	}
	if len(kept) == 0 {
		return kept, nil
	}

	batch := &pgx.Batch{}
	for _, categoryID := range kept {
		batch.Queue(`
			INSERT INTO event_categories (event_id, category_id)
			VALUES ($1, $2)
		`, eventID, categoryID)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range kept {
		if _, err := br.Exec(); err != nil {
			return nil, fmt.Errorf("failed to link category %d: %w", i, err)
		}
	}
	if cerr := br.Close(); cerr != nil {
		return nil, fmt.Errorf("batch close: %w", cerr)
	}
	return kept, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

func placeholderList(start, count int) string {
	placeholders := make([]string, count)
	for i := range count {
		placeholders[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(placeholders, ", ")
}

func (r *EventRepo) mapWriteErr(err error, includeNotFound bool) error {
	if err == nil {
		return nil
	}
	if includeNotFound && errors.Is(err, pgx.ErrNoRows) {
		return ErrEventNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		// Foreign key tells us which referenced row is missing.
		switch {
		case strings.Contains(pgErr.ConstraintName, "category"):
			return ErrCategoryNotFound
		case strings.Contains(pgErr.ConstraintName, "business"):
			return ErrBusinessNotFound
		case strings.Contains(pgErr.ConstraintName, "creator"):
			return ErrProfileNotFound
		case strings.Contains(pgErr.ConstraintName, "event"):
			return ErrEventNotFound
		}
	}
	return err
}
