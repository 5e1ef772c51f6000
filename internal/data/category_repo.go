package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/popmap/popmap-api/internal/data/pgxutil"
	"github.com/popmap/popmap-api/internal/domain/model"
)

var (
	// ErrCategoryNotFound is returned when a category is not found.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrCategorySlugExists is returned when a category with the same slug already exists.
	ErrCategorySlugExists = errors.New("category with this slug already exists")
)

// CategoryRepo provides database operations for event categories.
type CategoryRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewCategoryRepo creates a new CategoryRepo with real time provider.
func NewCategoryRepo(db *sql.DB) *CategoryRepo {
	return &CategoryRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewCategoryRepoWithTimeProvider creates a new CategoryRepo with a custom time provider (useful for tests).
func NewCategoryRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *CategoryRepo {
	return &CategoryRepo{DB: db, timeProvider: tp}
}

// Create inserts a new category.
func (r *CategoryRepo) Create(ctx context.Context, req *model.CreateCategoryRequest) (*model.Category, error) {
	if req == nil {
		return nil, errors.New("create category request is required")
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	createdAt := r.timeProvider.Now().UTC()
	var out model.Category
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO categories (
				name, slug, icon, sort_order, active, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6
			) RETURNING `+categoryColumns,
			strings.TrimSpace(req.Name),
			req.Slug,
			req.Icon,
			req.SortOrder,
			active,
			createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Category])
		return err
	}); err != nil {
		return nil, r.mapWriteErr(err, false)
	}
	return &out, nil
}

// GetByID retrieves a category by ID.
func (r *CategoryRepo) GetByID(ctx context.Context, id string) (*model.Category, error) {
	return r.getByQuery(ctx, categoryGetByIDQuery, "failed to get category by ID", id)
}

// GetBySlug retrieves a category by its slug.
func (r *CategoryRepo) GetBySlug(ctx context.Context, slug string) (*model.Category, error) {
	return r.getByQuery(ctx, categoryGetBySlugQuery, "failed to get category by slug", slug)
}

// List retrieves categories ordered for display. When activeOnly is set,
// inactive categories are excluded (the public browse surface).
func (r *CategoryRepo) List(ctx context.Context, activeOnly bool) ([]*model.Category, error) {
	query := categoryListQuery
	if activeOnly {
		query = categoryListActiveQuery
	}

	var rowsOut []model.Category
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Category])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	res := make([]*model.Category, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// Update updates fields of a category. The slug is immutable once created
// so stored event links stay stable.
func (r *CategoryRepo) Update(
	ctx context.Context,
	id string,
	req model.UpdateCategoryRequest,
) (*model.Category, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out model.Category
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		setClause, args := r.buildUpdateClause(req)
		if setClause == "" {
			rows, err := conn.Query(ctx, categoryGetByIDQuery, id)
			if err != nil {
				return err
			}
			defer rows.Close()
			var e error
			out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Category])
			return e
		}
		args = append(args, id)
		query := "UPDATE categories SET " + setClause + " WHERE id = $" + strconv.Itoa(
			len(args),
		) + " RETURNING " + categoryColumns
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Category])
		return e
	})
	if err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return &out, nil
}

// buildUpdateClause builds the SQL SET clause and args for updating a category based on the request.
func (r *CategoryRepo) buildUpdateClause(req model.UpdateCategoryRequest) (string, []any) {
	setParts := make([]string, 0, 4)
	args := make([]any, 0, 4)
	nextIdx := func() int { return len(args) + 1 }

	if req.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.Name))
	}
	if req.Icon != nil {
		setParts = append(setParts, fmt.Sprintf("icon = $%d", nextIdx()))
		args = append(args, *req.Icon)
	}
	if req.SortOrder != nil {
		setParts = append(setParts, fmt.Sprintf("sort_order = $%d", nextIdx()))
		args = append(args, *req.SortOrder)
	}
	if req.Active != nil {
		setParts = append(setParts, fmt.Sprintf("active = $%d", nextIdx()))
		args = append(args, *req.Active)
	}

	if len(setParts) == 0 {
		return "", nil
	}
	return strings.Join(setParts, ", "), args
}

// Delete deletes a category by ID. Event links go with it via the join
// table's cascade.
func (r *CategoryRepo) Delete(ctx context.Context, id string) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete category: %w", err)
	}
	return rows > 0, nil
}

// --- helpers ---

const categoryColumns = `id, name, slug, icon, sort_order, active, created_at, updated_at`

// SQL query constants for static queries.
const (
	categoryGetByIDQuery = `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE id = $1`

	categoryGetBySlugQuery = `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE slug = $1`

	categoryListQuery = `
		SELECT ` + categoryColumns + `
		FROM categories
		ORDER BY sort_order ASC, name ASC`

	categoryListActiveQuery = `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE active = TRUE
		ORDER BY sort_order ASC, name ASC`
)

// getByQuery is a helper function to execute a query and return a single category.
func (r *CategoryRepo) getByQuery(
	ctx context.Context,
	q string,
	errMsg string,
	args ...any,
) (*model.Category, error) {
	var category model.Category
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		category, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Category])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return &category, nil
}

func (r *CategoryRepo) mapWriteErr(err error, includeNotFound bool) error {
	if err == nil {
		return nil
	}
	if includeNotFound && errors.Is(err, pgx.ErrNoRows) {
		return ErrCategoryNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrCategorySlugExists
	}
	return err
}
