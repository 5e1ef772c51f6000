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
	"github.com/popmap/popmap-api/internal/data/database"
	"github.com/popmap/popmap-api/internal/data/pgxutil"
	"github.com/popmap/popmap-api/internal/domain/model"
)

const (
	// sortDirAsc and sortDirDesc are the sort directions accepted by
	// database.WithOrderBy.
	sortDirAsc  = "asc"
	sortDirDesc = "desc"
)

var (
	// ErrBusinessNotFound is returned when a business is not found.
	ErrBusinessNotFound = errors.New("business not found")
	// ErrSubdomainTaken is returned when the requested subdomain is already claimed.
	ErrSubdomainTaken = errors.New("subdomain is already taken")
)

// BusinessRepo provides database operations for businesses.
type BusinessRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewBusinessRepo creates a new BusinessRepo with real time provider.
func NewBusinessRepo(db *sql.DB) *BusinessRepo {
	return &BusinessRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewBusinessRepoWithTimeProvider creates a new BusinessRepo with a custom time provider (useful for tests).
func NewBusinessRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *BusinessRepo {
	return &BusinessRepo{DB: db, timeProvider: tp}
}

// Create inserts a new business owned by the requesting profile.
func (r *BusinessRepo) Create(ctx context.Context, req *model.CreateBusinessRequest) (*model.Business, error) {
	if req == nil {
		return nil, errors.New("create business request is required")
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	createdAt := r.timeProvider.Now().UTC()
	var out model.Business
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO businesses (
				owner_id, name, description, contact_email, phone, website, logo_url,
				instagram_handle, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9
			) RETURNING `+businessColumns,
			req.OwnerID,
			strings.TrimSpace(req.Name),
			strings.TrimSpace(req.Description),
			strings.ToLower(strings.TrimSpace(req.ContactEmail)),
			req.Phone,
			req.Website,
			req.LogoURL,
			req.InstagramHandle,
			createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Business])
		return err
	}); err != nil {
		return nil, r.mapWriteErr(err, false)
	}
	return &out, nil
}

// GetByID retrieves a business by ID.
func (r *BusinessRepo) GetByID(ctx context.Context, id string) (*model.Business, error) {
	return r.getByQuery(ctx, businessGetByIDQuery, "failed to get business by ID", id)
}

// GetBySubdomain retrieves a business by its claimed subdomain.
func (r *BusinessRepo) GetBySubdomain(ctx context.Context, subdomain string) (*model.Business, error) {
	normalized := model.NormalizeSubdomain(subdomain)
	return r.getByQuery(ctx, businessGetBySubdomainQuery, "failed to get business by subdomain", normalized)
}

// ListByOwner retrieves all businesses owned by the given profile.
func (r *BusinessRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Business, error) {
	var rowsOut []model.Business
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, businessListByOwnerQuery, ownerID)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Business])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list businesses by owner: %w", err)
	}

	res := make([]*model.Business, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// List retrieves businesses with optional filters and sorting.
func (r *BusinessRepo) List(ctx context.Context, opts model.BusinessListOptions) ([]*model.Business, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := max(opts.Offset, 0)

	queryOpts := r.buildBusinessQueryOptions(opts, limit, offset)
	query, args := database.BuildListQuery(queryOpts)

	var rowsOut []model.Business
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Business])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}
	res := make([]*model.Business, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// Update updates fields of a business.
func (r *BusinessRepo) Update(
	ctx context.Context,
	id string,
	req model.UpdateBusinessRequest,
) (*model.Business, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out model.Business
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		setClause, args := r.buildUpdateClause(req)
		if setClause == "" {
			rows, err := conn.Query(ctx, businessGetByIDQuery, id)
			if err != nil {
				return err
			}
			defer rows.Close()
			var e error
			out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Business])
			return e
		}
		args = append(args, id)
		query := "UPDATE businesses SET " + setClause + " WHERE id = $" + strconv.Itoa(
			len(args),
		) + " RETURNING " + businessColumns
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Business])
		return e
	})
	if err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return &out, nil
}

// buildUpdateClause builds the SQL SET clause and args for updating a business based on the request.
func (r *BusinessRepo) buildUpdateClause(req model.UpdateBusinessRequest) (string, []any) {
	setParts := make([]string, 0, 6)
	args := make([]any, 0, 6)
	nextIdx := func() int { return len(args) + 1 }

	if req.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.Name))
	}
	if req.Description != nil {
		setParts = append(setParts, fmt.Sprintf("description = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.Description))
	}
	if req.ContactEmail != nil {
		setParts = append(setParts, fmt.Sprintf("contact_email = $%d", nextIdx()))
		args = append(args, strings.ToLower(strings.TrimSpace(*req.ContactEmail)))
	}
	if req.Phone != nil {
		if strings.TrimSpace(*req.Phone) == "" {
			setParts = append(setParts, "phone = NULL")
		} else {
			setParts = append(setParts, fmt.Sprintf("phone = $%d", nextIdx()))
			args = append(args, *req.Phone)
		}
	}
	if req.Website != nil {
		if strings.TrimSpace(*req.Website) == "" {
			setParts = append(setParts, "website = NULL")
		} else {
			setParts = append(setParts, fmt.Sprintf("website = $%d", nextIdx()))
			args = append(args, *req.Website)
		}
	}
	if req.LogoURL != nil {
		if strings.TrimSpace(*req.LogoURL) == "" {
			setParts = append(setParts, "logo_url = NULL")
		} else {
			setParts = append(setParts, fmt.Sprintf("logo_url = $%d", nextIdx()))
			args = append(args, *req.LogoURL)
		}
	}
	if req.InstagramHandle != nil {
		if strings.TrimSpace(*req.InstagramHandle) == "" {
			setParts = append(setParts, "instagram_handle = NULL")
		} else {
			setParts = append(setParts, fmt.Sprintf("instagram_handle = $%d", nextIdx()))
			args = append(args, *req.InstagramHandle)
		}
	}

	if len(setParts) == 0 {
		return "", nil
	}
	return strings.Join(setParts, ", "), args
}

// SetSubdomain claims or clears the business subdomain; nil clears.
// The database's unique index is the arbiter for races between claimants.
func (r *BusinessRepo) SetSubdomain(ctx context.Context, id string, subdomain *string) (*model.Business, error) {
	var value any
	if subdomain != nil {
		normalized := model.NormalizeSubdomain(*subdomain)
		if err := model.ValidateSubdomain(normalized); err != nil {
			return nil, err
		}
		value = normalized
	}

	var out model.Business
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`UPDATE businesses SET subdomain = $2 WHERE id = $1 RETURNING `+businessColumns,
			id, value,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Business])
		return e
	})
	if err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return &out, nil
}

// SetVerified marks a business as verified or unverified (admin operation).
func (r *BusinessRepo) SetVerified(ctx context.Context, id string, verified bool) (*model.Business, error) {
	var out model.Business
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`UPDATE businesses SET verified = $2 WHERE id = $1 RETURNING `+businessColumns,
			id, verified,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Business])
		return e
	})
	if err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return &out, nil
}

// Delete deletes a business by ID.
func (r *BusinessRepo) Delete(ctx context.Context, id string) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM businesses WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete business: %w", err)
	}
	return rows > 0, nil
}

// --- helpers ---

const businessColumns = `id, owner_id, name, description, contact_email, phone, website,
			logo_url, subdomain, instagram_handle, verified, created_at, updated_at`

// SQL query constants for static queries (no dynamic WHERE/ORDER BY).
const (
	businessGetByIDQuery = `
		SELECT ` + businessColumns + `
		FROM businesses
		WHERE id = $1`

	businessGetBySubdomainQuery = `
		SELECT ` + businessColumns + `
		FROM businesses
		WHERE subdomain = $1`

	businessListByOwnerQuery = `
		SELECT ` + businessColumns + `
		FROM businesses
		WHERE owner_id = $1
		ORDER BY created_at DESC`
)

// businessListColumns returns the standard column list for dynamic business queries.
func businessListColumns() []string {
	return []string{
		"id",
		"owner_id",
		"name",
		"description",
		"contact_email",
		"phone",
		"website",
		"logo_url",
		"subdomain",
		"instagram_handle",
		"verified",
		"created_at",
		"updated_at",
	}
}

// buildBusinessQueryOptions builds query options for business listing with filters and sorting.
func (r *BusinessRepo) buildBusinessQueryOptions(
	opts model.BusinessListOptions,
	limit, offset int,
) *database.ListQueryOptions {
	queryOpts := []database.ListQueryOption{
		database.WithColumns(businessListColumns()...),
		database.WithLimit(limit),
		database.WithOffset(offset),
	}

	if opts.Q != nil && strings.TrimSpace(*opts.Q) != "" {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereCond("name", database.ILike, "%"+strings.TrimSpace(*opts.Q)+"%"),
		))
	}
	if opts.OwnerID != nil && strings.TrimSpace(*opts.OwnerID) != "" {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereCond("owner_id", database.Equal, strings.TrimSpace(*opts.OwnerID)),
		))
	}
	if opts.Verified != nil {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereCond("verified", database.Equal, *opts.Verified),
		))
	}

	sortCol, sortDir := r.validateSortOptions(opts.Sort, opts.Dir)
	queryOpts = append(queryOpts, database.WithOrderBy(sortCol, sortDir))

	return database.NewListQueryOptions("businesses", queryOpts...)
}

// validateSortOptions validates and returns safe sort column and direction.
func (r *BusinessRepo) validateSortOptions(sort, dir string) (string, string) {
	sortCol := "created_at"
	sortDir := sortDirDesc

	if sort != "" {
		allowedSorts := map[string]string{
			"name":       "name",
			"created_at": "created_at",
		}
		if validSort, ok := allowedSorts[strings.ToLower(strings.TrimSpace(sort))]; ok {
			sortCol = validSort
		}
	}
	if dir != "" {
		allowedDirs := map[string]string{
			"asc":  sortDirAsc,
			"desc": sortDirDesc,
		}
		if validDir, ok := allowedDirs[strings.ToLower(strings.TrimSpace(dir))]; ok {
			sortDir = validDir
		}
	}
	return sortCol, sortDir
}

// getByQuery is a helper function to execute a query and return a single business.
// Uses variadic args to avoid slice allocation at call sites.
func (r *BusinessRepo) getByQuery(
	ctx context.Context,
	q string,
	errMsg string,
	args ...any,
) (*model.Business, error) {
	var business model.Business
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		business, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Business])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBusinessNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return &business, nil
}

func (r *BusinessRepo) mapWriteErr(err error, includeNotFound bool) error {
	if err == nil {
		return nil
	}
	if includeNotFound && errors.Is(err, pgx.ErrNoRows) {
		return ErrBusinessNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrSubdomainTaken
	}
	return err
}
