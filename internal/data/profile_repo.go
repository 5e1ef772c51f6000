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

var (
	// ErrProfileNotFound is returned when a profile is not found.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileExists is returned when a profile already exists for the subject or email.
	ErrProfileExists = errors.New("profile already exists for this subject or email")
)

// ProfileRepo provides database operations for user profiles.
type ProfileRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewProfileRepo creates a new ProfileRepo with real time provider.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewProfileRepoWithTimeProvider creates a new ProfileRepo with a custom time provider (useful for tests).
func NewProfileRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: tp}
}

// Create inserts a new profile. The username defaults to the email when empty,
// matching what the identity provider hands us on first sign-in.
func (r *ProfileRepo) Create(ctx context.Context, req *model.CreateProfileRequest) (*model.Profile, error) {
	if req == nil {
		return nil, errors.New("create profile request is required")
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = email
	}

	createdAt := r.timeProvider.Now().UTC()
	var out model.Profile
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO profiles (
				subject, email, username, first_name, last_name, role, identity_provider, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8
			) RETURNING `+profileColumns,
			strings.TrimSpace(req.Subject),
			email,
			username,
			strings.TrimSpace(req.FirstName),
			strings.TrimSpace(req.LastName),
			req.Role,
			strings.TrimSpace(req.IdentityProvider),
			createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Profile])
		return err
	}); err != nil {
		return nil, r.mapWriteErr(err, false)
	}
	return &out, nil
}

// GetByID retrieves a profile by ID.
func (r *ProfileRepo) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	return r.getByQuery(ctx, profileGetByIDQuery, "failed to get profile by ID", id)
}

// GetBySubject retrieves a profile by its identity-provider subject.
func (r *ProfileRepo) GetBySubject(ctx context.Context, subject string) (*model.Profile, error) {
	return r.getByQuery(ctx, profileGetBySubjectQuery, "failed to get profile by subject", subject)
}

// GetByEmail retrieves a profile by email (case-insensitive).
func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return r.getByQuery(ctx, profileGetByEmailQuery, "failed to get profile by email", normalized)
}

// List retrieves profiles with optional role and search filters (admin view).
func (r *ProfileRepo) List(ctx context.Context, opts model.ProfileListOptions) ([]*model.Profile, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := max(opts.Offset, 0)

	queryOpts := r.buildProfileQueryOptions(opts, limit, offset)
	query, args := database.BuildListQuery(queryOpts)

	var rowsOut []model.Profile
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Profile])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	res := make([]*model.Profile, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// Update updates fields of a profile. A role change also marks the profile
// complete, since choosing a role is the last onboarding step.
func (r *ProfileRepo) Update(
	ctx context.Context,
	id string,
	req model.UpdateProfileRequest,
) (*model.Profile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out model.Profile
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		setClause, args := r.buildUpdateClause(req)
		if setClause == "" {
			rows, err := conn.Query(ctx, profileGetByIDQuery, id)
			if err != nil {
				return err
			}
			defer rows.Close()
			var e error
			out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Profile])
			return e
		}
		args = append(args, id)
		query := "UPDATE profiles SET " + setClause + " WHERE id = $" + strconv.Itoa(
			len(args),
		) + " RETURNING " + profileColumns
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Profile])
		return e
	})
	if err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return &out, nil
}

// buildUpdateClause builds the SQL SET clause and args for updating a profile based on the request.
func (r *ProfileRepo) buildUpdateClause(req model.UpdateProfileRequest) (string, []any) {
	setParts := make([]string, 0, 6)
	args := make([]any, 0, 6)
	nextIdx := func() int { return len(args) + 1 }

	if req.Role != nil {
		setParts = append(setParts, fmt.Sprintf("role = $%d", nextIdx()))
		args = append(args, *req.Role)
		setParts = append(setParts, "profile_complete = TRUE")
	}
	if req.FirstName != nil {
		setParts = append(setParts, fmt.Sprintf("first_name = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.FirstName))
	}
	if req.LastName != nil {
		setParts = append(setParts, fmt.Sprintf("last_name = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.LastName))
	}
	if req.EmailNotifications != nil {
		setParts = append(setParts, fmt.Sprintf("email_notifications = $%d", nextIdx()))
		args = append(args, *req.EmailNotifications)
	}
	if req.EventReminders != nil {
		setParts = append(setParts, fmt.Sprintf("event_reminders = $%d", nextIdx()))
		args = append(args, *req.EventReminders)
	}

	if len(setParts) == 0 {
		return "", nil
	}
	return strings.Join(setParts, ", "), args
}

// SyncIdentity applies identity-derived drift to a profile: email, provider,
// and the claim role while it still governs. Nil fields keep their value.
func (r *ProfileRepo) SyncIdentity(
	ctx context.Context,
	id string,
	params model.SyncIdentityParams,
) (*model.Profile, error) {
	if !params.HasUpdates() {
		return r.GetByID(ctx, id)
	}

	setParts := make([]string, 0, 3)
	args := make([]any, 0, 4)
	nextIdx := func() int { return len(args) + 1 }
	if params.Email != nil {
		setParts = append(setParts, fmt.Sprintf("email = $%d", nextIdx()))
		args = append(args, strings.ToLower(strings.TrimSpace(*params.Email)))
	}
	if params.IdentityProvider != nil {
		setParts = append(setParts, fmt.Sprintf("identity_provider = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*params.IdentityProvider))
	}
	if params.Role != nil {
		setParts = append(setParts, fmt.Sprintf("role = $%d", nextIdx()))
		args = append(args, *params.Role)
	}

	args = append(args, id)
	query := "UPDATE profiles SET " + strings.Join(setParts, ", ") +
		" WHERE id = $" + strconv.Itoa(len(args)) + " RETURNING " + profileColumns

	var out model.Profile
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Profile])
		return e
	})
	if err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return &out, nil
}

// Delete deletes a profile by ID.
func (r *ProfileRepo) Delete(ctx context.Context, id string) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete profile: %w", err)
	}
	return rows > 0, nil
}

// --- helpers ---

const profileColumns = `id, subject, email, username, first_name, last_name, role,
			identity_provider, profile_complete, email_notifications, event_reminders,
			created_at, updated_at`

// SQL query constants for static queries (no dynamic WHERE/ORDER BY).
const (
	profileGetByIDQuery = `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE id = $1`

	profileGetBySubjectQuery = `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE subject = $1`

	profileGetByEmailQuery = `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE lower(email) = $1`
)

// profileListColumns returns the standard column list for dynamic profile queries.
func profileListColumns() []string {
	return []string{
		"id",
		"subject",
		"email",
		"username",
		"first_name",
		"last_name",
		"role",
		"identity_provider",
		"profile_complete",
		"email_notifications",
		"event_reminders",
		"created_at",
		"updated_at",
	}
}

// buildProfileQueryOptions builds query options for profile listing with filters.
func (r *ProfileRepo) buildProfileQueryOptions(
	opts model.ProfileListOptions,
	limit, offset int,
) *database.ListQueryOptions {
	queryOpts := []database.ListQueryOption{
		database.WithColumns(profileListColumns()...),
		database.WithLimit(limit),
		database.WithOffset(offset),
	}

	if opts.Role != nil {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereCond("role", database.Equal, string(*opts.Role)),
		))
	}
	if opts.Q != nil && strings.TrimSpace(*opts.Q) != "" {
		pattern := "%" + strings.TrimSpace(*opts.Q) + "%"
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereRawCond("(email ILIKE $1 OR username ILIKE $1)", pattern),
		))
	}

	queryOpts = append(queryOpts, database.WithOrderBy("created_at", sortDirDesc))

	return database.NewListQueryOptions("profiles", queryOpts...)
}

// getByQuery is a helper function to execute a query and return a single profile.
// Uses variadic args to avoid slice allocation at call sites.
func (r *ProfileRepo) getByQuery(
	ctx context.Context,
	q string,
	errMsg string,
	args ...any,
) (*model.Profile, error) {
	var profile model.Profile
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		profile, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Profile])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return &profile, nil
}

func (r *ProfileRepo) mapWriteErr(err error, includeNotFound bool) error {
	if err == nil {
		return nil
	}
	if includeNotFound && errors.Is(err, pgx.ErrNoRows) {
		return ErrProfileNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrProfileExists
	}
	return err
}
