package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data/pgxutil"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// ErrFormSubmissionNotFound is returned when a form submission is not found.
var ErrFormSubmissionNotFound = errors.New("form submission not found")

// FormSubmissionRepo provides database operations for form submissions and
// their per-field responses.
type FormSubmissionRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewFormSubmissionRepo creates a new FormSubmissionRepo with real time provider.
func NewFormSubmissionRepo(db *sql.DB) *FormSubmissionRepo {
	return &FormSubmissionRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewFormSubmissionRepoWithTimeProvider creates a new FormSubmissionRepo with a custom time provider (useful for tests).
func NewFormSubmissionRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *FormSubmissionRepo {
	return &FormSubmissionRepo{DB: db, timeProvider: tp}
}

// Create records a submission with its responses in one transaction.
func (r *FormSubmissionRepo) Create(
	ctx context.Context,
	params core.CreateFormSubmissionParams,
) (*model.FormSubmission, error) {
	if params.TemplateID == "" {
		return nil, errors.New("template ID is required")
	}
	if params.SubmitterEmail == "" {
		return nil, errors.New("submitter email is required")
	}

	now := r.timeProvider.Now().UTC()
	var submissionID string
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			if err := tx.QueryRow(ctx, `
				INSERT INTO form_submissions (template_id, submitter_email, submitter_ip, created_at)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`, params.TemplateID, params.SubmitterEmail, params.SubmitterIP, now,
			).Scan(&submissionID); err != nil {
				return err
			}
			for _, resp := range params.Responses {
				if _, err := tx.Exec(ctx, `
					INSERT INTO form_responses (submission_id, field_id, field_label, value)
					VALUES ($1, $2, $3, $4)
				`, submissionID, resp.FieldID, resp.FieldLabel, resp.Value); err != nil {
					return fmt.Errorf("insert response for field %q: %w", resp.FieldLabel, err)
				}
			}
			return nil
		},
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrFormTemplateNotFound
		}
		return nil, fmt.Errorf("failed to create form submission: %w", err)
	}
	return r.GetByID(ctx, submissionID)
}

// GetByID retrieves a submission with its responses.
func (r *FormSubmissionRepo) GetByID(ctx context.Context, id string) (*model.FormSubmission, error) {
	var submission model.FormSubmission
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, formSubmissionGetByIDQuery, id)
		if err != nil {
			return err
		}
		submission, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.FormSubmission])
		if err != nil {
			return err
		}
		uid, err := uuid.Parse(submission.ID)
		if err != nil {
			return fmt.Errorf("invalid submission id %q: %w", submission.ID, err)
		}
		respRows, err := conn.Query(ctx, formResponseListQuery, []uuid.UUID{uid})
		if err != nil {
			return err
		}
		responses, err := pgx.CollectRows(respRows, pgx.RowToStructByName[model.FormResponse])
		if err != nil {
			return err
		}
		submission.Responses = make([]*model.FormResponse, len(responses))
		for i := range responses {
			submission.Responses[i] = &responses[i]
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFormSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get form submission by ID: %w", err)
	}
	return &submission, nil
}

// ListByTemplate returns a page of a template's submissions, newest first,
// with responses hydrated in one extra query.
func (r *FormSubmissionRepo) ListByTemplate(
	ctx context.Context,
	opts model.FormSubmissionListOptions,
) ([]*model.FormSubmission, error) {
	if opts.TemplateID == "" {
		return nil, errors.New("template ID is required")
	}
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := max(opts.Offset, 0)

	var submissions []model.FormSubmission
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, formSubmissionListQuery, opts.TemplateID, limit, offset)
		if err != nil {
			return err
		}
		submissions, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.FormSubmission])
		if err != nil {
			return err
		}
		if len(submissions) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(submissions))
		byID := make(map[string]*model.FormSubmission, len(submissions))
		for i := range submissions {
			uid, err := uuid.Parse(submissions[i].ID)
			if err != nil {
				return fmt.Errorf("invalid submission id %q: %w", submissions[i].ID, err)
			}
			ids = append(ids, uid)
			byID[submissions[i].ID] = &submissions[i]
		}
		respRows, err := conn.Query(ctx, formResponseListQuery, ids)
		if err != nil {
			return err
		}
		responses, err := pgx.CollectRows(respRows, pgx.RowToStructByName[model.FormResponse])
		if err != nil {
			return err
		}
		for i := range responses {
			if s, ok := byID[responses[i].SubmissionID]; ok {
				s.Responses = append(s.Responses, &responses[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list form submissions: %w", err)
	}
	res := make([]*model.FormSubmission, len(submissions))
	for i := range submissions {
		res[i] = &submissions[i]
	}
	return res, nil
}

// CountByTemplate counts a template's submissions.
func (r *FormSubmissionRepo) CountByTemplate(ctx context.Context, templateID string) (int, error) {
	var count int
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx,
			`SELECT COUNT(*) FROM form_submissions WHERE template_id = $1`,
			templateID,
		).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count form submissions: %w", err)
	}
	return count, nil
}

// --- helpers ---

const formSubmissionColumns = `id, template_id, submitter_email, submitter_ip, created_at`

const (
	formSubmissionGetByIDQuery = `
		SELECT ` + formSubmissionColumns + `
		FROM form_submissions
		WHERE id = $1`

	formSubmissionListQuery = `
		SELECT ` + formSubmissionColumns + `
		FROM form_submissions
		WHERE template_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	formResponseListQuery = `
		SELECT id, submission_id, field_id, field_label, value
		FROM form_responses
		WHERE submission_id = ANY($1)
		ORDER BY submission_id, id`
)
