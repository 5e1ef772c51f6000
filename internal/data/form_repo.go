package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/popmap/popmap-api/internal/data/pgxutil"
	"github.com/popmap/popmap-api/internal/domain/model"
)

var (
	// ErrFormTemplateNotFound is returned when a form template is not found.
	ErrFormTemplateNotFound = errors.New("form template not found")
	// ErrFormSlugExists is returned when the requested slug is already taken.
	ErrFormSlugExists = errors.New("a form with this slug already exists")
)

// FormTemplateRepo provides database operations for form templates, their
// fields, and choice options.
type FormTemplateRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewFormTemplateRepo creates a new FormTemplateRepo with real time provider.
func NewFormTemplateRepo(db *sql.DB) *FormTemplateRepo {
	return &FormTemplateRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewFormTemplateRepoWithTimeProvider creates a new FormTemplateRepo with a custom time provider (useful for tests).
func NewFormTemplateRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *FormTemplateRepo {
	return &FormTemplateRepo{DB: db, timeProvider: tp}
}

// Create persists the template with its fields and options in one transaction.
func (r *FormTemplateRepo) Create(
	ctx context.Context,
	req *model.CreateFormTemplateRequest,
) (*model.FormTemplate, error) {
	if req == nil {
		return nil, errors.New("create form template request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()
	var templateID string
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			if err := tx.QueryRow(ctx, `
				INSERT INTO form_templates (
					business_id, name, slug, title, description, notification_email,
					send_confirmation, confirmation_message, submit_button_text,
					active, created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10, $10)
				RETURNING id
			`,
				req.BusinessID, req.Name, req.Slug, req.Title, req.Description,
				strings.ToLower(strings.TrimSpace(req.NotificationEmail)),
				req.SendConfirmation, req.ConfirmationMessage, req.SubmitButtonText,
				now,
			).Scan(&templateID); err != nil {
				return err
			}
			return insertFormFields(ctx, tx, templateID, req.Fields)
		},
	})
	if err != nil {
		return nil, r.mapWriteErr(err, false)
	}
	return r.GetByID(ctx, templateID)
}

// GetByID returns the template with fields and options loaded.
func (r *FormTemplateRepo) GetByID(ctx context.Context, id string) (*model.FormTemplate, error) {
	return r.getLoaded(ctx, formTemplateGetByIDQuery, "failed to get form template by ID", id)
}

// GetBySlug returns the template with fields and options loaded. Public
// submission pages resolve templates this way.
func (r *FormTemplateRepo) GetBySlug(ctx context.Context, slug string) (*model.FormTemplate, error) {
	return r.getLoaded(ctx, formTemplateGetBySlugQuery, "failed to get form template by slug", slug)
}

// ListByBusiness returns a business's templates, newest first. Fields are
// not loaded on list; GetByID loads them.
func (r *FormTemplateRepo) ListByBusiness(
	ctx context.Context,
	businessID string,
) ([]*model.FormTemplate, error) {
	var rowsOut []model.FormTemplate
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, formTemplateListByBusinessQuery, businessID)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.FormTemplate])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list form templates by business: %w", err)
	}
	res := make([]*model.FormTemplate, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// Update applies template metadata changes. Field changes go through ReplaceFields.
func (r *FormTemplateRepo) Update(
	ctx context.Context,
	id string,
	req model.UpdateFormTemplateRequest,
) (*model.FormTemplate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		setClause, args := r.buildUpdateClause(req)
		args = append(args, id)
		query := "UPDATE form_templates SET " + setClause +
			" WHERE id = $" + strconv.Itoa(len(args))
		ct, err := conn.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return r.GetByID(ctx, id)
}

// ReplaceFields swaps the template's whole field set. Options cascade with
// their fields.
func (r *FormTemplateRepo) ReplaceFields(
	ctx context.Context,
	id string,
	fields []model.CreateFormFieldRequest,
) (*model.FormTemplate, error) {
	if len(fields) == 0 {
		return nil, errors.New("at least one field is required")
	}
	for i := range fields {
		if err := fields[i].Validate(); err != nil {
			return nil, err
		}
	}

	now := r.timeProvider.Now().UTC()
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			ct, err := tx.Exec(ctx,
				`UPDATE form_templates SET updated_at = $2 WHERE id = $1`, id, now)
			if err != nil {
				return err
			}
			if ct.RowsAffected() == 0 {
				return pgx.ErrNoRows
			}
			if _, err := tx.Exec(ctx,
				`DELETE FROM form_fields WHERE template_id = $1`, id); err != nil {
				return err
			}
			return insertFormFields(ctx, tx, id, fields)
		},
	})
	if err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return r.GetByID(ctx, id)
}

// Delete removes a template with its fields, options, and submissions (cascade).
func (r *FormTemplateRepo) Delete(ctx context.Context, id string) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM form_templates WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete form template: %w", err)
	}
	return rows > 0, nil
}

// --- helpers ---

const formTemplateColumns = `id, business_id, name, slug, title, description,
			notification_email, send_confirmation, confirmation_message,
			submit_button_text, active, created_at, updated_at`

const (
	formTemplateGetByIDQuery = `
		SELECT ` + formTemplateColumns + `
		FROM form_templates
		WHERE id = $1`

	formTemplateGetBySlugQuery = `
		SELECT ` + formTemplateColumns + `
		FROM form_templates
		WHERE slug = $1`

	formTemplateListByBusinessQuery = `
		SELECT ` + formTemplateColumns + `
		FROM form_templates
		WHERE business_id = $1
		ORDER BY created_at DESC`

	formFieldListQuery = `
		SELECT id, template_id, type, label, placeholder, help_text, required, sort_order
		FROM form_fields
		WHERE template_id = $1
		ORDER BY sort_order, id`

	formOptionListQuery = `
		SELECT id, field_id, label, value, sort_order
		FROM form_field_options
		WHERE field_id = ANY($1)
		ORDER BY sort_order, id`
)

// insertFormFields writes a template's field rows and their options inside tx.
func insertFormFields(
	ctx context.Context,
	tx pgx.Tx,
	templateID string,
	fields []model.CreateFormFieldRequest,
) error {
	for i := range fields {
		f := &fields[i]
		var fieldID string
		if err := tx.QueryRow(ctx, `
			INSERT INTO form_fields (template_id, type, label, placeholder, help_text, required, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, templateID, string(f.Type), strings.TrimSpace(f.Label),
			f.Placeholder, f.HelpText, f.Required, i,
		).Scan(&fieldID); err != nil {
			return fmt.Errorf("insert form field %q: %w", f.Label, err)
		}
		for j, opt := range f.Options {
			if _, err := tx.Exec(ctx, `
				INSERT INTO form_field_options (field_id, label, value, sort_order)
				VALUES ($1, $2, $3, $4)
			`, fieldID, opt, opt, j); err != nil {
				return fmt.Errorf("insert option %q: %w", opt, err)
			}
		}
	}
	return nil
}

// getLoaded fetches one template row and hydrates its fields and options.
func (r *FormTemplateRepo) getLoaded(
	ctx context.Context,
	q string,
	errMsg string,
	arg any,
) (*model.FormTemplate, error) {
	var template model.FormTemplate
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, arg)
		if err != nil {
			return err
		}
		template, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.FormTemplate])
		if err != nil {
			return err
		}

		fieldRows, err := conn.Query(ctx, formFieldListQuery, template.ID)
		if err != nil {
			return err
		}
		fields, err := pgx.CollectRows(fieldRows, pgx.RowToStructByName[model.FormField])
		if err != nil {
			return err
		}
		template.Fields = make([]*model.FormField, len(fields))
		fieldIDs := make([]uuid.UUID, 0, len(fields))
		byID := make(map[string]*model.FormField, len(fields))
		for i := range fields {
			template.Fields[i] = &fields[i]
			byID[fields[i].ID] = &fields[i]
			uid, err := uuid.Parse(fields[i].ID)
			if err != nil {
				return fmt.Errorf("invalid field id %q: %w", fields[i].ID, err)
			}
			fieldIDs = append(fieldIDs, uid)
		}
		if len(fieldIDs) == 0 {
			return nil
		}

		optRows, err := conn.Query(ctx, formOptionListQuery, fieldIDs)
		if err != nil {
			return err
		}
		options, err := pgx.CollectRows(optRows, pgx.RowToStructByName[model.FormFieldOption])
		if err != nil {
			return err
		}
		for i := range options {
			if f, ok := byID[options[i].FieldID]; ok {
				f.Options = append(f.Options, &options[i])
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFormTemplateNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return &template, nil
}

// buildUpdateClause builds the SQL SET clause and args for a template metadata update.
func (r *FormTemplateRepo) buildUpdateClause(req model.UpdateFormTemplateRequest) (string, []any) {
	setParts := make([]string, 0, 9)
	args := make([]any, 0, 9)
	nextIdx := func() int { return len(args) + 1 }

	if req.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.Name))
	}
	if req.Title != nil {
		setParts = append(setParts, fmt.Sprintf("title = $%d", nextIdx()))
		args = append(args, *req.Title)
	}
	if req.Description != nil {
		setParts = append(setParts, fmt.Sprintf("description = $%d", nextIdx()))
		args = append(args, *req.Description)
	}
	if req.NotificationEmail != nil {
		setParts = append(setParts, fmt.Sprintf("notification_email = $%d", nextIdx()))
		args = append(args, strings.ToLower(strings.TrimSpace(*req.NotificationEmail)))
	}
	if req.SendConfirmation != nil {
		setParts = append(setParts, fmt.Sprintf("send_confirmation = $%d", nextIdx()))
		args = append(args, *req.SendConfirmation)
	}
	if req.ConfirmationMessage != nil {
		setParts = append(setParts, fmt.Sprintf("confirmation_message = $%d", nextIdx()))
		args = append(args, *req.ConfirmationMessage)
	}
	if req.SubmitButtonText != nil {
		setParts = append(setParts, fmt.Sprintf("submit_button_text = $%d", nextIdx()))
		args = append(args, *req.SubmitButtonText)
	}
	if req.Active != nil {
		setParts = append(setParts, fmt.Sprintf("active = $%d", nextIdx()))
		args = append(args, *req.Active)
	}

	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", nextIdx()))
	args = append(args, r.timeProvider.Now().UTC())

	return strings.Join(setParts, ", "), args
}

func (r *FormTemplateRepo) mapWriteErr(err error, includeNotFound bool) error {
	if err == nil {
		return nil
	}
	if includeNotFound && errors.Is(err, pgx.ErrNoRows) {
		return ErrFormTemplateNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrFormSlugExists
		case "23503":
			return ErrBusinessNotFound
		}
	}
	return err
}
