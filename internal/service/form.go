package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// Email template names rendered by the mailer for form traffic.
const (
	emailTemplateFormSubmission   = "form_submission"
	emailTemplateFormConfirmation = "form_confirmation"
)

// FormServiceOptions groups dependencies for FormService.
type FormServiceOptions struct {
	Templates   core.FormTemplateRepository   // Required: template storage
	Submissions core.FormSubmissionRepository // Required: submission storage
	Businesses  core.BusinessRepository       // Required: ownership gates
	Jobs        core.JobRepository            // Optional: notification emails are skipped when nil
	Logger      *slog.Logger
}

// FormService owns business lead forms: owner-managed templates, the public
// submission flow with field-level validation, and the notification emails
// that fan out from each submission.
type FormService struct {
	templates   core.FormTemplateRepository
	submissions core.FormSubmissionRepository
	businesses  core.BusinessRepository
	jobs        core.JobRepository
	logger      *slog.Logger
}

// NewFormService constructs a new FormService.
func NewFormService(opts FormServiceOptions) (*FormService, error) {
	if opts.Templates == nil {
		return nil, errors.New("FormTemplateRepository is required")
	}
	if opts.Submissions == nil {
		return nil, errors.New("FormSubmissionRepository is required")
	}
	if opts.Businesses == nil {
		return nil, errors.New("BusinessRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "form_service")
	}

	return &FormService{
		templates:   opts.Templates,
		submissions: opts.Submissions,
		businesses:  opts.Businesses,
		jobs:        opts.Jobs,
		logger:      logger,
	}, nil
}

// MustNewFormService constructs a new FormService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewFormService(opts FormServiceOptions) *FormService {
	svc, err := NewFormService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast during startup wiring when configuration is invalid
		panic(fmt.Sprintf("failed to create FormService: %v", err))
	}
	return svc
}

// CreateTemplate creates a form template for a business the actor manages.
func (s *FormService) CreateTemplate(
	ctx context.Context,
	actor Actor,
	req *model.CreateFormTemplateRequest,
) (*model.FormTemplate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireBusinessManager(ctx, actor, req.BusinessID); err != nil {
		return nil, err
	}

	template, err := s.templates.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "form template created",
			"template_id", template.ID, "business_id", template.BusinessID, "slug", template.Slug)
	}
	return template, nil
}

// GetTemplate returns a template, fields included, to its managers.
func (s *FormService) GetTemplate(ctx context.Context, actor Actor, id string) (*model.FormTemplate, error) {
	template, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireBusinessManager(ctx, actor, template.BusinessID); err != nil {
		return nil, err
	}
	return template, nil
}

// ListTemplates returns a business's templates to its managers.
func (s *FormService) ListTemplates(ctx context.Context, actor Actor, businessID string) ([]*model.FormTemplate, error) {
	if err := s.requireBusinessManager(ctx, actor, businessID); err != nil {
		return nil, err
	}
	return s.templates.ListByBusiness(ctx, businessID)
}

// UpdateTemplate updates template metadata.
func (s *FormService) UpdateTemplate(
	ctx context.Context,
	actor Actor,
	id string,
	req model.UpdateFormTemplateRequest,
) (*model.FormTemplate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	template, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireBusinessManager(ctx, actor, template.BusinessID); err != nil {
		return nil, err
	}
	return s.templates.Update(ctx, id, req)
}

// ReplaceFields swaps a template's whole field set. Existing submissions keep
// their recorded labels.
func (s *FormService) ReplaceFields(
	ctx context.Context,
	actor Actor,
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

	template, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireBusinessManager(ctx, actor, template.BusinessID); err != nil {
		return nil, err
	}
	return s.templates.ReplaceFields(ctx, id, fields)
}

// DeleteTemplate removes a template and its submissions.
func (s *FormService) DeleteTemplate(ctx context.Context, actor Actor, id string) (bool, error) {
	template, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if err := s.requireBusinessManager(ctx, actor, template.BusinessID); err != nil {
		return false, err
	}
	return s.templates.Delete(ctx, id)
}

// PublicTemplate resolves an active template by slug for the public form
// page. Inactive templates read as not-found.
func (s *FormService) PublicTemplate(ctx context.Context, slug string) (*model.FormTemplate, error) {
	template, err := s.templates.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, err
	}
	if !template.Active {
		return nil, data.ErrFormTemplateNotFound
	}
	return template, nil
}

// Submit records a public submission after validating it against the
// template's field set, then queues the notification email to the business
// and, when configured, a confirmation email to the submitter.
func (s *FormService) Submit(
	ctx context.Context,
	slug string,
	req *model.SubmitFormRequest,
	submitterIP *string,
) (*model.FormSubmission, error) {
	template, err := s.PublicTemplate(ctx, slug)
	if err != nil {
		return nil, err
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := req.ValidateAgainst(template); err != nil {
		return nil, err
	}

	responses := make([]*model.FormResponse, 0, len(req.Responses))
	for _, field := range template.Fields {
		value, ok := req.Responses[field.ID]
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			continue
		}
		responses = append(responses, &model.FormResponse{
			FieldID:    field.ID,
			FieldLabel: field.Label,
			Value:      value,
		})
	}

	submission, err := s.submissions.Create(ctx, core.CreateFormSubmissionParams{
		TemplateID:     template.ID,
		SubmitterEmail: req.Email,
		SubmitterIP:    submitterIP,
		Responses:      responses,
	})
	if err != nil {
		return nil, err
	}

	s.queueSubmissionEmails(ctx, template, submission)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "form submitted",
			"template_id", template.ID, "submission_id", submission.ID)
	}
	return submission, nil
}

// ListSubmissions returns a template's submissions to its managers.
func (s *FormService) ListSubmissions(
	ctx context.Context,
	actor Actor,
	opts model.FormSubmissionListOptions,
) ([]*model.FormSubmission, error) {
	template, err := s.templates.GetByID(ctx, opts.TemplateID)
	if err != nil {
		return nil, err
	}
	if err := s.requireBusinessManager(ctx, actor, template.BusinessID); err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return s.submissions.ListByTemplate(ctx, opts)
}

// formEmailData is the template data carried by form-related email jobs.
type formEmailData struct {
	FormName            string              `json:"form_name"`
	FormTitle           string              `json:"form_title"`
	SubmitterEmail      string              `json:"submitter_email"`
	ConfirmationMessage string              `json:"confirmation_message,omitempty"`
	Responses           []formEmailResponse `json:"responses,omitempty"`
}

type formEmailResponse struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// queueSubmissionEmails enqueues the owner notification and the optional
// submitter confirmation. Enqueue failures are logged; the submission is
// already stored and must not be rolled back by mail trouble.
func (s *FormService) queueSubmissionEmails(
	ctx context.Context,
	template *model.FormTemplate,
	submission *model.FormSubmission,
) {
	if s.jobs == nil {
		return
	}

	responses := make([]formEmailResponse, 0, len(submission.Responses))
	for _, r := range submission.Responses {
		responses = append(responses, formEmailResponse{Label: r.FieldLabel, Value: r.Value})
	}

	notify := model.EmailJobPayload{
		Template: emailTemplateFormSubmission,
		To:       template.NotificationEmail,
		Subject:  fmt.Sprintf("New submission: %s", template.Name),
	}
	s.enqueueEmail(ctx, template.BusinessID, notify, formEmailData{
		FormName:       template.Name,
		FormTitle:      template.Title,
		SubmitterEmail: submission.SubmitterEmail,
		Responses:      responses,
	})

	if template.SendConfirmation {
		confirm := model.EmailJobPayload{
			Template: emailTemplateFormConfirmation,
			To:       submission.SubmitterEmail,
			Subject:  fmt.Sprintf("Thanks for contacting %s", template.Name),
		}
		s.enqueueEmail(ctx, template.BusinessID, confirm, formEmailData{
			FormName:            template.Name,
			FormTitle:           template.Title,
			SubmitterEmail:      submission.SubmitterEmail,
			ConfirmationMessage: template.ConfirmationMessage,
		})
	}
}

func (s *FormService) enqueueEmail(
	ctx context.Context,
	businessID string,
	payload model.EmailJobPayload,
	emailData formEmailData,
) {
	raw, err := json.Marshal(emailData)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "form email data encode failed", "error", err)
		}
		return
	}
	payload.Data = raw

	body, err := json.Marshal(payload)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "form email payload encode failed", "error", err)
		}
		return
	}

	_, err = s.jobs.Create(ctx, &model.CreateJobRequest{
		Type:       model.JobTypeEmail,
		Payload:    body,
		BusinessID: &businessID,
		MaxRetries: 3,
	})
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "form email enqueue failed",
			"business_id", businessID, "template", payload.Template, "error", err)
	}
}

// requireBusinessManager resolves the business and checks the actor manages it.
func (s *FormService) requireBusinessManager(ctx context.Context, actor Actor, businessID string) error {
	business, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		return err
	}
	if !actor.CanManage(business.OwnerID) {
		return ErrForbidden
	}
	return nil
}
