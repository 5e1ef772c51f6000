package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/service"
)

// FormHandlers serves the form builder: owner-managed templates nested under
// a business, and the public fetch/submit surface addressed by slug.
type FormHandlers struct {
	forms  *service.FormService
	logger *slog.Logger
}

// FormHandlersOptions groups dependencies for NewFormHandlers.
type FormHandlersOptions struct {
	Forms  *service.FormService
	Logger *slog.Logger
}

// NewFormHandlers constructs FormHandlers with explicit dependency injection.
func NewFormHandlers(opts FormHandlersOptions) *FormHandlers {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FormHandlers{forms: opts.Forms, logger: logger}
}

type formTemplateListResponse struct {
	Templates []*model.FormTemplate `json:"templates"`
}

// ListTemplates handles GET /api/businesses/{id}/forms. Owner or admin only.
func (h *FormHandlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	businessID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	templates, err := h.forms.ListTemplates(r.Context(), ActorFromContext(r.Context()), businessID)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	if templates == nil {
		templates = []*model.FormTemplate{}
	}
	WriteJSON(w, http.StatusOK, formTemplateListResponse{Templates: templates})
}

// CreateTemplate handles POST /api/businesses/{id}/forms. The business id
// comes from the path, never the body.
func (h *FormHandlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	businessID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req model.CreateFormTemplateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.BusinessID = businessID

	template, err := h.forms.CreateTemplate(r.Context(), ActorFromContext(r.Context()), &req)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, template)
}

// GetTemplate handles GET /api/businesses/{id}/forms/{templateID}.
func (h *FormHandlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	template, ok := h.templateForBusiness(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, template)
}

// UpdateTemplate handles PATCH /api/businesses/{id}/forms/{templateID}.
func (h *FormHandlers) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	template, ok := h.templateForBusiness(w, r)
	if !ok {
		return
	}

	var req model.UpdateFormTemplateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	updated, err := h.forms.UpdateTemplate(r.Context(), ActorFromContext(r.Context()), template.ID, req)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

type replaceFieldsRequest struct {
	Fields []model.CreateFormFieldRequest `json:"fields"`
}

// ReplaceFields handles PUT /api/businesses/{id}/forms/{templateID}/fields:
// swaps the template's whole field set in order.
func (h *FormHandlers) ReplaceFields(w http.ResponseWriter, r *http.Request) {
	template, ok := h.templateForBusiness(w, r)
	if !ok {
		return
	}

	var req replaceFieldsRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	updated, err := h.forms.ReplaceFields(r.Context(), ActorFromContext(r.Context()), template.ID, req.Fields)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// DeleteTemplate handles DELETE /api/businesses/{id}/forms/{templateID}.
// Submissions go with the template.
func (h *FormHandlers) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	template, ok := h.templateForBusiness(w, r)
	if !ok {
		return
	}

	deleted, err := h.forms.DeleteTemplate(r.Context(), ActorFromContext(r.Context()), template.ID)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	if !deleted {
		WriteError(
			w,
			ErrorParams{Code: http.StatusNotFound, ErrCode: "form_not_found", Err: errors.New("form template not found")},
		)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type formSubmissionListResponse struct {
	Submissions []*model.FormSubmission `json:"submissions"`
}

// ListSubmissions handles GET /api/businesses/{id}/forms/{templateID}/submissions.
func (h *FormHandlers) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	template, ok := h.templateForBusiness(w, r)
	if !ok {
		return
	}

	limit, offset := ParseLimitOffset(r, defaultBusinessPageSize, maxBusinessPageSize)
	submissions, err := h.forms.ListSubmissions(r.Context(), ActorFromContext(r.Context()), model.FormSubmissionListOptions{
		TemplateID: template.ID,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	if submissions == nil {
		submissions = []*model.FormSubmission{}
	}
	WriteJSON(w, http.StatusOK, formSubmissionListResponse{Submissions: submissions})
}

// PublicTemplate handles GET /api/forms/{slug}: the active template served
// to the public form page. No auth; inactive templates read as not-found.
func (h *FormHandlers) PublicTemplate(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("slug is required")},
		)
		return
	}

	template, err := h.forms.PublicTemplate(r.Context(), slug)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, template)
}

// Submit handles POST /api/forms/{slug}/submissions: the public submission
// flow. Responses are validated against the template's field set.
func (h *FormHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("slug is required")},
		)
		return
	}

	var req model.SubmitFormRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	var submitterIP *string
	if ip := clientIP(r); ip != "" {
		submitterIP = &ip
	}

	submission, err := h.forms.Submit(r.Context(), slug, &req, submitterIP)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, submission)
}

// templateForBusiness loads the template addressed by the nested route and
// checks it belongs to the business in the path. A mismatch reads as
// not-found rather than revealing the template exists elsewhere.
func (h *FormHandlers) templateForBusiness(w http.ResponseWriter, r *http.Request) (*model.FormTemplate, bool) {
	businessID, ok := pathUUID(w, r, "id")
	if !ok {
		return nil, false
	}
	templateID, ok := pathUUID(w, r, "templateID")
	if !ok {
		return nil, false
	}

	template, err := h.forms.GetTemplate(r.Context(), ActorFromContext(r.Context()), templateID)
	if err != nil {
		WriteServiceError(w, r, h.logger, err)
		return nil, false
	}
	if template.BusinessID != businessID {
		WriteError(
			w,
			ErrorParams{Code: http.StatusNotFound, ErrCode: "form_not_found", Err: errors.New("form template not found")},
		)
		return nil, false
	}
	return template, true
}
