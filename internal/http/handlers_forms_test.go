package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data"
	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/mocks"
	"github.com/popmap/popmap-api/internal/service"
	"go.uber.org/mock/gomock"
)

type formHandlerMocks struct {
	templates   *mocks.MockFormTemplateRepository
	submissions *mocks.MockFormSubmissionRepository
	businesses  *mocks.MockBusinessRepository
	jobs        *mocks.MockJobRepository
}

func newFormHandlersWithMocks(t *testing.T) (*FormHandlers, formHandlerMocks, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := formHandlerMocks{
		templates:   mocks.NewMockFormTemplateRepository(ctrl),
		submissions: mocks.NewMockFormSubmissionRepository(ctrl),
		businesses:  mocks.NewMockBusinessRepository(ctrl),
		jobs:        mocks.NewMockJobRepository(ctrl),
	}
	svc := service.MustNewFormService(service.FormServiceOptions{
		Templates:   m.templates,
		Submissions: m.submissions,
		Businesses:  m.businesses,
		Jobs:        m.jobs,
	})
	return NewFormHandlers(FormHandlersOptions{Forms: svc}), m, ctrl
}

// formTemplateFixture builds an active contact form with a required text
// field and an optional dropdown.
func formTemplateFixture(businessID string) *model.FormTemplate {
	templateID := uuid.NewString()
	nameField := &model.FormField{
		ID:         uuid.NewString(),
		TemplateID: templateID,
		Type:       model.FormFieldTypeText,
		Label:      "Your name",
		Required:   true,
		SortOrder:  0,
	}
	topicField := &model.FormField{
		ID:         uuid.NewString(),
		TemplateID: templateID,
		Type:       model.FormFieldTypeDropdown,
		Label:      "Topic",
		SortOrder:  1,
		Options: []*model.FormFieldOption{
			{ID: uuid.NewString(), Label: "Catering", Value: "catering"},
			{ID: uuid.NewString(), Label: "Press", Value: "press"},
		},
	}
	return &model.FormTemplate{
		ID:                templateID,
		BusinessID:        businessID,
		Name:              "Contact Us",
		Slug:              "contact-us",
		Title:             "Get in touch",
		NotificationEmail: "owner@espresso.example.com",
		SubmitButtonText:  "Send",
		Active:            true,
		Fields:            []*model.FormField{nameField, topicField},
	}
}

func TestListFormTemplates(t *testing.T) {
	t.Run("owner lists", func(t *testing.T) {
		h, m, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		business := businessFixture("profile-1")
		template := formTemplateFixture(business.ID)
		m.businesses.EXPECT().GetByID(gomock.Any(), business.ID).Return(business, nil)
		m.templates.EXPECT().ListByBusiness(gomock.Any(), business.ID).
			Return([]*model.FormTemplate{template}, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/businesses/"+business.ID+"/forms", nil)
		r.SetPathValue("id", business.ID)
		r = r.WithContext(sessionContext("profile-1", domainauth.RoleBusinessOwner))
		h.ListTemplates(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		var resp formTemplateListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Templates, 1)
		assert.Equal(t, "contact-us", resp.Templates[0].Slug)
	})

	t.Run("empty list stays an array", func(t *testing.T) {
		h, m, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		business := businessFixture("profile-1")
		m.businesses.EXPECT().GetByID(gomock.Any(), business.ID).Return(business, nil)
		m.templates.EXPECT().ListByBusiness(gomock.Any(), business.ID).Return(nil, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/businesses/"+business.ID+"/forms", nil)
		r.SetPathValue("id", business.ID)
		r = r.WithContext(sessionContext("profile-1", domainauth.RoleBusinessOwner))
		h.ListTemplates(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"templates":[]}`, w.Body.String())
	})

	t.Run("stranger is rejected", func(t *testing.T) {
		h, m, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		business := businessFixture("profile-1")
		m.businesses.EXPECT().GetByID(gomock.Any(), business.ID).Return(business, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/businesses/"+business.ID+"/forms", nil)
		r.SetPathValue("id", business.ID)
		r = r.WithContext(sessionContext("profile-2", domainauth.RoleBusinessOwner))
		h.ListTemplates(w, r)

		require.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestCreateFormTemplate(t *testing.T) {
	body := `{
		"name": "Contact Us",
		"title": "Get in touch",
		"notification_email": "owner@espresso.example.com",
		"fields": [{"type": "text", "label": "Your name", "required": true}]
	}`

	t.Run("owner creates", func(t *testing.T) {
		h, m, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		business := businessFixture("profile-1")
		m.businesses.EXPECT().GetByID(gomock.Any(), business.ID).Return(business, nil)
		m.templates.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *model.CreateFormTemplateRequest) (*model.FormTemplate, error) {
				assert.Equal(t, business.ID, req.BusinessID, "business comes from the path")
				assert.Equal(t, "contact-us", req.Slug, "slug should be derived from the name")
				assert.Equal(t, "Submit", req.SubmitButtonText)
				return formTemplateFixture(business.ID), nil
			})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/businesses/"+business.ID+"/forms",
			strings.NewReader(body))
		r.SetPathValue("id", business.ID)
		r = r.WithContext(sessionContext("profile-1", domainauth.RoleBusinessOwner))
		h.CreateTemplate(w, r)

		require.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("requires at least one field", func(t *testing.T) {
		h, _, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		businessID := uuid.NewString()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/businesses/"+businessID+"/forms",
			strings.NewReader(`{"name":"Contact","notification_email":"o@e.com","fields":[]}`))
		r.SetPathValue("id", businessID)
		r = r.WithContext(sessionContext("profile-1", domainauth.RoleBusinessOwner))
		h.CreateTemplate(w, r)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "at least one field is required")
	})

	t.Run("choice fields need options", func(t *testing.T) {
		h, _, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		businessID := uuid.NewString()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/businesses/"+businessID+"/forms",
			strings.NewReader(`{
				"name": "Contact",
				"notification_email": "o@e.com",
				"fields": [{"type": "radio", "label": "Topic"}]
			}`))
		r.SetPathValue("id", businessID)
		r = r.WithContext(sessionContext("profile-1", domainauth.RoleBusinessOwner))
		h.CreateTemplate(w, r)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "choice fields require at least one option")
	})
}

func TestGetFormTemplate(t *testing.T) {
	t.Run("found under its business", func(t *testing.T) {
		h, m, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		business := businessFixture("profile-1")
		template := formTemplateFixture(business.ID)
		m.templates.EXPECT().GetByID(gomock.Any(), template.ID).Return(template, nil)
		m.businesses.EXPECT().GetByID(gomock.Any(), business.ID).Return(business, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet,
			"/api/businesses/"+business.ID+"/forms/"+template.ID, nil)
		r.SetPathValue("id", business.ID)
		r.SetPathValue("templateID", template.ID)
		r = r.WithContext(sessionContext("profile-1", domainauth.RoleBusinessOwner))
		h.GetTemplate(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), template.ID)
	})

	t.Run("template under a different business reads as missing", func(t *testing.T) {
		h, m, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		// The caller owns both businesses; the route still refuses to serve a
		// template through the wrong business path.
		pathBusiness := businessFixture("profile-1")
		otherBusiness := businessFixture("profile-1")
		template := formTemplateFixture(otherBusiness.ID)
		m.templates.EXPECT().GetByID(gomock.Any(), template.ID).Return(template, nil)
		m.businesses.EXPECT().GetByID(gomock.Any(), otherBusiness.ID).Return(otherBusiness, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet,
			"/api/businesses/"+pathBusiness.ID+"/forms/"+template.ID, nil)
		r.SetPathValue("id", pathBusiness.ID)
		r.SetPathValue("templateID", template.ID)
		r = r.WithContext(sessionContext("profile-1", domainauth.RoleBusinessOwner))
		h.GetTemplate(w, r)

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "form_not_found")
	})
}

func TestUpdateFormTemplate(t *testing.T) {
	h, m, ctrl := newFormHandlersWithMocks(t)
	defer ctrl.Finish()

	business := businessFixture("profile-1")
	template := formTemplateFixture(business.ID)
	// The nested route loads the template once to pin it to the business,
	// then the service loads it again for the ownership gate.
	m.templates.EXPECT().GetByID(gomock.Any(), template.ID).Return(template, nil).Times(2)
	m.businesses.EXPECT().GetByID(gomock.Any(), business.ID).Return(business, nil).Times(2)
	m.templates.EXPECT().Update(gomock.Any(), template.ID, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, req model.UpdateFormTemplateRequest) (*model.FormTemplate, error) {
			require.NotNil(t, req.Title)
			updated := *template
			updated.Title = *req.Title
			return &updated, nil
		})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPatch,
		"/api/businesses/"+business.ID+"/forms/"+template.ID,
		strings.NewReader(`{"title":"Say hello"}`))
	r.SetPathValue("id", business.ID)
	r.SetPathValue("templateID", template.ID)
	r = r.WithContext(sessionContext("profile-1", domainauth.RoleBusinessOwner))
	h.UpdateTemplate(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Say hello")
}

func TestReplaceFormFields(t *testing.T) {
	t.Run("owner replaces", func(t *testing.T) {
		h, m, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		business := businessFixture("profile-1")
		template := formTemplateFixture(business.ID)
		m.templates.EXPECT().GetByID(gomock.Any(), template.ID).Return(template, nil).Times(2)
		m.businesses.EXPECT().GetByID(gomock.Any(), business.ID).Return(business, nil).Times(2)
		m.templates.EXPECT().ReplaceFields(gomock.Any(), template.ID, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, fields []model.CreateFormFieldRequest) (*model.FormTemplate, error) {
				require.Len(t, fields, 1)
				assert.Equal(t, model.FormFieldTypePhone, fields[0].Type)
				return template, nil
			})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPut,
			"/api/businesses/"+business.ID+"/forms/"+template.ID+"/fields",
			strings.NewReader(`{"fields":[{"type":"phone","label":"Phone number"}]}`))
		r.SetPathValue("id", business.ID)
		r.SetPathValue("templateID", template.ID)
		r = r.WithContext(sessionContext("profile-1", domainauth.RoleBusinessOwner))
		h.ReplaceFields(w, r)

		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("empty field set is rejected", func(t *testing.T) {
		h, m, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		business := businessFixture("profile-1")
		template := formTemplateFixture(business.ID)
		m.templates.EXPECT().GetByID(gomock.Any(), template.ID).Return(template, nil)
		m.businesses.EXPECT().GetByID(gomock.Any(), business.ID).Return(business, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPut,
			"/api/businesses/"+business.ID+"/forms/"+template.ID+"/fields",
			strings.NewReader(`{"fields":[]}`))
		r.SetPathValue("id", business.ID)
		r.SetPathValue("templateID", template.ID)
		r = r.WithContext(sessionContext("profile-1", domainauth.RoleBusinessOwner))
		h.ReplaceFields(w, r)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "at least one field is required")
	})
}

func TestDeleteFormTemplate(t *testing.T) {
	h, m, ctrl := newFormHandlersWithMocks(t)
	defer ctrl.Finish()

	business := businessFixture("profile-1")
	template := formTemplateFixture(business.ID)
	m.templates.EXPECT().GetByID(gomock.Any(), template.ID).Return(template, nil).Times(2)
	m.businesses.EXPECT().GetByID(gomock.Any(), business.ID).Return(business, nil).Times(2)
	m.templates.EXPECT().Delete(gomock.Any(), template.ID).Return(true, nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete,
		"/api/businesses/"+business.ID+"/forms/"+template.ID, nil)
	r.SetPathValue("id", business.ID)
	r.SetPathValue("templateID", template.ID)
	r = r.WithContext(sessionContext("profile-1", domainauth.RoleBusinessOwner))
	h.DeleteTemplate(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":true}`, w.Body.String())
}

func TestListFormSubmissions(t *testing.T) {
	h, m, ctrl := newFormHandlersWithMocks(t)
	defer ctrl.Finish()

	business := businessFixture("profile-1")
	template := formTemplateFixture(business.ID)
	m.templates.EXPECT().GetByID(gomock.Any(), template.ID).Return(template, nil).Times(2)
	m.businesses.EXPECT().GetByID(gomock.Any(), business.ID).Return(business, nil).Times(2)
	m.submissions.EXPECT().ListByTemplate(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, opts model.FormSubmissionListOptions) ([]*model.FormSubmission, error) {
			assert.Equal(t, template.ID, opts.TemplateID)
			assert.Equal(t, 10, opts.Limit)
			assert.Equal(t, 20, opts.Offset)
			return []*model.FormSubmission{{
				ID:             uuid.NewString(),
				TemplateID:     template.ID,
				SubmitterEmail: "lead@example.com",
			}}, nil
		})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet,
		"/api/businesses/"+business.ID+"/forms/"+template.ID+"/submissions?limit=10&offset=20", nil)
	r.SetPathValue("id", business.ID)
	r.SetPathValue("templateID", template.ID)
	r = r.WithContext(sessionContext("profile-1", domainauth.RoleBusinessOwner))
	h.ListSubmissions(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lead@example.com")
}

func TestPublicFormTemplate(t *testing.T) {
	t.Run("active template is served", func(t *testing.T) {
		h, m, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		template := formTemplateFixture(uuid.NewString())
		m.templates.EXPECT().GetBySlug(gomock.Any(), "contact-us").Return(template, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/forms/contact-us", nil)
		r.SetPathValue("slug", "Contact-Us")
		h.PublicTemplate(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Get in touch")
	})

	t.Run("inactive template reads as missing", func(t *testing.T) {
		h, m, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		template := formTemplateFixture(uuid.NewString())
		template.Active = false
		m.templates.EXPECT().GetBySlug(gomock.Any(), "contact-us").Return(template, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/forms/contact-us", nil)
		r.SetPathValue("slug", "contact-us")
		h.PublicTemplate(w, r)

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "form_not_found")
	})

	t.Run("unknown slug", func(t *testing.T) {
		h, m, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		m.templates.EXPECT().GetBySlug(gomock.Any(), "nope").
			Return(nil, data.ErrFormTemplateNotFound)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/forms/nope", nil)
		r.SetPathValue("slug", "nope")
		h.PublicTemplate(w, r)

		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSubmitForm(t *testing.T) {
	submitBody := func(template *model.FormTemplate) string {
		body, _ := json.Marshal(map[string]any{
			"email": " Lead@Example.COM ",
			"responses": map[string]string{
				template.Fields[0].ID: "Ada Lovelace",
				template.Fields[1].ID: "catering",
			},
		})
		return string(body)
	}

	t.Run("records the submission and queues the notification", func(t *testing.T) {
		h, m, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		template := formTemplateFixture(uuid.NewString())
		m.templates.EXPECT().GetBySlug(gomock.Any(), "contact-us").Return(template, nil)
		m.submissions.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, params core.CreateFormSubmissionParams) (*model.FormSubmission, error) {
				assert.Equal(t, template.ID, params.TemplateID)
				assert.Equal(t, "lead@example.com", params.SubmitterEmail)
				require.NotNil(t, params.SubmitterIP)
				assert.Equal(t, "203.0.113.9", *params.SubmitterIP)
				require.Len(t, params.Responses, 2)
				assert.Equal(t, "Your name", params.Responses[0].FieldLabel)
				assert.Equal(t, "Ada Lovelace", params.Responses[0].Value)
				return &model.FormSubmission{
					ID:             uuid.NewString(),
					TemplateID:     params.TemplateID,
					SubmitterEmail: params.SubmitterEmail,
					Responses:      params.Responses,
				}, nil
			})
		m.jobs.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
				assert.Equal(t, model.JobTypeEmail, req.Type)
				require.NotNil(t, req.BusinessID)
				assert.Equal(t, template.BusinessID, *req.BusinessID)

				var payload model.EmailJobPayload
				require.NoError(t, json.Unmarshal(req.Payload, &payload))
				assert.Equal(t, "form_submission", payload.Template)
				assert.Equal(t, template.NotificationEmail, payload.To)
				return &model.Job{ID: uuid.NewString()}, nil
			})

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/forms/contact-us/submissions",
			strings.NewReader(submitBody(template)))
		r.SetPathValue("slug", "contact-us")
		r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		h.Submit(w, r)

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), "lead@example.com")
	})

	t.Run("confirmation doubles the queue", func(t *testing.T) {
		h, m, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		template := formTemplateFixture(uuid.NewString())
		template.SendConfirmation = true
		template.ConfirmationMessage = "We got it."
		m.templates.EXPECT().GetBySlug(gomock.Any(), "contact-us").Return(template, nil)
		m.submissions.EXPECT().Create(gomock.Any(), gomock.Any()).Return(&model.FormSubmission{
			ID:             uuid.NewString(),
			TemplateID:     template.ID,
			SubmitterEmail: "lead@example.com",
		}, nil)
		m.jobs.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(&model.Job{ID: uuid.NewString()}, nil).Times(2)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/forms/contact-us/submissions",
			strings.NewReader(submitBody(template)))
		r.SetPathValue("slug", "contact-us")
		h.Submit(w, r)

		require.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("missing required field", func(t *testing.T) {
		h, m, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		template := formTemplateFixture(uuid.NewString())
		m.templates.EXPECT().GetBySlug(gomock.Any(), "contact-us").Return(template, nil)

		body, _ := json.Marshal(map[string]any{
			"email":     "lead@example.com",
			"responses": map[string]string{template.Fields[1].ID: "press"},
		})
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/forms/contact-us/submissions",
			strings.NewReader(string(body)))
		r.SetPathValue("slug", "contact-us")
		h.Submit(w, r)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "required field missing: Your name")
	})

	t.Run("value outside the option list", func(t *testing.T) {
		h, m, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		template := formTemplateFixture(uuid.NewString())
		m.templates.EXPECT().GetBySlug(gomock.Any(), "contact-us").Return(template, nil)

		body, _ := json.Marshal(map[string]any{
			"email": "lead@example.com",
			"responses": map[string]string{
				template.Fields[0].ID: "Ada",
				template.Fields[1].ID: "gossip",
			},
		})
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/forms/contact-us/submissions",
			strings.NewReader(string(body)))
		r.SetPathValue("slug", "contact-us")
		h.Submit(w, r)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "is not an option")
	})

	t.Run("unknown field id", func(t *testing.T) {
		h, m, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		template := formTemplateFixture(uuid.NewString())
		m.templates.EXPECT().GetBySlug(gomock.Any(), "contact-us").Return(template, nil)

		body, _ := json.Marshal(map[string]any{
			"email": "lead@example.com",
			"responses": map[string]string{
				template.Fields[0].ID: "Ada",
				uuid.NewString():      "stray",
			},
		})
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/forms/contact-us/submissions",
			strings.NewReader(string(body)))
		r.SetPathValue("slug", "contact-us")
		h.Submit(w, r)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "unknown field id")
	})

	t.Run("enqueue trouble does not fail the submission", func(t *testing.T) {
		h, m, ctrl := newFormHandlersWithMocks(t)
		defer ctrl.Finish()

		template := formTemplateFixture(uuid.NewString())
		m.templates.EXPECT().GetBySlug(gomock.Any(), "contact-us").Return(template, nil)
		m.submissions.EXPECT().Create(gomock.Any(), gomock.Any()).Return(&model.FormSubmission{
			ID:             uuid.NewString(),
			TemplateID:     template.ID,
			SubmitterEmail: "lead@example.com",
		}, nil)
		m.jobs.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(nil, errors.New("queue unavailable"))

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/forms/contact-us/submissions",
			strings.NewReader(submitBody(template)))
		r.SetPathValue("slug", "contact-us")
		h.Submit(w, r)

		require.Equal(t, http.StatusCreated, w.Code)
	})
}
