//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
)

// FormSubmission is one public submission against a form template.
type FormSubmission struct {
	ID             string          `json:"id"              db:"id"`
	TemplateID     string          `json:"template_id"     db:"template_id"`
	SubmitterEmail string          `json:"submitter_email" db:"submitter_email"`
	SubmitterIP    *string         `json:"-"               db:"submitter_ip"`
	Responses      []*FormResponse `json:"responses"       db:"-"`
	CreatedAt      time.Time       `json:"created_at"      db:"created_at"`
}

// FormResponse is one field's answer within a submission.
type FormResponse struct {
	ID           string `json:"id"            db:"id"`
	SubmissionID string `json:"submission_id" db:"submission_id"`
	FieldID      string `json:"field_id"      db:"field_id"`
	FieldLabel   string `json:"field_label"   db:"field_label"`
	Value        string `json:"value"         db:"value"`
}

// SubmitFormRequest carries a public form submission keyed by field id.
type SubmitFormRequest struct {
	Email     string            `json:"email"`
	Responses map[string]string `json:"responses"` // field id -> value
}

// Validate performs shape-level validation; field-level validation happens
// against the template's field set in the service.
func (r *SubmitFormRequest) Validate() error {
	email := strings.ToLower(strings.TrimSpace(r.Email))
	if email == "" || !strings.Contains(email, "@") {
		return errors.New("a valid email is required")
	}
	r.Email = email
	if len(r.Responses) == 0 {
		return errors.New("at least one response is required")
	}
	return nil
}

// ValidateAgainst checks the submission against a template's field set:
// required fields present, phone shapes, and option membership.
func (r *SubmitFormRequest) ValidateAgainst(template *FormTemplate) error {
	for _, field := range template.Fields {
		value, present := r.Responses[field.ID]
		value = strings.TrimSpace(value)
		if field.Required && (!present || value == "") {
			return errors.New("required field missing: " + field.Label)
		}
		if !present || value == "" {
			continue
		}
		switch field.Type {
		case FormFieldTypePhone:
			if !phonePattern.MatchString(value) {
				return errors.New("invalid phone number for field: " + field.Label)
			}
		case FormFieldTypeDropdown, FormFieldTypeRadio:
			if !field.HasOption(value) {
				return errors.New("value is not an option for field: " + field.Label)
			}
		}
	}
	// Reject responses referencing fields the template does not define.
	for fieldID := range r.Responses {
		if template.FieldByID(fieldID) == nil {
			return errors.New("unknown field id: " + fieldID)
		}
	}
	return nil
}

// FormSubmissionListOptions controls paging for a template's submissions.
type FormSubmissionListOptions struct {
	TemplateID string
	Limit      int
	Offset     int
}
