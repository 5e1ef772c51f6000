//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const maxFormLabelLen = 255

// FormFieldType enumerates supported form field kinds.
type FormFieldType string

const (
	FormFieldTypeText     FormFieldType = "text"
	FormFieldTypeDropdown FormFieldType = "dropdown"
	FormFieldTypePhone    FormFieldType = "phone"
	FormFieldTypeRadio    FormFieldType = "radio"
)

// Valid reports whether the field type is supported.
func (t FormFieldType) Valid() bool {
	switch t {
	case FormFieldTypeText, FormFieldTypeDropdown, FormFieldTypePhone, FormFieldTypeRadio:
		return true
	default:
		return false
	}
}

// ChoiceBased reports whether the field type carries an option list.
func (t FormFieldType) ChoiceBased() bool {
	return t == FormFieldTypeDropdown || t == FormFieldTypeRadio
}

// FormTemplate is a business-owned contact/lead form definition.
type FormTemplate struct {
	ID                  string       `json:"id"                   db:"id"`
	BusinessID          string       `json:"business_id"          db:"business_id"`
	Name                string       `json:"name"                 db:"name"`
	Slug                string       `json:"slug"                 db:"slug"`
	Title               string       `json:"title"                db:"title"`
	Description         string       `json:"description"          db:"description"`
	NotificationEmail   string       `json:"notification_email"   db:"notification_email"`
	SendConfirmation    bool         `json:"send_confirmation"    db:"send_confirmation"`
	ConfirmationMessage string       `json:"confirmation_message" db:"confirmation_message"`
	SubmitButtonText    string       `json:"submit_button_text"   db:"submit_button_text"`
	Active              bool         `json:"active"               db:"active"`
	Fields              []*FormField `json:"fields"               db:"-"`
	CreatedAt           time.Time    `json:"created_at"           db:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"           db:"updated_at"`
}

// FieldByID returns the template field with the given id, or nil.
func (t *FormTemplate) FieldByID(id string) *FormField {
	for _, f := range t.Fields {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// FormField is one ordered input in a form template.
type FormField struct {
	ID          string             `json:"id"                    db:"id"`
	TemplateID  string             `json:"template_id"           db:"template_id"`
	Type        FormFieldType      `json:"type"                  db:"type"`
	Label       string             `json:"label"                 db:"label"`
	Placeholder string             `json:"placeholder,omitempty" db:"placeholder"`
	HelpText    string             `json:"help_text,omitempty"   db:"help_text"`
	Required    bool               `json:"required"              db:"required"`
	SortOrder   int                `json:"sort_order"            db:"sort_order"`
	Options     []*FormFieldOption `json:"options,omitempty"     db:"-"`
}

// HasOption reports whether value is one of the field's configured options.
func (f *FormField) HasOption(value string) bool {
	for _, o := range f.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// FormFieldOption is one selectable choice for dropdown/radio fields.
type FormFieldOption struct {
	ID        string `json:"id"         db:"id"`
	FieldID   string `json:"field_id"   db:"field_id"`
	Label     string `json:"label"      db:"label"`
	Value     string `json:"value"      db:"value"`
	SortOrder int    `json:"sort_order" db:"sort_order"`
}

// CreateFormTemplateRequest represents parameters to create a FormTemplate
// with its fields in one call.
type CreateFormTemplateRequest struct {
	BusinessID          string                   `json:"-"`
	Name                string                   `json:"name"`
	Slug                string                   `json:"slug,omitempty"`
	Title               string                   `json:"title"`
	Description         string                   `json:"description,omitempty"`
	NotificationEmail   string                   `json:"notification_email"`
	SendConfirmation    bool                     `json:"send_confirmation,omitempty"`
	ConfirmationMessage string                   `json:"confirmation_message,omitempty"`
	SubmitButtonText    string                   `json:"submit_button_text,omitempty"`
	Fields              []CreateFormFieldRequest `json:"fields"`
}

// CreateFormFieldRequest describes one field within a template create/replace.
type CreateFormFieldRequest struct {
	Type        FormFieldType `json:"type"`
	Label       string        `json:"label"`
	Placeholder string        `json:"placeholder,omitempty"`
	HelpText    string        `json:"help_text,omitempty"`
	Required    bool          `json:"required,omitempty"`
	Options     []string      `json:"options,omitempty"` // labels double as values
}

// Validate validates CreateFormTemplateRequest.
func (r *CreateFormTemplateRequest) Validate() error {
	if strings.TrimSpace(r.BusinessID) == "" {
		return errors.New("business_id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required and cannot be empty")
	}
	if r.Slug == "" {
		r.Slug = Slugify(r.Name)
	}
	if !slugPattern.MatchString(r.Slug) {
		return errors.New("slug may contain lowercase letters, digits, and hyphens")
	}
	if strings.TrimSpace(r.NotificationEmail) == "" {
		return errors.New("notification_email is required")
	}
	if len(r.Fields) == 0 {
		return errors.New("at least one field is required")
	}
	if r.SubmitButtonText == "" {
		r.SubmitButtonText = "Submit"
	}
	for i := range r.Fields {
		if err := r.Fields[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates CreateFormFieldRequest.
func (r *CreateFormFieldRequest) Validate() error {
	if !r.Type.Valid() {
		return errors.New("field type must be one of: text, dropdown, phone, radio")
	}
	label := strings.TrimSpace(r.Label)
	if label == "" {
		return errors.New("field label is required")
	}
	if utf8.RuneCountInString(label) > maxFormLabelLen {
		return errors.New("field label cannot exceed 255 characters")
	}
	if r.Type.ChoiceBased() && len(r.Options) == 0 {
		return errors.New("choice fields require at least one option")
	}
	if !r.Type.ChoiceBased() && len(r.Options) > 0 {
		return errors.New("options are only valid for dropdown and radio fields")
	}
	return nil
}

// UpdateFormTemplateRequest represents parameters to update template metadata.
// Field changes replace the whole field set via CreateFormTemplateRequest.Fields.
type UpdateFormTemplateRequest struct {
	Name                *string `json:"name,omitempty"`
	Title               *string `json:"title,omitempty"`
	Description         *string `json:"description,omitempty"`
	NotificationEmail   *string `json:"notification_email,omitempty"`
	SendConfirmation    *bool   `json:"send_confirmation,omitempty"`
	ConfirmationMessage *string `json:"confirmation_message,omitempty"`
	SubmitButtonText    *string `json:"submit_button_text,omitempty"`
	Active              *bool   `json:"active,omitempty"`
}

// HasUpdates reports whether any field is set in UpdateFormTemplateRequest.
func (r *UpdateFormTemplateRequest) HasUpdates() bool {
	return r.Name != nil || r.Title != nil || r.Description != nil ||
		r.NotificationEmail != nil || r.SendConfirmation != nil ||
		r.ConfirmationMessage != nil || r.SubmitButtonText != nil || r.Active != nil
}

// Validate validates UpdateFormTemplateRequest.
func (r *UpdateFormTemplateRequest) Validate() error {
	if !r.HasUpdates() {
		return errors.New("at least one field must be updated")
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return errors.New("name cannot be empty")
	}
	if r.NotificationEmail != nil && strings.TrimSpace(*r.NotificationEmail) == "" {
		return errors.New("notification_email cannot be empty")
	}
	return nil
}
