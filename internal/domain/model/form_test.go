//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFormTemplateRequest_Validate(t *testing.T) {
	valid := func() CreateFormTemplateRequest {
		return CreateFormTemplateRequest{
			BusinessID:        "biz-1",
			Name:              "Catering Inquiries",
			Title:             "Book us for your event",
			NotificationEmail: "owner@nmtacos.com",
			Fields: []CreateFormFieldRequest{
				{Type: FormFieldTypeText, Label: "Your name", Required: true},
				{Type: FormFieldTypePhone, Label: "Phone"},
				{Type: FormFieldTypeDropdown, Label: "Party size", Options: []string{"1-10", "11-50", "50+"}},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*CreateFormTemplateRequest)
		wantErr string
	}{
		{
			name:    "valid request",
			mutate:  func(*CreateFormTemplateRequest) {},
			wantErr: "",
		},
		{
			name:    "missing business id",
			mutate:  func(r *CreateFormTemplateRequest) { r.BusinessID = "" },
			wantErr: "business_id is required",
		},
		{
			name:    "empty name",
			mutate:  func(r *CreateFormTemplateRequest) { r.Name = "  " },
			wantErr: "name is required and cannot be empty",
		},
		{
			name:    "missing notification email",
			mutate:  func(r *CreateFormTemplateRequest) { r.NotificationEmail = "" },
			wantErr: "notification_email is required",
		},
		{
			name:    "no fields",
			mutate:  func(r *CreateFormTemplateRequest) { r.Fields = nil },
			wantErr: "at least one field is required",
		},
		{
			name: "unknown field type",
			mutate: func(r *CreateFormTemplateRequest) {
				r.Fields[0].Type = FormFieldType("checkbox")
			},
			wantErr: "field type must be one of: text, dropdown, phone, radio",
		},
		{
			name: "field without label",
			mutate: func(r *CreateFormTemplateRequest) {
				r.Fields[1].Label = ""
			},
			wantErr: "field label is required",
		},
		{
			name: "dropdown without options",
			mutate: func(r *CreateFormTemplateRequest) {
				r.Fields[2].Options = nil
			},
			wantErr: "choice fields require at least one option",
		},
		{
			name: "options on a text field",
			mutate: func(r *CreateFormTemplateRequest) {
				r.Fields[0].Options = []string{"a", "b"}
			},
			wantErr: "options are only valid for dropdown and radio fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestCreateFormTemplateRequest_Validate_DefaultsSubmitButton(t *testing.T) {
	req := CreateFormTemplateRequest{
		BusinessID:        "biz-1",
		Name:              "Contact",
		NotificationEmail: "owner@nmtacos.com",
		Fields:            []CreateFormFieldRequest{{Type: FormFieldTypeText, Label: "Message"}},
	}
	require.NoError(t, req.Validate())
	assert.Equal(t, "Submit", req.SubmitButtonText)
}

func TestSubmitFormRequest_Validate(t *testing.T) {
	req := SubmitFormRequest{Email: "  Visitor@Example.COM ", Responses: map[string]string{"f1": "hi"}}
	require.NoError(t, req.Validate())
	assert.Equal(t, "visitor@example.com", req.Email)

	bad := SubmitFormRequest{Email: "nope", Responses: map[string]string{"f1": "hi"}}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a valid email is required")

	empty := SubmitFormRequest{Email: "visitor@example.com"}
	err = empty.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one response is required")
}

func TestSubmitFormRequest_ValidateAgainst(t *testing.T) {
	template := &FormTemplate{
		ID: "tpl-1",
		Fields: []*FormField{
			{ID: "f-name", Type: FormFieldTypeText, Label: "Your name", Required: true},
			{ID: "f-phone", Type: FormFieldTypePhone, Label: "Phone"},
			{
				ID: "f-size", Type: FormFieldTypeDropdown, Label: "Party size",
				Options: []*FormFieldOption{
					{ID: "o1", Value: "1-10", Label: "1-10"},
					{ID: "o2", Value: "11-50", Label: "11-50"},
				},
			},
		},
	}

	tests := []struct {
		name      string
		responses map[string]string
		wantErr   string
	}{
		{
			name:      "valid full submission",
			responses: map[string]string{"f-name": "Sam", "f-phone": "+15551234567", "f-size": "1-10"},
			wantErr:   "",
		},
		{
			name:      "optional fields omitted",
			responses: map[string]string{"f-name": "Sam"},
			wantErr:   "",
		},
		{
			name:      "required field missing",
			responses: map[string]string{"f-phone": "+15551234567"},
			wantErr:   "required field missing: Your name",
		},
		{
			name:      "required field blank",
			responses: map[string]string{"f-name": "   "},
			wantErr:   "required field missing: Your name",
		},
		{
			name:      "bad phone shape",
			responses: map[string]string{"f-name": "Sam", "f-phone": "call me"},
			wantErr:   "invalid phone number for field: Phone",
		},
		{
			name:      "value outside options",
			responses: map[string]string{"f-name": "Sam", "f-size": "500"},
			wantErr:   "value is not an option for field: Party size",
		},
		{
			name:      "unknown field id",
			responses: map[string]string{"f-name": "Sam", "f-bogus": "x"},
			wantErr:   "unknown field id: f-bogus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := SubmitFormRequest{Email: "visitor@example.com", Responses: tt.responses}
			err := req.ValidateAgainst(template)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
