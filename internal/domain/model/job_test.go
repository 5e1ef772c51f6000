//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobType_Valid(t *testing.T) {
	assert.True(t, JobTypeEmail.Valid())
	assert.True(t, JobTypeReminders.Valid())
	assert.True(t, JobTypeRollup.Valid())
	assert.False(t, JobType("unknown").Valid())
}

func TestJobType_UnmarshalText(t *testing.T) {
	var jt JobType
	err := jt.UnmarshalText([]byte(" Email "))
	require.NoError(t, err)
	assert.Equal(t, JobTypeEmail, jt)

	err = jt.UnmarshalText([]byte("bogus"))
	assert.Error(t, err)
}

func TestCreateJobRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateJobRequest
		wantErr string
	}{
		{
			name: "valid email job",
			req: CreateJobRequest{
				Type:    JobTypeEmail,
				Payload: json.RawMessage(`{"template":"rsvp_confirmation","to":"guest@example.com"}`),
			},
			wantErr: "",
		},
		{
			name: "valid rollup job with empty payload",
			req: CreateJobRequest{
				Type:    JobTypeRollup,
				Payload: json.RawMessage(`{}`),
			},
			wantErr: "",
		},
		{
			name: "invalid type",
			req: CreateJobRequest{
				Type:    JobType("puppet"),
				Payload: json.RawMessage(`{}`),
			},
			wantErr: "invalid job type",
		},
		{
			name: "malformed payload",
			req: CreateJobRequest{
				Type:    JobTypeEmail,
				Payload: json.RawMessage(`{"to":`),
			},
			wantErr: "payload must be valid JSON",
		},
		{
			name: "negative priority",
			req: CreateJobRequest{
				Type:     JobTypeEmail,
				Payload:  json.RawMessage(`{}`),
				Priority: -1,
			},
			wantErr: "priority must be between 0 and 100",
		},
		{
			name: "negative max retries",
			req: CreateJobRequest{
				Type:       JobTypeEmail,
				Payload:    json.RawMessage(`{}`),
				MaxRetries: -2,
			},
			wantErr: "max retries must be >= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEmailJobPayload_Validate(t *testing.T) {
	tests := []struct {
		name    string
		payload EmailJobPayload
		wantErr string
	}{
		{
			name: "valid payload",
			payload: EmailJobPayload{
				Template: "event_reminder",
				To:       "guest@example.com",
				Subject:  "Your event starts soon",
			},
			wantErr: "",
		},
		{
			name: "missing template",
			payload: EmailJobPayload{
				To:      "guest@example.com",
				Subject: "Hi",
			},
			wantErr: "template is required",
		},
		{
			name: "missing recipient",
			payload: EmailJobPayload{
				Template: "event_reminder",
				Subject:  "Hi",
			},
			wantErr: "recipient is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
