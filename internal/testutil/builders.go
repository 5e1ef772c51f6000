// Package testutil provides database, Redis, and fixture helpers shared
// by the test suites.
package testutil

import (
	"encoding/json"

	"github.com/popmap/popmap-api/internal/domain/model"
)

// JobRequestBuilder builds CreateJobRequest values for tests. The zero
// builder is not usable; start with NewJobRequest.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest returns a builder preloaded with a valid email job.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			Type:       model.JobTypeEmail,
			Priority:   50,
			Payload:    json.RawMessage(`{"template": "form_submission", "to": "owner@example.com"}`),
			MaxRetries: 3,
		},
	}
}

// WithType sets the job type.
func (b *JobRequestBuilder) WithType(jobType model.JobType) *JobRequestBuilder {
	b.req.Type = jobType
	return b
}

// WithPriority sets the job priority.
func (b *JobRequestBuilder) WithPriority(priority int) *JobRequestBuilder {
	b.req.Priority = priority
	return b
}

// WithPayload sets the job payload.
func (b *JobRequestBuilder) WithPayload(payload json.RawMessage) *JobRequestBuilder {
	b.req.Payload = payload
	return b
}

// WithPayloadString sets the job payload from a string.
func (b *JobRequestBuilder) WithPayloadString(payload string) *JobRequestBuilder {
	b.req.Payload = json.RawMessage(payload)
	return b
}

// WithMetadata sets the job metadata.
func (b *JobRequestBuilder) WithMetadata(metadata json.RawMessage) *JobRequestBuilder {
	b.req.Metadata = metadata
	return b
}

// WithEventID links the job to an event.
func (b *JobRequestBuilder) WithEventID(eventID string) *JobRequestBuilder {
	b.req.EventID = &eventID
	return b
}

// WithBusinessID links the job to a business.
func (b *JobRequestBuilder) WithBusinessID(businessID string) *JobRequestBuilder {
	b.req.BusinessID = &businessID
	return b
}

// WithMaxRetries sets the retry budget.
func (b *JobRequestBuilder) WithMaxRetries(maxRetries int) *JobRequestBuilder {
	b.req.MaxRetries = maxRetries
	return b
}

// Build returns the constructed request.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// EmailJobRequest returns a ready-to-create email delivery job.
func EmailJobRequest() *model.CreateJobRequest {
	return NewJobRequest().
		WithPayloadString(`{"template": "event_reminder", "to": "ana@example.com", "subject": "Reminder"}`).
		Build()
}
