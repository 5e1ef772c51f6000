//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRSVPStatus(t *testing.T) {
	status, ok := ParseRSVPStatus(" Going ")
	assert.True(t, ok)
	assert.Equal(t, RSVPStatusGoing, status)

	_, ok = ParseRSVPStatus("maybe")
	assert.False(t, ok)
}

func TestUpsertRSVPRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     UpsertRSVPRequest
		wantErr string
	}{
		{
			name: "valid profile rsvp",
			req: UpsertRSVPRequest{
				EventID:   "event-1",
				ProfileID: stringPtr("prof-1"),
				Status:    RSVPStatusGoing,
			},
			wantErr: "",
		},
		{
			name: "valid guest rsvp",
			req: UpsertRSVPRequest{
				EventID:    "event-1",
				GuestEmail: stringPtr("guest@example.com"),
				Status:     RSVPStatusInterested,
			},
			wantErr: "",
		},
		{
			name: "missing event id",
			req: UpsertRSVPRequest{
				ProfileID: stringPtr("prof-1"),
				Status:    RSVPStatusGoing,
			},
			wantErr: "event_id is required",
		},
		{
			name: "invalid status",
			req: UpsertRSVPRequest{
				EventID:   "event-1",
				ProfileID: stringPtr("prof-1"),
				Status:    RSVPStatus("maybe"),
			},
			wantErr: "status must be one of: interested, going",
		},
		{
			name: "neither profile nor guest",
			req: UpsertRSVPRequest{
				EventID: "event-1",
				Status:  RSVPStatusGoing,
			},
			wantErr: "exactly one of a signed-in profile or guest_email is required",
		},
		{
			name: "both profile and guest",
			req: UpsertRSVPRequest{
				EventID:    "event-1",
				ProfileID:  stringPtr("prof-1"),
				GuestEmail: stringPtr("guest@example.com"),
				Status:     RSVPStatusGoing,
			},
			wantErr: "exactly one of a signed-in profile or guest_email is required",
		},
		{
			name: "guest email without at sign",
			req: UpsertRSVPRequest{
				EventID:    "event-1",
				GuestEmail: stringPtr("not-an-email"),
				Status:     RSVPStatusGoing,
			},
			wantErr: "guest_email must be a valid email address",
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

func TestUpsertRSVPRequest_Validate_NormalizesGuestEmail(t *testing.T) {
	req := UpsertRSVPRequest{
		EventID:    "event-1",
		GuestEmail: stringPtr("  Guest@Example.COM "),
		Status:     RSVPStatus(" GOING "),
	}
	require.NoError(t, req.Validate())
	assert.Equal(t, "guest@example.com", *req.GuestEmail)
	assert.Equal(t, RSVPStatusGoing, req.Status)
}

func TestRSVP_IsGuest(t *testing.T) {
	guest := RSVP{GuestEmail: stringPtr("guest@example.com")}
	assert.True(t, guest.IsGuest())
	assert.Equal(t, "guest@example.com", guest.ContactEmail())

	member := RSVP{ProfileID: stringPtr("prof-1")}
	assert.False(t, member.IsGuest())
	assert.Equal(t, "", member.ContactEmail())
}
