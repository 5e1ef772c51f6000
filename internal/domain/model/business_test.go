//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBusinessRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateBusinessRequest
		wantErr string
	}{
		{
			name: "valid request",
			req: CreateBusinessRequest{
				OwnerID:      "prof-1",
				Name:         "Night Market Tacos",
				ContactEmail: "hello@nmtacos.com",
			},
			wantErr: "",
		},
		{
			name: "valid request with phone",
			req: CreateBusinessRequest{
				OwnerID:      "prof-1",
				Name:         "Night Market Tacos",
				ContactEmail: "hello@nmtacos.com",
				Phone:        stringPtr("+15551234567"),
			},
			wantErr: "",
		},
		{
			name: "missing owner",
			req: CreateBusinessRequest{
				Name:         "Night Market Tacos",
				ContactEmail: "hello@nmtacos.com",
			},
			wantErr: "owner_id is required",
		},
		{
			name: "empty name",
			req: CreateBusinessRequest{
				OwnerID:      "prof-1",
				Name:         "   ",
				ContactEmail: "hello@nmtacos.com",
			},
			wantErr: "name is required and cannot be empty",
		},
		{
			name: "name too long",
			req: CreateBusinessRequest{
				OwnerID:      "prof-1",
				Name:         strings.Repeat("a", 256),
				ContactEmail: "hello@nmtacos.com",
			},
			wantErr: "name cannot exceed 255 characters",
		},
		{
			name: "missing contact email",
			req: CreateBusinessRequest{
				OwnerID: "prof-1",
				Name:    "Night Market Tacos",
			},
			wantErr: "contact_email is required",
		},
		{
			name: "phone with letters",
			req: CreateBusinessRequest{
				OwnerID:      "prof-1",
				Name:         "Night Market Tacos",
				ContactEmail: "hello@nmtacos.com",
				Phone:        stringPtr("555-HELLO"),
			},
			wantErr: "phone must match",
		},
		{
			name: "phone too short",
			req: CreateBusinessRequest{
				OwnerID:      "prof-1",
				Name:         "Night Market Tacos",
				ContactEmail: "hello@nmtacos.com",
				Phone:        stringPtr("12345"),
			},
			wantErr: "phone must match",
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

func TestUpdateBusinessRequest_HasUpdates(t *testing.T) {
	assert.False(t, (&UpdateBusinessRequest{}).HasUpdates())
	assert.True(t, (&UpdateBusinessRequest{Website: stringPtr("https://nmtacos.com")}).HasUpdates())
}

func TestValidateSubdomain(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr string
	}{
		{name: "valid label", value: "night-market-tacos", wantErr: ""},
		{name: "single character", value: "x", wantErr: ""},
		{name: "empty", value: "", wantErr: "subdomain cannot be empty"},
		{name: "too long", value: strings.Repeat("a", 64), wantErr: "subdomain cannot exceed 63 characters"},
		{name: "leading hyphen", value: "-tacos", wantErr: "subdomain may contain"},
		{name: "trailing hyphen", value: "tacos-", wantErr: "subdomain may contain"},
		{name: "uppercase rejected", value: "Tacos", wantErr: "subdomain may contain"},
		{name: "reserved www", value: "www", wantErr: "subdomain is reserved"},
		{name: "reserved api", value: "api", wantErr: "subdomain is reserved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSubdomain(tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNormalizeSubdomain(t *testing.T) {
	assert.Equal(t, "tacos", NormalizeSubdomain("  TACOS "))
}
