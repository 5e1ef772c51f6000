package auth

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input string
		want  Role
		ok    bool
	}{
		{"attendee", RoleAttendee, true},
		{"business_owner", RoleBusinessOwner, true},
		{"admin", RoleAdmin, true},
		{"  Business_Owner  ", RoleBusinessOwner, true},
		{"ATTENDEE", RoleAttendee, true},
		{"", "", false},
		{"owner", "", false},
		{"superuser", "", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			got, ok := ParseRole(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseRole(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if got != tt.want {
				t.Fatalf("ParseRole(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRole_Assignable(t *testing.T) {
	if !RoleAttendee.Assignable() {
		t.Error("attendee should be assignable")
	}
	if !RoleBusinessOwner.Assignable() {
		t.Error("business_owner should be assignable")
	}
	if RoleAdmin.Assignable() {
		t.Error("admin must not be self-assignable")
	}
	if Role("nope").Assignable() {
		t.Error("unknown role must not be assignable")
	}
}

func TestSession_AuthenticatedStates(t *testing.T) {
	base := Session{
		ID:        "sess-1",
		Subject:   "sub-123",
		Email:     "user@example.com",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}

	if base.IsAuthenticated() {
		t.Error("session without profile snapshot must not report authenticated")
	}
	if !base.IsDegraded() {
		t.Error("session with subject but no snapshot should report degraded")
	}
	if base.Role() != "" {
		t.Errorf("unauthenticated session role should be empty, got %q", base.Role())
	}

	withProfile := base.WithProfile(ProfileSnapshot{
		ID:    "prof-1",
		Email: "user@example.com",
		Role:  RoleBusinessOwner,
	})

	if !withProfile.IsAuthenticated() {
		t.Error("session with snapshot should report authenticated")
	}
	if withProfile.IsDegraded() {
		t.Error("authenticated session should not report degraded")
	}
	if withProfile.Role() != RoleBusinessOwner {
		t.Errorf("expected role business_owner, got %q", withProfile.Role())
	}

	// WithProfile must not mutate the receiver.
	if base.Profile != nil {
		t.Error("WithProfile mutated the original session")
	}

	cleared := withProfile.WithoutProfile()
	if cleared.IsAuthenticated() {
		t.Error("cleared session must not report authenticated")
	}
	if withProfile.Profile == nil {
		t.Error("WithoutProfile mutated the original session")
	}
}

func TestFlowError_KindsAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name  string
		err   *FlowError
		kind  FlowErrorKind
		check func(error) bool
	}{
		{"provider", ProviderError("provider rejected sign-in", cause), FlowKindProvider, IsProviderError},
		{"timeout", TimeoutError("tokens never materialized", nil), FlowKindTimeout, IsTimeoutError},
		{"profile sync", ProfileSyncError("profile sync failed", cause), FlowKindProfileSync, IsProfileSyncError},
		{"role patch", RolePatchError("role patch failed", cause), FlowKindRolePatch, IsRolePatchError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("kind check failed for %v", tt.err)
			}
			if FlowKind(tt.err) != tt.kind {
				t.Errorf("FlowKind = %q, want %q", FlowKind(tt.err), tt.kind)
			}
			// Wrapped errors keep their kind.
			wrapped := fmt.Errorf("resume: %w", tt.err)
			if !tt.check(wrapped) {
				t.Errorf("kind check failed for wrapped error %v", wrapped)
			}
			if tt.err.Cause != nil && !errors.Is(tt.err, cause) {
				t.Error("expected errors.Is to find the cause")
			}
		})
	}

	if IsProviderError(errors.New("plain")) {
		t.Error("plain error must not match a flow kind")
	}
	if FlowKind(errors.New("plain")) != "" {
		t.Error("plain error must yield empty kind")
	}
}

func TestFlowError_Message(t *testing.T) {
	e := ProviderError("bad credentials", nil)
	if e.Error() != "bad credentials" {
		t.Errorf("unexpected message: %q", e.Error())
	}

	withCause := TimeoutError("token polling budget exhausted", errors.New("still pending"))
	if withCause.Error() != "token polling budget exhausted: still pending" {
		t.Errorf("unexpected message: %q", withCause.Error())
	}
}
