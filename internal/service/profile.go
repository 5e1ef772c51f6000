package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data"
	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/ports"
)

// ProfileServiceOptions groups dependencies for ProfileService.
type ProfileServiceOptions struct {
	Profiles core.ProfileRepository
	RSVPs    core.RSVPRepository // optional: guest RSVP adoption on first sign-in
	Roles    ports.RoleMapper    // optional: group-aware role resolution
	Logger   *slog.Logger
}

// ProfileService owns backend profiles: provisioning on first sign-in,
// identity drift reconciliation, and self-service updates.
type ProfileService struct {
	profiles core.ProfileRepository
	rsvps    core.RSVPRepository
	roles    ports.RoleMapper
	logger   *slog.Logger
}

// NewProfileService constructs a new ProfileService.
func NewProfileService(opts ProfileServiceOptions) *ProfileService {
	return &ProfileService{
		profiles: opts.Profiles,
		rsvps:    opts.RSVPs,
		roles:    opts.Roles,
		logger:   opts.Logger,
	}
}

// Sync returns the profile backing an identity, creating it on first sign-in
// and folding identity drift (email, provider, claim role) into the stored
// row. The returned profile reflects the row after reconciliation.
func (s *ProfileService) Sync(ctx context.Context, identity domainauth.Identity) (*model.Profile, error) {
	if identity.Subject == "" {
		return nil, errors.New("identity subject is required")
	}

	profile, err := s.profiles.GetBySubject(ctx, identity.Subject)
	if errors.Is(err, data.ErrProfileNotFound) {
		return s.provision(ctx, identity)
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return s.reconcile(ctx, profile, identity)
}

// provision creates the profile row on a subject's first sign-in. The role
// comes from the role mapper when one is configured, otherwise from the
// token's role claim; new users without either start as attendees.
func (s *ProfileService) provision(ctx context.Context, identity domainauth.Identity) (*model.Profile, error) {
	role := s.initialRole(identity)
	username := identity.Email
	if username == "" {
		username = identity.Subject
	}

	profile, err := s.profiles.Create(ctx, &model.CreateProfileRequest{
		Subject:          identity.Subject,
		Email:            identity.Email,
		Username:         username,
		FirstName:        identity.GivenName,
		LastName:         identity.FamilyName,
		Role:             role,
		IdentityProvider: identity.Provider,
	})
	if errors.Is(err, data.ErrProfileExists) {
		// Concurrent first sign-in: another request created the row between
		// our lookup and insert.
		existing, getErr := s.profiles.GetBySubject(ctx, identity.Subject)
		if getErr != nil {
			return nil, fmt.Errorf("load profile after create race: %w", getErr)
		}
		return s.reconcile(ctx, existing, identity)
	}
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("profile provisioned",
			"profile_id", profile.ID, "role", profile.Role, "provider", profile.IdentityProvider)
	}
	s.adoptGuestRSVPs(ctx, profile)
	return profile, nil
}

// reconcile folds identity drift into the stored profile. Email and provider
// follow the identity; the claim role is honored only until the user has
// completed their profile, after which the stored role is authoritative.
func (s *ProfileService) reconcile(
	ctx context.Context,
	profile *model.Profile,
	identity domainauth.Identity,
) (*model.Profile, error) {
	var params model.SyncIdentityParams

	if email := strings.ToLower(strings.TrimSpace(identity.Email)); email != "" && email != profile.Email {
		params.Email = &email
	}
	if identity.Provider != profile.IdentityProvider {
		provider := identity.Provider
		params.IdentityProvider = &provider
	}
	params.Role = s.roleDrift(profile, identity)

	if !params.HasUpdates() {
		return profile, nil
	}

	updated, err := s.profiles.SyncIdentity(ctx, profile.ID, params)
	if err != nil {
		return nil, fmt.Errorf("sync profile identity: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("profile identity drift synced", "profile_id", profile.ID,
			"email", params.Email != nil,
			"provider", params.IdentityProvider != nil,
			"role", params.Role != nil)
	}
	return updated, nil
}

// initialRole resolves the role a brand-new profile starts with.
func (s *ProfileService) initialRole(identity domainauth.Identity) domainauth.Role {
	if s.roles != nil {
		return s.roles.Map(identity)
	}
	if identity.RoleClaim.Valid() {
		return identity.RoleClaim
	}
	return domainauth.RoleAttendee
}

// roleDrift decides whether the stored role should follow the identity.
// Group-derived admin membership always wins. The self-selected claim role
// applies only until the user has completed their profile, after which the
// stored role is authoritative.
func (s *ProfileService) roleDrift(profile *model.Profile, identity domainauth.Identity) *domainauth.Role {
	if s.roles != nil && profile.Role != domainauth.RoleAdmin {
		if mapped := s.roles.Map(identity); mapped == domainauth.RoleAdmin {
			return &mapped
		}
	}
	if !profile.ProfileComplete && identity.RoleClaim.Valid() && identity.RoleClaim != profile.Role {
		role := identity.RoleClaim
		return &role
	}
	return nil
}

// adoptGuestRSVPs attaches RSVPs made as a guest under the same email to a
// freshly created profile. Failures are logged and never fail sign-in.
func (s *ProfileService) adoptGuestRSVPs(ctx context.Context, profile *model.Profile) {
	if s.rsvps == nil || profile.Email == "" {
		return
	}
	merged, err := s.rsvps.MergeGuestRSVPs(ctx, profile.Email, profile.ID)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("guest rsvp adoption failed", "profile_id", profile.ID, "error", err)
		}
		return
	}
	if merged > 0 && s.logger != nil {
		s.logger.Info("guest rsvps adopted", "profile_id", profile.ID, "count", merged)
	}
}

// UpdateRole applies a deferred role selection to a profile. Role changes
// mark the profile complete.
func (s *ProfileService) UpdateRole(
	ctx context.Context,
	profileID string,
	role domainauth.Role,
) (*model.Profile, error) {
	if !role.Assignable() {
		return nil, fmt.Errorf("role %q cannot be self-assigned", role)
	}
	profile, err := s.profiles.Update(ctx, profileID, model.UpdateProfileRequest{Role: &role})
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	return profile, nil
}

// GetByID retrieves a profile by ID.
func (s *ProfileService) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	return s.profiles.GetByID(ctx, id)
}

// Update applies a self-service profile update.
func (s *ProfileService) Update(
	ctx context.Context,
	id string,
	req model.UpdateProfileRequest,
) (*model.Profile, error) {
	return s.profiles.Update(ctx, id, req)
}

// List returns profiles for the admin listing.
func (s *ProfileService) List(ctx context.Context, opts model.ProfileListOptions) ([]*model.Profile, error) {
	return s.profiles.List(ctx, opts)
}

// Delete removes a profile.
func (s *ProfileService) Delete(ctx context.Context, id string) (bool, error) {
	return s.profiles.Delete(ctx, id)
}
