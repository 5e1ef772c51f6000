package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// ErrSubdomainNotEntitled is returned when the business owner's plan does not
// include the custom subdomain feature.
var ErrSubdomainNotEntitled = errors.New("plan does not include custom subdomains")

// BusinessServiceOptions groups dependencies for BusinessService.
type BusinessServiceOptions struct {
	Businesses core.BusinessRepository // Required: business storage
	Billing    *BillingService         // Optional: entitlement checks are skipped when nil
	Logger     *slog.Logger
}

// BusinessService orchestrates business CRUD with ownership gates and
// entitlement checks for premium features.
type BusinessService struct {
	businesses core.BusinessRepository
	billing    *BillingService
	logger     *slog.Logger
}

// NewBusinessService constructs a new BusinessService.
func NewBusinessService(opts BusinessServiceOptions) (*BusinessService, error) {
	if opts.Businesses == nil {
		return nil, errors.New("BusinessRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "business_service")
	}

	return &BusinessService{
		businesses: opts.Businesses,
		billing:    opts.Billing,
		logger:     logger,
	}, nil
}

// MustNewBusinessService constructs a new BusinessService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewBusinessService(opts BusinessServiceOptions) *BusinessService {
	svc, err := NewBusinessService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast during startup wiring when configuration is invalid
		panic(fmt.Sprintf("failed to create BusinessService: %v", err))
	}
	return svc
}

// Create registers a business owned by the acting profile. Attendees must
// switch to the business owner role first.
func (s *BusinessService) Create(
	ctx context.Context,
	actor Actor,
	req *model.CreateBusinessRequest,
) (*model.Business, error) {
	if !actor.IsBusinessOwner() && !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	req.OwnerID = actor.ProfileID
	if err := req.Validate(); err != nil {
		return nil, err
	}

	business, err := s.businesses.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "business created",
			"business_id", business.ID, "owner_id", business.OwnerID, "name", business.Name)
	}
	return business, nil
}

// GetByID retrieves a business by ID.
func (s *BusinessService) GetByID(ctx context.Context, id string) (*model.Business, error) {
	return s.businesses.GetByID(ctx, id)
}

// GetBySubdomain resolves a business by its claimed subdomain label. The
// subdomain middleware uses this to attach businesses to requests.
func (s *BusinessService) GetBySubdomain(ctx context.Context, subdomain string) (*model.Business, error) {
	return s.businesses.GetBySubdomain(ctx, model.NormalizeSubdomain(subdomain))
}

// ResolveSubdomain resolves a subdomain host label to its business for
// request routing. A claim whose owner no longer holds the custom subdomain
// entitlement does not resolve; the host reads as unknown rather than
// revealing the lapsed plan.
func (s *BusinessService) ResolveSubdomain(ctx context.Context, subdomain string) (*model.Business, error) {
	business, err := s.GetBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	if err := s.checkSubdomainEntitlement(ctx, business.OwnerID); err != nil {
		if errors.Is(err, ErrSubdomainNotEntitled) {
			return nil, data.ErrBusinessNotFound
		}
		return nil, err
	}
	return business, nil
}

// List returns a page of businesses using the given filters.
func (s *BusinessService) List(ctx context.Context, opts model.BusinessListOptions) ([]*model.Business, error) {
	return s.businesses.List(ctx, normalizeBusinessListOptions(opts))
}

// ListMine returns the acting profile's businesses.
func (s *BusinessService) ListMine(ctx context.Context, actor Actor) ([]*model.Business, error) {
	if actor.ProfileID == "" {
		return nil, ErrForbidden
	}
	return s.businesses.ListByOwner(ctx, actor.ProfileID)
}

// Update applies a partial update. Only the owner or an admin may update.
func (s *BusinessService) Update(
	ctx context.Context,
	actor Actor,
	id string,
	req model.UpdateBusinessRequest,
) (*model.Business, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	business, err := s.businesses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(business.OwnerID) {
		return nil, ErrForbidden
	}

	return s.businesses.Update(ctx, id, req)
}

// Delete removes a business. Only the owner or an admin may delete.
func (s *BusinessService) Delete(ctx context.Context, actor Actor, id string) (bool, error) {
	business, err := s.businesses.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !actor.CanManage(business.OwnerID) {
		return false, ErrForbidden
	}

	ok, err := s.businesses.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if ok && s.logger != nil {
		s.logger.InfoContext(ctx, "business deleted", "business_id", id, "actor_id", actor.ProfileID)
	}
	return ok, nil
}

// ClaimSubdomain claims a subdomain label for the business, or clears the
// claim when the value is empty. The owner's plan must include the custom
// subdomain entitlement; admins bypass the check.
func (s *BusinessService) ClaimSubdomain(
	ctx context.Context,
	actor Actor,
	id string,
	subdomain string,
) (*model.Business, error) {
	business, err := s.businesses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(business.OwnerID) {
		return nil, ErrForbidden
	}

	normalized := model.NormalizeSubdomain(subdomain)
	if normalized == "" {
		return s.businesses.SetSubdomain(ctx, id, nil)
	}

	if err := model.ValidateSubdomain(normalized); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		if err := s.checkSubdomainEntitlement(ctx, business.OwnerID); err != nil {
			return nil, err
		}
	}

	updated, err := s.businesses.SetSubdomain(ctx, id, &normalized)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "subdomain claimed",
			"business_id", id, "subdomain", normalized)
	}
	return updated, nil
}

func (s *BusinessService) checkSubdomainEntitlement(ctx context.Context, ownerID string) error {
	if s.billing == nil {
		return ErrSubdomainNotEntitled
	}
	plan, err := s.billing.EffectivePlan(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("resolve plan: %w", err)
	}
	if !plan.CustomSubdomain {
		return ErrSubdomainNotEntitled
	}
	return nil
}

// SetVerified toggles the admin-managed verification badge.
func (s *BusinessService) SetVerified(
	ctx context.Context,
	actor Actor,
	id string,
	verified bool,
) (*model.Business, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	business, err := s.businesses.SetVerified(ctx, id, verified)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "business verification updated",
			"business_id", id, "verified", verified)
	}
	return business, nil
}

func normalizeBusinessListOptions(opts model.BusinessListOptions) model.BusinessListOptions {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Sort == "" {
		opts.Sort = "created_at"
	}
	if opts.Dir == "" {
		opts.Dir = "desc"
	}

	return opts
}
