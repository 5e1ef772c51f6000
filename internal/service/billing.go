package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/popmap/popmap-api/config"
	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/domain/model"
)

var (
	// ErrBillingNotConfigured is returned when a paid operation is attempted
	// without Stripe credentials. Handlers map it to 503.
	ErrBillingNotConfigured = errors.New("billing is not configured")
	// ErrPlanNotPurchasable is returned for plans without a Stripe price,
	// such as the free tier and internally granted plans.
	ErrPlanNotPurchasable = errors.New("plan cannot be purchased")
	// ErrSubscriptionActive rejects checkout while an active or trialing
	// subscription exists.
	ErrSubscriptionActive = errors.New("an active subscription already exists")
	// ErrNoSubscription is returned when there is nothing to cancel.
	ErrNoSubscription = errors.New("no active subscription")
)

// fallbackFreePlan covers entitlement checks before the plan catalog is
// seeded. Limits mirror the seeded free tier.
var fallbackFreePlan = model.Plan{
	Type:              model.PlanTypeFree,
	Name:              "Free",
	MaxEventsPerMonth: 3,
}

// BillingServiceOptions groups dependencies for BillingService.
type BillingServiceOptions struct {
	Plans         core.PlanRepository         // Required: plan catalog
	Subscriptions core.SubscriptionRepository // Required: subscription state
	Profiles      core.ProfileRepository      // Required: customer details for checkout
	Stripe        core.StripeGateway          // Optional: checkout and cancel are unavailable when nil
	Config        config.BillingConfig
	Logger        *slog.Logger
}

// BillingService owns the subscription lifecycle: plan catalog reads,
// Stripe checkout, cancellation, and entitlement resolution.
type BillingService struct {
	plans  core.PlanRepository
	subs   core.SubscriptionRepository
	profs  core.ProfileRepository
	stripe core.StripeGateway
	config config.BillingConfig
	logger *slog.Logger
}

// NewBillingService constructs a new BillingService.
func NewBillingService(opts BillingServiceOptions) (*BillingService, error) {
	if opts.Plans == nil {
		return nil, errors.New("PlanRepository is required")
	}
	if opts.Subscriptions == nil {
		return nil, errors.New("SubscriptionRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "billing_service")
		logger.Debug("BillingService initialized", "stripe_configured", opts.Stripe != nil)
	}

	return &BillingService{
		plans:  opts.Plans,
		subs:   opts.Subscriptions,
		profs:  opts.Profiles,
		stripe: opts.Stripe,
		config: opts.Config,
		logger: logger,
	}, nil
}

// MustNewBillingService constructs a new BillingService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewBillingService(opts BillingServiceOptions) *BillingService {
	svc, err := NewBillingService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast during startup wiring when configuration is invalid
		panic(fmt.Sprintf("failed to create BillingService: %v", err))
	}
	return svc
}

// ListPlans returns the plan catalog ordered by price. Public listings hide
// internally granted plans such as the beta tester tier.
func (s *BillingService) ListPlans(ctx context.Context, publicOnly bool) ([]*model.Plan, error) {
	return s.plans.List(ctx, publicOnly)
}

// SeedDefaultPlans inserts any missing plans from the canonical catalog.
// Admin only; existing rows are never modified.
func (s *BillingService) SeedDefaultPlans(ctx context.Context, actor Actor) (int, error) {
	if !actor.IsAdmin() {
		return 0, ErrForbidden
	}

	inserted, err := s.plans.SeedDefaults(ctx)
	if err != nil {
		return inserted, fmt.Errorf("seed plans: %w", err)
	}
	if s.logger != nil && inserted > 0 {
		s.logger.InfoContext(ctx, "seeded default plans", "inserted", inserted)
	}
	return inserted, nil
}

// CurrentSubscription returns the profile's subscription joined with its
// plan, or nil when the profile has never subscribed.
func (s *BillingService) CurrentSubscription(
	ctx context.Context,
	profileID string,
) (*model.SubscriptionWithPlan, error) {
	return s.subs.GetByProfile(ctx, profileID)
}

// EffectivePlan resolves the plan whose entitlements currently apply to a
// profile: the plan behind an active or trialing subscription, otherwise the
// free tier.
func (s *BillingService) EffectivePlan(ctx context.Context, profileID string) (*model.Plan, error) {
	sub, err := s.subs.GetByProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub != nil && sub.IsEntitled() {
		plan := sub.Plan
		return &plan, nil
	}

	free, err := s.plans.GetByType(ctx, model.PlanTypeFree)
	if errors.Is(err, data.ErrPlanNotFound) {
		plan := fallbackFreePlan
		return &plan, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load free plan: %w", err)
	}
	return free, nil
}

// CreateCheckoutSession opens a Stripe checkout session for a purchasable
// plan. Profiles with an active or trialing subscription are rejected; the
// Stripe customer is minted on first checkout and reused afterwards.
func (s *BillingService) CreateCheckoutSession(
	ctx context.Context,
	actor Actor,
	planID string,
) (*model.CheckoutSessionResult, error) {
	if s.stripe == nil {
		return nil, ErrBillingNotConfigured
	}
	if actor.ProfileID == "" {
		return nil, ErrForbidden
	}

	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if !plan.Public || plan.StripePriceID == nil || *plan.StripePriceID == "" {
		return nil, ErrPlanNotPurchasable
	}

	existing, err := s.subs.GetByProfile(ctx, actor.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if existing != nil && existing.IsEntitled() {
		return nil, ErrSubscriptionActive
	}

	customerID, err := s.ensureStripeCustomer(ctx, actor.ProfileID)
	if err != nil {
		return nil, err
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, core.CheckoutParams{
		CustomerID: customerID,
		PriceID:    *plan.StripePriceID,
		SuccessURL: s.config.SuccessURL,
		CancelURL:  s.config.CancelURL,
		TrialDays:  s.config.TrialDays,
		Metadata: map[string]string{
			"profile_id": actor.ProfileID,
			"plan_id":    plan.ID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "checkout session created",
			"profile_id", actor.ProfileID, "plan_id", plan.ID, "session_id", session.ID)
	}

	return &model.CheckoutSessionResult{
		SessionID:      session.ID,
		URL:            session.URL,
		PublishableKey: s.config.PublishableKey,
	}, nil
}

// ensureStripeCustomer returns the profile's Stripe customer ID, minting one
// on first use so repeat checkouts reuse the same customer.
func (s *BillingService) ensureStripeCustomer(ctx context.Context, profileID string) (string, error) {
	customerID, err := s.subs.GetStripeCustomer(ctx, profileID)
	if err != nil {
		return "", fmt.Errorf("load stripe customer: %w", err)
	}
	if customerID != "" {
		return customerID, nil
	}

	profile, err := s.profs.GetByID(ctx, profileID)
	if err != nil {
		return "", fmt.Errorf("load profile: %w", err)
	}

	customerID, err = s.stripe.CreateCustomer(ctx, core.CreateCustomerParams{
		Email: profile.Email,
		Name:  profile.Username,
		Metadata: map[string]string{
			"profile_id": profile.ID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}

	if saveErr := s.subs.SaveStripeCustomer(ctx, profileID, customerID); saveErr != nil {
		return "", fmt.Errorf("save stripe customer: %w", saveErr)
	}
	return customerID, nil
}

// CancelAtPeriodEnd schedules the actor's subscription to lapse at the end
// of the current billing period. Access continues until then.
func (s *BillingService) CancelAtPeriodEnd(ctx context.Context, actor Actor) (*model.Subscription, error) {
	if actor.ProfileID == "" {
		return nil, ErrForbidden
	}

	sub, err := s.subs.GetByProfile(ctx, actor.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil || !sub.IsEntitled() {
		return nil, ErrNoSubscription
	}
	if s.stripe == nil {
		return nil, ErrBillingNotConfigured
	}

	if err := s.stripe.CancelAtPeriodEnd(ctx, sub.StripeSubscriptionID); err != nil {
		return nil, fmt.Errorf("cancel stripe subscription: %w", err)
	}

	cancel := true
	updated, err := s.subs.UpdateStatus(ctx, core.UpdateSubscriptionStatusParams{
		StripeSubscriptionID: sub.StripeSubscriptionID,
		Status:               sub.Status,
		CancelAtPeriodEnd:    &cancel,
	})
	if err != nil {
		return nil, fmt.Errorf("record cancellation: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "subscription cancellation scheduled",
			"profile_id", actor.ProfileID, "period_end", updated.CurrentPeriodEnd)
	}
	return updated, nil
}
