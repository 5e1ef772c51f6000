package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/observability/notify"
)

// ErrWebhookVerification is returned when a webhook delivery fails signature
// verification. Handlers map it to 400 so Stripe stops retrying.
var ErrWebhookVerification = errors.New("webhook verification failed")

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// Webhook event types we act on. Everything else is acknowledged and dropped.
const (
	webhookCheckoutCompleted   = "checkout.session.completed"
	webhookSubscriptionUpdated = "customer.subscription.updated"
	webhookSubscriptionDeleted = "customer.subscription.deleted"
	webhookPaymentSucceeded    = "invoice.payment_succeeded"
	webhookPaymentFailed       = "invoice.payment_failed"
)

const webhookClaimPrefix = "billing:webhook:"

// webhookClaimTTL covers Stripe's redelivery window, which retries for
// up to three days.
const webhookClaimTTL = 72 * time.Hour

// BillingWebhookServiceOptions groups dependencies for BillingWebhookService.
type BillingWebhookServiceOptions struct {
	Subscriptions core.SubscriptionRepository // Required: subscription state
	Plans         core.PlanRepository         // Required: price-to-plan mapping
	Stripe        core.StripeGateway          // Required: verification and subscription fetch
	Evaluator     JMESPathEvaluator           // Optional: defaults to the library evaluator
	Notifier      notify.Sink                 // Optional: ops alerts on payment failure
	Cache         core.CacheRepository        // Optional: claims that drop redelivered events
	Logger        *slog.Logger
}

// BillingWebhookService ingests Stripe webhook deliveries and folds their
// state into local subscriptions. Field extraction from raw event JSON goes
// through the JMESPath evaluator so event shapes stay declarative.
type BillingWebhookService struct {
	subs     core.SubscriptionRepository
	plans    core.PlanRepository
	stripe   core.StripeGateway
	jems     JMESPathEvaluator
	notifier notify.Sink
	cache    core.CacheRepository
	logger   *slog.Logger
}

// NewBillingWebhookService constructs a new BillingWebhookService.
func NewBillingWebhookService(opts BillingWebhookServiceOptions) (*BillingWebhookService, error) {
	if opts.Subscriptions == nil {
		return nil, errors.New("SubscriptionRepository is required")
	}
	if opts.Plans == nil {
		return nil, errors.New("PlanRepository is required")
	}
	if opts.Stripe == nil {
		return nil, errors.New("StripeGateway is required")
	}

	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "billing_webhook")
	}

	return &BillingWebhookService{
		subs:     opts.Subscriptions,
		plans:    opts.Plans,
		stripe:   opts.Stripe,
		jems:     jems,
		notifier: opts.Notifier,
		cache:    opts.Cache,
		logger:   logger,
	}, nil
}

// HandleEvent verifies one webhook delivery and applies it. Unhandled event
// types are acknowledged without action. Errors other than verification
// failures should surface as 5xx so Stripe redelivers.
func (s *BillingWebhookService) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := s.stripe.VerifyWebhook(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrWebhookVerification, err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "webhook received", "event_id", event.ID, "type", event.Type)
	}

	if !s.claimDelivery(ctx, event.ID) {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "webhook replay dropped", "event_id", event.ID, "type", event.Type)
		}
		return nil
	}

	var object any
	if err := json.Unmarshal(event.Raw, &object); err != nil {
		s.releaseDelivery(ctx, event.ID)
		return fmt.Errorf("decode webhook object: %w", err)
	}

	if err := s.applyEvent(ctx, event.Type, object); err != nil {
		s.releaseDelivery(ctx, event.ID)
		return err
	}
	return nil
}

// applyEvent dispatches one verified, claimed event to its handler.
func (s *BillingWebhookService) applyEvent(ctx context.Context, eventType string, object any) error {
	switch eventType {
	case webhookCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, object)
	case webhookSubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, object)
	case webhookSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, object)
	case webhookPaymentSucceeded:
		return s.handlePaymentSucceeded(ctx, object)
	case webhookPaymentFailed:
		return s.handlePaymentFailed(ctx, object)
	default:
		if s.logger != nil {
			s.logger.DebugContext(ctx, "unhandled webhook event type", "type", eventType)
		}
		return nil
	}
}

// claimDelivery records the event ID so a redelivered event applies only
// once. Fails open: without a cache, or when the claim write errors, the
// event processes anyway. Handlers converge on replays; the claim exists
// to stop duplicate alerts and Stripe round trips.
func (s *BillingWebhookService) claimDelivery(ctx context.Context, eventID string) bool {
	if s.cache == nil || eventID == "" {
		return true
	}
	won, err := s.cache.SetIfNotExists(ctx, webhookClaimPrefix+eventID, []byte("1"), webhookClaimTTL)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "webhook claim failed", "event_id", eventID, "error", err)
		}
		return true
	}
	return won
}

// releaseDelivery drops the claim after a failed apply so Stripe's retry
// is not mistaken for a replay.
func (s *BillingWebhookService) releaseDelivery(ctx context.Context, eventID string) {
	if s.cache == nil || eventID == "" {
		return
	}
	if _, err := s.cache.Delete(ctx, webhookClaimPrefix+eventID); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "webhook claim release failed", "event_id", eventID, "error", err)
	}
}

// handleCheckoutCompleted fetches the authoritative subscription minted by a
// completed checkout and records it locally. The profile comes from the
// session metadata we attached at checkout creation.
func (s *BillingWebhookService) handleCheckoutCompleted(ctx context.Context, object any) error {
	subscriptionID := s.extractString(object, "subscription")
	if subscriptionID == "" {
		// One-off payment sessions carry no subscription; nothing to sync.
		return nil
	}
	profileID := s.extractString(object, "metadata.profile_id")

	state, err := s.stripe.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("fetch subscription %s: %w", subscriptionID, err)
	}

	if err := s.syncSubscription(ctx, profileID, state); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "checkout completed",
			"session_id", s.extractString(object, "id"),
			"subscription_id", subscriptionID, "profile_id", profileID)
	}
	return nil
}

// handleSubscriptionUpdated applies status drift from Stripe. Unknown
// subscriptions are created from the event object, which covers deliveries
// arriving before (or instead of) the checkout completion event.
func (s *BillingWebhookService) handleSubscriptionUpdated(ctx context.Context, object any) error {
	subscriptionID := s.extractString(object, "id")
	if subscriptionID == "" {
		return errors.New("subscription event missing id")
	}

	status, ok := model.ParseSubscriptionStatus(s.extractString(object, "status"))
	if !ok {
		return fmt.Errorf("subscription %s carries unsupported status %q",
			subscriptionID, s.extractString(object, "status"))
	}

	cancel := s.extractBool(object, "cancel_at_period_end")
	params := core.UpdateSubscriptionStatusParams{
		StripeSubscriptionID: subscriptionID,
		Status:               status,
		CancelAtPeriodEnd:    &cancel,
	}
	if end, ok := s.extractUnix(object, "current_period_end"); ok {
		params.CurrentPeriodEnd = &end
	}

	_, err := s.subs.UpdateStatus(ctx, params)
	if errors.Is(err, data.ErrSubscriptionNotFound) {
		return s.syncSubscription(ctx, "", s.subscriptionStateFromEvent(object))
	}
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", subscriptionID, err)
	}
	return nil
}

// handleSubscriptionDeleted marks the subscription canceled. Deletions for
// rows we never held are acknowledged quietly.
func (s *BillingWebhookService) handleSubscriptionDeleted(ctx context.Context, object any) error {
	subscriptionID := s.extractString(object, "id")
	if subscriptionID == "" {
		return errors.New("subscription event missing id")
	}

	_, err := s.subs.UpdateStatus(ctx, core.UpdateSubscriptionStatusParams{
		StripeSubscriptionID: subscriptionID,
		Status:               model.SubscriptionStatusCanceled,
	})
	if errors.Is(err, data.ErrSubscriptionNotFound) {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "deletion for unknown subscription", "subscription_id", subscriptionID)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("cancel subscription %s: %w", subscriptionID, err)
	}
	return nil
}

// handlePaymentSucceeded reactivates the subscription behind a paid invoice.
func (s *BillingWebhookService) handlePaymentSucceeded(ctx context.Context, object any) error {
	subscriptionID := s.extractString(object, "subscription")
	if subscriptionID == "" {
		return nil
	}

	_, err := s.subs.UpdateStatus(ctx, core.UpdateSubscriptionStatusParams{
		StripeSubscriptionID: subscriptionID,
		Status:               model.SubscriptionStatusActive,
	})
	if errors.Is(err, data.ErrSubscriptionNotFound) {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "payment for unknown subscription", "subscription_id", subscriptionID)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("activate subscription %s: %w", subscriptionID, err)
	}
	return nil
}

// handlePaymentFailed moves the subscription to past_due and raises an ops
// alert. Notification failures are logged, never returned; Stripe retries
// would otherwise duplicate the state change.
func (s *BillingWebhookService) handlePaymentFailed(ctx context.Context, object any) error {
	subscriptionID := s.extractString(object, "subscription")
	if subscriptionID != "" {
		_, err := s.subs.UpdateStatus(ctx, core.UpdateSubscriptionStatusParams{
			StripeSubscriptionID: subscriptionID,
			Status:               model.SubscriptionStatusPastDue,
		})
		if err != nil && !errors.Is(err, data.ErrSubscriptionNotFound) {
			return fmt.Errorf("mark subscription %s past due: %w", subscriptionID, err)
		}
	}

	s.notifyPaymentFailure(ctx, object, subscriptionID)
	return nil
}

func (s *BillingWebhookService) notifyPaymentFailure(ctx context.Context, object any, subscriptionID string) {
	if s.notifier == nil {
		return
	}

	customerID := s.extractString(object, "customer")
	metadata := map[string]string{}
	if customerID != "" {
		metadata["stripe_customer"] = customerID
	}
	if subscriptionID != "" {
		metadata["stripe_subscription"] = subscriptionID
	}
	if email := s.extractString(object, "customer_email"); email != "" {
		metadata["customer_email"] = email
	}
	if amount, ok := s.extractNumber(object, "amount_due"); ok {
		metadata["amount_due_cents"] = strconv.FormatInt(int64(amount), 10)
	}

	err := s.notifier.SendJobFailure(ctx, notify.JobFailurePayload{
		Scope:      "billing",
		Error:      fmt.Sprintf("invoice payment failed for customer %s", customerID),
		ErrorClass: "payment_failed",
		Severity:   notify.SeverityCritical,
		OccurredAt: time.Now(),
		Metadata:   metadata,
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "payment failure notification failed", "error", err)
	}
}

// syncSubscription records a full subscription snapshot. The profile is
// resolved from checkout metadata when present, falling back to the stored
// customer mapping.
func (s *BillingWebhookService) syncSubscription(
	ctx context.Context,
	profileID string,
	state *core.SubscriptionState,
) error {
	if state == nil || state.ID == "" {
		return errors.New("subscription state is empty")
	}

	if profileID == "" {
		resolved, err := s.subs.GetProfileByStripeCustomer(ctx, state.CustomerID)
		if err != nil {
			return fmt.Errorf("resolve profile for customer %s: %w", state.CustomerID, err)
		}
		if resolved == "" {
			return fmt.Errorf("no profile known for stripe customer %s", state.CustomerID)
		}
		profileID = resolved
	}

	plan, err := s.plans.GetByStripePriceID(ctx, state.PriceID)
	if err != nil {
		return fmt.Errorf("resolve plan for price %s: %w", state.PriceID, err)
	}

	status, ok := model.ParseSubscriptionStatus(state.Status)
	if !ok {
		return fmt.Errorf("subscription %s carries unsupported status %q", state.ID, state.Status)
	}

	_, err = s.subs.Upsert(ctx, model.UpsertSubscriptionParams{
		ProfileID:            profileID,
		PlanID:               plan.ID,
		StripeCustomerID:     state.CustomerID,
		StripeSubscriptionID: state.ID,
		Status:               status,
		CurrentPeriodStart:   state.CurrentPeriodStart,
		CurrentPeriodEnd:     state.CurrentPeriodEnd,
		CancelAtPeriodEnd:    state.CancelAtPeriodEnd,
	})
	if err != nil {
		return fmt.Errorf("record subscription %s: %w", state.ID, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "subscription synced",
			"subscription_id", state.ID, "profile_id", profileID,
			"plan_id", plan.ID, "status", status)
	}
	return nil
}

// subscriptionStateFromEvent extracts a subscription snapshot from the event
// object itself. Subscription events carry the whole object, so no API
// round-trip is needed.
func (s *BillingWebhookService) subscriptionStateFromEvent(object any) *core.SubscriptionState {
	state := &core.SubscriptionState{
		ID:                s.extractString(object, "id"),
		CustomerID:        s.extractString(object, "customer"),
		PriceID:           s.extractString(object, "items.data[0].price.id"),
		Status:            s.extractString(object, "status"),
		CancelAtPeriodEnd: s.extractBool(object, "cancel_at_period_end"),
	}
	if start, ok := s.extractUnix(object, "current_period_start"); ok {
		state.CurrentPeriodStart = start
	}
	if end, ok := s.extractUnix(object, "current_period_end"); ok {
		state.CurrentPeriodEnd = end
	}
	return state
}

// --- extraction helpers ---

func (s *BillingWebhookService) extractString(object any, expr string) string {
	v, err := s.jems.Evaluate(expr, object)
	if err != nil {
		return ""
	}
	str, _ := v.(string)
	return str
}

func (s *BillingWebhookService) extractBool(object any, expr string) bool {
	v, err := s.jems.Evaluate(expr, object)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

func (s *BillingWebhookService) extractNumber(object any, expr string) (float64, bool) {
	v, err := s.jems.Evaluate(expr, object)
	if err != nil {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func (s *BillingWebhookService) extractUnix(object any, expr string) (time.Time, bool) {
	f, ok := s.extractNumber(object, expr)
	if !ok || f <= 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(f), 0).UTC(), true
}
