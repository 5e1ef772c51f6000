package stripeapi

// Package stripeapi implements core.StripeGateway over the Stripe API.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"

	"github.com/popmap/popmap-api/internal/core"
)

// Ensure Gateway satisfies the port.
var _ core.StripeGateway = (*Gateway)(nil)

// Options configures the Stripe gateway.
type Options struct {
	// SecretKey is the Stripe API secret key (sk_...).
	SecretKey string
	// WebhookSecret verifies webhook signatures; empty disables verification
	// failures and is only acceptable in development.
	WebhookSecret string
}

// Gateway talks to Stripe with a dedicated API client, so the process never
// relies on the package-global key.
type Gateway struct {
	api           *client.API
	webhookSecret string
}

// New constructs a Stripe gateway.
func New(opts Options) (*Gateway, error) {
	if opts.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	api := &client.API{}
	api.Init(opts.SecretKey, nil)
	return &Gateway{api: api, webhookSecret: opts.WebhookSecret}, nil
}

// CreateCustomer mints a Stripe customer and returns its ID.
func (g *Gateway) CreateCustomer(ctx context.Context, params core.CreateCustomerParams) (string, error) {
	p := &stripe.CustomerParams{
		Email: stripe.String(params.Email),
	}
	if params.Name != "" {
		p.Name = stripe.String(params.Name)
	}
	p.Context = ctx
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}

	cust, err := g.api.Customers.New(p)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession opens a subscription-mode checkout session.
func (g *Gateway) CreateCheckoutSession(
	ctx context.Context,
	params core.CheckoutParams,
) (*core.CheckoutSession, error) {
	p := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(params.CustomerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
	}
	p.Context = ctx
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}
	if params.TrialDays > 0 || len(params.Metadata) > 0 {
		p.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: params.Metadata,
		}
		if params.TrialDays > 0 {
			p.SubscriptionData.TrialPeriodDays = stripe.Int64(int64(params.TrialDays))
		}
	}

	sess, err := g.api.CheckoutSessions.New(p)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &core.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// GetSubscription fetches the authoritative subscription state.
func (g *Gateway) GetSubscription(ctx context.Context, subscriptionID string) (*core.SubscriptionState, error) {
	p := &stripe.SubscriptionParams{}
	p.Context = ctx

	sub, err := g.api.Subscriptions.Get(subscriptionID, p)
	if err != nil {
		return nil, fmt.Errorf("get stripe subscription: %w", err)
	}
	return subscriptionState(sub), nil
}

// CancelAtPeriodEnd schedules the subscription to lapse at the period boundary.
func (g *Gateway) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	p := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	p.Context = ctx

	if _, err := g.api.Subscriptions.Update(subscriptionID, p); err != nil {
		return fmt.Errorf("cancel stripe subscription: %w", err)
	}
	return nil
}

// VerifyWebhook checks the Stripe-Signature header against the payload and
// returns the decoded event.
func (g *Gateway) VerifyWebhook(payload []byte, signature string) (*core.WebhookEvent, error) {
	if g.webhookSecret == "" {
		return nil, errors.New("stripe webhook secret is not configured")
	}

	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verify stripe webhook: %w", err)
	}
	return &core.WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
		Raw:  event.Data.Raw,
	}, nil
}

func subscriptionState(sub *stripe.Subscription) *core.SubscriptionState {
	state := &core.SubscriptionState{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		state.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		state.PriceID = sub.Items.Data[0].Price.ID
	}
	return state
}
