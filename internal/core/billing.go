package core

import (
	"context"
	"encoding/json"
	"time"
)

// CreateCustomerParams carries the fields for minting a Stripe customer.
type CreateCustomerParams struct {
	Email    string
	Name     string
	Metadata map[string]string
}

// CheckoutParams carries the fields for creating a subscription checkout session.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
	TrialDays  int
	// Metadata is attached to both the session and the resulting subscription
	// so webhook events can be tied back to a profile and plan.
	Metadata map[string]string
}

// CheckoutSession is the created session handed back to clients.
type CheckoutSession struct {
	ID  string
	URL string
}

// SubscriptionState is the authoritative subscription snapshot fetched from
// Stripe after checkout completes.
type SubscriptionState struct {
	ID                 string
	CustomerID         string
	PriceID            string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
}

// WebhookEvent is a verified Stripe event. Raw holds the event object JSON
// for field extraction.
type WebhookEvent struct {
	ID   string
	Type string
	Raw  json.RawMessage
}

// StripeGateway abstracts the Stripe API surface billing depends on, so
// services stay testable without network access.
type StripeGateway interface {
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (string, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error
	// VerifyWebhook checks the payload signature and returns the decoded event.
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
