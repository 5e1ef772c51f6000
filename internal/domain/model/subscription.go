//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"strings"
	"time"
)

// SubscriptionStatus mirrors the Stripe subscription lifecycle.
type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
)

// Valid reports whether the subscription status is supported.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusTrialing, SubscriptionStatusPastDue,
		SubscriptionStatusCanceled, SubscriptionStatusIncomplete,
		SubscriptionStatusIncompleteExpired, SubscriptionStatusUnpaid:
		return true
	default:
		return false
	}
}

// ParseSubscriptionStatus normalizes a status string and reports whether it is supported.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, bool) {
	status := SubscriptionStatus(strings.ToLower(strings.TrimSpace(value)))
	if status.Valid() {
		return status, true
	}
	return "", false
}

// Entitled reports whether the status grants access to paid features.
func (s SubscriptionStatus) Entitled() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// Subscription links a profile to a plan through Stripe.
type Subscription struct {
	ID                   string             `json:"id"                       db:"id"`
	ProfileID            string             `json:"profile_id"               db:"profile_id"`
	PlanID               string             `json:"plan_id"                  db:"plan_id"`
	StripeCustomerID     string             `json:"-"                        db:"stripe_customer_id"`
	StripeSubscriptionID string             `json:"-"                        db:"stripe_subscription_id"`
	Status               SubscriptionStatus `json:"status"                   db:"status"`
	CurrentPeriodStart   time.Time          `json:"current_period_start"     db:"current_period_start"`
	CurrentPeriodEnd     time.Time          `json:"current_period_end"       db:"current_period_end"`
	CancelAtPeriodEnd    bool               `json:"cancel_at_period_end"     db:"cancel_at_period_end"`
	CreatedAt            time.Time          `json:"created_at"               db:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"               db:"updated_at"`
}

// IsEntitled reports whether the subscription currently grants paid features.
func (s *Subscription) IsEntitled() bool { return s.Status.Entitled() }

// SubscriptionWithPlan joins a subscription with its plan for entitlement checks.
type SubscriptionWithPlan struct {
	Subscription
	Plan Plan `json:"plan"`
}

// CheckoutSessionResult is returned to clients after creating a checkout session.
type CheckoutSessionResult struct {
	SessionID      string `json:"session_id"`
	URL            string `json:"url"`
	PublishableKey string `json:"publishable_key,omitempty"`
}

// UpsertSubscriptionParams carries the fields synced from Stripe webhook and
// checkout events into the local subscription row.
type UpsertSubscriptionParams struct {
	ProfileID            string
	PlanID               string
	StripeCustomerID     string
	StripeSubscriptionID string
	Status               SubscriptionStatus
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	CancelAtPeriodEnd    bool
}
