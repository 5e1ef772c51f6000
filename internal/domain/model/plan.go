//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"strings"
	"time"
)

// PlanType identifies a subscription tier.
type PlanType string

const (
	PlanTypeFree       PlanType = "free"
	PlanTypeStarter    PlanType = "starter"
	PlanTypePro        PlanType = "pro"
	PlanTypeBetaTester PlanType = "beta_tester"
)

// Valid reports whether the plan type is supported.
func (t PlanType) Valid() bool {
	switch t {
	case PlanTypeFree, PlanTypeStarter, PlanTypePro, PlanTypeBetaTester:
		return true
	default:
		return false
	}
}

// ParsePlanType normalizes a plan type string and reports whether it is supported.
func ParsePlanType(value string) (PlanType, bool) {
	pt := PlanType(strings.ToLower(strings.TrimSpace(value)))
	if pt.Valid() {
		return pt, true
	}
	return "", false
}

// Plan is a purchasable subscription tier with its entitlements.
type Plan struct {
	ID                string    `json:"id"                           db:"id"`
	Type              PlanType  `json:"type"                         db:"type"`
	Name              string    `json:"name"                         db:"name"`
	MonthlyPriceCents int       `json:"monthly_price_cents"          db:"monthly_price_cents"`
	StripeProductID   *string   `json:"stripe_product_id,omitempty"  db:"stripe_product_id"`
	StripePriceID     *string   `json:"stripe_price_id,omitempty"    db:"stripe_price_id"`
	MaxEventsPerMonth int       `json:"max_events_per_month"         db:"max_events_per_month"` // 0 = unlimited
	CustomSubdomain   bool      `json:"custom_subdomain"             db:"custom_subdomain"`
	FeaturedListing   bool      `json:"featured_listing"             db:"featured_listing"`
	Analytics         bool      `json:"analytics"                    db:"analytics"`
	PrioritySupport   bool      `json:"priority_support"             db:"priority_support"`
	Public            bool      `json:"public"                       db:"public"`
	CreatedAt         time.Time `json:"created_at"                   db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"                   db:"updated_at"`
}

// AllowsEventCreation reports whether the plan permits another event this month.
func (p *Plan) AllowsEventCreation(createdThisMonth int) bool {
	return p.MaxEventsPerMonth == 0 || createdThisMonth < p.MaxEventsPerMonth
}

// DefaultPlans returns the canonical plan catalog seeded into new
// environments. Stripe product/price ids are attached out of band once the
// products exist in the Stripe account.
func DefaultPlans() []*Plan {
	return []*Plan{
		{
			Type:              PlanTypeFree,
			Name:              "Free",
			MonthlyPriceCents: 0,
			MaxEventsPerMonth: 3,
			Public:            true,
		},
		{
			Type:              PlanTypeStarter,
			Name:              "Starter",
			MonthlyPriceCents: 999,
			MaxEventsPerMonth: 10,
			CustomSubdomain:   true,
			Public:            true,
		},
		{
			Type:              PlanTypePro,
			Name:              "PopMap Pro",
			MonthlyPriceCents: 2999,
			MaxEventsPerMonth: 0,
			CustomSubdomain:   true,
			FeaturedListing:   true,
			Analytics:         true,
			PrioritySupport:   true,
			Public:            true,
		},
		{
			Type:              PlanTypeBetaTester,
			Name:              "Beta Tester",
			MonthlyPriceCents: 0,
			MaxEventsPerMonth: 0,
			CustomSubdomain:   true,
			FeaturedListing:   true,
			Analytics:         true,
			PrioritySupport:   true,
			Public:            false,
		},
	}
}
