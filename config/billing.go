package config

import "strings"

// BillingConfig contains Stripe billing configuration.
// Billing endpoints return 503 when Stripe is not configured.
type BillingConfig struct {
	// SecretKey is the Stripe API secret key (sk_...).
	SecretKey string `env:"SECRET_KEY"`

	// PublishableKey is returned to clients for Stripe.js initialization.
	PublishableKey string `env:"PUBLISHABLE_KEY"`

	// WebhookSecret verifies webhook signatures (whsec_...).
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	// SuccessURL and CancelURL are the checkout redirect targets.
	// Defaults are derived from the frontend URL when empty.
	SuccessURL string `env:"SUCCESS_URL"`
	CancelURL  string `env:"CANCEL_URL"`

	// TrialDays is the free trial length applied to new checkout sessions.
	// Zero disables trials.
	TrialDays int `env:"TRIAL_DAYS" envDefault:"0"`
}

// Sanitize normalises billing configuration values.
func (b *BillingConfig) Sanitize() {
	b.SecretKey = strings.TrimSpace(b.SecretKey)
	b.PublishableKey = strings.TrimSpace(b.PublishableKey)
	b.WebhookSecret = strings.TrimSpace(b.WebhookSecret)
	if b.TrialDays < 0 {
		b.TrialDays = 0
	}
}

// IsConfigured returns true when Stripe API access is usable.
func (b *BillingConfig) IsConfigured() bool {
	return b.SecretKey != ""
}
