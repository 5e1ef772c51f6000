package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Authentication, session, and callback configuration
//   - database.go: Database and cache configuration
//   - http.go: HTTP server configuration
//   - services.go: Service mode and runner configuration
//   - billing.go: Stripe billing configuration
//   - email.go: Outbound email and reminder configuration
type AppConfig struct {
	// IsDev controls development mode behavior (dev auth, seeding, relaxed cookies).
	// Set DEV=true or APP_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// SessionEncryptionKey encrypts refresh tokens at rest inside session
	// records. Required for production, optional for development.
	SessionEncryptionKey string `env:"SESSION_ENCRYPTION_KEY"`

	// Authentication configuration
	Auth AuthConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Cache    CacheConfig

	// HTTP server configuration
	HTTP HTTPConfig

	// Service mode configuration
	Services string `env:"SERVICE_MODE" envDefault:"http"`

	// Scheduler configuration
	Scheduler SchedulerConfig

	// Worker (job runner) configuration
	Worker WorkerConfig

	// Reaper configuration
	Reaper ReaperConfig

	// Reminder dispatch configuration
	Reminders ReminderConfig

	// Analytics configuration
	Analytics AnalyticsConfig

	// Stripe billing configuration
	Billing BillingConfig `envPrefix:"STRIPE_"`

	// Outbound email configuration
	Email EmailConfig `envPrefix:"EMAIL_"`

	// Instagram import integration configuration
	Instagram InstagramConfig `envPrefix:"INSTAGRAM_"`

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	// Sanitize HTTP server configuration
	c.HTTP.Sanitize()

	// Sanitize auth, runner, and feature configs
	c.Auth.Sanitize()
	c.Scheduler.Sanitize()
	c.Worker.Sanitize()
	c.Reaper.Sanitize()
	c.Reminders.Sanitize()
	c.Analytics.Sanitize()
	c.Billing.Sanitize()
	c.Email.Sanitize()
	c.Instagram.Sanitize()
	c.Observability.Sanitize()

	// Check APP_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and APP_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
// APP_ENV is checked as a fallback (common in deployment tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsWorkerEnabled returns true if the job worker service is enabled.
func (c *AppConfig) IsWorkerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeWorker]
}

// IsSchedulerEnabled returns true if the scheduler service is enabled.
func (c *AppConfig) IsSchedulerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeScheduler]
}

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeReaper]
}
