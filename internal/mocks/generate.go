// Package mocks provides mock implementations for testing the popmap platform.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockProfileRepository(ctrl)
//	mockRepo.EXPECT().GetBySubject(gomock.Any(), gomock.Any()).Return(profile, nil)
package mocks

// Generate mock for ProfileRepository interface from internal/core package.
// This creates MockProfileRepository with methods for all ProfileRepository interface methods:
// Create, GetByID, GetBySubject, GetByEmail, List, Update, SyncIdentity, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=profile_repository_mock.go github.com/popmap/popmap-api/internal/core ProfileRepository

// Generate mock for BusinessRepository interface from internal/core package.
// This creates MockBusinessRepository with methods for all BusinessRepository interface methods:
// Create, GetByID, GetBySubdomain, ListByOwner, List, Update, SetSubdomain, SetVerified, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=business_repository_mock.go github.com/popmap/popmap-api/internal/core BusinessRepository

// Generate mock for EventRepository interface from internal/core package.
// This creates MockEventRepository with methods for all EventRepository interface methods:
// Create, GetByID, List, ListMarkers, Update, UpdateStatus, ReplaceCategories, CountByBusinessInMonth, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=event_repository_mock.go github.com/popmap/popmap-api/internal/core EventRepository

// Generate mock for CategoryRepository interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=category_repository_mock.go github.com/popmap/popmap-api/internal/core CategoryRepository

// Generate mock for RSVPRepository interface from internal/core package.
// This creates MockRSVPRepository with methods for all RSVPRepository interface methods:
// Upsert, GetByID, GetByUnsubscribeToken, ListByProfile, ListByEvent, CountsByEvent, Remove,
// SetRemindersEnabled, MergeGuestRSVPs
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=rsvp_repository_mock.go github.com/popmap/popmap-api/internal/core RSVPRepository

// Generate mock for PlanRepository interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=plan_repository_mock.go github.com/popmap/popmap-api/internal/core PlanRepository

// Generate mock for SubscriptionRepository interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=subscription_repository_mock.go github.com/popmap/popmap-api/internal/core SubscriptionRepository

// Generate mock for FormTemplateRepository interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=form_template_repository_mock.go github.com/popmap/popmap-api/internal/core FormTemplateRepository

// Generate mock for FormSubmissionRepository interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=form_submission_repository_mock.go github.com/popmap/popmap-api/internal/core FormSubmissionRepository

// Generate mock for AnalyticsRepository interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=analytics_repository_mock.go github.com/popmap/popmap-api/internal/core AnalyticsRepository

// Generate mock for ReminderRepository interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reminder_repository_mock.go github.com/popmap/popmap-api/internal/core ReminderRepository

// Generate mock for GuestPreferenceRepository interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=guest_preference_repository_mock.go github.com/popmap/popmap-api/internal/core GuestPreferenceRepository

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Create, GetByID, ReserveNext, WaitForNotification, Heartbeat, Complete, Fail, Stats, List,
// Delete, DeletePendingByEvent
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/popmap/popmap-api/internal/core JobRepository

// Generate mock for ScheduledJobsRepository interface from internal/core package.
// This creates MockScheduledJobsRepository with methods for all ScheduledJobsRepository interface methods:
// FindDue, FindDueTx, MarkQueued, MarkQueuedTx, UpdateActiveFireKeyTx, TryWithTaskLock
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=scheduled_jobs_repository_mock.go github.com/popmap/popmap-api/internal/core ScheduledJobsRepository

// Generate mock for JobIntrospector interface from internal/core package.
// This creates MockJobIntrospector with methods for all JobIntrospector interface methods:
// RunningJobExistsByTaskName, JobStatesByTaskName
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_introspector_mock.go github.com/popmap/popmap-api/internal/core JobIntrospector

// Generate mock for ReaperRepository interface from internal/core package.
// This creates MockReaperRepository with methods for all ReaperRepository interface methods:
// FailStalePendingJobs, DeleteOldJobs
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=reaper_repository_mock.go github.com/popmap/popmap-api/internal/core ReaperRepository

// Generate mock for CacheRepository interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/popmap/popmap-api/internal/core CacheRepository

// Generate mock for StripeGateway interface from internal/core package.
// This creates MockStripeGateway with methods for all StripeGateway interface methods:
// CreateCustomer, CreateCheckoutSession, GetSubscription, CancelAtPeriodEnd, VerifyWebhook
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=stripe_gateway_mock.go github.com/popmap/popmap-api/internal/core StripeGateway

// Generate mock for Mailer interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=mailer_mock.go github.com/popmap/popmap-api/internal/core Mailer

// Generate mocks for the Instagram import ports from internal/core package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=instagram_post_log_repository_mock.go github.com/popmap/popmap-api/internal/core InstagramPostLogRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=instagram_source_mock.go github.com/popmap/popmap-api/internal/core InstagramSource
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=caption_extractor_mock.go github.com/popmap/popmap-api/internal/core CaptionExtractor
