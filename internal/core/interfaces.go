// Package core declares the ports between the service layer and its
// collaborators: repositories, caches, billing, and auth. Services
// depend on these interfaces; the data and adapters packages implement
// them.
package core

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/popmap/popmap-api/internal/domain/model"
)

// Sentinels shared between InstagramSource implementations and the import
// service, which translates them into user-facing errors.
var (
	ErrInstagramUserNotFound = errors.New("instagram user not found")
	ErrInstagramRateLimited  = errors.New("instagram provider rate limited")
)

// ProfileRepository defines the interface for profile data operations.
type ProfileRepository interface {
	Create(ctx context.Context, req *model.CreateProfileRequest) (*model.Profile, error)
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	// GetBySubject looks a profile up by its identity-provider subject.
	GetBySubject(ctx context.Context, subject string) (*model.Profile, error)
	GetByEmail(ctx context.Context, email string) (*model.Profile, error)
	List(ctx context.Context, opts model.ProfileListOptions) ([]*model.Profile, error)
	Update(ctx context.Context, id string, req model.UpdateProfileRequest) (*model.Profile, error)
	// SyncIdentity applies identity-derived field drift (email, provider,
	// claim role) detected during profile sync.
	SyncIdentity(ctx context.Context, id string, params model.SyncIdentityParams) (*model.Profile, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// BusinessRepository defines the interface for business data operations.
type BusinessRepository interface {
	Create(ctx context.Context, req *model.CreateBusinessRequest) (*model.Business, error)
	GetByID(ctx context.Context, id string) (*model.Business, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*model.Business, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Business, error)
	List(ctx context.Context, opts model.BusinessListOptions) ([]*model.Business, error)
	Update(ctx context.Context, id string, req model.UpdateBusinessRequest) (*model.Business, error)
	// SetSubdomain claims or clears the business subdomain; nil clears.
	// Uniqueness is enforced by the database.
	SetSubdomain(ctx context.Context, id string, subdomain *string) (*model.Business, error)
	SetVerified(ctx context.Context, id string, verified bool) (*model.Business, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// UpdateEventStatusParams carries a moderation transition.
type UpdateEventStatusParams struct {
	ID     string
	Status model.EventStatus
	Note   *string
}

// EventRepository defines the interface for event data operations.
type EventRepository interface {
	Create(ctx context.Context, req *model.CreateEventRequest) (*model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
	// List returns a page of events in (start_time, id) keyset order.
	List(ctx context.Context, opts model.EventListOptions) (*model.EventListPage, error)
	// ListMarkers returns the lean marker projection for map rendering.
	ListMarkers(ctx context.Context, opts model.EventListOptions) ([]*model.MapMarker, error)
	Update(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error)
	// UpdateStatus applies a moderation or cancellation transition.
	UpdateStatus(ctx context.Context, params UpdateEventStatusParams) (*model.Event, error)
	// ReplaceCategories replaces the event's category set.
	ReplaceCategories(ctx context.Context, id string, categoryIDs []string) error
	// CountByBusinessInMonth counts events a business created in the month containing at.
	// Plan quotas are enforced against this count.
	CountByBusinessInMonth(ctx context.Context, businessID string, at time.Time) (int, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// CategoryRepository defines the interface for category data operations.
type CategoryRepository interface {
	Create(ctx context.Context, req *model.CreateCategoryRequest) (*model.Category, error)
	GetByID(ctx context.Context, id string) (*model.Category, error)
	GetBySlug(ctx context.Context, slug string) (*model.Category, error)
	// List returns categories in sort_order. When activeOnly is set, inactive
	// categories are excluded.
	List(ctx context.Context, activeOnly bool) ([]*model.Category, error)
	Update(ctx context.Context, id string, req model.UpdateCategoryRequest) (*model.Category, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// RemoveRSVPParams identifies an RSVP by event and principal (profile or guest email).
type RemoveRSVPParams struct {
	EventID    string
	ProfileID  *string
	GuestEmail *string
}

// RSVPRepository defines the interface for RSVP data operations.
type RSVPRepository interface {
	// Upsert creates or updates the RSVP for (event, profile) or (event, guest email).
	Upsert(ctx context.Context, req *model.UpsertRSVPRequest) (*model.RSVP, error)
	GetByID(ctx context.Context, id string) (*model.RSVP, error)
	GetByUnsubscribeToken(ctx context.Context, token string) (*model.RSVP, error)
	ListByProfile(ctx context.Context, profileID string) ([]*model.RSVP, error)
	ListByEvent(ctx context.Context, eventID string) ([]*model.RSVP, error)
	CountsByEvent(ctx context.Context, eventID string) (*model.RSVPCounts, error)
	Remove(ctx context.Context, params RemoveRSVPParams) (bool, error)
	SetRemindersEnabled(ctx context.Context, id string, enabled bool) error
	// MergeGuestRSVPs attaches guest rows matching email to the profile,
	// dropping guest rows that would duplicate an existing profile RSVP.
	// Returns the number of rows merged.
	MergeGuestRSVPs(ctx context.Context, email, profileID string) (int, error)
}

// PlanRepository defines the interface for plan catalog reads.
type PlanRepository interface {
	GetByID(ctx context.Context, id string) (*model.Plan, error)
	GetByType(ctx context.Context, planType model.PlanType) (*model.Plan, error)
	GetByStripePriceID(ctx context.Context, priceID string) (*model.Plan, error)
	// List returns plans ordered by price. When publicOnly is set, internal
	// plans (e.g. beta tester) are excluded.
	List(ctx context.Context, publicOnly bool) ([]*model.Plan, error)
	// SeedDefaults inserts missing plans from the canonical catalog without
	// touching existing rows. Returns the number inserted.
	SeedDefaults(ctx context.Context) (int, error)
}

// SubscriptionRepository defines the interface for subscription data operations.
type SubscriptionRepository interface {
	// Upsert creates or replaces the profile's subscription row from Stripe state.
	Upsert(ctx context.Context, params model.UpsertSubscriptionParams) (*model.Subscription, error)
	// GetByProfile returns the profile's subscription joined with its plan,
	// or nil when the profile has never subscribed.
	GetByProfile(ctx context.Context, profileID string) (*model.SubscriptionWithPlan, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*model.Subscription, error)
	GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	UpdateStatus(ctx context.Context, params UpdateSubscriptionStatusParams) (*model.Subscription, error)
	// SaveStripeCustomer remembers the Stripe customer minted for a profile
	// so repeat checkouts reuse it. GetStripeCustomer returns "" when none
	// has been minted yet; GetProfileByStripeCustomer is the reverse lookup
	// webhook events need and returns "" for unknown customers.
	SaveStripeCustomer(ctx context.Context, profileID, customerID string) error
	GetStripeCustomer(ctx context.Context, profileID string) (string, error)
	GetProfileByStripeCustomer(ctx context.Context, customerID string) (string, error)
}

// UpdateSubscriptionStatusParams groups parameters for webhook-driven status transitions.
type UpdateSubscriptionStatusParams struct {
	StripeSubscriptionID string
	Status               model.SubscriptionStatus
	CancelAtPeriodEnd    *bool
	CurrentPeriodEnd     *time.Time
}

// FormTemplateRepository defines the interface for form template data operations.
type FormTemplateRepository interface {
	// Create persists the template with its fields and options in one transaction.
	Create(ctx context.Context, req *model.CreateFormTemplateRequest) (*model.FormTemplate, error)
	// GetByID returns the template with fields and options loaded.
	GetByID(ctx context.Context, id string) (*model.FormTemplate, error)
	// GetBySlug returns the template with fields and options loaded. Public
	// submission pages resolve templates this way.
	GetBySlug(ctx context.Context, slug string) (*model.FormTemplate, error)
	ListByBusiness(ctx context.Context, businessID string) ([]*model.FormTemplate, error)
	Update(ctx context.Context, id string, req model.UpdateFormTemplateRequest) (*model.FormTemplate, error)
	// ReplaceFields swaps the template's whole field set.
	ReplaceFields(ctx context.Context, id string, fields []model.CreateFormFieldRequest) (*model.FormTemplate, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// CreateFormSubmissionParams groups parameters for recording a submission.
type CreateFormSubmissionParams struct {
	TemplateID     string
	SubmitterEmail string
	SubmitterIP    *string
	Responses      []*model.FormResponse
}

// FormSubmissionRepository defines the interface for form submission data operations.
type FormSubmissionRepository interface {
	Create(ctx context.Context, params CreateFormSubmissionParams) (*model.FormSubmission, error)
	GetByID(ctx context.Context, id string) (*model.FormSubmission, error)
	ListByTemplate(ctx context.Context, opts model.FormSubmissionListOptions) ([]*model.FormSubmission, error)
	CountByTemplate(ctx context.Context, templateID string) (int, error)
}

// AnalyticsRepository defines the interface for analytics data operations.
type AnalyticsRepository interface {
	InsertPageView(ctx context.Context, pv *model.PageView) error
	InsertInteraction(ctx context.Context, in *model.Interaction) error
	// AggregateDay upserts analytics_daily rows for every business with raw
	// traffic on the given UTC day. Returns the number of businesses aggregated.
	AggregateDay(ctx context.Context, day time.Time) (int, error)
	// DeleteRawBefore removes raw page views and interactions older than cutoff.
	// Processes up to batchSize rows per table per call.
	DeleteRawBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
	// Overview aggregates dashboard metrics for a business over a range.
	Overview(ctx context.Context, r model.AnalyticsRange) (*model.BusinessOverview, error)
	// EventStats returns per-event views and RSVP conversion over a range.
	EventStats(ctx context.Context, r model.AnalyticsRange) ([]*model.EventStats, error)
}

// ReminderWindowParams bounds a reminder candidate scan.
type ReminderWindowParams struct {
	From  time.Time
	To    time.Time
	Limit int
}

// RecordReminderParams groups parameters for logging a sent reminder.
type RecordReminderParams struct {
	RSVPID  string
	EventID string
	Email   string
	SentAt  time.Time
}

// ReminderRepository defines the interface for reminder scan and dedup operations.
type ReminderRepository interface {
	// ListDueCandidates returns reminder-eligible RSVPs for approved events
	// starting within [From, To): reminders enabled, recipient not opted out,
	// and no reminder logged yet for the (rsvp, event) pair.
	ListDueCandidates(ctx context.Context, params ReminderWindowParams) ([]*model.ReminderCandidate, error)
	// RecordSent logs a sent reminder. Returns false when a log row already
	// exists for the (rsvp, event) pair, making sends idempotent.
	RecordSent(ctx context.Context, params RecordReminderParams) (bool, error)
	// DeleteOldLogs removes reminder logs older than maxAge, up to batchSize rows.
	DeleteOldLogs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}

// GuestPreferenceRepository defines the interface for guest email opt-outs.
type GuestPreferenceRepository interface {
	// Unsubscribe upserts the opt-out row for a normalized email.
	Unsubscribe(ctx context.Context, email string) (*model.GuestEmailPreference, error)
	IsUnsubscribed(ctx context.Context, email string) (bool, error)
}

// JobRepository defines the interface for job data operations.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	ReserveNext(ctx context.Context, jobType model.JobType, leaseSeconds int) (*model.Job, error)
	WaitForNotification(ctx context.Context, jobType model.JobType) error
	Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error)
	Complete(ctx context.Context, id string) (bool, error)
	Fail(ctx context.Context, id, errMsg string) (bool, error)
	Stats(ctx context.Context, jobType model.JobType) (*model.JobStats, error)
	List(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error)
	Delete(ctx context.Context, id string) error
	// DeletePendingByEvent drops queued jobs tied to an event, e.g. reminder
	// emails for an event that was cancelled. Returns the number deleted.
	DeletePendingByEvent(ctx context.Context, eventID string) (int, error)
}

// JobRepositoryTx defines optional transactional job creation support.
type JobRepositoryTx interface {
	CreateInTx(ctx context.Context, tx *sql.Tx, req *model.CreateJobRequest) (*model.Job, error)
}

// DeleteOldJobsParams selects which finished jobs DeleteOldJobs removes.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// ReaperRepository defines the interface for job cleanup operations.
type ReaperRepository interface {
	// FailStalePendingJobs marks pending jobs older than maxAge as failed.
	// Processes up to batchSize jobs per call to prevent long locks.
	// Returns the number of jobs marked as failed.
	FailStalePendingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)

	// DeleteOldJobs deletes jobs with the given status older than maxAge.
	// Processes up to batchSize jobs per call to prevent long locks.
	// Returns the number of jobs deleted.
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)
}

// InstagramPostLogRepository defines the interface for the per-post import ledger.
type InstagramPostLogRepository interface {
	// Create records an imported post. The database's unique
	// (business, post) constraint is the dedup arbiter.
	Create(ctx context.Context, log *model.InstagramPostLog) (*model.InstagramPostLog, error)
	// ListPostIDs returns every Instagram post ID already logged for the business.
	ListPostIDs(ctx context.Context, businessID string) ([]string, error)
	// ListByBusiness returns recent import history, newest first, with the
	// linked event title resolved.
	ListByBusiness(ctx context.Context, businessID string, limit int) ([]*model.InstagramImportLogEntry, error)
}

// InstagramSource fetches a business's public posts from an Instagram data
// provider.
type InstagramSource interface {
	// FetchPosts returns up to limit recent posts for the handle, newest first.
	// Returns ErrInstagramUserNotFound for unknown handles and
	// ErrInstagramRateLimited when the provider throttles.
	FetchPosts(ctx context.Context, handle string, limit int) ([]*model.InstagramPost, error)
}

// CaptionExtractor reads structured event details out of a post caption.
type CaptionExtractor interface {
	Extract(ctx context.Context, caption string) (*model.ExtractedEvent, error)
}

// Mailer delivers rendered email. Implementations log, relay over HTTP, or
// capture messages for tests.
type Mailer interface {
	Send(ctx context.Context, msg *MailMessage) error
}

// MailMessage is one outbound email.
type MailMessage struct {
	To       string
	ToName   string
	Subject  string
	TextBody string
	HTMLBody string
	// Headers carries extras such as List-Unsubscribe.
	Headers map[string]string
}
