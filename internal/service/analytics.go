package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/domain/model"
)

// ErrAnalyticsNotEntitled is returned when the business's plan does not
// include the analytics dashboard.
var ErrAnalyticsNotEntitled = errors.New("plan does not include analytics")

const (
	defaultOverviewDays = 30
	maxOverviewDays     = 365
)

// AnalyticsServiceOptions groups dependencies for AnalyticsService.
type AnalyticsServiceOptions struct {
	Analytics  core.AnalyticsRepository // Required: tracking + dashboard storage
	Businesses core.BusinessRepository  // Required: ownership gates
	Billing    *BillingService          // Optional: entitlement checks (dashboard denied when nil)
	// RootDomain is the apex domain serving the app, used to split internal
	// and subdomain referrers from external ones. Empty disables the split.
	RootDomain string
	Logger     *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// AnalyticsService ingests public tracking beacons and serves the premium
// dashboard. Tracking is best-effort: a failed insert is logged, never
// surfaced to the page that sent the beacon.
type AnalyticsService struct {
	analytics  core.AnalyticsRepository
	businesses core.BusinessRepository
	billing    *BillingService
	rootDomain string
	logger     *slog.Logger
	now        func() time.Time
}

// NewAnalyticsService constructs a new AnalyticsService.
func NewAnalyticsService(opts AnalyticsServiceOptions) (*AnalyticsService, error) {
	if opts.Analytics == nil {
		return nil, errors.New("AnalyticsRepository is required")
	}
	if opts.Businesses == nil {
		return nil, errors.New("BusinessRepository is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "analytics_service")
	}

	return &AnalyticsService{
		analytics:  opts.Analytics,
		businesses: opts.Businesses,
		billing:    opts.Billing,
		rootDomain: opts.RootDomain,
		logger:     logger,
		now:        now,
	}, nil
}

// MustNewAnalyticsService constructs a new AnalyticsService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewAnalyticsService(opts AnalyticsServiceOptions) *AnalyticsService {
	svc, err := NewAnalyticsService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast during startup wiring when configuration is invalid
		panic(fmt.Sprintf("failed to create AnalyticsService: %v", err))
	}
	return svc
}

// TrackPageView records one page load. Validation errors are returned so the
// handler can reject malformed beacons; storage errors are swallowed.
func (s *AnalyticsService) TrackPageView(
	ctx context.Context,
	req *model.TrackPageViewRequest,
	userAgent string,
) error {
	if err := req.Validate(); err != nil {
		return err
	}

	pv := &model.PageView{
		SessionID:        req.SessionID,
		Path:             req.Path,
		BusinessID:       req.BusinessID,
		EventID:          req.EventID,
		Referrer:         req.Referrer,
		ReferrerCategory: model.CategorizeReferrer(req.Referrer, s.rootDomain),
		Device:           model.ClassifyDevice(userAgent),
	}
	if err := s.analytics.InsertPageView(ctx, pv); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "pageview insert failed", "error", err)
		}
	}
	return nil
}

// TrackInteraction records one user action (marker tap, RSVP click, share).
func (s *AnalyticsService) TrackInteraction(
	ctx context.Context,
	req *model.TrackInteractionRequest,
) error {
	if err := req.Validate(); err != nil {
		return err
	}

	in := &model.Interaction{
		SessionID:  req.SessionID,
		Kind:       req.Kind,
		BusinessID: req.BusinessID,
		EventID:    req.EventID,
		Metadata:   req.Metadata,
	}
	if err := s.analytics.InsertInteraction(ctx, in); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "interaction insert failed", "error", err)
		}
	}
	return nil
}

// Overview returns dashboard metrics for a business over the trailing
// rangeDays window. Requires management of the business and an
// analytics-entitled plan; admins bypass the entitlement.
func (s *AnalyticsService) Overview(
	ctx context.Context,
	actor Actor,
	businessID string,
	rangeDays int,
) (*model.BusinessOverview, error) {
	r, err := s.authorizeDashboard(ctx, actor, businessID, rangeDays)
	if err != nil {
		return nil, err
	}

	overview, err := s.analytics.Overview(ctx, r)
	if err != nil {
		return nil, err
	}
	overview.BusinessID = businessID
	overview.RangeDays = int(r.To.Sub(r.From).Hours() / 24)
	return overview, nil
}

// EventStats returns per-event views and RSVP conversion for a business over
// the trailing rangeDays window. Same gating as Overview.
func (s *AnalyticsService) EventStats(
	ctx context.Context,
	actor Actor,
	businessID string,
	rangeDays int,
) ([]*model.EventStats, error) {
	r, err := s.authorizeDashboard(ctx, actor, businessID, rangeDays)
	if err != nil {
		return nil, err
	}
	return s.analytics.EventStats(ctx, r)
}

// Rollup aggregates raw traffic into analytics_daily for the given UTC day.
// Returns the number of businesses aggregated. Called by the rollup job.
func (s *AnalyticsService) Rollup(ctx context.Context, day time.Time) (int, error) {
	day = day.UTC().Truncate(24 * time.Hour)
	n, err := s.analytics.AggregateDay(ctx, day)
	if err != nil {
		return 0, err
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "analytics rollup complete",
			"day", day.Format("2006-01-02"), "businesses", n)
	}
	return n, nil
}

func (s *AnalyticsService) authorizeDashboard(
	ctx context.Context,
	actor Actor,
	businessID string,
	rangeDays int,
) (model.AnalyticsRange, error) {
	business, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		return model.AnalyticsRange{}, err
	}
	if !actor.CanManage(business.OwnerID) {
		return model.AnalyticsRange{}, ErrForbidden
	}

	if !actor.IsAdmin() {
		if s.billing == nil {
			return model.AnalyticsRange{}, ErrAnalyticsNotEntitled
		}
		plan, planErr := s.billing.EffectivePlan(ctx, business.OwnerID)
		if planErr != nil {
			return model.AnalyticsRange{}, planErr
		}
		if !plan.Analytics {
			return model.AnalyticsRange{}, ErrAnalyticsNotEntitled
		}
	}

	if rangeDays <= 0 {
		rangeDays = defaultOverviewDays
	}
	if rangeDays > maxOverviewDays {
		rangeDays = maxOverviewDays
	}
	to := s.now().UTC()
	return model.AnalyticsRange{
		BusinessID: businessID,
		From:       to.AddDate(0, 0, -rangeDays),
		To:         to,
	}, nil
}
