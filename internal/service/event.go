package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/domain/model"
)

const (
	defaultEventPageSize = 50
	maxEventPageSize     = 200
)

// ErrEventQuotaExceeded is returned when the business owner's plan does not
// allow another event this month.
var ErrEventQuotaExceeded = errors.New("monthly event limit reached")

// worldBounds keys uncropped map-data requests.
var worldBounds = model.BoundingBox{MinLat: -90, MaxLat: 90, MinLng: -180, MaxLng: 180}

// EventServiceOptions groups dependencies for EventService.
type EventServiceOptions struct {
	Events     core.EventRepository    // Required: event storage
	Businesses core.BusinessRepository // Required: ownership checks
	Billing    *BillingService         // Optional: quota checks are skipped when nil
	Jobs       core.JobRepository      // Optional: pending-job cleanup on cancel
	Cache      *core.MapCache          // Optional: map-data caching
	Logger     *slog.Logger
}

// EventService owns the event lifecycle: submission against plan quotas,
// owner updates with re-approval, admin moderation, and the public listing
// surfaces backed by the map cache.
type EventService struct {
	events     core.EventRepository
	businesses core.BusinessRepository
	billing    *BillingService
	jobs       core.JobRepository
	cache      *core.MapCache
	logger     *slog.Logger
}

// NewEventService constructs a new EventService.
func NewEventService(opts EventServiceOptions) (*EventService, error) {
	if opts.Events == nil {
		return nil, errors.New("EventRepository is required")
	}
	if opts.Businesses == nil {
		return nil, errors.New("BusinessRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "event_service")
		logger.Debug("EventService initialized",
			"quota_enforced", opts.Billing != nil,
			"cache_enabled", opts.Cache != nil)
	}

	return &EventService{
		events:     opts.Events,
		businesses: opts.Businesses,
		billing:    opts.Billing,
		jobs:       opts.Jobs,
		cache:      opts.Cache,
		logger:     logger,
	}, nil
}

// MustNewEventService constructs a new EventService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewEventService(opts EventServiceOptions) *EventService {
	svc, err := NewEventService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast during startup wiring when configuration is invalid
		panic(fmt.Sprintf("failed to create EventService: %v", err))
	}
	return svc
}

// Submit creates an event in pending status for moderation. The actor must
// manage the business, and the owner's plan must allow another event this
// month; admins bypass the quota.
func (s *EventService) Submit(
	ctx context.Context,
	actor Actor,
	req *model.CreateEventRequest,
) (*model.Event, error) {
	if !actor.IsBusinessOwner() && !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	req.CreatorID = actor.ProfileID
	if err := req.Validate(); err != nil {
		return nil, err
	}

	business, err := s.businesses.GetByID(ctx, req.BusinessID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(business.OwnerID) {
		return nil, ErrForbidden
	}

	if !actor.IsAdmin() {
		if err := s.checkEventQuota(ctx, business.OwnerID, business.ID); err != nil {
			return nil, err
		}
	}

	event, err := s.events.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "event submitted",
			"event_id", event.ID, "business_id", event.BusinessID,
			"creator_id", event.CreatorID, "title", event.Title)
	}
	return event, nil
}

// checkEventQuota enforces the monthly plan limit against events created in
// the current month, whatever their moderation status.
func (s *EventService) checkEventQuota(ctx context.Context, ownerID, businessID string) error {
	if s.billing == nil {
		return nil
	}

	plan, err := s.billing.EffectivePlan(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("resolve plan: %w", err)
	}

	count, err := s.events.CountByBusinessInMonth(ctx, businessID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("count events: %w", err)
	}
	if !plan.AllowsEventCreation(count) {
		return fmt.Errorf("%w: plan %q allows %d per month",
			ErrEventQuotaExceeded, plan.Name, plan.MaxEventsPerMonth)
	}
	return nil
}

// Update applies a partial update by the creator or an admin. Changing
// material fields on an approved event sends it back through moderation.
func (s *EventService) Update(
	ctx context.Context,
	actor Actor,
	id string,
	req model.UpdateEventRequest,
) (*model.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(event.CreatorID) {
		return nil, ErrForbidden
	}

	// The interval has to stay valid when only one endpoint moves.
	if err := validateUpdatedInterval(event, req); err != nil {
		return nil, err
	}

	wasApproved := event.Status == model.EventStatusApproved
	updated, err := s.events.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}

	if wasApproved && req.RequiresReapproval() && !actor.IsAdmin() {
		updated, err = s.events.UpdateStatus(ctx, core.UpdateEventStatusParams{
			ID:     id,
			Status: model.EventStatusPending,
		})
		if err != nil {
			return nil, fmt.Errorf("reset moderation: %w", err)
		}
		if s.logger != nil {
			s.logger.InfoContext(ctx, "event returned to moderation", "event_id", id)
		}
	}

	if wasApproved {
		s.invalidateMapCache(ctx)
	}
	return updated, nil
}

// validateUpdatedInterval rejects updates that would leave end_time at or
// before start_time once merged with the stored event.
func validateUpdatedInterval(event *model.Event, req model.UpdateEventRequest) error {
	start := event.StartTime
	end := event.EndTime
	if req.StartTime != nil {
		start = *req.StartTime
	}
	if req.EndTime != nil {
		end = *req.EndTime
	}
	if !end.After(start) {
		return errors.New("end_time must be after start_time")
	}
	return nil
}

// Cancel withdraws an event and drops its queued jobs, reminder emails
// included. Only the creator or an admin may cancel.
func (s *EventService) Cancel(ctx context.Context, actor Actor, id string) (*model.Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(event.CreatorID) {
		return nil, ErrForbidden
	}

	wasApproved := event.Status == model.EventStatusApproved
	cancelled, err := s.events.UpdateStatus(ctx, core.UpdateEventStatusParams{
		ID:     id,
		Status: model.EventStatusCancelled,
	})
	if err != nil {
		return nil, err
	}

	if s.jobs != nil {
		dropped, jobErr := s.jobs.DeletePendingByEvent(ctx, id)
		switch {
		case jobErr != nil && s.logger != nil:
			s.logger.WarnContext(ctx, "pending job cleanup failed", "event_id", id, "error", jobErr)
		case dropped > 0 && s.logger != nil:
			s.logger.InfoContext(ctx, "pending jobs dropped", "event_id", id, "count", dropped)
		}
	}

	if wasApproved {
		s.invalidateMapCache(ctx)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "event cancelled", "event_id", id, "actor_id", actor.ProfileID)
	}
	return cancelled, nil
}

// Moderate approves or rejects an event. Admin only.
func (s *EventService) Moderate(
	ctx context.Context,
	actor Actor,
	id string,
	req model.ModerateEventRequest,
) (*model.Event, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	status := model.EventStatusRejected
	if req.Approve {
		status = model.EventStatusApproved
	}

	event, err := s.events.UpdateStatus(ctx, core.UpdateEventStatusParams{
		ID:     id,
		Status: status,
		Note:   req.Note,
	})
	if err != nil {
		return nil, err
	}

	if req.Approve {
		s.invalidateMapCache(ctx)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "event moderated",
			"event_id", id, "status", status, "actor_id", actor.ProfileID)
	}
	return event, nil
}

// GetByID returns the event when the actor may see it. Approved events are
// public; everything else is visible to the creator, the business owner, and
// admins, and reads as not-found to anyone else.
func (s *EventService) GetByID(ctx context.Context, actor Actor, id string) (*model.Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.Status == model.EventStatusApproved {
		return event, nil
	}
	if actor.CanManage(event.CreatorID) {
		return event, nil
	}
	if actor.ProfileID != "" {
		business, bizErr := s.businesses.GetByID(ctx, event.BusinessID)
		if bizErr == nil && actor.Owns(business.OwnerID) {
			return event, nil
		}
	}
	return nil, data.ErrEventNotFound
}

// List returns a page of publicly visible events: approved and not yet ended.
func (s *EventService) List(ctx context.Context, opts model.EventListOptions) (*model.EventListPage, error) {
	opts = normalizeEventListOptions(opts)
	opts.Status = nil
	opts.IncludeAll = false
	return s.events.List(ctx, opts)
}

// ListManaged returns events for owner dashboards and admin moderation
// queues. Admins see everything; owners see their own submissions.
func (s *EventService) ListManaged(
	ctx context.Context,
	actor Actor,
	opts model.EventListOptions,
) (*model.EventListPage, error) {
	if actor.ProfileID == "" {
		return nil, ErrForbidden
	}
	opts = normalizeEventListOptions(opts)
	opts.IncludeAll = true
	if !actor.IsAdmin() {
		opts.CreatorID = &actor.ProfileID
	}
	return s.events.List(ctx, opts)
}

// mapDataPayload is the JSON shape cached and served for map clients.
type mapDataPayload struct {
	Markers []*model.MapMarker `json:"markers"`
}

// MapData returns the rendered marker payload for a viewport, serving from
// the cache when warm. Cache failures degrade to direct reads.
func (s *EventService) MapData(ctx context.Context, opts model.EventListOptions) ([]byte, error) {
	opts = normalizeEventListOptions(opts)
	opts.Status = nil
	opts.IncludeAll = false

	key := s.mapKey(opts)
	if s.cache != nil {
		payload, err := s.cache.Get(ctx, key)
		if err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "map cache read failed", "error", err)
			}
		} else if payload != nil {
			return payload, nil
		}
	}

	markers, err := s.events.ListMarkers(ctx, opts)
	if err != nil {
		return nil, err
	}
	if markers == nil {
		markers = []*model.MapMarker{}
	}

	payload, err := json.Marshal(mapDataPayload{Markers: markers})
	if err != nil {
		return nil, fmt.Errorf("encode map data: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, payload); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "map cache write failed", "error", err)
		}
	}
	return payload, nil
}

func (s *EventService) mapKey(opts model.EventListOptions) core.MapKey {
	bounds := worldBounds
	if opts.Bounds != nil {
		bounds = *opts.Bounds
	}
	categoryID := ""
	if opts.CategoryID != nil {
		categoryID = *opts.CategoryID
	}
	return core.NewMapKey(bounds, categoryID)
}

func (s *EventService) invalidateMapCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "map cache invalidation failed", "error", err)
	}
}

func normalizeEventListOptions(opts model.EventListOptions) model.EventListOptions {
	if opts.Limit <= 0 {
		opts.Limit = defaultEventPageSize
	}
	if opts.Limit > maxEventPageSize {
		opts.Limit = maxEventPageSize
	}
	if opts.Bounds != nil && !opts.Bounds.Valid() {
		opts.Bounds = nil
	}
	return opts
}
