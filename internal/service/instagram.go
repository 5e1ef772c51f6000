package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/domain/model"
)

var (
	// ErrInstagramNotEntitled is returned when the owner's plan does not
	// include premium customization features.
	ErrInstagramNotEntitled = errors.New("plan does not include instagram import")
	// ErrInstagramHandleMissing is returned when the business has no
	// Instagram handle configured.
	ErrInstagramHandleMissing = errors.New("no instagram handle configured")
)

const (
	defaultImportHashtag   = "#popmap"
	defaultFetchLimit      = 20
	defaultHistoryLimit    = 50
	defaultConfidenceFloor = 0.6

	importDateLayout = "2006-01-02"
	importTimeLayout = "15:04"
)

// InstagramServiceOptions groups dependencies for InstagramService.
type InstagramServiceOptions struct {
	Businesses core.BusinessRepository          // Required: business lookup
	Events     core.EventRepository             // Required: draft event creation
	Logs       core.InstagramPostLogRepository  // Required: import ledger
	Source     core.InstagramSource             // Required: post fetching
	Extractor  core.CaptionExtractor            // Required: caption extraction
	Billing    *BillingService                  // Optional: entitlement checks fail closed when nil
	Logger     *slog.Logger

	// Hashtag selects which posts are import candidates (default "#popmap").
	Hashtag string
	// FetchLimit caps posts fetched per run (default 20).
	FetchLimit int
	// ConfidenceFloor is the minimum extraction confidence to draft an event
	// (default 0.6).
	ConfidenceFloor float64
	// Now is the clock used for draft date defaults (defaults to time.Now).
	Now func() time.Time
}

// InstagramService imports a business's hashtagged Instagram posts as draft
// events: fetch, dedup against the import ledger, extract event details from
// captions, and create pending events for moderation.
type InstagramService struct {
	businesses      core.BusinessRepository
	events          core.EventRepository
	logs            core.InstagramPostLogRepository
	source          core.InstagramSource
	extractor       core.CaptionExtractor
	billing         *BillingService
	logger          *slog.Logger
	hashtag         string
	fetchLimit      int
	confidenceFloor float64
	now             func() time.Time
}

// NewInstagramService constructs a new InstagramService.
func NewInstagramService(opts InstagramServiceOptions) (*InstagramService, error) {
	if opts.Businesses == nil {
		return nil, errors.New("BusinessRepository is required")
	}
	if opts.Events == nil {
		return nil, errors.New("EventRepository is required")
	}
	if opts.Logs == nil {
		return nil, errors.New("InstagramPostLogRepository is required")
	}
	if opts.Source == nil {
		return nil, errors.New("InstagramSource is required")
	}
	if opts.Extractor == nil {
		return nil, errors.New("CaptionExtractor is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "instagram_service")
	}

	hashtag := strings.ToLower(strings.TrimSpace(opts.Hashtag))
	if hashtag == "" {
		hashtag = defaultImportHashtag
	}
	fetchLimit := opts.FetchLimit
	if fetchLimit <= 0 {
		fetchLimit = defaultFetchLimit
	}
	floor := opts.ConfidenceFloor
	if floor <= 0 {
		floor = defaultConfidenceFloor
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &InstagramService{
		businesses:      opts.Businesses,
		events:          opts.Events,
		logs:            opts.Logs,
		source:          opts.Source,
		extractor:       opts.Extractor,
		billing:         opts.Billing,
		logger:          logger,
		hashtag:         hashtag,
		fetchLimit:      fetchLimit,
		confidenceFloor: floor,
		now:             now,
	}, nil
}

// MustNewInstagramService constructs a new InstagramService and panics on error.
func MustNewInstagramService(opts InstagramServiceOptions) *InstagramService {
	svc, err := NewInstagramService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast during startup wiring when configuration is invalid
		panic(fmt.Sprintf("failed to create InstagramService: %v", err))
	}
	return svc
}

// Import fetches the business's recent hashtagged posts and drafts a pending
// event per post that reads as an event announcement. Only the owner or an
// admin may import; the owner's plan must include premium customization.
func (s *InstagramService) Import(
	ctx context.Context,
	actor Actor,
	businessID string,
) (*model.InstagramImportResult, error) {
	business, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(business.OwnerID) {
		return nil, ErrForbidden
	}
	if !actor.IsAdmin() {
		if err := s.checkEntitlement(ctx, business.OwnerID); err != nil {
			return nil, err
		}
	}
	if business.InstagramHandle == nil || strings.TrimSpace(*business.InstagramHandle) == "" {
		return nil, ErrInstagramHandleMissing
	}

	posts, err := s.source.FetchPosts(ctx, *business.InstagramHandle, s.fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch instagram posts: %w", err)
	}

	importedIDs, err := s.logs.ListPostIDs(ctx, business.ID)
	if err != nil {
		return nil, fmt.Errorf("list imported posts: %w", err)
	}
	seen := make(map[string]bool, len(importedIDs))
	for _, id := range importedIDs {
		seen[id] = true
	}

	result := &model.InstagramImportResult{DraftEventIDs: []string{}}
	for _, post := range posts {
		if !strings.Contains(strings.ToLower(post.Caption), s.hashtag) {
			continue
		}
		if seen[post.ID] {
			result.SkippedDuplicate++
			continue
		}

		extracted, err := s.extractor.Extract(ctx, post.Caption)
		if err != nil {
			result.SkippedError++
			if s.logger != nil {
				s.logger.WarnContext(ctx, "caption extraction failed",
					"business_id", business.ID, "post_id", post.ID, "error", err)
			}
			continue
		}
		if !extracted.IsEvent || extracted.Confidence < s.confidenceFloor {
			result.SkippedNotEvent++
			continue
		}

		event, err := s.createDraftEvent(ctx, business, post, extracted)
		if err != nil {
			result.SkippedError++
			if s.logger != nil {
				s.logger.WarnContext(ctx, "draft event creation failed",
					"business_id", business.ID, "post_id", post.ID, "error", err)
			}
			continue
		}

		if _, err := s.logs.Create(ctx, &model.InstagramPostLog{
			BusinessID:        business.ID,
			InstagramPostID:   post.ID,
			EventID:           &event.ID,
			OriginalPermalink: post.Permalink,
			OriginalCaption:   post.Caption,
		}); err != nil && !errors.Is(err, data.ErrInstagramPostAlreadyImported) {
			return nil, fmt.Errorf("record import: %w", err)
		}

		result.Imported++
		result.DraftEventIDs = append(result.DraftEventIDs, event.ID)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "instagram import finished",
			"business_id", business.ID,
			"imported", result.Imported,
			"skipped_duplicate", result.SkippedDuplicate,
			"skipped_not_event", result.SkippedNotEvent,
			"skipped_error", result.SkippedError)
	}
	return result, nil
}

// History returns the business's recent import ledger, newest first. Only the
// owner or an admin may read it.
func (s *InstagramService) History(
	ctx context.Context,
	actor Actor,
	businessID string,
) ([]*model.InstagramImportLogEntry, error) {
	business, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(business.OwnerID) {
		return nil, ErrForbidden
	}
	return s.logs.ListByBusiness(ctx, business.ID, defaultHistoryLimit)
}

func (s *InstagramService) checkEntitlement(ctx context.Context, ownerID string) error {
	if s.billing == nil {
		return ErrInstagramNotEntitled
	}
	plan, err := s.billing.EffectivePlan(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("resolve plan: %w", err)
	}
	if !plan.CustomSubdomain {
		return ErrInstagramNotEntitled
	}
	return nil
}

// createDraftEvent maps an extracted caption onto a pending event. Missing
// fields fall back: start defaults to noon today, end to start+2h, the
// description to the caption, the address to "Location TBD". Coordinates are
// left at the origin for the owner to fix before moderation.
func (s *InstagramService) createDraftEvent(
	ctx context.Context,
	business *model.Business,
	post *model.InstagramPost,
	extracted *model.ExtractedEvent,
) (*model.Event, error) {
	start := s.startTime(extracted)
	end := s.endTime(extracted, start)

	title := strings.TrimSpace(extracted.Title)
	if title == "" {
		title = "Event by " + business.Name
	}
	description := strings.TrimSpace(extracted.Description)
	if description == "" {
		description = truncateRunes(post.Caption, 500)
	}
	address := strings.TrimSpace(extracted.Location)
	if address == "" {
		address = "Location TBD"
	}

	return s.events.Create(ctx, &model.CreateEventRequest{
		CreatorID:   business.OwnerID,
		BusinessID:  business.ID,
		Title:       title,
		Description: description,
		Address:     address,
		StartTime:   start,
		EndTime:     end,
		ImageURL:    post.ImageURL,
	})
}

func (s *InstagramService) startTime(extracted *model.ExtractedEvent) time.Time {
	day := s.now().UTC()
	if d, err := time.Parse(importDateLayout, extracted.StartDate); err == nil {
		day = d
	}
	clock := 12 * time.Hour
	if c, err := time.Parse(importTimeLayout, extracted.StartTime); err == nil {
		clock = time.Duration(c.Hour())*time.Hour + time.Duration(c.Minute())*time.Minute
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC).Add(clock)
}

func (s *InstagramService) endTime(extracted *model.ExtractedEvent, start time.Time) time.Time {
	c, err := time.Parse(importTimeLayout, extracted.EndTime)
	if err != nil {
		return start.Add(2 * time.Hour)
	}
	day := start
	if d, derr := time.Parse(importDateLayout, extracted.EndDate); derr == nil {
		day = d
	}
	end := time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), 0, 0, time.UTC)
	if !end.After(start) {
		return start.Add(2 * time.Hour)
	}
	return end
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
