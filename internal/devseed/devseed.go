package devseed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/popmap/popmap-api/internal/data"
	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/service"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB         *sql.DB
	categories *service.CategoryService
	billing    *service.BillingService
	businesses *service.BusinessService
	events     *service.EventService
	profiles   *data.ProfileRepo
	bizRepo    *data.BusinessRepo
	eventRepo  *data.EventRepo
}

// NewServices constructs all required services for seeding using the provided DB.
func NewServices(db *sql.DB) Services {
	categoryService := service.MustNewCategoryService(service.CategoryServiceOptions{
		Categories: data.NewCategoryRepo(db),
	})

	billingService := service.MustNewBillingService(service.BillingServiceOptions{
		Plans:         data.NewPlanRepo(db),
		Subscriptions: data.NewSubscriptionRepo(db),
	})

	bizRepo := data.NewBusinessRepo(db)
	businessService := service.MustNewBusinessService(service.BusinessServiceOptions{
		Businesses: bizRepo,
	})

	// Billing is left nil so seeding is never blocked by plan quotas.
	eventRepo := data.NewEventRepo(db)
	eventService := service.MustNewEventService(service.EventServiceOptions{
		Events:     eventRepo,
		Businesses: bizRepo,
	})

	return Services{
		DB:         db,
		categories: categoryService,
		billing:    billingService,
		businesses: businessService,
		events:     eventService,
		profiles:   data.NewProfileRepo(db),
		bizRepo:    bizRepo,
		eventRepo:  eventRepo,
	}
}

// Run executes the full development seeding workflow against the provided DB.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	failures := 0
	failures += seedCategories(ctx, svcs.categories, logger)
	failures += seedPlans(ctx, svcs.billing, logger)

	owner, n := seedProfiles(ctx, svcs.profiles, logger)
	failures += n
	if owner != nil {
		business, err := seedDemoBusiness(ctx, svcs, owner, logger)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed demo business", "error", err)
			}
			failures++
		} else {
			failures += seedDemoEvents(ctx, svcs, owner, business, logger)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func seedCategories(ctx context.Context, svc *service.CategoryService, logger *slog.Logger) int {
	failures := 0
	for _, req := range defaultCategories() {
		created, err := createCategory(ctx, svc, req)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to create category", "slug", req.Slug, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			msg := "category already exists"
			if created {
				msg = "created category"
			}
			logger.InfoContext(ctx, msg, "slug", req.Slug)
		}
	}
	return failures
}

func defaultCategories() []*model.CreateCategoryRequest {
	return []*model.CreateCategoryRequest{
		{Name: "Food Trucks", Slug: "food-trucks", Icon: "utensils", SortOrder: 1},
		{Name: "Markets", Slug: "markets", Icon: "shopping-basket", SortOrder: 2},
		{Name: "Live Music", Slug: "live-music", Icon: "music", SortOrder: 3},
		{Name: "Art & Crafts", Slug: "art-crafts", Icon: "palette", SortOrder: 4},
		{Name: "Vintage & Thrift", Slug: "vintage-thrift", Icon: "tag", SortOrder: 5},
		{Name: "Wellness", Slug: "wellness", Icon: "heart", SortOrder: 6},
		{Name: "Vendors", Slug: "vendors", Icon: "store", SortOrder: 7},
	}
}

func createCategory(
	ctx context.Context,
	svc *service.CategoryService,
	req *model.CreateCategoryRequest,
) (bool, error) {
	if _, err := svc.Create(ctx, service.SystemActor(), req); err != nil {
		if errors.Is(err, data.ErrCategorySlugExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func seedPlans(ctx context.Context, svc *service.BillingService, logger *slog.Logger) int {
	inserted, err := svc.SeedDefaultPlans(ctx, service.SystemActor())
	if err != nil {
		if logger != nil {
			logger.ErrorContext(ctx, "failed to seed plan catalog", "error", err)
		}
		return 1
	}
	if logger != nil {
		msg := "plan catalog already seeded"
		if inserted > 0 {
			msg = "seeded plan catalog"
		}
		logger.InfoContext(ctx, msg, "inserted", inserted)
	}
	return 0
}

// seedProfiles ensures the demo owner and admin exist and returns the owner
// profile so the demo business can be attached to it.
func seedProfiles(ctx context.Context, repo *data.ProfileRepo, logger *slog.Logger) (*model.Profile, int) {
	failures := 0
	var owner *model.Profile

	for _, req := range defaultProfiles() {
		profile, created, err := ensureProfile(ctx, repo, req)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to create profile", "subject", req.Subject, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			msg := "profile already exists"
			if created {
				msg = "created profile"
			}
			logger.InfoContext(ctx, msg, "subject", req.Subject, "role", profile.Role)
		}
		if profile.Role == domainauth.RoleBusinessOwner {
			owner = profile
		}
	}

	return owner, failures
}

func defaultProfiles() []*model.CreateProfileRequest {
	return []*model.CreateProfileRequest{
		{
			Subject:          "dev|demo-owner",
			Email:            "owner@popmap.dev",
			Username:         "demo-owner",
			FirstName:        "Demi",
			LastName:         "Owner",
			Role:             domainauth.RoleBusinessOwner,
			IdentityProvider: "devseed",
		},
		{
			Subject:          "dev|demo-admin",
			Email:            "admin@popmap.dev",
			Username:         "demo-admin",
			FirstName:        "Ada",
			LastName:         "Admin",
			Role:             domainauth.RoleAdmin,
			IdentityProvider: "devseed",
		},
	}
}

func ensureProfile(
	ctx context.Context,
	repo *data.ProfileRepo,
	req *model.CreateProfileRequest,
) (*model.Profile, bool, error) {
	existing, err := repo.GetBySubject(ctx, req.Subject)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, data.ErrProfileNotFound) {
		return nil, false, err
	}

	profile, err := repo.Create(ctx, req)
	if err != nil {
		return nil, false, err
	}
	return profile, true, nil
}

const demoBusinessName = "Golden Hour Coffee"

func seedDemoBusiness(
	ctx context.Context,
	svcs Services,
	owner *model.Profile,
	logger *slog.Logger,
) (*model.Business, error) {
	existing, err := svcs.bizRepo.ListByOwner(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	for _, b := range existing {
		if b.Name == demoBusinessName {
			if logger != nil {
				logger.InfoContext(ctx, "demo business already exists", "business_id", b.ID)
			}
			return b, nil
		}
	}

	actor := service.Actor{ProfileID: owner.ID, Role: owner.Role}
	business, err := svcs.businesses.Create(ctx, actor, &model.CreateBusinessRequest{
		Name:         demoBusinessName,
		Description:  "Pop-up espresso bar roaming the east side. Find us before noon.",
		ContactEmail: "hello@goldenhour.coffee",
		Website:      stringPtr("https://goldenhour.coffee"),
	})
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.InfoContext(ctx, "created demo business", "business_id", business.ID)
	}
	return business, nil
}

// seedDemoEvents submits a handful of events for the demo business and
// approves them so they show up on the public map immediately. Skipped
// entirely once the business has any events, so reruns never pile up
// duplicates.
func seedDemoEvents(
	ctx context.Context,
	svcs Services,
	owner *model.Profile,
	business *model.Business,
	logger *slog.Logger,
) int {
	page, err := svcs.eventRepo.List(ctx, model.EventListOptions{
		BusinessID: &business.ID,
		IncludeAll: true,
		Limit:      1,
	})
	if err != nil {
		if logger != nil {
			logger.ErrorContext(ctx, "failed to check existing demo events", "error", err)
		}
		return 1
	}
	if len(page.Events) > 0 {
		if logger != nil {
			logger.InfoContext(ctx, "demo events already exist", "business_id", business.ID)
		}
		return 0
	}

	failures := 0
	actor := service.Actor{ProfileID: owner.ID, Role: owner.Role}
	for _, req := range demoEvents(business.ID, categoryIDsBySlug(ctx, svcs.categories, logger)) {
		event, err := svcs.events.Submit(ctx, actor, req)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to submit demo event", "title", req.Title, "error", err)
			}
			failures++
			continue
		}
		if _, err := svcs.events.Moderate(
			ctx, service.SystemActor(), event.ID, model.ModerateEventRequest{Approve: true},
		); err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to approve demo event", "event_id", event.ID, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			logger.InfoContext(ctx, "created demo event", "event_id", event.ID, "title", event.Title)
		}
	}
	return failures
}

// categoryIDsBySlug resolves seeded category slugs to ids. Lookups that fail
// just leave the event uncategorized; seeding still proceeds.
func categoryIDsBySlug(
	ctx context.Context,
	svc *service.CategoryService,
	logger *slog.Logger,
) map[string]string {
	ids := make(map[string]string)
	for _, slug := range []string{"food-trucks", "markets"} {
		category, err := svc.GetBySlug(ctx, slug)
		if err != nil {
			if logger != nil {
				logger.WarnContext(ctx, "failed to resolve category for demo events", "slug", slug, "error", err)
			}
			continue
		}
		ids[slug] = category.ID
	}
	return ids
}

func demoEvents(businessID string, categoryIDs map[string]string) []*model.CreateEventRequest {
	base := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	return []*model.CreateEventRequest{
		{
			BusinessID:  businessID,
			Title:       "Sunrise Espresso Pop-Up",
			Description: "Single-origin pours and fresh pastries by the waterfront.",
			Address:     "98 SE Water Ave, Portland, OR",
			Latitude:    45.5152,
			Longitude:   -122.6654,
			StartTime:   base.Add(8 * time.Hour),
			EndTime:     base.Add(12 * time.Hour),
			CategoryIDs: categorySelection(categoryIDs, "food-trucks"),
		},
		{
			BusinessID:  businessID,
			Title:       "Latte Art Throwdown",
			Description: "Open pour-off with guest judges. Bring your best rosetta.",
			Address:     "240 N Broadway, Portland, OR",
			Latitude:    45.5349,
			Longitude:   -122.6684,
			StartTime:   base.Add(3 * 24 * time.Hour).Add(18 * time.Hour),
			EndTime:     base.Add(3 * 24 * time.Hour).Add(21 * time.Hour),
			CategoryIDs: categorySelection(categoryIDs, "food-trucks"),
		},
		{
			BusinessID:  businessID,
			Title:       "Night Market Cart",
			Description: "Affogato and cold brew at the weekend night market.",
			Address:     "100 SE Alder St, Portland, OR",
			Latitude:    45.5180,
			Longitude:   -122.6603,
			StartTime:   base.Add(5 * 24 * time.Hour).Add(17 * time.Hour),
			EndTime:     base.Add(5 * 24 * time.Hour).Add(23 * time.Hour),
			CategoryIDs: categorySelection(categoryIDs, "markets"),
		},
	}
}

func categorySelection(categoryIDs map[string]string, slugs ...string) []string {
	var out []string
	for _, slug := range slugs {
		if id, ok := categoryIDs[slug]; ok {
			out = append(out, id)
		}
	}
	return out
}

func stringPtr(s string) *string {
	return &s
}
