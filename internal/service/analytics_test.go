package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var analyticsNow = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

type analyticsMocks struct {
	analytics  *mocks.MockAnalyticsRepository
	businesses *mocks.MockBusinessRepository
	plans      *mocks.MockPlanRepository
	subs       *mocks.MockSubscriptionRepository
}

func newAnalyticsService(t *testing.T) (*AnalyticsService, analyticsMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	m := analyticsMocks{
		analytics:  mocks.NewMockAnalyticsRepository(ctrl),
		businesses: mocks.NewMockBusinessRepository(ctrl),
		plans:      mocks.NewMockPlanRepository(ctrl),
		subs:       mocks.NewMockSubscriptionRepository(ctrl),
	}
	billing, err := NewBillingService(BillingServiceOptions{
		Plans:         m.plans,
		Subscriptions: m.subs,
	})
	require.NoError(t, err)

	svc, err := NewAnalyticsService(AnalyticsServiceOptions{
		Analytics:  m.analytics,
		Businesses: m.businesses,
		Billing:    billing,
		RootDomain: "popmap.example",
		Now:        func() time.Time { return analyticsNow },
	})
	require.NoError(t, err)
	return svc, m
}

func TestAnalyticsService_TrackPageView(t *testing.T) {
	svc, m := newAnalyticsService(t)
	ctx := context.Background()

	m.analytics.EXPECT().
		InsertPageView(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, pv *model.PageView) error {
			assert.Equal(t, model.ReferrerInstagram, pv.ReferrerCategory)
			assert.Equal(t, model.DeviceMobile, pv.Device)
			assert.Equal(t, "sess-1", pv.SessionID)
			return nil
		})

	err := svc.TrackPageView(ctx, &model.TrackPageViewRequest{
		SessionID: "sess-1",
		Path:      "/b/saltwater",
		Referrer:  "https://l.instagram.com/somepost",
	}, "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)")

	require.NoError(t, err)
}

func TestAnalyticsService_TrackPageView_SubdomainReferrer(t *testing.T) {
	svc, m := newAnalyticsService(t)
	ctx := context.Background()

	m.analytics.EXPECT().
		InsertPageView(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, pv *model.PageView) error {
			assert.Equal(t, model.ReferrerSubdomain, pv.ReferrerCategory)
			return nil
		})

	err := svc.TrackPageView(ctx, &model.TrackPageViewRequest{
		SessionID: "sess-1",
		Path:      "/",
		Referrer:  "https://saltwater.popmap.example/menu",
	}, "Mozilla/5.0")

	require.NoError(t, err)
}

func TestAnalyticsService_TrackPageView_InsertFailureSwallowed(t *testing.T) {
	svc, m := newAnalyticsService(t)
	ctx := context.Background()

	m.analytics.EXPECT().
		InsertPageView(ctx, gomock.Any()).
		Return(errors.New("db down"))

	err := svc.TrackPageView(ctx, &model.TrackPageViewRequest{
		SessionID: "sess-1",
		Path:      "/",
	}, "")

	assert.NoError(t, err)
}

func TestAnalyticsService_TrackPageView_MissingSessionRejected(t *testing.T) {
	svc, _ := newAnalyticsService(t)

	err := svc.TrackPageView(context.Background(), &model.TrackPageViewRequest{Path: "/"}, "")

	assert.Error(t, err)
}

func TestAnalyticsService_TrackInteraction(t *testing.T) {
	svc, m := newAnalyticsService(t)
	ctx := context.Background()

	m.analytics.EXPECT().
		InsertInteraction(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, in *model.Interaction) error {
			assert.Equal(t, "marker_tap", in.Kind)
			require.NotNil(t, in.EventID)
			assert.Equal(t, "evt-1", *in.EventID)
			return nil
		})

	err := svc.TrackInteraction(ctx, &model.TrackInteractionRequest{
		SessionID: "sess-1",
		Kind:      "marker_tap",
		EventID:   strPtr("evt-1"),
	})

	require.NoError(t, err)
}

func TestAnalyticsService_Overview_EntitledOwner(t *testing.T) {
	svc, m := newAnalyticsService(t)
	ctx := context.Background()

	m.businesses.EXPECT().GetByID(ctx, "biz-1").Return(ownedBusiness(), nil)
	m.subs.EXPECT().GetByProfile(ctx, "prof-owner").Return(entitledSubscription("plan-pro"), nil)
	m.analytics.EXPECT().
		Overview(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, r model.AnalyticsRange) (*model.BusinessOverview, error) {
			assert.Equal(t, "biz-1", r.BusinessID)
			assert.Equal(t, analyticsNow, r.To)
			assert.Equal(t, analyticsNow.AddDate(0, 0, -30), r.From)
			return &model.BusinessOverview{Views: 120, Uniques: 80}, nil
		})

	overview, err := svc.Overview(ctx, ownerActor(), "biz-1", 0)

	require.NoError(t, err)
	assert.Equal(t, 120, overview.Views)
	assert.Equal(t, "biz-1", overview.BusinessID)
	assert.Equal(t, 30, overview.RangeDays)
}

func TestAnalyticsService_Overview_FreePlanNotEntitled(t *testing.T) {
	svc, m := newAnalyticsService(t)
	ctx := context.Background()

	m.businesses.EXPECT().GetByID(ctx, "biz-1").Return(ownedBusiness(), nil)
	m.subs.EXPECT().GetByProfile(ctx, "prof-owner").Return(nil, nil)
	m.plans.EXPECT().
		GetByType(ctx, model.PlanTypeFree).
		Return(&model.Plan{ID: "plan-free", Type: model.PlanTypeFree, Analytics: false}, nil)

	_, err := svc.Overview(ctx, ownerActor(), "biz-1", 30)

	assert.ErrorIs(t, err, ErrAnalyticsNotEntitled)
}

func TestAnalyticsService_Overview_AdminBypassesEntitlement(t *testing.T) {
	svc, m := newAnalyticsService(t)
	ctx := context.Background()

	m.businesses.EXPECT().GetByID(ctx, "biz-1").Return(ownedBusiness(), nil)
	m.analytics.EXPECT().
		Overview(ctx, gomock.Any()).
		Return(&model.BusinessOverview{Views: 12}, nil)

	_, err := svc.Overview(ctx, adminActor(), "biz-1", 30)

	require.NoError(t, err)
}

func TestAnalyticsService_Overview_StrangerForbidden(t *testing.T) {
	svc, m := newAnalyticsService(t)
	ctx := context.Background()

	m.businesses.EXPECT().GetByID(ctx, "biz-1").Return(ownedBusiness(), nil)

	_, err := svc.Overview(ctx,
		Actor{ProfileID: "prof-other", Role: ownerActor().Role}, "biz-1", 30)

	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAnalyticsService_Overview_RangeClamped(t *testing.T) {
	svc, m := newAnalyticsService(t)
	ctx := context.Background()

	m.businesses.EXPECT().GetByID(ctx, "biz-1").Return(ownedBusiness(), nil)
	m.analytics.EXPECT().
		Overview(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, r model.AnalyticsRange) (*model.BusinessOverview, error) {
			assert.Equal(t, analyticsNow.AddDate(0, 0, -365), r.From)
			return &model.BusinessOverview{}, nil
		})

	_, err := svc.Overview(ctx, adminActor(), "biz-1", 10000)

	require.NoError(t, err)
}

func TestAnalyticsService_EventStats(t *testing.T) {
	svc, m := newAnalyticsService(t)
	ctx := context.Background()

	m.businesses.EXPECT().GetByID(ctx, "biz-1").Return(ownedBusiness(), nil)
	m.subs.EXPECT().GetByProfile(ctx, "prof-owner").Return(entitledSubscription("plan-pro"), nil)
	m.analytics.EXPECT().
		EventStats(ctx, gomock.Any()).
		Return([]*model.EventStats{
			{EventID: "evt-1", Views: 40, Uniques: 25, Conversion: 0.2},
		}, nil)

	stats, err := svc.EventStats(ctx, ownerActor(), "biz-1", 30)

	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.InDelta(t, 0.2, stats[0].Conversion, 1e-9)
}

func TestAnalyticsService_Rollup(t *testing.T) {
	svc, m := newAnalyticsService(t)
	ctx := context.Background()

	day := time.Date(2025, 6, 14, 18, 30, 0, 0, time.UTC)
	m.analytics.EXPECT().
		AggregateDay(ctx, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)).
		Return(7, nil)

	n, err := svc.Rollup(ctx, day)

	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
