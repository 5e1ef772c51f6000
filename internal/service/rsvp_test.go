package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/popmap/popmap-api/internal/core"
	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type rsvpMocks struct {
	rsvps      *mocks.MockRSVPRepository
	events     *mocks.MockEventRepository
	guestPrefs *mocks.MockGuestPreferenceRepository
}

func newRSVPService(t *testing.T) (*RSVPService, rsvpMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	m := rsvpMocks{
		rsvps:      mocks.NewMockRSVPRepository(ctrl),
		events:     mocks.NewMockEventRepository(ctrl),
		guestPrefs: mocks.NewMockGuestPreferenceRepository(ctrl),
	}
	svc, err := NewRSVPService(RSVPServiceOptions{
		RSVPs:      m.rsvps,
		Events:     m.events,
		GuestPrefs: m.guestPrefs,
		Now:        func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return svc, m
}

func openEvent() *model.Event {
	return &model.Event{
		ID:      "evt-1",
		Status:  model.EventStatusApproved,
		EndTime: time.Date(2025, 6, 2, 20, 0, 0, 0, time.UTC),
	}
}

func TestRSVPService_Upsert_SignedInOverridesGuestFields(t *testing.T) {
	svc, m := newRSVPService(t)
	ctx := context.Background()

	// A signed-in caller sneaking guest fields into the body gets bound to
	// their own profile anyway.
	req := &model.UpsertRSVPRequest{
		EventID:    "evt-1",
		GuestEmail: strPtr("someone-else@example.com"),
		GuestName:  strPtr("Imposter"),
		Status:     model.RSVPStatusGoing,
	}

	m.events.EXPECT().GetByID(ctx, "evt-1").Return(openEvent(), nil)
	m.rsvps.EXPECT().
		Upsert(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, got *model.UpsertRSVPRequest) (*model.RSVP, error) {
			require.NotNil(t, got.ProfileID)
			assert.Equal(t, "prof-owner", *got.ProfileID)
			assert.Nil(t, got.GuestEmail)
			assert.Nil(t, got.GuestName)
			return &model.RSVP{
				ID:        "rsvp-1",
				EventID:   got.EventID,
				ProfileID: got.ProfileID,
				Status:    got.Status,
			}, nil
		})

	rsvp, err := svc.Upsert(ctx, ownerActor(), req)

	require.NoError(t, err)
	assert.False(t, rsvp.IsGuest())
}

func TestRSVPService_Upsert_GuestNormalizesEmail(t *testing.T) {
	svc, m := newRSVPService(t)
	ctx := context.Background()

	req := &model.UpsertRSVPRequest{
		EventID:    "evt-1",
		GuestEmail: strPtr("  Ana@Example.COM "),
		Status:     model.RSVPStatusInterested,
	}

	m.events.EXPECT().GetByID(ctx, "evt-1").Return(openEvent(), nil)
	m.rsvps.EXPECT().
		Upsert(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, got *model.UpsertRSVPRequest) (*model.RSVP, error) {
			require.NotNil(t, got.GuestEmail)
			assert.Equal(t, "ana@example.com", *got.GuestEmail)
			return &model.RSVP{ID: "rsvp-2", EventID: got.EventID, GuestEmail: got.GuestEmail, Status: got.Status}, nil
		})

	rsvp, err := svc.Upsert(ctx, Actor{}, req)

	require.NoError(t, err)
	assert.True(t, rsvp.IsGuest())
}

func TestRSVPService_Upsert_AnonymousWithoutEmailRejected(t *testing.T) {
	svc, _ := newRSVPService(t)

	_, err := svc.Upsert(context.Background(), Actor{}, &model.UpsertRSVPRequest{
		EventID: "evt-1",
		Status:  model.RSVPStatusGoing,
	})

	assert.Error(t, err)
}

func TestRSVPService_Upsert_ClosedEvent(t *testing.T) {
	tests := []struct {
		name  string
		event *model.Event
	}{
		{
			name: "pending event",
			event: &model.Event{
				ID:      "evt-1",
				Status:  model.EventStatusPending,
				EndTime: time.Date(2025, 6, 2, 20, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "already ended",
			event: &model.Event{
				ID:      "evt-1",
				Status:  model.EventStatusApproved,
				EndTime: time.Date(2025, 5, 30, 20, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "cancelled",
			event: &model.Event{
				ID:      "evt-1",
				Status:  model.EventStatusCancelled,
				EndTime: time.Date(2025, 6, 2, 20, 0, 0, 0, time.UTC),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newRSVPService(t)
			ctx := context.Background()

			m.events.EXPECT().GetByID(ctx, "evt-1").Return(tt.event, nil)

			_, err := svc.Upsert(ctx, ownerActor(), &model.UpsertRSVPRequest{
				EventID: "evt-1",
				Status:  model.RSVPStatusGoing,
			})

			assert.ErrorIs(t, err, ErrRSVPClosed)
		})
	}
}

func TestRSVPService_ListMine(t *testing.T) {
	svc, m := newRSVPService(t)
	ctx := context.Background()

	m.rsvps.EXPECT().
		ListByProfile(ctx, "prof-owner").
		Return([]*model.RSVP{{ID: "rsvp-1"}, {ID: "rsvp-2"}}, nil)

	got, err := svc.ListMine(ctx, ownerActor())

	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRSVPService_ListMine_AnonymousForbidden(t *testing.T) {
	svc, _ := newRSVPService(t)

	_, err := svc.ListMine(context.Background(), Actor{})

	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRSVPService_Remove(t *testing.T) {
	svc, m := newRSVPService(t)
	ctx := context.Background()

	m.rsvps.EXPECT().
		Remove(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.RemoveRSVPParams) (bool, error) {
			require.NotNil(t, params.ProfileID)
			assert.Equal(t, "prof-owner", *params.ProfileID)
			assert.Equal(t, "evt-1", params.EventID)
			return true, nil
		})

	removed, err := svc.Remove(ctx, ownerActor(), "evt-1")

	require.NoError(t, err)
	assert.True(t, removed)
}

func TestRSVPService_SetRemindersEnabled_OwnerOnly(t *testing.T) {
	svc, m := newRSVPService(t)
	ctx := context.Background()

	rsvp := &model.RSVP{ID: "rsvp-1", ProfileID: strPtr("prof-owner")}

	m.rsvps.EXPECT().GetByID(ctx, "rsvp-1").Return(rsvp, nil).Times(2)
	m.rsvps.EXPECT().SetRemindersEnabled(ctx, "rsvp-1", false).Return(nil)

	require.NoError(t, svc.SetRemindersEnabled(ctx, ownerActor(), "rsvp-1", false))

	err := svc.SetRemindersEnabled(ctx,
		Actor{ProfileID: "prof-other", Role: domainauth.RoleAttendee}, "rsvp-1", false)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRSVPService_Unsubscribe_GuestOptsOutGlobally(t *testing.T) {
	svc, m := newRSVPService(t)
	ctx := context.Background()

	rsvp := &model.RSVP{
		ID:               "rsvp-9",
		EventID:          "evt-1",
		GuestEmail:       strPtr("guest@example.com"),
		RemindersEnabled: true,
	}

	m.rsvps.EXPECT().GetByUnsubscribeToken(ctx, "tok-abc").Return(rsvp, nil)
	m.rsvps.EXPECT().SetRemindersEnabled(ctx, "rsvp-9", false).Return(nil)
	m.guestPrefs.EXPECT().
		Unsubscribe(ctx, "guest@example.com").
		Return(&model.GuestEmailPreference{Email: "guest@example.com", Unsubscribed: true}, nil)

	got, err := svc.Unsubscribe(ctx, "tok-abc")

	require.NoError(t, err)
	assert.False(t, got.RemindersEnabled)
}

func TestRSVPService_Unsubscribe_ProfileSkipsGuestOptOut(t *testing.T) {
	svc, m := newRSVPService(t)
	ctx := context.Background()

	rsvp := &model.RSVP{ID: "rsvp-3", ProfileID: strPtr("prof-1"), RemindersEnabled: true}

	m.rsvps.EXPECT().GetByUnsubscribeToken(ctx, "tok-p").Return(rsvp, nil)
	m.rsvps.EXPECT().SetRemindersEnabled(ctx, "rsvp-3", false).Return(nil)
	// No guestPrefs expectation: profile RSVPs never touch the guest ledger.

	_, err := svc.Unsubscribe(ctx, "tok-p")

	require.NoError(t, err)
}

func TestRSVPService_Unsubscribe_GuestOptOutFailureTolerated(t *testing.T) {
	svc, m := newRSVPService(t)
	ctx := context.Background()

	rsvp := &model.RSVP{ID: "rsvp-9", GuestEmail: strPtr("guest@example.com"), RemindersEnabled: true}

	m.rsvps.EXPECT().GetByUnsubscribeToken(ctx, "tok-abc").Return(rsvp, nil)
	m.rsvps.EXPECT().SetRemindersEnabled(ctx, "rsvp-9", false).Return(nil)
	m.guestPrefs.EXPECT().
		Unsubscribe(ctx, "guest@example.com").
		Return(nil, errors.New("ledger down"))

	got, err := svc.Unsubscribe(ctx, "tok-abc")

	require.NoError(t, err)
	assert.False(t, got.RemindersEnabled)
}

func TestRSVPService_CountsForEvent(t *testing.T) {
	svc, m := newRSVPService(t)
	ctx := context.Background()

	m.rsvps.EXPECT().
		CountsByEvent(ctx, "evt-1").
		Return(&model.RSVPCounts{Interested: 4, Going: 2}, nil)

	counts, err := svc.CountsForEvent(ctx, "evt-1")

	require.NoError(t, err)
	assert.Equal(t, 4, counts.Interested)
	assert.Equal(t, 2, counts.Going)
}
