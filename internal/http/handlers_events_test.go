package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/data"
	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/mocks"
	"github.com/popmap/popmap-api/internal/service"
	"go.uber.org/mock/gomock"
)

func newEventHandlersWithMocks(
	t *testing.T,
) (*EventHandlers, *mocks.MockEventRepository, *mocks.MockBusinessRepository, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	eventRepo := mocks.NewMockEventRepository(ctrl)
	businessRepo := mocks.NewMockBusinessRepository(ctrl)
	svc := service.MustNewEventService(service.EventServiceOptions{
		Events:     eventRepo,
		Businesses: businessRepo,
	})
	return NewEventHandlers(EventHandlersOptions{Events: svc}), eventRepo, businessRepo, ctrl
}

func sessionContext(profileID string, role domainauth.Role) context.Context {
	return SetSessionInContext(context.Background(), &domainauth.Session{
		ID:      uuid.NewString(),
		Subject: "sub-" + profileID,
		Profile: &domainauth.ProfileSnapshot{ID: profileID, Role: role},
	})
}

func eventFixture(status model.EventStatus) *model.Event {
	start := time.Date(2026, 9, 12, 17, 0, 0, 0, time.UTC)
	return &model.Event{
		ID:         uuid.NewString(),
		BusinessID: uuid.NewString(),
		CreatorID:  uuid.NewString(),
		Title:      "Night Market",
		Address:    "1 Pier Way",
		Latitude:   47.6062,
		Longitude:  -122.3321,
		StartTime:  start,
		EndTime:    start.Add(4 * time.Hour),
		Status:     status,
	}
}

func TestListEvents_Public(t *testing.T) {
	h, eventRepo, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	event := eventFixture(model.EventStatusApproved)
	next := &model.EventCursor{StartTime: event.StartTime, ID: event.ID}

	eventRepo.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, opts model.EventListOptions) (*model.EventListPage, error) {
			assert.Equal(t, 50, opts.Limit)
			assert.Nil(t, opts.Status)
			assert.False(t, opts.IncludeAll)
			assert.Nil(t, opts.CreatorID)
			return &model.EventListPage{Events: []*model.Event{event}, NextCursor: next}, nil
		})

	r := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp eventListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, event.ID, resp.Events[0].ID)

	require.NotNil(t, resp.NextCursor)
	decoded, err := data.DecodeEventCursor(*resp.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, event.ID, decoded.ID)
	assert.True(t, next.StartTime.Equal(decoded.StartTime))
}

func TestListEvents_ManagedScopesToCreator(t *testing.T) {
	h, eventRepo, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	ownerID := uuid.NewString()
	eventRepo.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, opts model.EventListOptions) (*model.EventListPage, error) {
			assert.True(t, opts.IncludeAll)
			require.NotNil(t, opts.CreatorID)
			assert.Equal(t, ownerID, *opts.CreatorID)
			return &model.EventListPage{Events: []*model.Event{}}, nil
		})

	r := httptest.NewRequest(http.MethodGet, "/api/events?view=managed", nil)
	r = r.WithContext(sessionContext(ownerID, domainauth.RoleBusinessOwner))
	w := httptest.NewRecorder()

	h.List(w, r)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestListEvents_ManagedAdminSeesAll(t *testing.T) {
	h, eventRepo, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	eventRepo.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, opts model.EventListOptions) (*model.EventListPage, error) {
			assert.True(t, opts.IncludeAll)
			assert.Nil(t, opts.CreatorID)
			return &model.EventListPage{Events: []*model.Event{}}, nil
		})

	r := httptest.NewRequest(http.MethodGet, "/api/events?view=managed&status=pending", nil)
	r = r.WithContext(sessionContext(uuid.NewString(), domainauth.RoleAdmin))
	w := httptest.NewRecorder()

	h.List(w, r)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestListEvents_ManagedAnonymousForbidden(t *testing.T) {
	h, _, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	r := httptest.NewRequest(http.MethodGet, "/api/events?view=managed", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "forbidden")
}

func TestListEvents_SubdomainScopesBusiness(t *testing.T) {
	h, eventRepo, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	businessID := uuid.NewString()
	eventRepo.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, opts model.EventListOptions) (*model.EventListPage, error) {
			require.NotNil(t, opts.BusinessID)
			assert.Equal(t, businessID, *opts.BusinessID)
			return &model.EventListPage{Events: []*model.Event{}}, nil
		})

	r := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	r = r.WithContext(setBusinessInContext(context.Background(), businessID))
	w := httptest.NewRecorder()

	h.List(w, r)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestListEvents_InvalidCursor(t *testing.T) {
	h, _, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	r := httptest.NewRequest(http.MethodGet, "/api/events?cursor=%21%21not-base64", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_cursor")
}

func TestListEvents_UnknownStatus(t *testing.T) {
	h, _, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	r := httptest.NewRequest(http.MethodGet, "/api/events?status=draft", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown status")
}

func TestListEvents_BadTimestamp(t *testing.T) {
	h, _, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	r := httptest.NewRequest(http.MethodGet, "/api/events?start_after=tomorrow", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "RFC 3339")
}

func TestListEvents_IncompleteBounds(t *testing.T) {
	h, _, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	r := httptest.NewRequest(http.MethodGet, "/api/events?min_lat=47.1&max_lat=47.9", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "bounds require")
}

func TestSubmitEvent_Owner(t *testing.T) {
	h, eventRepo, businessRepo, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	ownerID := uuid.NewString()
	businessID := uuid.NewString()

	businessRepo.EXPECT().GetByID(gomock.Any(), businessID).
		Return(&model.Business{ID: businessID, OwnerID: ownerID}, nil)
	eventRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req *model.CreateEventRequest) (*model.Event, error) {
			assert.Equal(t, ownerID, req.CreatorID)
			assert.Equal(t, businessID, req.BusinessID)
			created := eventFixture(model.EventStatusPending)
			created.BusinessID = businessID
			created.CreatorID = ownerID
			created.Title = req.Title
			return created, nil
		})

	body := map[string]any{
		"business_id": businessID,
		"title":       "Pop-Up Vinyl Fair",
		"address":     "100 Canal St",
		"latitude":    40.7182,
		"longitude":   -73.9986,
		"start_time":  "2026-09-12T17:00:00Z",
		"end_time":    "2026-09-12T21:00:00Z",
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(string(b)))
	r = r.WithContext(sessionContext(ownerID, domainauth.RoleBusinessOwner))
	w := httptest.NewRecorder()

	h.Submit(w, r)

	require.Equal(t, http.StatusCreated, w.Code)

	var created model.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, model.EventStatusPending, created.Status)
	assert.Equal(t, "Pop-Up Vinyl Fair", created.Title)
}

func TestSubmitEvent_AttendeeForbidden(t *testing.T) {
	h, _, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	body := `{"business_id":"` + uuid.NewString() + `","title":"x"}`
	r := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
	r = r.WithContext(sessionContext(uuid.NewString(), domainauth.RoleAttendee))
	w := httptest.NewRecorder()

	h.Submit(w, r)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestSubmitEvent_OtherOwnersBusinessForbidden(t *testing.T) {
	h, _, businessRepo, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	ownerID := uuid.NewString()
	businessID := uuid.NewString()
	businessRepo.EXPECT().GetByID(gomock.Any(), businessID).
		Return(&model.Business{ID: businessID, OwnerID: uuid.NewString()}, nil)

	body := map[string]any{
		"business_id": businessID,
		"title":       "Pop-Up Vinyl Fair",
		"address":     "100 Canal St",
		"latitude":    40.7182,
		"longitude":   -73.9986,
		"start_time":  "2026-09-12T17:00:00Z",
		"end_time":    "2026-09-12T21:00:00Z",
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(string(b)))
	r = r.WithContext(sessionContext(ownerID, domainauth.RoleBusinessOwner))
	w := httptest.NewRecorder()

	h.Submit(w, r)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestSubmitEvent_MissingTitle(t *testing.T) {
	h, _, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	body := map[string]any{
		"business_id": uuid.NewString(),
		"address":     "100 Canal St",
		"latitude":    40.7182,
		"longitude":   -73.9986,
		"start_time":  "2026-09-12T17:00:00Z",
		"end_time":    "2026-09-12T21:00:00Z",
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(string(b)))
	r = r.WithContext(sessionContext(uuid.NewString(), domainauth.RoleBusinessOwner))
	w := httptest.NewRecorder()

	h.Submit(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_failed")
}

func TestGetEvent_ApprovedIsPublic(t *testing.T) {
	h, eventRepo, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	event := eventFixture(model.EventStatusApproved)
	eventRepo.EXPECT().GetByID(gomock.Any(), event.ID).Return(event, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/events/"+event.ID, nil)
	r.SetPathValue("id", event.ID)
	w := httptest.NewRecorder()

	h.Get(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var got model.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, event.ID, got.ID)
}

func TestGetEvent_PendingHiddenFromPublic(t *testing.T) {
	h, eventRepo, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	event := eventFixture(model.EventStatusPending)
	eventRepo.EXPECT().GetByID(gomock.Any(), event.ID).Return(event, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/events/"+event.ID, nil)
	r.SetPathValue("id", event.ID)
	w := httptest.NewRecorder()

	h.Get(w, r)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "event_not_found")
}

func TestGetEvent_PendingVisibleToCreator(t *testing.T) {
	h, eventRepo, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	event := eventFixture(model.EventStatusPending)
	eventRepo.EXPECT().GetByID(gomock.Any(), event.ID).Return(event, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/events/"+event.ID, nil)
	r = r.WithContext(sessionContext(event.CreatorID, domainauth.RoleBusinessOwner))
	r.SetPathValue("id", event.ID)
	w := httptest.NewRecorder()

	h.Get(w, r)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestGetEvent_PendingVisibleToBusinessOwner(t *testing.T) {
	h, eventRepo, businessRepo, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	ownerID := uuid.NewString()
	event := eventFixture(model.EventStatusPending)
	eventRepo.EXPECT().GetByID(gomock.Any(), event.ID).Return(event, nil)
	businessRepo.EXPECT().GetByID(gomock.Any(), event.BusinessID).
		Return(&model.Business{ID: event.BusinessID, OwnerID: ownerID}, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/events/"+event.ID, nil)
	r = r.WithContext(sessionContext(ownerID, domainauth.RoleBusinessOwner))
	r.SetPathValue("id", event.ID)
	w := httptest.NewRecorder()

	h.Get(w, r)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateEvent_ApprovedReturnsToModeration(t *testing.T) {
	h, eventRepo, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	event := eventFixture(model.EventStatusApproved)

	eventRepo.EXPECT().GetByID(gomock.Any(), event.ID).Return(event, nil)
	eventRepo.EXPECT().Update(gomock.Any(), event.ID, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, req model.UpdateEventRequest) (*model.Event, error) {
			require.NotNil(t, req.Title)
			updated := *event
			updated.Title = *req.Title
			return &updated, nil
		})
	eventRepo.EXPECT().UpdateStatus(gomock.Any(), core.UpdateEventStatusParams{
		ID:     event.ID,
		Status: model.EventStatusPending,
	}).DoAndReturn(
		func(_ context.Context, params core.UpdateEventStatusParams) (*model.Event, error) {
			updated := *event
			updated.Title = "New Venue Name"
			updated.Status = params.Status
			return &updated, nil
		})

	body := `{"title":"New Venue Name"}`
	r := httptest.NewRequest(http.MethodPatch, "/api/events/"+event.ID, strings.NewReader(body))
	r = r.WithContext(sessionContext(event.CreatorID, domainauth.RoleBusinessOwner))
	r.SetPathValue("id", event.ID)
	w := httptest.NewRecorder()

	h.Update(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var got model.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, model.EventStatusPending, got.Status)
	assert.Equal(t, "New Venue Name", got.Title)
}

func TestUpdateEvent_NotCreatorForbidden(t *testing.T) {
	h, eventRepo, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	event := eventFixture(model.EventStatusApproved)
	eventRepo.EXPECT().GetByID(gomock.Any(), event.ID).Return(event, nil)

	body := `{"title":"Hijacked"}`
	r := httptest.NewRequest(http.MethodPatch, "/api/events/"+event.ID, strings.NewReader(body))
	r = r.WithContext(sessionContext(uuid.NewString(), domainauth.RoleBusinessOwner))
	r.SetPathValue("id", event.ID)
	w := httptest.NewRecorder()

	h.Update(w, r)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateEvent_EndBeforeStart(t *testing.T) {
	h, eventRepo, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	event := eventFixture(model.EventStatusApproved)
	eventRepo.EXPECT().GetByID(gomock.Any(), event.ID).Return(event, nil)

	early := event.StartTime.Add(-time.Hour).Format(time.RFC3339)
	body := `{"end_time":"` + early + `"}`
	r := httptest.NewRequest(http.MethodPatch, "/api/events/"+event.ID, strings.NewReader(body))
	r = r.WithContext(sessionContext(event.CreatorID, domainauth.RoleBusinessOwner))
	r.SetPathValue("id", event.ID)
	w := httptest.NewRecorder()

	h.Update(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "end_time must be after start_time")
}

func TestCancelEvent_Creator(t *testing.T) {
	h, eventRepo, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	event := eventFixture(model.EventStatusApproved)
	eventRepo.EXPECT().GetByID(gomock.Any(), event.ID).Return(event, nil)
	eventRepo.EXPECT().UpdateStatus(gomock.Any(), core.UpdateEventStatusParams{
		ID:     event.ID,
		Status: model.EventStatusCancelled,
	}).DoAndReturn(
		func(_ context.Context, _ core.UpdateEventStatusParams) (*model.Event, error) {
			cancelled := *event
			cancelled.Status = model.EventStatusCancelled
			return &cancelled, nil
		})

	r := httptest.NewRequest(http.MethodDelete, "/api/events/"+event.ID, nil)
	r = r.WithContext(sessionContext(event.CreatorID, domainauth.RoleBusinessOwner))
	r.SetPathValue("id", event.ID)
	w := httptest.NewRecorder()

	h.Cancel(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var got model.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, model.EventStatusCancelled, got.Status)
}

func TestApproveEvent_Admin(t *testing.T) {
	h, eventRepo, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	event := eventFixture(model.EventStatusPending)
	eventRepo.EXPECT().UpdateStatus(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, params core.UpdateEventStatusParams) (*model.Event, error) {
			assert.Equal(t, event.ID, params.ID)
			assert.Equal(t, model.EventStatusApproved, params.Status)
			assert.Nil(t, params.Note)
			approved := *event
			approved.Status = model.EventStatusApproved
			return &approved, nil
		})

	r := httptest.NewRequest(http.MethodPost, "/api/events/"+event.ID+"/approve", nil)
	r = r.WithContext(sessionContext(uuid.NewString(), domainauth.RoleAdmin))
	r.SetPathValue("id", event.ID)
	w := httptest.NewRecorder()

	h.Approve(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var got model.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, model.EventStatusApproved, got.Status)
}

func TestRejectEvent_AdminWithNote(t *testing.T) {
	h, eventRepo, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	event := eventFixture(model.EventStatusPending)
	eventRepo.EXPECT().UpdateStatus(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, params core.UpdateEventStatusParams) (*model.Event, error) {
			assert.Equal(t, model.EventStatusRejected, params.Status)
			require.NotNil(t, params.Note)
			assert.Equal(t, "address does not resolve", *params.Note)
			rejected := *event
			rejected.Status = model.EventStatusRejected
			rejected.ModerationNote = params.Note
			return &rejected, nil
		})

	body := `{"note":"address does not resolve"}`
	r := httptest.NewRequest(http.MethodPost, "/api/events/"+event.ID+"/reject", strings.NewReader(body))
	r = r.WithContext(sessionContext(uuid.NewString(), domainauth.RoleAdmin))
	r.SetPathValue("id", event.ID)
	w := httptest.NewRecorder()

	h.Reject(w, r)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestApproveEvent_NonAdminForbidden(t *testing.T) {
	h, _, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	id := uuid.NewString()
	r := httptest.NewRequest(http.MethodPost, "/api/events/"+id+"/approve", nil)
	r = r.WithContext(sessionContext(uuid.NewString(), domainauth.RoleBusinessOwner))
	r.SetPathValue("id", id)
	w := httptest.NewRecorder()

	h.Approve(w, r)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestMapData(t *testing.T) {
	h, eventRepo, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	marker := &model.MapMarker{
		ID:        uuid.NewString(),
		Title:     "Night Market",
		Latitude:  47.6062,
		Longitude: -122.3321,
		StartTime: time.Date(2026, 9, 12, 17, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 9, 12, 21, 0, 0, 0, time.UTC),
	}

	eventRepo.EXPECT().ListMarkers(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, opts model.EventListOptions) ([]*model.MapMarker, error) {
			require.NotNil(t, opts.Bounds)
			assert.InDelta(t, 47.0, opts.Bounds.MinLat, 0.0001)
			assert.InDelta(t, 48.0, opts.Bounds.MaxLat, 0.0001)
			return []*model.MapMarker{marker}, nil
		})

	target := "/api/events/map-data?min_lat=47.0&max_lat=48.0&min_lng=-123.0&max_lng=-122.0"
	r := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()

	h.MapData(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp struct {
		Markers []*model.MapMarker `json:"markers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Markers, 1)
	assert.Equal(t, marker.ID, resp.Markers[0].ID)
}

func TestMapData_EmptyMarkers(t *testing.T) {
	h, eventRepo, _, ctrl := newEventHandlersWithMocks(t)
	defer ctrl.Finish()

	eventRepo.EXPECT().ListMarkers(gomock.Any(), gomock.Any()).Return(nil, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/events/map-data", nil)
	w := httptest.NewRecorder()

	h.MapData(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"markers":[]}`, w.Body.String())
}
