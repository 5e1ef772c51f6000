package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/mocks"
	"github.com/popmap/popmap-api/internal/service"
	"go.uber.org/mock/gomock"
)

func newJobHandlersWithMock(
	t *testing.T,
) (*JobHandlers, *mocks.MockJobRepository, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockJobRepository(ctrl)
	svc := service.MustNewJobService(service.JobServiceOptions{
		Repo:         mockRepo,
		DefaultLease: 30 * time.Second,
	})
	return NewJobHandlers(JobHandlersOptions{Jobs: svc}), mockRepo, ctrl
}

func TestCreateJob_Success(t *testing.T) {
	h, mockRepo, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	reqBody := model.CreateJobRequest{
		Type:    model.JobTypeEmail,
		Payload: json.RawMessage(`{"template":"rsvp_confirmation","to":"ada@example.com","subject":"See you there"}`),
	}
	expected := &model.Job{
		ID:      uuid.NewString(),
		Type:    model.JobTypeEmail,
		Status:  model.JobStatusPending,
		Payload: reqBody.Payload,
	}

	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
			assert.Equal(t, model.JobTypeEmail, req.Type)
			assert.JSONEq(t, string(reqBody.Payload), string(req.Payload))
			return expected, nil
		})

	b, err := json.Marshal(reqBody)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewReader(b))
	w := httptest.NewRecorder()

	h.Create(w, r)

	require.Equal(t, http.StatusCreated, w.Code)

	var got model.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, expected.ID, got.ID)
	assert.Equal(t, model.JobStatusPending, got.Status)
}

func TestCreateJob_InvalidJSON(t *testing.T) {
	h, _, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	r := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString("{bad"))
	w := httptest.NewRecorder()

	h.Create(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_json")
}

func TestCreateJob_ValidationError(t *testing.T) {
	h, mockRepo, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("payload is required"))

	body := `{"type":"email","payload":{"template":"rsvp_confirmation"}}`
	r := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Create(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_failed", resp["error"])
}

func TestListJobs_Filters(t *testing.T) {
	h, mockRepo, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	eventID := uuid.NewString()
	jobs := []*model.Job{
		{ID: uuid.NewString(), Type: model.JobTypeReminders, Status: model.JobStatusPending},
	}

	mockRepo.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, opts *model.JobListOptions) ([]*model.Job, error) {
			require.NotNil(t, opts.Status)
			assert.Equal(t, model.JobStatusPending, *opts.Status)
			require.NotNil(t, opts.Type)
			assert.Equal(t, model.JobTypeReminders, *opts.Type)
			require.NotNil(t, opts.EventID)
			assert.Equal(t, eventID, *opts.EventID)
			assert.Equal(t, "status", opts.SortBy)
			assert.Equal(t, SortDirAsc, opts.SortOrder)
			assert.Equal(t, 10, opts.Limit)
			assert.Equal(t, 5, opts.Offset)
			return jobs, nil
		})

	target := "/api/jobs?status=pending&type=reminders&event_id=" + eventID +
		"&sort=status&dir=asc&limit=10&offset=5"
	r := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp jobListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, jobs[0].ID, resp.Jobs[0].ID)
}

func TestListJobs_Defaults(t *testing.T) {
	h, mockRepo, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	mockRepo.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, opts *model.JobListOptions) ([]*model.Job, error) {
			assert.Nil(t, opts.Status)
			assert.Nil(t, opts.Type)
			assert.Nil(t, opts.EventID)
			assert.Nil(t, opts.BusinessID)
			assert.Equal(t, defaultBusinessPageSize, opts.Limit)
			assert.Equal(t, 0, opts.Offset)
			return nil, nil
		})

	r := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"jobs":[]}`, w.Body.String())
}

func TestListJobs_UnknownStatus(t *testing.T) {
	h, _, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	r := httptest.NewRequest(http.MethodGet, "/api/jobs?status=parked", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown status")
}

func TestListJobs_UnknownType(t *testing.T) {
	h, _, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	r := httptest.NewRequest(http.MethodGet, "/api/jobs?type=geocode", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown job type")
}

func TestJobStats_Success(t *testing.T) {
	h, mockRepo, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	expected := &model.JobStats{Pending: 3, Running: 1, Completed: 40, Failed: 2}
	mockRepo.EXPECT().Stats(gomock.Any(), model.JobTypeEmail).Return(expected, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/jobs/email/stats", nil)
	r.SetPathValue("type", "email")
	w := httptest.NewRecorder()

	h.Stats(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var got model.JobStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, expected.Pending, got.Pending)
	assert.Equal(t, expected.Completed, got.Completed)
}

func TestJobStats_UnknownType(t *testing.T) {
	h, _, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	r := httptest.NewRequest(http.MethodGet, "/api/jobs/geocode/stats", nil)
	r.SetPathValue("type", "geocode")
	w := httptest.NewRecorder()

	h.Stats(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_path")
}

func TestJobGetStatus_Success(t *testing.T) {
	h, mockRepo, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	jobID := uuid.NewString()
	completedAt := time.Now().UTC().Truncate(time.Microsecond)
	lastError := "smtp: connection refused"

	mockRepo.EXPECT().GetByID(gomock.Any(), jobID).Return(&model.Job{
		ID:          jobID,
		Type:        model.JobTypeRollup,
		Status:      model.JobStatusCompleted,
		CompletedAt: &completedAt,
		LastError:   &lastError,
	}, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID+"/status", nil)
	r.SetPathValue("id", jobID)
	w := httptest.NewRecorder()

	h.GetStatus(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp model.JobStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.JobStatusCompleted, resp.Status)
	require.NotNil(t, resp.CompletedAt)
	assert.True(t, completedAt.Equal(*resp.CompletedAt))
	require.NotNil(t, resp.LastError)
	assert.Equal(t, lastError, *resp.LastError)
}

func TestJobGetStatus_NotFound(t *testing.T) {
	h, mockRepo, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	jobID := uuid.NewString()
	mockRepo.EXPECT().GetByID(gomock.Any(), jobID).Return(nil, data.ErrJobNotFound)

	r := httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID+"/status", nil)
	r.SetPathValue("id", jobID)
	w := httptest.NewRecorder()

	h.GetStatus(w, r)

	require.Equal(t, http.StatusNotFound, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "job_not_found", resp["error"])
}

func TestJobGetStatus_DatabaseError(t *testing.T) {
	h, mockRepo, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	jobID := uuid.NewString()
	mockRepo.EXPECT().GetByID(gomock.Any(), jobID).
		Return(nil, errors.New("connection reset by peer"))

	r := httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID+"/status", nil)
	r.SetPathValue("id", jobID)
	w := httptest.NewRecorder()

	h.GetStatus(w, r)

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "internal_error", resp["error"])
	assert.Equal(t, "an unexpected error occurred", resp["message"])
}

func TestJobGetStatus_BadID(t *testing.T) {
	h, _, ctrl := newJobHandlersWithMock(t)
	defer ctrl.Finish()

	r := httptest.NewRequest(http.MethodGet, "/api/jobs/not-a-uuid/status", nil)
	r.SetPathValue("id", "not-a-uuid")
	w := httptest.NewRecorder()

	h.GetStatus(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_path")
}
