package httpx

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/popmap/popmap-api/internal/data"
	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/service"
	"github.com/popmap/popmap-api/internal/testutil"
)

func newJobHandlersWithDB(t *testing.T, db *sql.DB) (*JobHandlers, *data.JobRepo) {
	t.Helper()
	repo := data.NewJobRepo(db, data.RepoConfig{})
	svc := service.MustNewJobService(service.JobServiceOptions{
		Repo:         repo,
		DefaultLease: 30 * time.Second,
	})
	return NewJobHandlers(JobHandlersOptions{Jobs: svc}), repo
}

// TestJobEndpoints_QueueLifecycle enqueues a job over HTTP, drains it the way
// a worker would, and confirms the status and stats endpoints track the
// transition against a real Postgres queue.
func TestJobEndpoints_QueueLifecycle(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		h, repo := newJobHandlersWithDB(t, db)

		body := `{"type":"email","payload":{"template":"rsvp_confirmation","to":"ada@example.com","subject":"You are in"}}`
		r := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body))
		w := httptest.NewRecorder()

		h.Create(w, r)
		require.Equal(t, http.StatusCreated, w.Code)

		var created model.Job
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		require.NotEmpty(t, created.ID)
		assert.Equal(t, model.JobTypeEmail, created.Type)
		assert.Equal(t, model.JobStatusPending, created.Status)

		r = httptest.NewRequest(http.MethodGet, "/api/jobs/"+created.ID+"/status", nil)
		r.SetPathValue("id", created.ID)
		w = httptest.NewRecorder()

		h.GetStatus(w, r)
		require.Equal(t, http.StatusOK, w.Code)

		var status model.JobStatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, model.JobStatusPending, status.Status)

		ctx := context.Background()
		reserved, err := repo.ReserveNext(ctx, model.JobTypeEmail, 30)
		require.NoError(t, err)
		require.Equal(t, created.ID, reserved.ID)
		assert.Equal(t, model.JobStatusRunning, reserved.Status)

		done, err := repo.Complete(ctx, reserved.ID)
		require.NoError(t, err)
		require.True(t, done)

		r = httptest.NewRequest(http.MethodGet, "/api/jobs/"+created.ID+"/status", nil)
		r.SetPathValue("id", created.ID)
		w = httptest.NewRecorder()

		h.GetStatus(w, r)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.Equal(t, model.JobStatusCompleted, status.Status)
		assert.NotNil(t, status.CompletedAt)

		r = httptest.NewRequest(http.MethodGet, "/api/jobs/email/stats", nil)
		r.SetPathValue("type", "email")
		w = httptest.NewRecorder()

		h.Stats(w, r)
		require.Equal(t, http.StatusOK, w.Code)

		var stats model.JobStats
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.GreaterOrEqual(t, stats.Completed, 1)
	})
}

// TestJobEndpoints_ListFilters verifies the admin list endpoint filters by
// type and status against real rows.
func TestJobEndpoints_ListFilters(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		h, repo := newJobHandlersWithDB(t, db)
		ctx := context.Background()

		emailJob, err := repo.Create(ctx, &model.CreateJobRequest{
			Type:    model.JobTypeEmail,
			Payload: json.RawMessage(`{"template":"event_reminder","to":"grace@example.com","subject":"Starting soon"}`),
		})
		require.NoError(t, err)

		rollupJob, err := repo.Create(ctx, &model.CreateJobRequest{
			Type:    model.JobTypeRollup,
			Payload: json.RawMessage(`{"day":"2026-08-24"}`),
		})
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/api/jobs?type=rollup&status=pending", nil)
		w := httptest.NewRecorder()

		h.List(w, r)
		require.Equal(t, http.StatusOK, w.Code)

		var resp jobListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Jobs, 1)
		assert.Equal(t, rollupJob.ID, resp.Jobs[0].ID)

		r = httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		w = httptest.NewRecorder()

		h.List(w, r)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		ids := make([]string, 0, len(resp.Jobs))
		for _, job := range resp.Jobs {
			ids = append(ids, job.ID)
		}
		assert.Contains(t, ids, emailJob.ID)
		assert.Contains(t, ids, rollupJob.ID)
	})
}
