package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainjob "github.com/popmap/popmap-api/internal/domain/job"
	"github.com/popmap/popmap-api/internal/domain/model"
	"github.com/popmap/popmap-api/internal/mocks"
	"github.com/popmap/popmap-api/internal/observability/notify"
	"github.com/popmap/popmap-api/internal/service/failurenotifier"
)

type stubJobNotifier struct {
	subscribeCalls []model.JobType
	stopCalled     bool
	subscribeFn    func(model.JobType) (func(), <-chan struct{})
	stopAllFn      func()
}

func (s *stubJobNotifier) Subscribe(jobType model.JobType) (func(), <-chan struct{}) {
	s.subscribeCalls = append(s.subscribeCalls, jobType)
	if s.subscribeFn != nil {
		return s.subscribeFn(jobType)
	}
	ch := make(chan struct{})
	unsub := func() {
		select {
		case <-ch:
		default:
		}
		close(ch)
	}
	return unsub, ch
}

func (s *stubJobNotifier) StopAll() {
	s.stopCalled = true
	if s.stopAllFn != nil {
		s.stopAllFn()
	}
}

func newTestJobService(t *testing.T, repo *mocks.MockJobRepository) (*JobService, *stubJobNotifier) {
	t.Helper()
	notifier := &stubJobNotifier{}
	svc := MustNewJobService(JobServiceOptions{
		Repo:         repo,
		DefaultLease: 30 * time.Second,
		Notifier:     notifier,
	})
	return svc, notifier
}

var _ domainjob.Notifier = (*stubJobNotifier)(nil)

func TestNewJobService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	notifierOpts := domainjob.NotifierOptions{
		WaitWindow: 2 * time.Second,
		Backoff:    50 * time.Millisecond,
	}

	t.Run("success", func(t *testing.T) {
		notifier := &stubJobNotifier{}
		svc, err := NewJobService(JobServiceOptions{
			Repo:            repo,
			DefaultLease:    30 * time.Second,
			Notifier:        notifier,
			NotifierOptions: notifierOpts,
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
		assert.Equal(t, repo, svc.repo)
		assert.Equal(t, 30*time.Second, svc.leasePolicy.Default())
		assert.Equal(t, notifier, svc.notifier)
	})

	t.Run("success with logger", func(t *testing.T) {
		logger := slog.Default()
		notifier := &stubJobNotifier{}
		svc, err := NewJobService(JobServiceOptions{
			Repo:            repo,
			DefaultLease:    30 * time.Second,
			Logger:          logger,
			Notifier:        notifier,
			NotifierOptions: notifierOpts,
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
		assert.NotNil(t, svc.logger)
	})

	t.Run("explicit lease policy wins over DefaultLease", func(t *testing.T) {
		policy, err := domainjob.NewLeasePolicy(45 * time.Second)
		require.NoError(t, err)

		svc, err := NewJobService(JobServiceOptions{
			Repo:        repo,
			LeasePolicy: policy,
			Notifier:    &stubJobNotifier{},
		})
		require.NoError(t, err)
		assert.Equal(t, 45*time.Second, svc.leasePolicy.Default())
	})

	t.Run("missing repo", func(t *testing.T) {
		svc, err := NewJobService(JobServiceOptions{
			DefaultLease: 30 * time.Second,
		})
		require.Error(t, err)
		assert.Nil(t, svc)
		assert.Contains(t, err.Error(), "JobRepository is required")
	})

	t.Run("invalid default lease", func(t *testing.T) {
		svc, err := NewJobService(JobServiceOptions{
			Repo:         repo,
			DefaultLease: 0,
			Notifier:     &stubJobNotifier{},
		})
		require.Error(t, err)
		assert.Nil(t, svc)
		assert.Contains(t, err.Error(), "DefaultLease must be positive")
	})
}

func TestMustNewJobService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)

	t.Run("success", func(t *testing.T) {
		svc := MustNewJobService(JobServiceOptions{
			Repo:         repo,
			DefaultLease: 30 * time.Second,
			Notifier:     &stubJobNotifier{},
		})
		assert.NotNil(t, svc)
	})

	t.Run("panic on error", func(t *testing.T) {
		assert.Panics(t, func() {
			MustNewJobService(JobServiceOptions{
				DefaultLease:    30 * time.Second,
				NotifierOptions: domainjob.NotifierOptions{WaitWindow: time.Second},
				// Missing repo
			})
		})
	})
}

func TestJobService_Create(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	req := &model.CreateJobRequest{
		Type:    model.JobTypeEmail,
		Payload: json.RawMessage(`{"template": "rsvp_confirmation", "to": "guest@example.com"}`),
	}

	t.Run("success", func(t *testing.T) {
		expectedJob := &model.Job{
			ID:      "job-123",
			Type:    model.JobTypeEmail,
			Status:  model.JobStatusPending,
			Payload: json.RawMessage(`{"template": "rsvp_confirmation", "to": "guest@example.com"}`),
		}

		repo.EXPECT().Create(gomock.Any(), req).Return(expectedJob, nil)

		job, err := svc.Create(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, expectedJob, job)
	})

	t.Run("repository error", func(t *testing.T) {
		repo.EXPECT().Create(gomock.Any(), req).Return(nil, errors.New("insert failed"))

		job, err := svc.Create(context.Background(), req)
		require.Error(t, err)
		assert.Nil(t, job)
		assert.Contains(t, err.Error(), "create job")
	})
}

func TestJobService_ReserveNext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	expectedJob := &model.Job{
		ID:     "job-123",
		Type:   model.JobTypeEmail,
		Status: model.JobStatusRunning,
	}

	t.Run("with custom lease", func(t *testing.T) {
		lease := 60 * time.Second
		repo.EXPECT().ReserveNext(gomock.Any(), model.JobTypeEmail, 60).Return(expectedJob, nil)

		job, err := svc.ReserveNext(context.Background(), model.JobTypeEmail, lease)
		require.NoError(t, err)
		assert.Equal(t, expectedJob, job)
	})

	t.Run("with default lease", func(t *testing.T) {
		repo.EXPECT().ReserveNext(gomock.Any(), model.JobTypeEmail, 30).Return(expectedJob, nil)

		job, err := svc.ReserveNext(context.Background(), model.JobTypeEmail, 0)
		require.NoError(t, err)
		assert.Equal(t, expectedJob, job)
	})

	t.Run("with sub-second lease clamped to 1 second", func(t *testing.T) {
		repo.EXPECT().ReserveNext(gomock.Any(), model.JobTypeEmail, 1).Return(expectedJob, nil)

		job, err := svc.ReserveNext(context.Background(), model.JobTypeEmail, 500*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, expectedJob, job)
	})

	t.Run("repository error", func(t *testing.T) {
		repo.EXPECT().ReserveNext(gomock.Any(), model.JobTypeEmail, 30).Return(nil, errors.New("boom"))

		job, err := svc.ReserveNext(context.Background(), model.JobTypeEmail, 0)
		require.Error(t, err)
		assert.Nil(t, job)
		assert.Contains(t, err.Error(), "reserve next job")
	})
}

func TestJobService_WaitForNotification(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	t.Run("success", func(t *testing.T) {
		repo.EXPECT().WaitForNotification(gomock.Any(), model.JobTypeEmail).Return(nil)

		require.NoError(t, svc.WaitForNotification(context.Background(), model.JobTypeEmail))
	})

	t.Run("passes the repository error through unwrapped", func(t *testing.T) {
		sentinel := errors.New("listener closed")
		repo.EXPECT().WaitForNotification(gomock.Any(), model.JobTypeEmail).Return(sentinel)

		err := svc.WaitForNotification(context.Background(), model.JobTypeEmail)
		require.ErrorIs(t, err, sentinel)
	})
}

func TestJobService_Heartbeat(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	t.Run("with custom extend", func(t *testing.T) {
		extend := 60 * time.Second
		repo.EXPECT().Heartbeat(gomock.Any(), "job-123", 60).Return(true, nil)

		updated, err := svc.Heartbeat(context.Background(), "job-123", extend)
		require.NoError(t, err)
		assert.True(t, updated)
	})

	t.Run("with default extend", func(t *testing.T) {
		repo.EXPECT().Heartbeat(gomock.Any(), "job-123", 30).Return(true, nil)

		updated, err := svc.Heartbeat(context.Background(), "job-123", 0)
		require.NoError(t, err)
		assert.True(t, updated)
	})

	t.Run("with sub-second extend clamped to 1 second", func(t *testing.T) {
		repo.EXPECT().Heartbeat(gomock.Any(), "job-123", 1).Return(true, nil)

		updated, err := svc.Heartbeat(context.Background(), "job-123", 750*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, updated)
	})

	t.Run("repository error", func(t *testing.T) {
		repo.EXPECT().Heartbeat(gomock.Any(), "job-123", 30).Return(false, errors.New("boom"))

		updated, err := svc.Heartbeat(context.Background(), "job-123", 0)
		require.Error(t, err)
		assert.False(t, updated)
		assert.Contains(t, err.Error(), "heartbeat job job-123")
	})
}

func TestJobService_Complete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	t.Run("success", func(t *testing.T) {
		repo.EXPECT().Complete(gomock.Any(), "job-123").Return(true, nil)

		completed, err := svc.Complete(context.Background(), "job-123")
		require.NoError(t, err)
		assert.True(t, completed)
	})

	t.Run("repository error", func(t *testing.T) {
		repo.EXPECT().Complete(gomock.Any(), "job-123").Return(false, errors.New("boom"))

		completed, err := svc.Complete(context.Background(), "job-123")
		require.Error(t, err)
		assert.False(t, completed)
		assert.Contains(t, err.Error(), "complete job job-123")
	})
}

func TestJobService_Fail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	t.Run("success", func(t *testing.T) {
		repo.EXPECT().Fail(gomock.Any(), "job-123", "test error").Return(true, nil)

		failed, err := svc.Fail(context.Background(), "job-123", "test error")
		require.NoError(t, err)
		assert.True(t, failed)
	})

	t.Run("empty error message", func(t *testing.T) {
		failed, err := svc.Fail(context.Background(), "job-123", "")
		require.Error(t, err)
		assert.False(t, failed)
		assert.Contains(t, err.Error(), "error message required")
	})
}

func TestJobService_FailWithDetails_Notifies(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)

	payload := model.EmailJobPayload{
		Template: "event_reminder",
		To:       "guest@example.com",
	}
	payloadBytes, err := json.Marshal(payload)
	require.NoError(t, err)

	eventID := "event-1"
	businessID := "biz-1"
	job := &model.Job{
		ID:         "job-123",
		Type:       model.JobTypeEmail,
		Status:     model.JobStatusRunning,
		Payload:    payloadBytes,
		RetryCount: 2,
		MaxRetries: 3,
		Priority:   10,
		EventID:    &eventID,
		BusinessID: &businessID,
	}

	repo.EXPECT().GetByID(gomock.Any(), job.ID).Return(job, nil)
	repo.EXPECT().Fail(gomock.Any(), job.ID, "boom").Return(true, nil)

	var captured []notify.JobFailurePayload
	failureSvc := failurenotifier.NewService(failurenotifier.Options{
		Sinks: []failurenotifier.SinkRegistration{
			{
				Name: "test",
				Sink: notify.SinkFunc(func(ctx context.Context, payload notify.JobFailurePayload) error {
					captured = append(captured, payload)
					return nil
				}),
			},
		},
	})

	svc := MustNewJobService(JobServiceOptions{
		Repo:            repo,
		DefaultLease:    30 * time.Second,
		FailureNotifier: failureSvc,
		Notifier:        &stubJobNotifier{},
	})

	details := JobFailureDetails{
		ErrorClass: "smtp_error",
		Metadata:   map[string]string{"component": "email_worker"},
	}

	failed, err := svc.FailWithDetails(context.Background(), job.ID, "boom", details)
	require.NoError(t, err)
	require.True(t, failed)

	require.Len(t, captured, 1)
	evt := captured[0]

	assert.Equal(t, job.ID, evt.JobID)
	assert.Equal(t, string(job.Type), evt.JobType)
	assert.Equal(t, eventID, evt.EventID)
	assert.Equal(t, businessID, evt.BusinessID)
	assert.Equal(t, "event_reminder", evt.Scope, "email jobs scope to their template")
	assert.Equal(t, "boom", evt.Error)
	assert.Equal(t, "smtp_error", evt.ErrorClass)
	assert.Equal(t, notify.SeverityCritical, evt.Severity)
	assert.Equal(t, "email_worker", evt.Metadata["component"])
	assert.Equal(t, "3", evt.Metadata["retry_count"])
	assert.Equal(t, "3", evt.Metadata["max_retries"])
	assert.Equal(t, "failed", evt.Metadata["status"])
}

func TestJobService_FailWithDetails_ExplicitScopeWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)

	payloadBytes, err := json.Marshal(model.EmailJobPayload{
		Template: "form_submission",
		To:       "owner@example.com",
	})
	require.NoError(t, err)

	job := &model.Job{
		ID:         "job-123",
		Type:       model.JobTypeEmail,
		Status:     model.JobStatusRunning,
		Payload:    payloadBytes,
		RetryCount: 0,
		MaxRetries: 0,
		Priority:   10,
	}

	repo.EXPECT().GetByID(gomock.Any(), job.ID).Return(job, nil)
	repo.EXPECT().Fail(gomock.Any(), job.ID, "boom").Return(true, nil)

	var captured []notify.JobFailurePayload
	failureSvc := failurenotifier.NewService(failurenotifier.Options{
		Sinks: []failurenotifier.SinkRegistration{
			{
				Name: "test",
				Sink: notify.SinkFunc(func(ctx context.Context, payload notify.JobFailurePayload) error {
					captured = append(captured, payload)
					return nil
				}),
			},
		},
	})

	svc := MustNewJobService(JobServiceOptions{
		Repo:            repo,
		DefaultLease:    30 * time.Second,
		FailureNotifier: failureSvc,
		Notifier:        &stubJobNotifier{},
	})

	failed, err := svc.FailWithDetails(context.Background(), job.ID, "boom", JobFailureDetails{
		Scope: "nightly-batch",
	})
	require.NoError(t, err)
	require.True(t, failed)

	require.Len(t, captured, 1)
	assert.Equal(t, "nightly-batch", captured[0].Scope)
}

func TestJobService_FailWithDetails_SkipsUntilRetriesExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)

	job := &model.Job{
		ID:         "job-123",
		Type:       model.JobTypeEmail,
		Status:     model.JobStatusRunning,
		RetryCount: 0,
		MaxRetries: 3,
		Priority:   1,
	}

	repo.EXPECT().GetByID(gomock.Any(), job.ID).Return(job, nil)
	repo.EXPECT().Fail(gomock.Any(), job.ID, "boom").Return(true, nil)

	var notified bool
	failureSvc := failurenotifier.NewService(failurenotifier.Options{
		Sinks: []failurenotifier.SinkRegistration{
			{
				Name: "test",
				Sink: notify.SinkFunc(func(ctx context.Context, payload notify.JobFailurePayload) error {
					notified = true
					return nil
				}),
			},
		},
	})

	svc := MustNewJobService(JobServiceOptions{
		Repo:            repo,
		DefaultLease:    30 * time.Second,
		FailureNotifier: failureSvc,
		Notifier:        &stubJobNotifier{},
	})

	details := JobFailureDetails{
		ErrorClass: "smtp_error",
	}

	failed, err := svc.FailWithDetails(context.Background(), job.ID, "boom", details)
	require.NoError(t, err)
	require.True(t, failed)
	assert.False(t, notified, "notification should be deferred until retries are exhausted")
}

func TestJobService_FailWithDetails_NotifiesWithoutJobContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	repo.EXPECT().GetByID(gomock.Any(), "job-123").Return(nil, errors.New("connection reset"))
	repo.EXPECT().Fail(gomock.Any(), "job-123", "boom").Return(true, nil)

	var captured []notify.JobFailurePayload
	failureSvc := failurenotifier.NewService(failurenotifier.Options{
		Sinks: []failurenotifier.SinkRegistration{
			{
				Name: "test",
				Sink: notify.SinkFunc(func(ctx context.Context, payload notify.JobFailurePayload) error {
					captured = append(captured, payload)
					return nil
				}),
			},
		},
	})

	var buf bytes.Buffer
	svc := MustNewJobService(JobServiceOptions{
		Repo:            repo,
		DefaultLease:    30 * time.Second,
		Logger:          slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
		FailureNotifier: failureSvc,
		Notifier:        &stubJobNotifier{},
	})

	failed, err := svc.FailWithDetails(context.Background(), "job-123", "boom", JobFailureDetails{})
	require.NoError(t, err)
	require.True(t, failed)

	// The job could not be loaded, so retry accounting is unknown and the
	// failure is reported immediately with whatever context we do have.
	require.Len(t, captured, 1)
	evt := captured[0]
	assert.Equal(t, "job-123", evt.JobID)
	assert.Empty(t, evt.JobType)
	assert.Equal(t, "boom", evt.Error)
	assert.Equal(t, notify.SeverityCritical, evt.Severity)
	assert.Nil(t, evt.Metadata)

	assert.Contains(t, buf.String(), "failed to load job for failure notification")
	assert.Contains(t, buf.String(), "connection reset")
}

func TestFailureIsFinal(t *testing.T) {
	tests := []struct {
		name string
		job  *model.Job
		want bool
	}{
		{name: "unknown job is treated as final", job: nil, want: true},
		{name: "no retry budget", job: &model.Job{MaxRetries: 0}, want: true},
		{name: "first failure with retries left", job: &model.Job{RetryCount: 0, MaxRetries: 3}, want: false},
		{name: "last allowed attempt", job: &model.Job{RetryCount: 2, MaxRetries: 3}, want: true},
		{name: "past the budget", job: &model.Job{RetryCount: 5, MaxRetries: 3}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureIsFinal(tt.job))
		})
	}
}

func TestExtractScopeFromJob(t *testing.T) {
	tests := []struct {
		name string
		job  *model.Job
		want string
	}{
		{name: "nil job", job: nil, want: ""},
		{name: "empty payload", job: &model.Job{Type: model.JobTypeEmail}, want: ""},
		{
			name: "email job scopes to its template",
			job: &model.Job{
				Type:    model.JobTypeEmail,
				Payload: json.RawMessage(`{"template":"event_reminder","to":"guest@example.com"}`),
			},
			want: "event_reminder",
		},
		{
			name: "malformed payload yields no scope",
			job: &model.Job{
				Type:    model.JobTypeEmail,
				Payload: json.RawMessage(`{"template":`),
			},
			want: "",
		},
		{
			name: "non-email jobs have no payload scope",
			job: &model.Job{
				Type:    model.JobTypeRollup,
				Payload: json.RawMessage(`{"day":"2026-08-01"}`),
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractScopeFromJob(tt.job))
		})
	}
}

func TestCopyMetadata(t *testing.T) {
	t.Run("nil and empty maps collapse to nil", func(t *testing.T) {
		assert.Nil(t, copyMetadata(nil))
		assert.Nil(t, copyMetadata(map[string]string{}))
	})

	t.Run("drops blank keys and values", func(t *testing.T) {
		src := map[string]string{
			"worker": "email-1",
			"   ":    "ignored",
			"blank":  "  ",
		}

		got := copyMetadata(src)
		assert.Equal(t, map[string]string{"worker": "email-1"}, got)
	})

	t.Run("returns an independent copy", func(t *testing.T) {
		src := map[string]string{"worker": "email-1"}
		got := copyMetadata(src)

		got["worker"] = "changed"
		assert.Equal(t, "email-1", src["worker"])
	})
}

func TestMergeMetadata(t *testing.T) {
	t.Run("both empty stays nil", func(t *testing.T) {
		assert.Nil(t, mergeMetadata(nil, nil))
	})

	t.Run("extra values are trimmed and override base", func(t *testing.T) {
		base := map[string]string{"retry_count": "1", "worker": "email-1"}
		extra := map[string]string{" retry_count ": " 2 ", "": "dropped", "status": "  "}

		got := mergeMetadata(base, extra)
		assert.Equal(t, map[string]string{"retry_count": "2", "worker": "email-1"}, got)
	})

	t.Run("base may be nil", func(t *testing.T) {
		got := mergeMetadata(nil, map[string]string{"status": "failed"})
		assert.Equal(t, map[string]string{"status": "failed"}, got)
	})
}

func TestNormalizePagination(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  int
		wantOffset int
	}{
		{name: "zero limit uses the default", limit: 0, offset: 0, wantLimit: 50, wantOffset: 0},
		{name: "negative limit uses the default", limit: -10, offset: 0, wantLimit: 50, wantOffset: 0},
		{name: "oversized limit is clamped", limit: 2000, offset: 0, wantLimit: 1000, wantOffset: 0},
		{name: "negative offset floors at zero", limit: 25, offset: -5, wantLimit: 25, wantOffset: 0},
		{name: "valid values pass through", limit: 100, offset: 200, wantLimit: 100, wantOffset: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizePagination(tt.limit, tt.offset)
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, tt.wantOffset, got.Offset)
		})
	}
}

func TestJobService_GetByID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	expectedJob := &model.Job{
		ID:     "job-123",
		Type:   model.JobTypeEmail,
		Status: model.JobStatusCompleted,
	}

	repo.EXPECT().GetByID(gomock.Any(), "job-123").Return(expectedJob, nil)

	job, err := svc.GetByID(context.Background(), "job-123")
	require.NoError(t, err)
	assert.Equal(t, expectedJob, job)
}

func TestJobService_Stats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	expectedStats := &model.JobStats{
		Pending:   5,
		Running:   2,
		Completed: 10,
		Failed:    1,
	}

	repo.EXPECT().Stats(gomock.Any(), model.JobTypeEmail).Return(expectedStats, nil)

	stats, err := svc.Stats(context.Background(), model.JobTypeEmail)
	require.NoError(t, err)
	assert.Equal(t, expectedStats, stats)
}

func TestJobService_GetStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	t.Run("completed job", func(t *testing.T) {
		completedAt := time.Now()
		job := &model.Job{
			ID:          "job-123",
			Status:      model.JobStatusCompleted,
			CompletedAt: &completedAt,
			LastError:   nil,
		}

		repo.EXPECT().GetByID(gomock.Any(), "job-123").Return(job, nil)

		status, err := svc.GetStatus(context.Background(), "job-123")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, status.Status)
		assert.Equal(t, &completedAt, status.CompletedAt)
		assert.Nil(t, status.LastError)
	})

	t.Run("failed job keeps its last error", func(t *testing.T) {
		lastErr := "smtp timeout"
		job := &model.Job{
			ID:        "job-456",
			Status:    model.JobStatusFailed,
			LastError: &lastErr,
		}

		repo.EXPECT().GetByID(gomock.Any(), "job-456").Return(job, nil)

		status, err := svc.GetStatus(context.Background(), "job-456")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, status.Status)
		require.NotNil(t, status.LastError)
		assert.Equal(t, "smtp timeout", *status.LastError)
	})
}

func TestJobService_Subscribe(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	n := &stubJobNotifier{
		subscribeFn: func(model.JobType) (func(), <-chan struct{}) {
			ch := make(chan struct{})
			return func() {
				select {
				case <-ch:
				default:
				}
				close(ch)
			}, ch
		},
	}
	svc := MustNewJobService(JobServiceOptions{
		Repo:         repo,
		DefaultLease: 30 * time.Second,
		Notifier:     n,
	})

	unsub, ch := svc.Subscribe(model.JobTypeEmail)
	require.NotNil(t, unsub)
	require.NotNil(t, ch)
	require.Len(t, n.subscribeCalls, 1)
	assert.Equal(t, model.JobTypeEmail, n.subscribeCalls[0])

	unsub()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed on unsubscribe")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected channel to close after unsubscribe")
	}
}

func TestJobService_Subscribe_WithoutNotifier(t *testing.T) {
	svc := &JobService{}

	unsub, ch := svc.Subscribe(model.JobTypeEmail)
	require.NotNil(t, unsub)

	// The channel arrives already closed so a worker polling it never blocks.
	_, ok := <-ch
	assert.False(t, ok)
	assert.NotPanics(t, unsub)
}

func TestJobService_StopAllListeners(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	n := &stubJobNotifier{
		subscribeFn: func(model.JobType) (func(), <-chan struct{}) {
			return func() {}, make(chan struct{})
		},
	}
	svc := MustNewJobService(JobServiceOptions{
		Repo:         repo,
		DefaultLease: 30 * time.Second,
		Notifier:     n,
	})

	svc.StopAllListeners()
	assert.True(t, n.stopCalled)
}

func TestJobService_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	t.Run("pagination normalization", func(t *testing.T) {
		opts := &model.JobListOptions{
			Limit:  2000, // Should be clamped to 1000
			Offset: -5,   // Should be normalized to 0
		}

		expectedOpts := &model.JobListOptions{
			Limit:  1000,
			Offset: 0,
		}

		expectedJobs := []*model.Job{
			{ID: "job-1", Type: model.JobTypeEmail},
		}

		repo.EXPECT().List(gomock.Any(), expectedOpts).Return(expectedJobs, nil)

		jobs, err := svc.List(context.Background(), opts)
		require.NoError(t, err)
		assert.Equal(t, expectedJobs, jobs)
	})

	t.Run("nil options use the defaults", func(t *testing.T) {
		expectedOpts := &model.JobListOptions{Limit: 50, Offset: 0}

		repo.EXPECT().List(gomock.Any(), expectedOpts).Return(nil, nil)

		_, err := svc.List(context.Background(), nil)
		require.NoError(t, err)
	})

	t.Run("repository error", func(t *testing.T) {
		opts := &model.JobListOptions{Limit: 50, Offset: 0}
		expectedErr := errors.New("database error")

		repo.EXPECT().List(gomock.Any(), opts).Return(nil, expectedErr)

		jobs, err := svc.List(context.Background(), opts)
		require.Error(t, err)
		assert.Nil(t, jobs)
		assert.Contains(t, err.Error(), "list jobs")
	})
}

func TestJobService_Delete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	t.Run("success", func(t *testing.T) {
		jobID := "job-123"
		repo.EXPECT().Delete(gomock.Any(), jobID).Return(nil)

		err := svc.Delete(context.Background(), jobID)
		require.NoError(t, err)
	})

	t.Run("empty job id", func(t *testing.T) {
		err := svc.Delete(context.Background(), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "job id is required")
	})

	t.Run("repository error", func(t *testing.T) {
		jobID := "job-456"
		expectedErr := errors.New("job not found")
		repo.EXPECT().Delete(gomock.Any(), jobID).Return(expectedErr)

		err := svc.Delete(context.Background(), jobID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "delete job")
	})
}

func TestJobService_DeletePendingByEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockJobRepository(ctrl)
	svc, _ := newTestJobService(t, repo)

	t.Run("success", func(t *testing.T) {
		repo.EXPECT().DeletePendingByEvent(gomock.Any(), "event-1").Return(3, nil)

		deleted, err := svc.DeletePendingByEvent(context.Background(), "event-1")
		require.NoError(t, err)
		assert.Equal(t, 3, deleted)
	})

	t.Run("empty event id", func(t *testing.T) {
		deleted, err := svc.DeletePendingByEvent(context.Background(), "")
		require.Error(t, err)
		assert.Zero(t, deleted)
		assert.Contains(t, err.Error(), "event id is required")
	})

	t.Run("repository error", func(t *testing.T) {
		repo.EXPECT().DeletePendingByEvent(gomock.Any(), "event-2").Return(0, errors.New("boom"))

		_, err := svc.DeletePendingByEvent(context.Background(), "event-2")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "delete pending jobs for event")
	})
}
