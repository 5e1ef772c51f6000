package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/popmap/popmap-api/config"
	"github.com/popmap/popmap-api/internal/core"
	"github.com/popmap/popmap-api/internal/mocks"
)

// mockReaperRepo is a simple mock implementation for testing.
type mockReaperRepo struct {
	failStalePendingJobsCalled int
	failStalePendingJobsCount  int64
	failStalePendingJobsError  error

	deleteOldJobsCalled int
	deleteOldJobsCount  int64
	deleteOldJobsError  error
}

func (m *mockReaperRepo) FailStalePendingJobs(
	ctx context.Context,
	maxAge time.Duration,
	batchSize int,
) (int64, error) {
	m.failStalePendingJobsCalled++
	if m.failStalePendingJobsError != nil {
		return 0, m.failStalePendingJobsError
	}
	// Return count on first call, then 0 to simulate batch exhaustion
	if m.failStalePendingJobsCalled == 1 {
		return m.failStalePendingJobsCount, nil
	}
	return 0, nil
}

func (m *mockReaperRepo) DeleteOldJobs(
	ctx context.Context,
	params core.DeleteOldJobsParams,
) (int64, error) {
	m.deleteOldJobsCalled++
	if m.deleteOldJobsError != nil {
		return 0, m.deleteOldJobsError
	}
	// Return count on odd calls (1st, 3rd, 5th...), then 0 on even calls to simulate batch exhaustion
	// This allows multiple cleanup operations (completed, failed) to each get their batch
	if m.deleteOldJobsCalled%2 == 1 {
		return m.deleteOldJobsCount, nil
	}
	return 0, nil
}

func reaperTestConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:          5 * time.Minute,
		PendingMaxAge:     1 * time.Hour,
		CompletedMaxAge:   7 * 24 * time.Hour,
		FailedMaxAge:      7 * 24 * time.Hour,
		ReminderLogMaxAge: 90 * 24 * time.Hour,
		BatchSize:         1000,
	}
}

func TestNewReaperService(t *testing.T) {
	t.Run("creates service with valid options", func(t *testing.T) {
		repo := &mockReaperRepo{}

		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: reaperTestConfig(),
			Logger: slog.Default(),
		})

		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("returns error when repo is nil", func(t *testing.T) {
		_, err := NewReaperService(ReaperServiceOptions{
			Repo:   nil,
			Config: reaperTestConfig(),
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "ReaperRepository is required")
	})
}

func TestReaperService_runCleanup(t *testing.T) {
	t.Run("runs all cleanup operations successfully", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		t.Cleanup(ctrl.Finish)

		repo := &mockReaperRepo{
			failStalePendingJobsCount: 5,
			deleteOldJobsCount:        10,
		}
		analytics := mocks.NewMockAnalyticsRepository(ctrl)
		reminders := mocks.NewMockReminderRepository(ctrl)

		// Each pruner drains in batches: one batch with rows, then an empty one.
		gomock.InOrder(
			analytics.EXPECT().DeleteRawBefore(gomock.Any(), gomock.Any(), 1000).Return(int64(7), nil),
			analytics.EXPECT().DeleteRawBefore(gomock.Any(), gomock.Any(), 1000).Return(int64(0), nil),
		)
		gomock.InOrder(
			reminders.EXPECT().DeleteOldLogs(gomock.Any(), 90*24*time.Hour, 1000).Return(int64(3), nil),
			reminders.EXPECT().DeleteOldLogs(gomock.Any(), 90*24*time.Hour, 1000).Return(int64(0), nil),
		)

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:         repo,
			Config:       reaperTestConfig(),
			Analytics:    analytics,
			Reminders:    reminders,
			RawRetention: 90 * 24 * time.Hour,
		})

		ctx := context.Background()
		err := svc.runCleanup(ctx)

		require.NoError(t, err)
		// Each operation is called twice: once returning count, once returning 0
		assert.Equal(t, 2, repo.failStalePendingJobsCalled)
		// DeleteOldJobs is called twice per status (completed, failed): 2 * 2 = 4
		assert.Equal(t, 4, repo.deleteOldJobsCalled)
	})

	t.Run("skips pruning when optional repos are absent", func(t *testing.T) {
		repo := &mockReaperRepo{
			failStalePendingJobsCount: 1,
			deleteOldJobsCount:        1,
		}

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: reaperTestConfig(),
		})

		require.NoError(t, svc.runCleanup(context.Background()))
		assert.Equal(t, 2, repo.failStalePendingJobsCalled)
		assert.Equal(t, 4, repo.deleteOldJobsCalled)
	})

	t.Run("continues on partial errors", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		t.Cleanup(ctrl.Finish)

		repo := &mockReaperRepo{
			failStalePendingJobsError: errors.New("fail error"),
			deleteOldJobsCount:        10,
		}
		reminders := mocks.NewMockReminderRepository(ctrl)
		reminders.EXPECT().
			DeleteOldLogs(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(int64(0), nil)

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:      repo,
			Config:    reaperTestConfig(),
			Reminders: reminders,
		})

		ctx := context.Background()
		err := svc.runCleanup(ctx)

		// Should return error but still call all cleanup methods
		require.Error(t, err)
		// FailStalePendingJobs called once (returns error immediately)
		assert.Equal(t, 1, repo.failStalePendingJobsCalled)
		// DeleteOldJobs called twice per status (completed, failed): 2 * 2 = 4
		assert.Equal(t, 4, repo.deleteOldJobsCalled)
	})

	t.Run("reports shutdown mid-pass as context.Canceled", func(t *testing.T) {
		repo := &mockReaperRepo{
			failStalePendingJobsCount: 2,
			deleteOldJobsCount:        2,
		}

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: reaperTestConfig(),
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := svc.runCleanup(ctx)
		require.ErrorIs(t, err, context.Canceled,
			"only cancellations should surface as context.Canceled, not a cleanup failure")
	})
}

func TestReaperService_Run(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		repo := &mockReaperRepo{}
		cfg := reaperTestConfig()
		cfg.Interval = 100 * time.Millisecond

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: cfg,
		})

		ctx, cancel := context.WithCancel(context.Background())

		// Run in goroutine
		done := make(chan error, 1)
		go func() {
			done <- svc.Run(ctx)
		}()

		// Wait a bit to ensure at least one cleanup runs
		time.Sleep(150 * time.Millisecond)

		// Cancel context
		cancel()

		// Wait for Run to return
		select {
		case err := <-done:
			// Should return nil on graceful shutdown
			require.NoError(t, err)
		case <-time.After(1 * time.Second):
			t.Fatal("Run did not stop after context cancellation")
		}

		// Verify cleanup was called at least once (initial + maybe one tick)
		assert.GreaterOrEqual(t, repo.failStalePendingJobsCalled, 1)
	})

	t.Run("continues running despite cleanup errors", func(t *testing.T) {
		repo := &mockReaperRepo{
			failStalePendingJobsError: errors.New("test error"),
		}
		cfg := reaperTestConfig()
		cfg.Interval = 50 * time.Millisecond

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: cfg,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		err := svc.Run(ctx)

		// Should return context deadline exceeded, not the cleanup error
		require.Error(t, err)
		require.ErrorIs(t, err, context.DeadlineExceeded)

		// Verify cleanup was called multiple times despite errors
		assert.GreaterOrEqual(t, repo.failStalePendingJobsCalled, 2)
	})
}

func TestReaperService_failStalePendingJobs(t *testing.T) {
	t.Run("calls repo with correct max age", func(t *testing.T) {
		repo := &mockReaperRepo{
			failStalePendingJobsCount: 3,
		}
		cfg := config.ReaperConfig{
			PendingMaxAge: 2 * time.Hour,
			BatchSize:     1000,
		}

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: cfg,
		})

		ctx := context.Background()
		count, err := svc.failStalePendingJobs(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
		// Called twice: once returning count, once returning 0
		assert.Equal(t, 2, repo.failStalePendingJobsCalled)
	})
}

func TestReaperService_deleteOldCompletedJobs(t *testing.T) {
	t.Run("calls repo with correct status and max age", func(t *testing.T) {
		repo := &mockReaperRepo{
			deleteOldJobsCount: 5,
		}
		cfg := config.ReaperConfig{
			CompletedMaxAge: 7 * 24 * time.Hour,
			BatchSize:       1000,
		}

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: cfg,
		})

		ctx := context.Background()
		count, err := svc.deleteOldCompletedJobs(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(5), count)
		// Called twice: once returning count, once returning 0
		assert.Equal(t, 2, repo.deleteOldJobsCalled)
	})
}

func TestReaperService_deleteOldFailedJobs(t *testing.T) {
	t.Run("calls repo with correct status and max age", func(t *testing.T) {
		repo := &mockReaperRepo{
			deleteOldJobsCount: 8,
		}
		cfg := config.ReaperConfig{
			FailedMaxAge: 7 * 24 * time.Hour,
			BatchSize:    1000,
		}

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: cfg,
		})

		ctx := context.Background()
		count, err := svc.deleteOldFailedJobs(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(8), count)
		// Called twice: once returning count, once returning 0
		assert.Equal(t, 2, repo.deleteOldJobsCalled)
	})
}

func TestReaperService_pruneRawAnalytics(t *testing.T) {
	t.Run("drains raw rows in batches up to the cutoff", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		t.Cleanup(ctrl.Finish)

		repo := &mockReaperRepo{}
		analytics := mocks.NewMockAnalyticsRepository(ctrl)

		retention := 60 * 24 * time.Hour
		var gotCutoff time.Time
		gomock.InOrder(
			analytics.EXPECT().
				DeleteRawBefore(gomock.Any(), gomock.Any(), 500).
				DoAndReturn(func(_ context.Context, cutoff time.Time, _ int) (int64, error) {
					gotCutoff = cutoff
					return 12, nil
				}),
			analytics.EXPECT().DeleteRawBefore(gomock.Any(), gomock.Any(), 500).Return(int64(0), nil),
		)

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:         repo,
			Config:       config.ReaperConfig{BatchSize: 500},
			Analytics:    analytics,
			RawRetention: retention,
		})

		count, err := svc.pruneRawAnalytics(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(12), count)
		assert.WithinDuration(t, time.Now().Add(-retention), gotCutoff, 5*time.Second)
	})

	t.Run("no-op without a retention window", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		t.Cleanup(ctrl.Finish)

		repo := &mockReaperRepo{}
		analytics := mocks.NewMockAnalyticsRepository(ctrl)
		// No DeleteRawBefore expectations: the step must not touch the repo.

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:      repo,
			Config:    config.ReaperConfig{BatchSize: 500},
			Analytics: analytics,
		})

		count, err := svc.pruneRawAnalytics(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}

func TestReaperService_deleteOldReminderLogs(t *testing.T) {
	t.Run("drains ledger rows in batches", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		t.Cleanup(ctrl.Finish)

		repo := &mockReaperRepo{}
		reminders := mocks.NewMockReminderRepository(ctrl)

		gomock.InOrder(
			reminders.EXPECT().DeleteOldLogs(gomock.Any(), 30*24*time.Hour, 250).Return(int64(9), nil),
			reminders.EXPECT().DeleteOldLogs(gomock.Any(), 30*24*time.Hour, 250).Return(int64(4), nil),
			reminders.EXPECT().DeleteOldLogs(gomock.Any(), 30*24*time.Hour, 250).Return(int64(0), nil),
		)

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo: repo,
			Config: config.ReaperConfig{
				ReminderLogMaxAge: 30 * 24 * time.Hour,
				BatchSize:         250,
			},
			Reminders: reminders,
		})

		count, err := svc.deleteOldReminderLogs(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(13), count)
	})
}
