// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/popmap/popmap-api/internal/core (interfaces: ReaperRepository)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=reaper_repository_mock.go github.com/popmap/popmap-api/internal/core ReaperRepository
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"
	time "time"

	core "github.com/popmap/popmap-api/internal/core"
	gomock "go.uber.org/mock/gomock"
)

// MockReaperRepository is a mock of ReaperRepository interface.
type MockReaperRepository struct {
	ctrl     *gomock.Controller
	recorder *MockReaperRepositoryMockRecorder
	isgomock struct{}
}

// MockReaperRepositoryMockRecorder is the mock recorder for MockReaperRepository.
type MockReaperRepositoryMockRecorder struct {
	mock *MockReaperRepository
}

// NewMockReaperRepository creates a new mock instance.
func NewMockReaperRepository(ctrl *gomock.Controller) *MockReaperRepository {
	mock := &MockReaperRepository{ctrl: ctrl}
	mock.recorder = &MockReaperRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockReaperRepository) EXPECT() *MockReaperRepositoryMockRecorder {
	return m.recorder
}

// DeleteOldJobs mocks base method.
func (m *MockReaperRepository) DeleteOldJobs(ctx context.Context, params core.DeleteOldJobsParams) (int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeleteOldJobs", ctx, params)
	ret0, _ := ret[0].(int64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// DeleteOldJobs indicates an expected call of DeleteOldJobs.
func (mr *MockReaperRepositoryMockRecorder) DeleteOldJobs(ctx, params any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeleteOldJobs", reflect.TypeOf((*MockReaperRepository)(nil).DeleteOldJobs), ctx, params)
}

// FailStalePendingJobs mocks base method.
func (m *MockReaperRepository) FailStalePendingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FailStalePendingJobs", ctx, maxAge, batchSize)
	ret0, _ := ret[0].(int64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FailStalePendingJobs indicates an expected call of FailStalePendingJobs.
func (mr *MockReaperRepositoryMockRecorder) FailStalePendingJobs(ctx, maxAge, batchSize any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FailStalePendingJobs", reflect.TypeOf((*MockReaperRepository)(nil).FailStalePendingJobs), ctx, maxAge, batchSize)
}
