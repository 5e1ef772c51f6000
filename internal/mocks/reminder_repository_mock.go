// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/popmap/popmap-api/internal/core (interfaces: ReminderRepository)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=reminder_repository_mock.go github.com/popmap/popmap-api/internal/core ReminderRepository
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"
	time "time"

	core "github.com/popmap/popmap-api/internal/core"
	model "github.com/popmap/popmap-api/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockReminderRepository is a mock of ReminderRepository interface.
type MockReminderRepository struct {
	ctrl     *gomock.Controller
	recorder *MockReminderRepositoryMockRecorder
	isgomock struct{}
}

// MockReminderRepositoryMockRecorder is the mock recorder for MockReminderRepository.
type MockReminderRepositoryMockRecorder struct {
	mock *MockReminderRepository
}

// NewMockReminderRepository creates a new mock instance.
func NewMockReminderRepository(ctrl *gomock.Controller) *MockReminderRepository {
	mock := &MockReminderRepository{ctrl: ctrl}
	mock.recorder = &MockReminderRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockReminderRepository) EXPECT() *MockReminderRepositoryMockRecorder {
	return m.recorder
}

// DeleteOldLogs mocks base method.
func (m *MockReminderRepository) DeleteOldLogs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeleteOldLogs", ctx, maxAge, batchSize)
	ret0, _ := ret[0].(int64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// DeleteOldLogs indicates an expected call of DeleteOldLogs.
func (mr *MockReminderRepositoryMockRecorder) DeleteOldLogs(ctx, maxAge, batchSize any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeleteOldLogs", reflect.TypeOf((*MockReminderRepository)(nil).DeleteOldLogs), ctx, maxAge, batchSize)
}

// ListDueCandidates mocks base method.
func (m *MockReminderRepository) ListDueCandidates(ctx context.Context, params core.ReminderWindowParams) ([]*model.ReminderCandidate, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListDueCandidates", ctx, params)
	ret0, _ := ret[0].([]*model.ReminderCandidate)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListDueCandidates indicates an expected call of ListDueCandidates.
func (mr *MockReminderRepositoryMockRecorder) ListDueCandidates(ctx, params any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListDueCandidates", reflect.TypeOf((*MockReminderRepository)(nil).ListDueCandidates), ctx, params)
}

// RecordSent mocks base method.
func (m *MockReminderRepository) RecordSent(ctx context.Context, params core.RecordReminderParams) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "RecordSent", ctx, params)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// RecordSent indicates an expected call of RecordSent.
func (mr *MockReminderRepositoryMockRecorder) RecordSent(ctx, params any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "RecordSent", reflect.TypeOf((*MockReminderRepository)(nil).RecordSent), ctx, params)
}
