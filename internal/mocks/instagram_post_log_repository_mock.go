// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/popmap/popmap-api/internal/core (interfaces: InstagramPostLogRepository)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=instagram_post_log_repository_mock.go github.com/popmap/popmap-api/internal/core InstagramPostLogRepository
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"

	model "github.com/popmap/popmap-api/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockInstagramPostLogRepository is a mock of InstagramPostLogRepository interface.
type MockInstagramPostLogRepository struct {
	ctrl     *gomock.Controller
	recorder *MockInstagramPostLogRepositoryMockRecorder
	isgomock struct{}
}

// MockInstagramPostLogRepositoryMockRecorder is the mock recorder for MockInstagramPostLogRepository.
type MockInstagramPostLogRepositoryMockRecorder struct {
	mock *MockInstagramPostLogRepository
}

// NewMockInstagramPostLogRepository creates a new mock instance.
func NewMockInstagramPostLogRepository(ctrl *gomock.Controller) *MockInstagramPostLogRepository {
	mock := &MockInstagramPostLogRepository{ctrl: ctrl}
	mock.recorder = &MockInstagramPostLogRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockInstagramPostLogRepository) EXPECT() *MockInstagramPostLogRepositoryMockRecorder {
	return m.recorder
}

// Create mocks base method.
func (m *MockInstagramPostLogRepository) Create(ctx context.Context, log *model.InstagramPostLog) (*model.InstagramPostLog, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Create", ctx, log)
	ret0, _ := ret[0].(*model.InstagramPostLog)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Create indicates an expected call of Create.
func (mr *MockInstagramPostLogRepositoryMockRecorder) Create(ctx, log any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Create", reflect.TypeOf((*MockInstagramPostLogRepository)(nil).Create), ctx, log)
}

// ListByBusiness mocks base method.
func (m *MockInstagramPostLogRepository) ListByBusiness(ctx context.Context, businessID string, limit int) ([]*model.InstagramImportLogEntry, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListByBusiness", ctx, businessID, limit)
	ret0, _ := ret[0].([]*model.InstagramImportLogEntry)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListByBusiness indicates an expected call of ListByBusiness.
func (mr *MockInstagramPostLogRepositoryMockRecorder) ListByBusiness(ctx, businessID, limit any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListByBusiness", reflect.TypeOf((*MockInstagramPostLogRepository)(nil).ListByBusiness), ctx, businessID, limit)
}

// ListPostIDs mocks base method.
func (m *MockInstagramPostLogRepository) ListPostIDs(ctx context.Context, businessID string) ([]string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListPostIDs", ctx, businessID)
	ret0, _ := ret[0].([]string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListPostIDs indicates an expected call of ListPostIDs.
func (mr *MockInstagramPostLogRepositoryMockRecorder) ListPostIDs(ctx, businessID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListPostIDs", reflect.TypeOf((*MockInstagramPostLogRepository)(nil).ListPostIDs), ctx, businessID)
}
