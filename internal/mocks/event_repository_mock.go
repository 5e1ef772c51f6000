// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/popmap/popmap-api/internal/core (interfaces: EventRepository)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=event_repository_mock.go github.com/popmap/popmap-api/internal/core EventRepository
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

// MockEventRepository is a mock of EventRepository interface.
type MockEventRepository struct {
	ctrl     *gomock.Controller
	recorder *MockEventRepositoryMockRecorder
	isgomock struct{}
}

// MockEventRepositoryMockRecorder is the mock recorder for MockEventRepository.
type MockEventRepositoryMockRecorder struct {
	mock *MockEventRepository
}

// NewMockEventRepository creates a new mock instance.
func NewMockEventRepository(ctrl *gomock.Controller) *MockEventRepository {
	mock := &MockEventRepository{ctrl: ctrl}
	mock.recorder = &MockEventRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockEventRepository) EXPECT() *MockEventRepositoryMockRecorder {
	return m.recorder
}

// CountByBusinessInMonth mocks base method.
func (m *MockEventRepository) CountByBusinessInMonth(ctx context.Context, businessID string, at time.Time) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CountByBusinessInMonth", ctx, businessID, at)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// CountByBusinessInMonth indicates an expected call of CountByBusinessInMonth.
func (mr *MockEventRepositoryMockRecorder) CountByBusinessInMonth(ctx, businessID, at any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CountByBusinessInMonth", reflect.TypeOf((*MockEventRepository)(nil).CountByBusinessInMonth), ctx, businessID, at)
}

// Create mocks base method.
func (m *MockEventRepository) Create(ctx context.Context, req *model.CreateEventRequest) (*model.Event, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Create", ctx, req)
	ret0, _ := ret[0].(*model.Event)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Create indicates an expected call of Create.
func (mr *MockEventRepositoryMockRecorder) Create(ctx, req any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Create", reflect.TypeOf((*MockEventRepository)(nil).Create), ctx, req)
}

// Delete mocks base method.
func (m *MockEventRepository) Delete(ctx context.Context, id string) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Delete", ctx, id)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Delete indicates an expected call of Delete.
func (mr *MockEventRepositoryMockRecorder) Delete(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Delete", reflect.TypeOf((*MockEventRepository)(nil).Delete), ctx, id)
}

// GetByID mocks base method.
func (m *MockEventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByID", ctx, id)
	ret0, _ := ret[0].(*model.Event)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByID indicates an expected call of GetByID.
func (mr *MockEventRepositoryMockRecorder) GetByID(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByID", reflect.TypeOf((*MockEventRepository)(nil).GetByID), ctx, id)
}

// List mocks base method.
func (m *MockEventRepository) List(ctx context.Context, opts model.EventListOptions) (*model.EventListPage, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "List", ctx, opts)
	ret0, _ := ret[0].(*model.EventListPage)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// List indicates an expected call of List.
func (mr *MockEventRepositoryMockRecorder) List(ctx, opts any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "List", reflect.TypeOf((*MockEventRepository)(nil).List), ctx, opts)
}

// ListMarkers mocks base method.
func (m *MockEventRepository) ListMarkers(ctx context.Context, opts model.EventListOptions) ([]*model.MapMarker, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListMarkers", ctx, opts)
	ret0, _ := ret[0].([]*model.MapMarker)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListMarkers indicates an expected call of ListMarkers.
func (mr *MockEventRepositoryMockRecorder) ListMarkers(ctx, opts any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListMarkers", reflect.TypeOf((*MockEventRepository)(nil).ListMarkers), ctx, opts)
}

// ReplaceCategories mocks base method.
func (m *MockEventRepository) ReplaceCategories(ctx context.Context, id string, categoryIDs []string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ReplaceCategories", ctx, id, categoryIDs)
	ret0, _ := ret[0].(error)
	return ret0
}

// ReplaceCategories indicates an expected call of ReplaceCategories.
func (mr *MockEventRepositoryMockRecorder) ReplaceCategories(ctx, id, categoryIDs any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ReplaceCategories", reflect.TypeOf((*MockEventRepository)(nil).ReplaceCategories), ctx, id, categoryIDs)
}

// Update mocks base method.
func (m *MockEventRepository) Update(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Update", ctx, id, req)
	ret0, _ := ret[0].(*model.Event)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Update indicates an expected call of Update.
func (mr *MockEventRepositoryMockRecorder) Update(ctx, id, req any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Update", reflect.TypeOf((*MockEventRepository)(nil).Update), ctx, id, req)
}

// UpdateStatus mocks base method.
func (m *MockEventRepository) UpdateStatus(ctx context.Context, params core.UpdateEventStatusParams) (*model.Event, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "UpdateStatus", ctx, params)
	ret0, _ := ret[0].(*model.Event)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// UpdateStatus indicates an expected call of UpdateStatus.
func (mr *MockEventRepositoryMockRecorder) UpdateStatus(ctx, params any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "UpdateStatus", reflect.TypeOf((*MockEventRepository)(nil).UpdateStatus), ctx, params)
}
