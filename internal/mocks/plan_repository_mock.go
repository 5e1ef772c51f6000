// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/popmap/popmap-api/internal/core (interfaces: PlanRepository)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=plan_repository_mock.go github.com/popmap/popmap-api/internal/core PlanRepository
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"

	model "github.com/popmap/popmap-api/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockPlanRepository is a mock of PlanRepository interface.
type MockPlanRepository struct {
	ctrl     *gomock.Controller
	recorder *MockPlanRepositoryMockRecorder
	isgomock struct{}
}

// MockPlanRepositoryMockRecorder is the mock recorder for MockPlanRepository.
type MockPlanRepositoryMockRecorder struct {
	mock *MockPlanRepository
}

// NewMockPlanRepository creates a new mock instance.
func NewMockPlanRepository(ctrl *gomock.Controller) *MockPlanRepository {
	mock := &MockPlanRepository{ctrl: ctrl}
	mock.recorder = &MockPlanRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockPlanRepository) EXPECT() *MockPlanRepositoryMockRecorder {
	return m.recorder
}

// GetByID mocks base method.
func (m *MockPlanRepository) GetByID(ctx context.Context, id string) (*model.Plan, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByID", ctx, id)
	ret0, _ := ret[0].(*model.Plan)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByID indicates an expected call of GetByID.
func (mr *MockPlanRepositoryMockRecorder) GetByID(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByID", reflect.TypeOf((*MockPlanRepository)(nil).GetByID), ctx, id)
}

// GetByStripePriceID mocks base method.
func (m *MockPlanRepository) GetByStripePriceID(ctx context.Context, priceID string) (*model.Plan, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByStripePriceID", ctx, priceID)
	ret0, _ := ret[0].(*model.Plan)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByStripePriceID indicates an expected call of GetByStripePriceID.
func (mr *MockPlanRepositoryMockRecorder) GetByStripePriceID(ctx, priceID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByStripePriceID", reflect.TypeOf((*MockPlanRepository)(nil).GetByStripePriceID), ctx, priceID)
}

// GetByType mocks base method.
func (m *MockPlanRepository) GetByType(ctx context.Context, planType model.PlanType) (*model.Plan, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByType", ctx, planType)
	ret0, _ := ret[0].(*model.Plan)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByType indicates an expected call of GetByType.
func (mr *MockPlanRepositoryMockRecorder) GetByType(ctx, planType any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByType", reflect.TypeOf((*MockPlanRepository)(nil).GetByType), ctx, planType)
}

// List mocks base method.
func (m *MockPlanRepository) List(ctx context.Context, publicOnly bool) ([]*model.Plan, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "List", ctx, publicOnly)
	ret0, _ := ret[0].([]*model.Plan)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// List indicates an expected call of List.
func (mr *MockPlanRepositoryMockRecorder) List(ctx, publicOnly any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "List", reflect.TypeOf((*MockPlanRepository)(nil).List), ctx, publicOnly)
}

// SeedDefaults mocks base method.
func (m *MockPlanRepository) SeedDefaults(ctx context.Context) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SeedDefaults", ctx)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// SeedDefaults indicates an expected call of SeedDefaults.
func (mr *MockPlanRepositoryMockRecorder) SeedDefaults(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SeedDefaults", reflect.TypeOf((*MockPlanRepository)(nil).SeedDefaults), ctx)
}
