// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/popmap/popmap-api/internal/core (interfaces: SubscriptionRepository)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=subscription_repository_mock.go github.com/popmap/popmap-api/internal/core SubscriptionRepository
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"

	core "github.com/popmap/popmap-api/internal/core"
	model "github.com/popmap/popmap-api/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockSubscriptionRepository is a mock of SubscriptionRepository interface.
type MockSubscriptionRepository struct {
	ctrl     *gomock.Controller
	recorder *MockSubscriptionRepositoryMockRecorder
	isgomock struct{}
}

// MockSubscriptionRepositoryMockRecorder is the mock recorder for MockSubscriptionRepository.
type MockSubscriptionRepositoryMockRecorder struct {
	mock *MockSubscriptionRepository
}

// NewMockSubscriptionRepository creates a new mock instance.
func NewMockSubscriptionRepository(ctrl *gomock.Controller) *MockSubscriptionRepository {
	mock := &MockSubscriptionRepository{ctrl: ctrl}
	mock.recorder = &MockSubscriptionRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockSubscriptionRepository) EXPECT() *MockSubscriptionRepositoryMockRecorder {
	return m.recorder
}

// GetByProfile mocks base method.
func (m *MockSubscriptionRepository) GetByProfile(ctx context.Context, profileID string) (*model.SubscriptionWithPlan, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByProfile", ctx, profileID)
	ret0, _ := ret[0].(*model.SubscriptionWithPlan)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByProfile indicates an expected call of GetByProfile.
func (mr *MockSubscriptionRepositoryMockRecorder) GetByProfile(ctx, profileID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByProfile", reflect.TypeOf((*MockSubscriptionRepository)(nil).GetByProfile), ctx, profileID)
}

// GetByStripeCustomerID mocks base method.
func (m *MockSubscriptionRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.Subscription, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByStripeCustomerID", ctx, customerID)
	ret0, _ := ret[0].(*model.Subscription)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByStripeCustomerID indicates an expected call of GetByStripeCustomerID.
func (mr *MockSubscriptionRepositoryMockRecorder) GetByStripeCustomerID(ctx, customerID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByStripeCustomerID", reflect.TypeOf((*MockSubscriptionRepository)(nil).GetByStripeCustomerID), ctx, customerID)
}

// GetByStripeSubscriptionID mocks base method.
func (m *MockSubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByStripeSubscriptionID", ctx, subscriptionID)
	ret0, _ := ret[0].(*model.Subscription)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByStripeSubscriptionID indicates an expected call of GetByStripeSubscriptionID.
func (mr *MockSubscriptionRepositoryMockRecorder) GetByStripeSubscriptionID(ctx, subscriptionID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByStripeSubscriptionID", reflect.TypeOf((*MockSubscriptionRepository)(nil).GetByStripeSubscriptionID), ctx, subscriptionID)
}

// GetProfileByStripeCustomer mocks base method.
func (m *MockSubscriptionRepository) GetProfileByStripeCustomer(ctx context.Context, customerID string) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetProfileByStripeCustomer", ctx, customerID)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetProfileByStripeCustomer indicates an expected call of GetProfileByStripeCustomer.
func (mr *MockSubscriptionRepositoryMockRecorder) GetProfileByStripeCustomer(ctx, customerID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetProfileByStripeCustomer", reflect.TypeOf((*MockSubscriptionRepository)(nil).GetProfileByStripeCustomer), ctx, customerID)
}

// GetStripeCustomer mocks base method.
func (m *MockSubscriptionRepository) GetStripeCustomer(ctx context.Context, profileID string) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetStripeCustomer", ctx, profileID)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetStripeCustomer indicates an expected call of GetStripeCustomer.
func (mr *MockSubscriptionRepositoryMockRecorder) GetStripeCustomer(ctx, profileID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetStripeCustomer", reflect.TypeOf((*MockSubscriptionRepository)(nil).GetStripeCustomer), ctx, profileID)
}

// SaveStripeCustomer mocks base method.
func (m *MockSubscriptionRepository) SaveStripeCustomer(ctx context.Context, profileID, customerID string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SaveStripeCustomer", ctx, profileID, customerID)
	ret0, _ := ret[0].(error)
	return ret0
}

// SaveStripeCustomer indicates an expected call of SaveStripeCustomer.
func (mr *MockSubscriptionRepositoryMockRecorder) SaveStripeCustomer(ctx, profileID, customerID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SaveStripeCustomer", reflect.TypeOf((*MockSubscriptionRepository)(nil).SaveStripeCustomer), ctx, profileID, customerID)
}

// UpdateStatus mocks base method.
func (m *MockSubscriptionRepository) UpdateStatus(ctx context.Context, params core.UpdateSubscriptionStatusParams) (*model.Subscription, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "UpdateStatus", ctx, params)
	ret0, _ := ret[0].(*model.Subscription)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// UpdateStatus indicates an expected call of UpdateStatus.
func (mr *MockSubscriptionRepositoryMockRecorder) UpdateStatus(ctx, params any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "UpdateStatus", reflect.TypeOf((*MockSubscriptionRepository)(nil).UpdateStatus), ctx, params)
}

// Upsert mocks base method.
func (m *MockSubscriptionRepository) Upsert(ctx context.Context, params model.UpsertSubscriptionParams) (*model.Subscription, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Upsert", ctx, params)
	ret0, _ := ret[0].(*model.Subscription)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Upsert indicates an expected call of Upsert.
func (mr *MockSubscriptionRepositoryMockRecorder) Upsert(ctx, params any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Upsert", reflect.TypeOf((*MockSubscriptionRepository)(nil).Upsert), ctx, params)
}
