// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/popmap/popmap-api/internal/core (interfaces: BusinessRepository)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=business_repository_mock.go github.com/popmap/popmap-api/internal/core BusinessRepository
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"

	model "github.com/popmap/popmap-api/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockBusinessRepository is a mock of BusinessRepository interface.
type MockBusinessRepository struct {
	ctrl     *gomock.Controller
	recorder *MockBusinessRepositoryMockRecorder
	isgomock struct{}
}

// MockBusinessRepositoryMockRecorder is the mock recorder for MockBusinessRepository.
type MockBusinessRepositoryMockRecorder struct {
	mock *MockBusinessRepository
}

// NewMockBusinessRepository creates a new mock instance.
func NewMockBusinessRepository(ctrl *gomock.Controller) *MockBusinessRepository {
	mock := &MockBusinessRepository{ctrl: ctrl}
	mock.recorder = &MockBusinessRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockBusinessRepository) EXPECT() *MockBusinessRepositoryMockRecorder {
	return m.recorder
}

// Create mocks base method.
func (m *MockBusinessRepository) Create(ctx context.Context, req *model.CreateBusinessRequest) (*model.Business, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Create", ctx, req)
	ret0, _ := ret[0].(*model.Business)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Create indicates an expected call of Create.
func (mr *MockBusinessRepositoryMockRecorder) Create(ctx, req any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Create", reflect.TypeOf((*MockBusinessRepository)(nil).Create), ctx, req)
}

// Delete mocks base method.
func (m *MockBusinessRepository) Delete(ctx context.Context, id string) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Delete", ctx, id)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Delete indicates an expected call of Delete.
func (mr *MockBusinessRepositoryMockRecorder) Delete(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Delete", reflect.TypeOf((*MockBusinessRepository)(nil).Delete), ctx, id)
}

// GetByID mocks base method.
func (m *MockBusinessRepository) GetByID(ctx context.Context, id string) (*model.Business, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByID", ctx, id)
	ret0, _ := ret[0].(*model.Business)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByID indicates an expected call of GetByID.
func (mr *MockBusinessRepositoryMockRecorder) GetByID(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByID", reflect.TypeOf((*MockBusinessRepository)(nil).GetByID), ctx, id)
}

// GetBySubdomain mocks base method.
func (m *MockBusinessRepository) GetBySubdomain(ctx context.Context, subdomain string) (*model.Business, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetBySubdomain", ctx, subdomain)
	ret0, _ := ret[0].(*model.Business)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetBySubdomain indicates an expected call of GetBySubdomain.
func (mr *MockBusinessRepositoryMockRecorder) GetBySubdomain(ctx, subdomain any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetBySubdomain", reflect.TypeOf((*MockBusinessRepository)(nil).GetBySubdomain), ctx, subdomain)
}

// List mocks base method.
func (m *MockBusinessRepository) List(ctx context.Context, opts model.BusinessListOptions) ([]*model.Business, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "List", ctx, opts)
	ret0, _ := ret[0].([]*model.Business)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// List indicates an expected call of List.
func (mr *MockBusinessRepositoryMockRecorder) List(ctx, opts any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "List", reflect.TypeOf((*MockBusinessRepository)(nil).List), ctx, opts)
}

// ListByOwner mocks base method.
func (m *MockBusinessRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.Business, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListByOwner", ctx, ownerID)
	ret0, _ := ret[0].([]*model.Business)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListByOwner indicates an expected call of ListByOwner.
func (mr *MockBusinessRepositoryMockRecorder) ListByOwner(ctx, ownerID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListByOwner", reflect.TypeOf((*MockBusinessRepository)(nil).ListByOwner), ctx, ownerID)
}

// SetSubdomain mocks base method.
func (m *MockBusinessRepository) SetSubdomain(ctx context.Context, id string, subdomain *string) (*model.Business, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetSubdomain", ctx, id, subdomain)
	ret0, _ := ret[0].(*model.Business)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// SetSubdomain indicates an expected call of SetSubdomain.
func (mr *MockBusinessRepositoryMockRecorder) SetSubdomain(ctx, id, subdomain any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetSubdomain", reflect.TypeOf((*MockBusinessRepository)(nil).SetSubdomain), ctx, id, subdomain)
}

// SetVerified mocks base method.
func (m *MockBusinessRepository) SetVerified(ctx context.Context, id string, verified bool) (*model.Business, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetVerified", ctx, id, verified)
	ret0, _ := ret[0].(*model.Business)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// SetVerified indicates an expected call of SetVerified.
func (mr *MockBusinessRepositoryMockRecorder) SetVerified(ctx, id, verified any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetVerified", reflect.TypeOf((*MockBusinessRepository)(nil).SetVerified), ctx, id, verified)
}

// Update mocks base method.
func (m *MockBusinessRepository) Update(ctx context.Context, id string, req model.UpdateBusinessRequest) (*model.Business, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Update", ctx, id, req)
	ret0, _ := ret[0].(*model.Business)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Update indicates an expected call of Update.
func (mr *MockBusinessRepositoryMockRecorder) Update(ctx, id, req any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Update", reflect.TypeOf((*MockBusinessRepository)(nil).Update), ctx, id, req)
}
