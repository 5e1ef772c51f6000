// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/popmap/popmap-api/internal/core (interfaces: FormTemplateRepository)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=form_template_repository_mock.go github.com/popmap/popmap-api/internal/core FormTemplateRepository
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"

	model "github.com/popmap/popmap-api/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockFormTemplateRepository is a mock of FormTemplateRepository interface.
type MockFormTemplateRepository struct {
	ctrl     *gomock.Controller
	recorder *MockFormTemplateRepositoryMockRecorder
	isgomock struct{}
}

// MockFormTemplateRepositoryMockRecorder is the mock recorder for MockFormTemplateRepository.
type MockFormTemplateRepositoryMockRecorder struct {
	mock *MockFormTemplateRepository
}

// NewMockFormTemplateRepository creates a new mock instance.
func NewMockFormTemplateRepository(ctrl *gomock.Controller) *MockFormTemplateRepository {
	mock := &MockFormTemplateRepository{ctrl: ctrl}
	mock.recorder = &MockFormTemplateRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockFormTemplateRepository) EXPECT() *MockFormTemplateRepositoryMockRecorder {
	return m.recorder
}

// Create mocks base method.
func (m *MockFormTemplateRepository) Create(ctx context.Context, req *model.CreateFormTemplateRequest) (*model.FormTemplate, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Create", ctx, req)
	ret0, _ := ret[0].(*model.FormTemplate)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Create indicates an expected call of Create.
func (mr *MockFormTemplateRepositoryMockRecorder) Create(ctx, req any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Create", reflect.TypeOf((*MockFormTemplateRepository)(nil).Create), ctx, req)
}

// Delete mocks base method.
func (m *MockFormTemplateRepository) Delete(ctx context.Context, id string) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Delete", ctx, id)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Delete indicates an expected call of Delete.
func (mr *MockFormTemplateRepositoryMockRecorder) Delete(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Delete", reflect.TypeOf((*MockFormTemplateRepository)(nil).Delete), ctx, id)
}

// GetByID mocks base method.
func (m *MockFormTemplateRepository) GetByID(ctx context.Context, id string) (*model.FormTemplate, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByID", ctx, id)
	ret0, _ := ret[0].(*model.FormTemplate)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByID indicates an expected call of GetByID.
func (mr *MockFormTemplateRepositoryMockRecorder) GetByID(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByID", reflect.TypeOf((*MockFormTemplateRepository)(nil).GetByID), ctx, id)
}

// GetBySlug mocks base method.
func (m *MockFormTemplateRepository) GetBySlug(ctx context.Context, slug string) (*model.FormTemplate, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetBySlug", ctx, slug)
	ret0, _ := ret[0].(*model.FormTemplate)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetBySlug indicates an expected call of GetBySlug.
func (mr *MockFormTemplateRepositoryMockRecorder) GetBySlug(ctx, slug any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetBySlug", reflect.TypeOf((*MockFormTemplateRepository)(nil).GetBySlug), ctx, slug)
}

// ListByBusiness mocks base method.
func (m *MockFormTemplateRepository) ListByBusiness(ctx context.Context, businessID string) ([]*model.FormTemplate, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListByBusiness", ctx, businessID)
	ret0, _ := ret[0].([]*model.FormTemplate)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListByBusiness indicates an expected call of ListByBusiness.
func (mr *MockFormTemplateRepositoryMockRecorder) ListByBusiness(ctx, businessID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListByBusiness", reflect.TypeOf((*MockFormTemplateRepository)(nil).ListByBusiness), ctx, businessID)
}

// ReplaceFields mocks base method.
func (m *MockFormTemplateRepository) ReplaceFields(ctx context.Context, id string, fields []model.CreateFormFieldRequest) (*model.FormTemplate, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ReplaceFields", ctx, id, fields)
	ret0, _ := ret[0].(*model.FormTemplate)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ReplaceFields indicates an expected call of ReplaceFields.
func (mr *MockFormTemplateRepositoryMockRecorder) ReplaceFields(ctx, id, fields any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ReplaceFields", reflect.TypeOf((*MockFormTemplateRepository)(nil).ReplaceFields), ctx, id, fields)
}

// Update mocks base method.
func (m *MockFormTemplateRepository) Update(ctx context.Context, id string, req model.UpdateFormTemplateRequest) (*model.FormTemplate, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Update", ctx, id, req)
	ret0, _ := ret[0].(*model.FormTemplate)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Update indicates an expected call of Update.
func (mr *MockFormTemplateRepositoryMockRecorder) Update(ctx, id, req any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Update", reflect.TypeOf((*MockFormTemplateRepository)(nil).Update), ctx, id, req)
}
