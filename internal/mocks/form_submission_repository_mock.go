// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/popmap/popmap-api/internal/core (interfaces: FormSubmissionRepository)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=form_submission_repository_mock.go github.com/popmap/popmap-api/internal/core FormSubmissionRepository
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

// MockFormSubmissionRepository is a mock of FormSubmissionRepository interface.
type MockFormSubmissionRepository struct {
	ctrl     *gomock.Controller
	recorder *MockFormSubmissionRepositoryMockRecorder
	isgomock struct{}
}

// MockFormSubmissionRepositoryMockRecorder is the mock recorder for MockFormSubmissionRepository.
type MockFormSubmissionRepositoryMockRecorder struct {
	mock *MockFormSubmissionRepository
}

// NewMockFormSubmissionRepository creates a new mock instance.
func NewMockFormSubmissionRepository(ctrl *gomock.Controller) *MockFormSubmissionRepository {
	mock := &MockFormSubmissionRepository{ctrl: ctrl}
	mock.recorder = &MockFormSubmissionRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockFormSubmissionRepository) EXPECT() *MockFormSubmissionRepositoryMockRecorder {
	return m.recorder
}

// CountByTemplate mocks base method.
func (m *MockFormSubmissionRepository) CountByTemplate(ctx context.Context, templateID string) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CountByTemplate", ctx, templateID)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// CountByTemplate indicates an expected call of CountByTemplate.
func (mr *MockFormSubmissionRepositoryMockRecorder) CountByTemplate(ctx, templateID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CountByTemplate", reflect.TypeOf((*MockFormSubmissionRepository)(nil).CountByTemplate), ctx, templateID)
}

// Create mocks base method.
func (m *MockFormSubmissionRepository) Create(ctx context.Context, params core.CreateFormSubmissionParams) (*model.FormSubmission, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Create", ctx, params)
	ret0, _ := ret[0].(*model.FormSubmission)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Create indicates an expected call of Create.
func (mr *MockFormSubmissionRepositoryMockRecorder) Create(ctx, params any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Create", reflect.TypeOf((*MockFormSubmissionRepository)(nil).Create), ctx, params)
}

// GetByID mocks base method.
func (m *MockFormSubmissionRepository) GetByID(ctx context.Context, id string) (*model.FormSubmission, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByID", ctx, id)
	ret0, _ := ret[0].(*model.FormSubmission)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByID indicates an expected call of GetByID.
func (mr *MockFormSubmissionRepositoryMockRecorder) GetByID(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByID", reflect.TypeOf((*MockFormSubmissionRepository)(nil).GetByID), ctx, id)
}

// ListByTemplate mocks base method.
func (m *MockFormSubmissionRepository) ListByTemplate(ctx context.Context, opts model.FormSubmissionListOptions) ([]*model.FormSubmission, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListByTemplate", ctx, opts)
	ret0, _ := ret[0].([]*model.FormSubmission)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListByTemplate indicates an expected call of ListByTemplate.
func (mr *MockFormSubmissionRepositoryMockRecorder) ListByTemplate(ctx, opts any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListByTemplate", reflect.TypeOf((*MockFormSubmissionRepository)(nil).ListByTemplate), ctx, opts)
}
