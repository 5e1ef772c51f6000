// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/popmap/popmap-api/internal/core (interfaces: GuestPreferenceRepository)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=guest_preference_repository_mock.go github.com/popmap/popmap-api/internal/core GuestPreferenceRepository
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"

	model "github.com/popmap/popmap-api/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockGuestPreferenceRepository is a mock of GuestPreferenceRepository interface.
type MockGuestPreferenceRepository struct {
	ctrl     *gomock.Controller
	recorder *MockGuestPreferenceRepositoryMockRecorder
	isgomock struct{}
}

// MockGuestPreferenceRepositoryMockRecorder is the mock recorder for MockGuestPreferenceRepository.
type MockGuestPreferenceRepositoryMockRecorder struct {
	mock *MockGuestPreferenceRepository
}

// NewMockGuestPreferenceRepository creates a new mock instance.
func NewMockGuestPreferenceRepository(ctrl *gomock.Controller) *MockGuestPreferenceRepository {
	mock := &MockGuestPreferenceRepository{ctrl: ctrl}
	mock.recorder = &MockGuestPreferenceRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockGuestPreferenceRepository) EXPECT() *MockGuestPreferenceRepositoryMockRecorder {
	return m.recorder
}

// IsUnsubscribed mocks base method.
func (m *MockGuestPreferenceRepository) IsUnsubscribed(ctx context.Context, email string) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "IsUnsubscribed", ctx, email)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// IsUnsubscribed indicates an expected call of IsUnsubscribed.
func (mr *MockGuestPreferenceRepositoryMockRecorder) IsUnsubscribed(ctx, email any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IsUnsubscribed", reflect.TypeOf((*MockGuestPreferenceRepository)(nil).IsUnsubscribed), ctx, email)
}

// Unsubscribe mocks base method.
func (m *MockGuestPreferenceRepository) Unsubscribe(ctx context.Context, email string) (*model.GuestEmailPreference, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Unsubscribe", ctx, email)
	ret0, _ := ret[0].(*model.GuestEmailPreference)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Unsubscribe indicates an expected call of Unsubscribe.
func (mr *MockGuestPreferenceRepositoryMockRecorder) Unsubscribe(ctx, email any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Unsubscribe", reflect.TypeOf((*MockGuestPreferenceRepository)(nil).Unsubscribe), ctx, email)
}
