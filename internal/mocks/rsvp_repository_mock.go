// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/popmap/popmap-api/internal/core (interfaces: RSVPRepository)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=rsvp_repository_mock.go github.com/popmap/popmap-api/internal/core RSVPRepository
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

// MockRSVPRepository is a mock of RSVPRepository interface.
type MockRSVPRepository struct {
	ctrl     *gomock.Controller
	recorder *MockRSVPRepositoryMockRecorder
	isgomock struct{}
}

// MockRSVPRepositoryMockRecorder is the mock recorder for MockRSVPRepository.
type MockRSVPRepositoryMockRecorder struct {
	mock *MockRSVPRepository
}

// NewMockRSVPRepository creates a new mock instance.
func NewMockRSVPRepository(ctrl *gomock.Controller) *MockRSVPRepository {
	mock := &MockRSVPRepository{ctrl: ctrl}
	mock.recorder = &MockRSVPRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockRSVPRepository) EXPECT() *MockRSVPRepositoryMockRecorder {
	return m.recorder
}

// CountsByEvent mocks base method.
func (m *MockRSVPRepository) CountsByEvent(ctx context.Context, eventID string) (*model.RSVPCounts, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CountsByEvent", ctx, eventID)
	ret0, _ := ret[0].(*model.RSVPCounts)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// CountsByEvent indicates an expected call of CountsByEvent.
func (mr *MockRSVPRepositoryMockRecorder) CountsByEvent(ctx, eventID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CountsByEvent", reflect.TypeOf((*MockRSVPRepository)(nil).CountsByEvent), ctx, eventID)
}

// GetByID mocks base method.
func (m *MockRSVPRepository) GetByID(ctx context.Context, id string) (*model.RSVP, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByID", ctx, id)
	ret0, _ := ret[0].(*model.RSVP)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByID indicates an expected call of GetByID.
func (mr *MockRSVPRepositoryMockRecorder) GetByID(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByID", reflect.TypeOf((*MockRSVPRepository)(nil).GetByID), ctx, id)
}

// GetByUnsubscribeToken mocks base method.
func (m *MockRSVPRepository) GetByUnsubscribeToken(ctx context.Context, token string) (*model.RSVP, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByUnsubscribeToken", ctx, token)
	ret0, _ := ret[0].(*model.RSVP)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByUnsubscribeToken indicates an expected call of GetByUnsubscribeToken.
func (mr *MockRSVPRepositoryMockRecorder) GetByUnsubscribeToken(ctx, token any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByUnsubscribeToken", reflect.TypeOf((*MockRSVPRepository)(nil).GetByUnsubscribeToken), ctx, token)
}

// ListByEvent mocks base method.
func (m *MockRSVPRepository) ListByEvent(ctx context.Context, eventID string) ([]*model.RSVP, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListByEvent", ctx, eventID)
	ret0, _ := ret[0].([]*model.RSVP)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListByEvent indicates an expected call of ListByEvent.
func (mr *MockRSVPRepositoryMockRecorder) ListByEvent(ctx, eventID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListByEvent", reflect.TypeOf((*MockRSVPRepository)(nil).ListByEvent), ctx, eventID)
}

// ListByProfile mocks base method.
func (m *MockRSVPRepository) ListByProfile(ctx context.Context, profileID string) ([]*model.RSVP, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListByProfile", ctx, profileID)
	ret0, _ := ret[0].([]*model.RSVP)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListByProfile indicates an expected call of ListByProfile.
func (mr *MockRSVPRepositoryMockRecorder) ListByProfile(ctx, profileID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListByProfile", reflect.TypeOf((*MockRSVPRepository)(nil).ListByProfile), ctx, profileID)
}

// MergeGuestRSVPs mocks base method.
func (m *MockRSVPRepository) MergeGuestRSVPs(ctx context.Context, email, profileID string) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "MergeGuestRSVPs", ctx, email, profileID)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// MergeGuestRSVPs indicates an expected call of MergeGuestRSVPs.
func (mr *MockRSVPRepositoryMockRecorder) MergeGuestRSVPs(ctx, email, profileID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "MergeGuestRSVPs", reflect.TypeOf((*MockRSVPRepository)(nil).MergeGuestRSVPs), ctx, email, profileID)
}

// Remove mocks base method.
func (m *MockRSVPRepository) Remove(ctx context.Context, params core.RemoveRSVPParams) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Remove", ctx, params)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Remove indicates an expected call of Remove.
func (mr *MockRSVPRepositoryMockRecorder) Remove(ctx, params any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Remove", reflect.TypeOf((*MockRSVPRepository)(nil).Remove), ctx, params)
}

// SetRemindersEnabled mocks base method.
func (m *MockRSVPRepository) SetRemindersEnabled(ctx context.Context, id string, enabled bool) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SetRemindersEnabled", ctx, id, enabled)
	ret0, _ := ret[0].(error)
	return ret0
}

// SetRemindersEnabled indicates an expected call of SetRemindersEnabled.
func (mr *MockRSVPRepositoryMockRecorder) SetRemindersEnabled(ctx, id, enabled any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SetRemindersEnabled", reflect.TypeOf((*MockRSVPRepository)(nil).SetRemindersEnabled), ctx, id, enabled)
}

// Upsert mocks base method.
func (m *MockRSVPRepository) Upsert(ctx context.Context, req *model.UpsertRSVPRequest) (*model.RSVP, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Upsert", ctx, req)
	ret0, _ := ret[0].(*model.RSVP)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Upsert indicates an expected call of Upsert.
func (mr *MockRSVPRepositoryMockRecorder) Upsert(ctx, req any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Upsert", reflect.TypeOf((*MockRSVPRepository)(nil).Upsert), ctx, req)
}
