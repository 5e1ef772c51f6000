// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/popmap/popmap-api/internal/core (interfaces: AnalyticsRepository)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=analytics_repository_mock.go github.com/popmap/popmap-api/internal/core AnalyticsRepository
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"
	time "time"

	model "github.com/popmap/popmap-api/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockAnalyticsRepository is a mock of AnalyticsRepository interface.
type MockAnalyticsRepository struct {
	ctrl     *gomock.Controller
	recorder *MockAnalyticsRepositoryMockRecorder
	isgomock struct{}
}

// MockAnalyticsRepositoryMockRecorder is the mock recorder for MockAnalyticsRepository.
type MockAnalyticsRepositoryMockRecorder struct {
	mock *MockAnalyticsRepository
}

// NewMockAnalyticsRepository creates a new mock instance.
func NewMockAnalyticsRepository(ctrl *gomock.Controller) *MockAnalyticsRepository {
	mock := &MockAnalyticsRepository{ctrl: ctrl}
	mock.recorder = &MockAnalyticsRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockAnalyticsRepository) EXPECT() *MockAnalyticsRepositoryMockRecorder {
	return m.recorder
}

// AggregateDay mocks base method.
func (m *MockAnalyticsRepository) AggregateDay(ctx context.Context, day time.Time) (int, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AggregateDay", ctx, day)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// AggregateDay indicates an expected call of AggregateDay.
func (mr *MockAnalyticsRepositoryMockRecorder) AggregateDay(ctx, day any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AggregateDay", reflect.TypeOf((*MockAnalyticsRepository)(nil).AggregateDay), ctx, day)
}

// DeleteRawBefore mocks base method.
func (m *MockAnalyticsRepository) DeleteRawBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DeleteRawBefore", ctx, cutoff, batchSize)
	ret0, _ := ret[0].(int64)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// DeleteRawBefore indicates an expected call of DeleteRawBefore.
func (mr *MockAnalyticsRepositoryMockRecorder) DeleteRawBefore(ctx, cutoff, batchSize any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DeleteRawBefore", reflect.TypeOf((*MockAnalyticsRepository)(nil).DeleteRawBefore), ctx, cutoff, batchSize)
}

// EventStats mocks base method.
func (m *MockAnalyticsRepository) EventStats(ctx context.Context, r model.AnalyticsRange) ([]*model.EventStats, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "EventStats", ctx, r)
	ret0, _ := ret[0].([]*model.EventStats)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// EventStats indicates an expected call of EventStats.
func (mr *MockAnalyticsRepositoryMockRecorder) EventStats(ctx, r any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "EventStats", reflect.TypeOf((*MockAnalyticsRepository)(nil).EventStats), ctx, r)
}

// InsertInteraction mocks base method.
func (m *MockAnalyticsRepository) InsertInteraction(ctx context.Context, in *model.Interaction) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "InsertInteraction", ctx, in)
	ret0, _ := ret[0].(error)
	return ret0
}

// InsertInteraction indicates an expected call of InsertInteraction.
func (mr *MockAnalyticsRepositoryMockRecorder) InsertInteraction(ctx, in any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "InsertInteraction", reflect.TypeOf((*MockAnalyticsRepository)(nil).InsertInteraction), ctx, in)
}

// InsertPageView mocks base method.
func (m *MockAnalyticsRepository) InsertPageView(ctx context.Context, pv *model.PageView) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "InsertPageView", ctx, pv)
	ret0, _ := ret[0].(error)
	return ret0
}

// InsertPageView indicates an expected call of InsertPageView.
func (mr *MockAnalyticsRepositoryMockRecorder) InsertPageView(ctx, pv any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "InsertPageView", reflect.TypeOf((*MockAnalyticsRepository)(nil).InsertPageView), ctx, pv)
}

// Overview mocks base method.
func (m *MockAnalyticsRepository) Overview(ctx context.Context, r model.AnalyticsRange) (*model.BusinessOverview, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Overview", ctx, r)
	ret0, _ := ret[0].(*model.BusinessOverview)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Overview indicates an expected call of Overview.
func (mr *MockAnalyticsRepositoryMockRecorder) Overview(ctx, r any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Overview", reflect.TypeOf((*MockAnalyticsRepository)(nil).Overview), ctx, r)
}
