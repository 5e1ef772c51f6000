// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/popmap/popmap-api/internal/core (interfaces: InstagramSource)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=instagram_source_mock.go github.com/popmap/popmap-api/internal/core InstagramSource
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"

	model "github.com/popmap/popmap-api/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockInstagramSource is a mock of InstagramSource interface.
type MockInstagramSource struct {
	ctrl     *gomock.Controller
	recorder *MockInstagramSourceMockRecorder
	isgomock struct{}
}

// MockInstagramSourceMockRecorder is the mock recorder for MockInstagramSource.
type MockInstagramSourceMockRecorder struct {
	mock *MockInstagramSource
}

// NewMockInstagramSource creates a new mock instance.
func NewMockInstagramSource(ctrl *gomock.Controller) *MockInstagramSource {
	mock := &MockInstagramSource{ctrl: ctrl}
	mock.recorder = &MockInstagramSourceMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockInstagramSource) EXPECT() *MockInstagramSourceMockRecorder {
	return m.recorder
}

// FetchPosts mocks base method.
func (m *MockInstagramSource) FetchPosts(ctx context.Context, handle string, limit int) ([]*model.InstagramPost, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FetchPosts", ctx, handle, limit)
	ret0, _ := ret[0].([]*model.InstagramPost)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// FetchPosts indicates an expected call of FetchPosts.
func (mr *MockInstagramSourceMockRecorder) FetchPosts(ctx, handle, limit any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FetchPosts", reflect.TypeOf((*MockInstagramSource)(nil).FetchPosts), ctx, handle, limit)
}
