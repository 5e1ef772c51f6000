// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/popmap/popmap-api/internal/core (interfaces: CaptionExtractor)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=caption_extractor_mock.go github.com/popmap/popmap-api/internal/core CaptionExtractor
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"

	model "github.com/popmap/popmap-api/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockCaptionExtractor is a mock of CaptionExtractor interface.
type MockCaptionExtractor struct {
	ctrl     *gomock.Controller
	recorder *MockCaptionExtractorMockRecorder
	isgomock struct{}
}

// MockCaptionExtractorMockRecorder is the mock recorder for MockCaptionExtractor.
type MockCaptionExtractorMockRecorder struct {
	mock *MockCaptionExtractor
}

// NewMockCaptionExtractor creates a new mock instance.
func NewMockCaptionExtractor(ctrl *gomock.Controller) *MockCaptionExtractor {
	mock := &MockCaptionExtractor{ctrl: ctrl}
	mock.recorder = &MockCaptionExtractorMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockCaptionExtractor) EXPECT() *MockCaptionExtractorMockRecorder {
	return m.recorder
}

// Extract mocks base method.
func (m *MockCaptionExtractor) Extract(ctx context.Context, caption string) (*model.ExtractedEvent, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Extract", ctx, caption)
	ret0, _ := ret[0].(*model.ExtractedEvent)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Extract indicates an expected call of Extract.
func (mr *MockCaptionExtractorMockRecorder) Extract(ctx, caption any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Extract", reflect.TypeOf((*MockCaptionExtractor)(nil).Extract), ctx, caption)
}
