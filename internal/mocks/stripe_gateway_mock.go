// Code generated by MockGen. DO NOT EDIT.
// Source: github.com/popmap/popmap-api/internal/core (interfaces: StripeGateway)
//
// Generated by this command:
//
//	mockgen -package=mocks -destination=stripe_gateway_mock.go github.com/popmap/popmap-api/internal/core StripeGateway
//

// Package mocks is a generated GoMock package.
package mocks

import (
	context "context"
	reflect "reflect"

	core "github.com/popmap/popmap-api/internal/core"
	gomock "go.uber.org/mock/gomock"
)

// MockStripeGateway is a mock of StripeGateway interface.
type MockStripeGateway struct {
	ctrl     *gomock.Controller
	recorder *MockStripeGatewayMockRecorder
	isgomock struct{}
}

// MockStripeGatewayMockRecorder is the mock recorder for MockStripeGateway.
type MockStripeGatewayMockRecorder struct {
	mock *MockStripeGateway
}

// NewMockStripeGateway creates a new mock instance.
func NewMockStripeGateway(ctrl *gomock.Controller) *MockStripeGateway {
	mock := &MockStripeGateway{ctrl: ctrl}
	mock.recorder = &MockStripeGatewayMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockStripeGateway) EXPECT() *MockStripeGatewayMockRecorder {
	return m.recorder
}

// CancelAtPeriodEnd mocks base method.
func (m *MockStripeGateway) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CancelAtPeriodEnd", ctx, subscriptionID)
	ret0, _ := ret[0].(error)
	return ret0
}

// CancelAtPeriodEnd indicates an expected call of CancelAtPeriodEnd.
func (mr *MockStripeGatewayMockRecorder) CancelAtPeriodEnd(ctx, subscriptionID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CancelAtPeriodEnd", reflect.TypeOf((*MockStripeGateway)(nil).CancelAtPeriodEnd), ctx, subscriptionID)
}

// CreateCheckoutSession mocks base method.
func (m *MockStripeGateway) CreateCheckoutSession(ctx context.Context, params core.CheckoutParams) (*core.CheckoutSession, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreateCheckoutSession", ctx, params)
	ret0, _ := ret[0].(*core.CheckoutSession)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// CreateCheckoutSession indicates an expected call of CreateCheckoutSession.
func (mr *MockStripeGatewayMockRecorder) CreateCheckoutSession(ctx, params any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateCheckoutSession", reflect.TypeOf((*MockStripeGateway)(nil).CreateCheckoutSession), ctx, params)
}

// CreateCustomer mocks base method.
func (m *MockStripeGateway) CreateCustomer(ctx context.Context, params core.CreateCustomerParams) (string, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreateCustomer", ctx, params)
	ret0, _ := ret[0].(string)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// CreateCustomer indicates an expected call of CreateCustomer.
func (mr *MockStripeGatewayMockRecorder) CreateCustomer(ctx, params any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateCustomer", reflect.TypeOf((*MockStripeGateway)(nil).CreateCustomer), ctx, params)
}

// GetSubscription mocks base method.
func (m *MockStripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*core.SubscriptionState, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetSubscription", ctx, subscriptionID)
	ret0, _ := ret[0].(*core.SubscriptionState)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetSubscription indicates an expected call of GetSubscription.
func (mr *MockStripeGatewayMockRecorder) GetSubscription(ctx, subscriptionID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetSubscription", reflect.TypeOf((*MockStripeGateway)(nil).GetSubscription), ctx, subscriptionID)
}

// VerifyWebhook mocks base method.
func (m *MockStripeGateway) VerifyWebhook(payload []byte, signature string) (*core.WebhookEvent, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "VerifyWebhook", payload, signature)
	ret0, _ := ret[0].(*core.WebhookEvent)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// VerifyWebhook indicates an expected call of VerifyWebhook.
func (mr *MockStripeGatewayMockRecorder) VerifyWebhook(payload, signature any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "VerifyWebhook", reflect.TypeOf((*MockStripeGateway)(nil).VerifyWebhook), payload, signature)
}
