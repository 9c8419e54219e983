// Package mocks provides test doubles for the companieshouse client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	companieshouse "github.com/sells-group/dealflow-cli/pkg/companieshouse"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// AdvancedSearch provides a mock function with given fields: ctx, params
func (_m *MockClient) AdvancedSearch(ctx context.Context, params companieshouse.SearchParams) (*companieshouse.SearchPage, error) {
	ret := _m.Called(ctx, params)

	if len(ret) == 0 {
		panic("no return value specified for AdvancedSearch")
	}

	var r0 *companieshouse.SearchPage
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, companieshouse.SearchParams) (*companieshouse.SearchPage, error)); ok {
		return rf(ctx, params)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*companieshouse.SearchPage)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// Officers provides a mock function with given fields: ctx, companyNumber
func (_m *MockClient) Officers(ctx context.Context, companyNumber string) (*companieshouse.OfficerList, error) {
	ret := _m.Called(ctx, companyNumber)

	if len(ret) == 0 {
		panic("no return value specified for Officers")
	}

	var r0 *companieshouse.OfficerList
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*companieshouse.OfficerList, error)); ok {
		return rf(ctx, companyNumber)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*companieshouse.OfficerList)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
