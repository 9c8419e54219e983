// Package mocks provides test doubles for the exa client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	exa "github.com/sells-group/dealflow-cli/pkg/exa"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Search provides a mock function with given fields: ctx, req
func (_m *MockClient) Search(ctx context.Context, req exa.SearchRequest) (*exa.SearchResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for Search")
	}

	var r0 *exa.SearchResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, exa.SearchRequest) (*exa.SearchResponse, error)); ok {
		return rf(ctx, req)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*exa.SearchResponse)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// Contents provides a mock function with given fields: ctx, urls
func (_m *MockClient) Contents(ctx context.Context, urls []string) (*exa.SearchResponse, error) {
	ret := _m.Called(ctx, urls)

	if len(ret) == 0 {
		panic("no return value specified for Contents")
	}

	var r0 *exa.SearchResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, []string) (*exa.SearchResponse, error)); ok {
		return rf(ctx, urls)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*exa.SearchResponse)
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
