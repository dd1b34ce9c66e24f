// Package mocks provides mock implementations for docquery interfaces and AWS SDK operations
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/theory-cloud/docquery/pkg/core"
)

// MockGateway is a testify mock of core.Gateway.
//
// Example usage:
//
//	gw := new(mocks.MockGateway)
//	gw.On("QueryCollection", mock.Anything, mock.Anything).Return([]core.Document{}, nil)
//
//	docs, err := query.New(gw, "users").Where("role", "admin").Get(ctx)
type MockGateway struct {
	mock.Mock
}

var _ core.Gateway = (*MockGateway)(nil)

// QueryCollection mocks core.Gateway.QueryCollection
func (m *MockGateway) QueryCollection(ctx context.Context, query *core.CompiledQuery) ([]core.Document, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	docs, ok := args.Get(0).([]core.Document)
	if !ok {
		panic("unexpected type: expected []core.Document")
	}
	return docs, args.Error(1)
}

// ReadDocument mocks core.Gateway.ReadDocument
func (m *MockGateway) ReadDocument(ctx context.Context, collection, id string) (core.Document, bool, error) {
	args := m.Called(ctx, collection, id)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	doc, ok := args.Get(0).(core.Document)
	if !ok {
		panic("unexpected type: expected core.Document")
	}
	return doc, args.Bool(1), args.Error(2)
}

// CreateDocument mocks core.Gateway.CreateDocument
func (m *MockGateway) CreateDocument(ctx context.Context, collection string, data map[string]any) (string, error) {
	args := m.Called(ctx, collection, data)
	return args.String(0), args.Error(1)
}

// UpdateDocument mocks core.Gateway.UpdateDocument
func (m *MockGateway) UpdateDocument(ctx context.Context, collection, id string, data map[string]any) error {
	args := m.Called(ctx, collection, id, data)
	return args.Error(0)
}

// DeleteDocument mocks core.Gateway.DeleteDocument
func (m *MockGateway) DeleteDocument(ctx context.Context, collection, id string) error {
	args := m.Called(ctx, collection, id)
	return args.Error(0)
}
