// Package testing provides utilities for testing code that runs docquery builders:
// a fluent mock gateway and fixtures for seeding in-memory stores.
package testing

import (
	"github.com/stretchr/testify/mock"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
	"github.com/theory-cloud/docquery/pkg/mocks"
)

// TestGateway provides a fluent interface for setting up gateway expectations.
// Every query the builder sends is recorded in Queries.
type TestGateway struct {
	MockGateway *mocks.MockGateway
	Queries     []*core.CompiledQuery
}

// NewTestGateway creates a mock gateway with no expectations
func NewTestGateway() *TestGateway {
	return &TestGateway{MockGateway: new(mocks.MockGateway)}
}

func (t *TestGateway) record(args mock.Arguments) {
	if q, ok := args.Get(1).(*core.CompiledQuery); ok {
		t.Queries = append(t.Queries, q)
	}
}

// ExpectQuery answers the next query on collection with docs
func (t *TestGateway) ExpectQuery(collection string, docs ...core.Document) *TestGateway {
	if docs == nil {
		docs = []core.Document{}
	}
	t.MockGateway.On("QueryCollection", mock.Anything, mock.MatchedBy(func(q *core.CompiledQuery) bool {
		return q.Collection == collection
	})).Run(t.record).Return(docs, nil).Once()
	return t
}

// ExpectQueryError fails the next query on collection
func (t *TestGateway) ExpectQueryError(collection string, err error) *TestGateway {
	t.MockGateway.On("QueryCollection", mock.Anything, mock.MatchedBy(func(q *core.CompiledQuery) bool {
		return q.Collection == collection
	})).Run(t.record).Return(nil, err).Once()
	return t
}

// ExpectRead answers a read of collection/id with doc
func (t *TestGateway) ExpectRead(collection, id string, doc core.Document) *TestGateway {
	t.MockGateway.On("ReadDocument", mock.Anything, collection, id).Return(doc, true, nil).Once()
	return t
}

// ExpectNotFound answers a read of collection/id with a missing document
func (t *TestGateway) ExpectNotFound(collection, id string) *TestGateway {
	t.MockGateway.On("ReadDocument", mock.Anything, collection, id).Return(nil, false, nil).Once()
	return t
}

// ExpectCreate answers the next create in collection with id
func (t *TestGateway) ExpectCreate(collection, id string) *TestGateway {
	t.MockGateway.On("CreateDocument", mock.Anything, collection, mock.Anything).Return(id, nil).Once()
	return t
}

// ExpectCreateError fails the next create in collection
func (t *TestGateway) ExpectCreateError(collection string, err error) *TestGateway {
	t.MockGateway.On("CreateDocument", mock.Anything, collection, mock.Anything).Return("", err).Once()
	return t
}

// ExpectUpdate accepts an update of collection/id
func (t *TestGateway) ExpectUpdate(collection, id string) *TestGateway {
	t.MockGateway.On("UpdateDocument", mock.Anything, collection, id, mock.Anything).Return(nil).Once()
	return t
}

// ExpectUpdateMissing rejects an update of collection/id as not found
func (t *TestGateway) ExpectUpdateMissing(collection, id string) *TestGateway {
	t.MockGateway.On("UpdateDocument", mock.Anything, collection, id, mock.Anything).Return(errors.ErrItemNotFound).Once()
	return t
}

// ExpectDelete accepts a delete of collection/id
func (t *TestGateway) ExpectDelete(collection, id string) *TestGateway {
	t.MockGateway.On("DeleteDocument", mock.Anything, collection, id).Return(nil).Once()
	return t
}

// LastQuery returns the most recent recorded query, or nil
func (t *TestGateway) LastQuery() *core.CompiledQuery {
	if len(t.Queries) == 0 {
		return nil
	}
	return t.Queries[len(t.Queries)-1]
}

// AssertExpectations asserts that all expectations were met
func (t *TestGateway) AssertExpectations(testing mock.TestingT) {
	t.MockGateway.AssertExpectations(testing)
}

// Reset clears all expectations and recorded queries
func (t *TestGateway) Reset() {
	t.MockGateway.ExpectedCalls = nil
	t.MockGateway.Calls = nil
	t.Queries = nil
}
