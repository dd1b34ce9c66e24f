// Package memstore provides an in-memory document gateway for tests and local development
package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
)

// Store keeps collections in memory in insertion order.
// It is safe for concurrent use.
type Store struct {
	collections map[string]*collection
	newID       func() string
	mu          sync.RWMutex
}

type collection struct {
	docs  map[string]map[string]any
	order []string
}

// Option configures a Store
type Option func(*Store)

// WithIDGenerator overrides the uuid based identity generator
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]*collection),
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ core.Gateway = (*Store)(nil)

// Put stores data under a caller chosen id, replacing any existing document
func (s *Store) Put(collectionName, id string, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collectionLocked(collectionName)
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = copyBody(data)
}

// Len returns the number of documents in a collection
func (s *Store) Len(collectionName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[collectionName]; ok {
		return len(c.docs)
	}
	return 0
}

// QueryCollection evaluates the filter locally, then sorts and caps the result
func (s *Store) QueryCollection(ctx context.Context, query *core.CompiledQuery) ([]core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	c, ok := s.collections[query.Collection]
	if !ok {
		s.mu.RUnlock()
		return []core.Document{}, nil
	}
	docs := make([]core.Document, 0, len(c.order))
	for _, id := range c.order {
		doc := materialize(id, c.docs[id])
		if core.Match(query.Filter, doc) {
			docs = append(docs, doc)
		}
	}
	s.mu.RUnlock()

	core.SortDocuments(docs, query.OrderBy)
	if query.Limit > 0 && len(docs) > query.Limit {
		docs = docs[:query.Limit]
	}
	return docs, nil
}

// ReadDocument returns a copy of one document
func (s *Store) ReadDocument(ctx context.Context, collectionName, id string) (core.Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collectionName]
	if !ok {
		return nil, false, nil
	}
	body, ok := c.docs[id]
	if !ok {
		return nil, false, nil
	}
	return materialize(id, body), true, nil
}

// CreateDocument stores data under a new identity
func (s *Store) CreateDocument(ctx context.Context, collectionName string, data map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := s.newID()
	s.Put(collectionName, id, data)
	return id, nil
}

// UpdateDocument merges top-level fields into an existing document
func (s *Store) UpdateDocument(ctx context.Context, collectionName, id string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collectionName]
	if !ok {
		return errors.ErrItemNotFound
	}
	body, ok := c.docs[id]
	if !ok {
		return errors.ErrItemNotFound
	}
	for k, v := range data {
		if k == core.IdentityField {
			continue
		}
		body[k] = v
	}
	return nil
}

// DeleteDocument removes a document
func (s *Store) DeleteDocument(ctx context.Context, collectionName, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collectionName]
	if !ok {
		return errors.ErrItemNotFound
	}
	if _, ok := c.docs[id]; !ok {
		return errors.ErrItemNotFound
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) collectionLocked(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]map[string]any)}
		s.collections[name] = c
	}
	return c
}

func copyBody(data map[string]any) map[string]any {
	body := make(map[string]any, len(data))
	for k, v := range data {
		if k == core.IdentityField {
			continue
		}
		body[k] = v
	}
	return body
}

func materialize(id string, body map[string]any) core.Document {
	doc := make(core.Document, len(body)+1)
	for k, v := range body {
		doc[k] = v
	}
	doc[core.IdentityField] = id
	return doc
}
