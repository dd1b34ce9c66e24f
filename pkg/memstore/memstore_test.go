package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
	"github.com/theory-cloud/docquery/pkg/memstore"
)

func TestCreateReadUpdateDelete(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(memstore.WithIDGenerator(func() string { return "fixed" }))

	id, err := store.CreateDocument(ctx, "users", map[string]any{"id": "ignored", "name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", id)

	doc, found, err := store.ReadDocument(ctx, "users", id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, core.Document{"id": "fixed", "name": "Alice"}, doc)

	require.NoError(t, store.UpdateDocument(ctx, "users", id, map[string]any{"age": 30, "id": "other"}))
	doc, _, err = store.ReadDocument(ctx, "users", id)
	require.NoError(t, err)
	assert.Equal(t, core.Document{"id": "fixed", "name": "Alice", "age": 30}, doc)

	require.NoError(t, store.DeleteDocument(ctx, "users", id))
	_, found, err = store.ReadDocument(ctx, "users", id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMissingDocuments(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	_, found, err := store.ReadDocument(ctx, "nope", "x")
	require.NoError(t, err)
	assert.False(t, found)

	assert.ErrorIs(t, store.UpdateDocument(ctx, "nope", "x", map[string]any{}), errors.ErrItemNotFound)
	assert.ErrorIs(t, store.DeleteDocument(ctx, "nope", "x"), errors.ErrItemNotFound)

	store.Put("users", "u1", map[string]any{})
	assert.ErrorIs(t, store.UpdateDocument(ctx, "users", "x", map[string]any{}), errors.ErrItemNotFound)
	assert.ErrorIs(t, store.DeleteDocument(ctx, "users", "x"), errors.ErrItemNotFound)

	docs, err := store.QueryCollection(ctx, &core.CompiledQuery{Collection: "nope"})
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestQueryCollection(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	store.Put("users", "a", map[string]any{"age": 40, "role": "admin"})
	store.Put("users", "b", map[string]any{"age": 20, "role": "user"})
	store.Put("users", "c", map[string]any{"age": 30, "role": "admin"})

	docs, err := store.QueryCollection(ctx, &core.CompiledQuery{
		Collection: "users",
		Filter:     core.Clause{Field: "role", Op: core.OpEqual, Value: "admin"},
		OrderBy:    []core.Ordering{{Field: "age", Direction: core.Ascending}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "c", docs[0].ID())
	assert.Equal(t, "a", docs[1].ID())

	docs, err = store.QueryCollection(ctx, &core.CompiledQuery{Collection: "users", Limit: 2})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID())
	assert.Equal(t, "b", docs[1].ID())
}

func TestReturnedDocumentsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	store.Put("users", "u1", map[string]any{"name": "Alice"})

	doc, _, err := store.ReadDocument(ctx, "users", "u1")
	require.NoError(t, err)
	doc["name"] = "Mallory"

	again, _, err := store.ReadDocument(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", again["name"])
}

func TestPutKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	store.Put("items", "b", map[string]any{})
	store.Put("items", "a", map[string]any{})
	store.Put("items", "b", map[string]any{"v": 2})

	docs, err := store.QueryCollection(ctx, &core.CompiledQuery{Collection: "items"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0].ID())
	assert.Equal(t, 2, docs[0]["v"])
	assert.Equal(t, 2, store.Len("items"))
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := memstore.New()

	_, err := store.QueryCollection(ctx, &core.CompiledQuery{Collection: "users"})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.CreateDocument(ctx, "users", map[string]any{})
	assert.ErrorIs(t, err, context.Canceled)
}
