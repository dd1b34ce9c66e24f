package sqlstore_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
	"github.com/theory-cloud/docquery/pkg/sqlstore"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%02d", n)
	}
}

func openStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	return openStoreWithIDs(t, sequentialIDs())
}

func openStoreWithIDs(t *testing.T, newID func() string) *sqlstore.Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	store, err := sqlstore.Open(sqlstore.Config{
		Driver:       sqlstore.DriverSQLite,
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MaxOpenConns: 1,
		NewID:        newID,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func seed(t *testing.T, store *sqlstore.Store) {
	t.Helper()
	ctx := context.Background()
	rows := []map[string]any{
		{"name": "alice", "age": 30, "tags": []any{"go", "db"}, "address": map[string]any{"city": "NYC"}},
		{"name": "bob", "age": 17, "tags": []any{"rust"}, "address": map[string]any{"city": "LA"}},
		{"name": "carol", "age": 45, "active": true, "nickname": nil},
	}
	for _, row := range rows {
		_, err := store.CreateDocument(ctx, "users", row)
		require.NoError(t, err)
	}
}

func TestCRUD(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	id, err := store.CreateDocument(ctx, "users", map[string]any{
		"name":       "alice",
		"age":        30,
		"profileRef": core.Reference{Collection: "profiles", ID: "p1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "id-01", id)

	doc, found, err := store.ReadDocument(ctx, "users", id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, doc.ID())
	assert.Equal(t, int64(30), doc["age"])
	assert.Equal(t, core.Reference{Collection: "profiles", ID: "p1"}, doc["profileRef"])

	require.NoError(t, store.UpdateDocument(ctx, "users", id, map[string]any{"age": 31, "id": "ignored"}))
	doc, _, err = store.ReadDocument(ctx, "users", id)
	require.NoError(t, err)
	assert.Equal(t, int64(31), doc["age"])
	assert.Equal(t, "alice", doc["name"])
	assert.Equal(t, id, doc.ID())

	require.NoError(t, store.DeleteDocument(ctx, "users", id))
	_, found, err = store.ReadDocument(ctx, "users", id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMissingDocuments(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	_, found, err := store.ReadDocument(ctx, "users", "nope")
	require.NoError(t, err)
	assert.False(t, found)

	assert.ErrorIs(t, store.UpdateDocument(ctx, "users", "nope", map[string]any{"a": 1}), errors.ErrItemNotFound)
	assert.ErrorIs(t, store.DeleteDocument(ctx, "users", "nope"), errors.ErrItemNotFound)
}

func TestCollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	seed(t, store)

	_, err := store.CreateDocument(ctx, "profiles", map[string]any{"name": "alice"})
	require.NoError(t, err)

	docs, err := store.QueryCollection(ctx, &core.CompiledQuery{Collection: "profiles"})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestQueryCollection(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	seed(t, store)

	tests := []struct {
		filter   core.Filter
		name     string
		expected []string
	}{
		{name: "all", expected: []string{"alice", "bob", "carol"}},
		{name: "numeric", filter: core.Clause{Field: "age", Op: core.OpGreaterEqual, Value: 30}, expected: []string{"alice", "carol"}},
		{name: "string range", filter: core.AllOf(
			core.Clause{Field: "name", Op: core.OpGreaterEqual, Value: "b"},
			core.Clause{Field: "name", Op: core.OpLessEqual, Value: "b"},
		), expected: []string{"bob"}},
		{name: "nested", filter: core.Clause{Field: "address.city", Op: core.OpEqual, Value: "LA"}, expected: []string{"bob"}},
		{name: "not equal includes null", filter: core.Clause{Field: "nickname", Op: core.OpNotEqual, Value: "x"}, expected: []string{"carol"}},
		{name: "in", filter: core.Clause{Field: "name", Op: core.OpIn, Value: []string{"carol", "alice"}}, expected: []string{"alice", "carol"}},
		{name: "contains any", filter: core.Clause{Field: "tags", Op: core.OpArrayContainsAny, Value: []any{"db", "rust"}}, expected: []string{"alice", "bob"}},
		{name: "boolean checked locally", filter: core.Clause{Field: "active", Op: core.OpEqual, Value: true}, expected: []string{"carol"}},
		{name: "or", filter: core.AnyOf(
			core.Clause{Field: "age", Op: core.OpLess, Value: 18},
			core.Clause{Field: "active", Op: core.OpEqual, Value: true},
		), expected: []string{"bob", "carol"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := store.QueryCollection(ctx, &core.CompiledQuery{Collection: "users", Filter: tt.filter})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, names(docs))
		})
	}
}

func TestQueryCollectionOrderingAndCap(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	seed(t, store)

	docs, err := store.QueryCollection(ctx, &core.CompiledQuery{
		Collection: "users",
		OrderBy:    []core.Ordering{{Field: "age", Direction: core.Descending}},
		Limit:      2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "alice"}, names(docs))

	docs, err = store.QueryCollection(ctx, &core.CompiledQuery{Collection: "users", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names(docs))
}

func TestQueryCollectionKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	ids := []string{"zz", "mm", "aa"}
	n := 0
	store := openStoreWithIDs(t, func() string {
		id := ids[n]
		n++
		return id
	})

	for _, name := range []string{"first", "second", "third"} {
		_, err := store.CreateDocument(ctx, "users", map[string]any{"name": name})
		require.NoError(t, err)
	}
	require.NoError(t, store.UpdateDocument(ctx, "users", "zz", map[string]any{"seen": true}))

	docs, err := store.QueryCollection(ctx, &core.CompiledQuery{Collection: "users"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, names(docs))

	docs, err = store.QueryCollection(ctx, &core.CompiledQuery{Collection: "users", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, names(docs))
}

func TestDuplicateKeyIsRejected(t *testing.T) {
	ctx := context.Background()
	store := openStoreWithIDs(t, func() string { return "same" })

	_, err := store.CreateDocument(ctx, "users", map[string]any{"name": "a"})
	require.NoError(t, err)
	_, err = store.CreateDocument(ctx, "users", map[string]any{"name": "b"})
	assert.Error(t, err)

	_, err = store.CreateDocument(ctx, "posts", map[string]any{"name": "c"})
	assert.NoError(t, err)
}

func TestCreateRejectsUnencodableValues(t *testing.T) {
	store := openStore(t)
	_, err := store.CreateDocument(context.Background(), "users", map[string]any{"ch": make(chan int)})
	assert.ErrorIs(t, err, errors.ErrUnsupportedType)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := sqlstore.Open(sqlstore.Config{Driver: "oracle"})
	assert.ErrorIs(t, err, errors.ErrUnsupportedBackend)
}

func names(docs []core.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i], _ = d["name"].(string)
	}
	return out
}
