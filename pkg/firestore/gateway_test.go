package firestore

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
)

// newOfflineGateway builds a client that never dials unless a request is made
func newOfflineGateway(t *testing.T) *Gateway {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:1")
	}
	gw, err := Open(context.Background(), Config{ProjectID: "docquery-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

func TestTranslateFilter(t *testing.T) {
	gw := newOfflineGateway(t)

	filter, err := gw.translateFilter(core.AnyOf(
		core.AllOf(
			core.Clause{Field: "age", Op: core.OpGreater, Value: 18},
			core.Clause{Field: "address.city", Op: core.OpEqual, Value: "NYC"},
		),
		core.Clause{Field: "tags", Op: core.OpArrayContainsAny, Value: []string{"go"}},
	))
	require.NoError(t, err)

	assert.Equal(t, firestore.OrFilter{Filters: []firestore.EntityFilter{
		firestore.AndFilter{Filters: []firestore.EntityFilter{
			firestore.PropertyFilter{Path: "age", Operator: ">", Value: 18},
			firestore.PropertyFilter{Path: "address.city", Operator: "==", Value: "NYC"},
		}},
		firestore.PropertyFilter{Path: "tags", Operator: "array-contains-any", Value: []any{"go"}},
	}}, filter)
}

func TestTranslateFilterErrors(t *testing.T) {
	gw := newOfflineGateway(t)

	_, err := gw.translateFilter(core.Clause{Field: "name", Op: core.OpLike, Value: "a%"})
	assert.ErrorIs(t, err, errors.ErrInvalidOperator)

	_, err = gw.translateFilter(core.Clause{Field: "name", Op: core.OpIn, Value: "a"})
	assert.ErrorIs(t, err, errors.ErrInvalidArguments)
}

func TestReferenceConversion(t *testing.T) {
	gw := newOfflineGateway(t)
	ref := core.Reference{Collection: "profiles", ID: "p1"}

	native := gw.toFirestore(map[string]any{
		"profileRef": ref,
		"history":    []any{&ref, "plain"},
	})
	body, ok := native.(map[string]any)
	require.True(t, ok)

	docRef, ok := body["profileRef"].(*firestore.DocumentRef)
	require.True(t, ok)
	assert.Equal(t, "p1", docRef.ID)
	assert.Equal(t, "profiles", docRef.Parent.ID)

	back := fromFirestore(body)
	assert.Equal(t, map[string]any{
		"profileRef": ref,
		"history":    []any{ref, "plain"},
	}, back)
}

func TestBodySkipsIdentity(t *testing.T) {
	gw := newOfflineGateway(t)
	body := gw.toFirestoreBody(map[string]any{"id": "x", "name": "alice"})
	assert.Equal(t, map[string]any{"name": "alice"}, body)
}

// TestEmulatorRoundTrip runs against a live emulator when DOCQUERY_FIRESTORE_EMULATOR is set
func TestEmulatorRoundTrip(t *testing.T) {
	host := os.Getenv("DOCQUERY_FIRESTORE_EMULATOR")
	if host == "" {
		t.Skip("DOCQUERY_FIRESTORE_EMULATOR not set")
	}
	t.Setenv("FIRESTORE_EMULATOR_HOST", host)

	ctx := context.Background()
	gw, err := Open(ctx, Config{ProjectID: "docquery-test"})
	require.NoError(t, err)
	defer gw.Close()

	id, err := gw.CreateDocument(ctx, "users", map[string]any{"name": "alice", "age": 30})
	require.NoError(t, err)

	doc, found, err := gw.ReadDocument(ctx, "users", id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(30), doc["age"])

	require.NoError(t, gw.UpdateDocument(ctx, "users", id, map[string]any{"age": 31}))
	docs, err := gw.QueryCollection(ctx, &core.CompiledQuery{
		Collection: "users",
		Filter:     core.Clause{Field: "age", Op: core.OpEqual, Value: 31},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, docs)

	require.NoError(t, gw.DeleteDocument(ctx, "users", id))
	assert.ErrorIs(t, gw.DeleteDocument(ctx, "users", id), errors.ErrItemNotFound)
}
