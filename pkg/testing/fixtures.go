package testing

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/require"

	"github.com/theory-cloud/docquery/pkg/core"
)

// SequentialIDs returns a generator yielding prefix-01, prefix-02, ...
func SequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%02d", prefix, n)
	}
}

// Seed creates docs in collection and returns their ids in order
func Seed(t require.TestingT, gateway core.Gateway, collection string, docs ...map[string]any) []string {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id, err := gateway.CreateDocument(context.Background(), collection, doc)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

// IDs lists the document ids in order
func IDs(docs []core.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID()
	}
	return out
}

// FieldValues lists one field of every document in order; missing fields yield nil
func FieldValues(docs []core.Document, field string) []any {
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i], _ = d.Lookup(field)
	}
	return out
}
