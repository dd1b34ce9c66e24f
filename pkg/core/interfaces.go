// Package core defines the core interfaces and types for docquery
package core

import (
	"context"
)

// IdentityField is the synthetic field every materialized document carries
const IdentityField = "id"

// Gateway is the narrow document-store contract the query builder executes against.
//
// Implementations may wrap store failures with %w but errors.Is and errors.As must
// still match the underlying error. The builder returns them as is and never retries.
type Gateway interface {
	// QueryCollection runs a compiled query against one collection
	QueryCollection(ctx context.Context, query *CompiledQuery) ([]Document, error)

	// ReadDocument reads one document. found is false when the document does not exist.
	ReadDocument(ctx context.Context, collection, id string) (doc Document, found bool, err error)

	// CreateDocument stores data under a generated identity and returns it
	CreateDocument(ctx context.Context, collection string, data map[string]any) (string, error)

	// UpdateDocument merges data into an existing document
	UpdateDocument(ctx context.Context, collection, id string, data map[string]any) error

	// DeleteDocument removes a document
	DeleteDocument(ctx context.Context, collection, id string) error
}

// CompiledQuery is the single query description handed to a Gateway
type CompiledQuery struct {
	Filter     Filter
	Collection string
	OrderBy    []Ordering
	// Limit caps the number of returned documents; zero means uncapped
	Limit int
}

// Direction is a sort direction
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseDirection accepts asc/desc in any case; anything else is ascending
func ParseDirection(dir string) Direction {
	if len(dir) == 4 && (dir[0] == 'd' || dir[0] == 'D') {
		return Descending
	}
	return Ascending
}

// Ordering is one sort key of a multi-key sort
type Ordering struct {
	Field     string
	Direction Direction
}
