package query

import (
	"fmt"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
	"github.com/theory-cloud/docquery/pkg/validation"
)

// Limit caps the number of returned documents. Pagination wins when both are set.
func (b *Builder) Limit(n int) *Builder {
	if n <= 0 {
		b.recordBuilderError(errors.NewQueryError("limit", b.collection, fmt.Errorf("%w: %d", errors.ErrInvalidLimit, n)))
		return b
	}
	b.limit = n
	return b
}

// Paginate selects a 1-indexed page. Pages below 1 are clamped to 1.
func (b *Builder) Paginate(page, perPage int) *Builder {
	if perPage <= 0 {
		b.recordBuilderError(errors.NewQueryError("paginate", b.collection, fmt.Errorf("%w: %d", errors.ErrInvalidPagination, perPage)))
		return b
	}
	if page < 1 {
		page = 1
	}
	b.pagination = &Pagination{Page: page, PerPage: perPage}
	return b
}

// OrderBy appends a sort key; repeated calls compose a multi-key sort.
// direction is "asc" or "desc" and defaults to ascending.
func (b *Builder) OrderBy(field string, direction ...string) *Builder {
	if err := validation.ValidateFieldPath(field); err != nil {
		b.recordBuilderError(errors.NewQueryError("orderBy", b.collection, fmt.Errorf("%w: %w", errors.ErrInvalidFieldPath, err)))
		return b
	}
	dir := core.Ascending
	if len(direction) > 0 {
		dir = core.ParseDirection(direction[0])
	}
	b.orderBy = append(b.orderBy, core.Ordering{Field: field, Direction: dir})
	return b
}

// Populate registers dotted paths whose reference values are resolved after the fetch
func (b *Builder) Populate(paths ...string) *Builder {
	for _, path := range paths {
		if path == "" {
			continue
		}
		b.populate = append(b.populate, path)
	}
	return b
}

// When calls fn with the builder when cond is true
func (b *Builder) When(cond bool, fn func(*Builder)) *Builder {
	if cond && fn != nil {
		fn(b)
	}
	return b
}

// ForEach calls fn once per item, in order.
//
//	query.ForEach(b, []string{"alice", "bob"}, func(q *query.Builder, name string) {
//		q.OrWhere("name", name)
//	})
func ForEach[T any](b *Builder, items []T, fn func(*Builder, T)) *Builder {
	if fn == nil {
		return b
	}
	for _, item := range items {
		fn(b, item)
	}
	return b
}
