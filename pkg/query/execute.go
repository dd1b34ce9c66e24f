package query

import (
	"context"

	"github.com/theory-cloud/docquery/pkg/core"
)

// Compile returns the query Get would send, without running it or clearing state
func (b *Builder) Compile() (*core.CompiledQuery, error) {
	if err := b.checkBuilderError(); err != nil {
		return nil, err
	}

	compiled := &core.CompiledQuery{
		Collection: b.collection,
		Filter:     b.combinedFilter(),
		OrderBy:    append([]core.Ordering(nil), b.orderBy...),
	}
	if b.pagination != nil {
		compiled.Limit = b.pagination.Skip() + b.pagination.Limit()
	} else {
		compiled.Limit = b.limit
	}
	return compiled, nil
}

// combinedFilter joins the AND group and the OR group. By default both are
// flattened into one disjunction, or(and(andGroup...), orGroup...), which is the
// shape document stores accept. WithStrictGrouping keeps and(andGroup, or(orGroup)).
func (b *Builder) combinedFilter() core.Filter {
	andPart := core.AllOf(b.andGroup...)
	if len(b.orGroup) == 0 {
		return andPart
	}
	if andPart == nil {
		return core.AnyOf(b.orGroup...)
	}
	if b.strict {
		return core.AllOf(andPart, core.AnyOf(b.orGroup...))
	}
	return core.AnyOf(append([]core.Filter{andPart}, b.orGroup...)...)
}

// Get runs the accumulated query and clears every per-execution setting,
// whether or not the query succeeds.
func (b *Builder) Get(ctx context.Context) ([]core.Document, error) {
	defer b.reset()

	compiled, err := b.Compile()
	if err != nil {
		return nil, err
	}

	b.logger.DebugContext(ctx, "executing query",
		"collection", compiled.Collection,
		"document", b.documentID,
		"filter", filterString(compiled.Filter),
		"limit", compiled.Limit,
	)

	var docs []core.Document
	if b.documentID != "" {
		docs, err = b.readScoped(ctx, compiled.Filter)
	} else {
		docs, err = b.gateway.QueryCollection(ctx, compiled)
	}
	if err != nil {
		return nil, err
	}

	docs = b.applyPredicates(docs)
	docs = b.window(docs)

	if len(b.populate) > 0 && len(docs) > 0 {
		b.populateReferences(ctx, docs)
	}
	return docs, nil
}

// First runs Get and returns the first document, or nil when there is none
func (b *Builder) First(ctx context.Context) (core.Document, error) {
	docs, err := b.Get(ctx)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Raw runs a caller built filter against the collection. It ignores and keeps
// the accumulated builder state.
func (b *Builder) Raw(ctx context.Context, filter core.Filter, orderBy ...core.Ordering) ([]core.Document, error) {
	return b.gateway.QueryCollection(ctx, &core.CompiledQuery{
		Collection: b.collection,
		Filter:     filter,
		OrderBy:    orderBy,
	})
}

// readScoped reads the scoped document and checks the compiled filter locally
func (b *Builder) readScoped(ctx context.Context, filter core.Filter) ([]core.Document, error) {
	doc, found, err := b.gateway.ReadDocument(ctx, b.collection, b.documentID)
	if err != nil {
		return nil, err
	}
	if !found || !core.Match(filter, doc) {
		return []core.Document{}, nil
	}
	return []core.Document{doc}, nil
}

func (b *Builder) applyPredicates(docs []core.Document) []core.Document {
	if len(b.predicates) == 0 {
		return docs
	}
	keep := allPredicates(b.predicates)
	kept := make([]core.Document, 0, len(docs))
	for _, doc := range docs {
		if keep(doc) {
			kept = append(kept, doc)
		}
	}
	return kept
}

// window slices the page out of the over-fetched rows, or truncates to the limit
func (b *Builder) window(docs []core.Document) []core.Document {
	if b.pagination != nil {
		start := b.pagination.Skip()
		if start >= len(docs) {
			return []core.Document{}
		}
		end := min(start+b.pagination.Limit(), len(docs))
		return docs[start:end]
	}
	if b.limit > 0 && len(docs) > b.limit {
		return docs[:b.limit]
	}
	return docs
}

func filterString(f core.Filter) string {
	if f == nil {
		return ""
	}
	return f.String()
}
