package query

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/theory-cloud/docquery/pkg/core"
)

// populateTarget is one (record, path) pair holding a reference
type populateTarget struct {
	ref    core.Reference
	path   string
	record int
}

type refResult struct {
	doc   core.Document
	err   error
	found bool
}

var errReadIncomplete = fmt.Errorf("reference read did not complete")

// populateReferences resolves every registered path on every record. Reads run on a
// bounded pool, results are attached after all reads finish. A failed read is logged
// and leaves that record's field unpopulated.
func (b *Builder) populateReferences(ctx context.Context, docs []core.Document) {
	targets := collectTargets(docs, b.populate)
	if len(targets) == 0 {
		return
	}

	index := make(map[string]int)
	var refs []core.Reference
	for _, t := range targets {
		if _, seen := index[t.ref.Path()]; !seen {
			index[t.ref.Path()] = len(refs)
			refs = append(refs, t.ref)
		}
	}

	results := b.readReferences(ctx, refs)

	for _, t := range targets {
		res := results[index[t.ref.Path()]]
		if res.err != nil {
			b.logger.WarnContext(ctx, "failed to populate field",
				"collection", b.collection,
				"path", t.path,
				"record", docs[t.record].ID(),
				"ref", t.ref.Path(),
				"error", res.err,
			)
			continue
		}
		if !res.found {
			continue
		}
		docs[t.record][t.path+PopulatedSuffix] = res.doc.Clone()
	}
}

func collectTargets(docs []core.Document, paths []string) []populateTarget {
	var targets []populateTarget
	for _, path := range paths {
		for i, doc := range docs {
			value, ok := doc.Lookup(path)
			if !ok {
				continue
			}
			ref, ok := asReference(value)
			if !ok {
				continue
			}
			targets = append(targets, populateTarget{record: i, path: path, ref: ref})
		}
	}
	return targets
}

func asReference(v any) (core.Reference, bool) {
	switch ref := v.(type) {
	case core.Reference:
		return ref, ref.Valid()
	case *core.Reference:
		if ref == nil {
			return core.Reference{}, false
		}
		return *ref, ref.Valid()
	default:
		return core.Reference{}, false
	}
}

// readReferences reads each reference once, consulting the reference cache first
func (b *Builder) readReferences(ctx context.Context, refs []core.Reference) []refResult {
	results := make([]refResult, len(refs))
	for i := range results {
		results[i].err = errReadIncomplete
	}

	var pending []int
	for i, ref := range refs {
		if b.refCache != nil {
			if doc, ok := b.refCache.Get(ref.Path()); ok {
				results[i] = refResult{doc: doc, found: true}
				continue
			}
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return results
	}

	read := func(i int) {
		doc, found, err := b.gateway.ReadDocument(ctx, refs[i].Collection, refs[i].ID)
		results[i] = refResult{doc: doc, found: found, err: err}
		if err == nil && found && b.refCache != nil {
			b.refCache.Add(refs[i].Path(), doc)
		}
	}

	size := min(b.concurrency, len(pending))
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(v any) {
		b.logger.ErrorContext(ctx, "populate task panic", "panic", v)
	}))
	if err != nil {
		b.logger.WarnContext(ctx, "populate pool unavailable, reading sequentially", "error", err)
		for _, i := range pending {
			read(i)
		}
		return results
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, i := range pending {
		i := i
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			read(i)
		}); err != nil {
			wg.Done()
			results[i].err = err
		}
	}
	wg.Wait()
	return results
}
