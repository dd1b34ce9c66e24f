// Package query implements the fluent document query builder.
package query

import (
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
	"github.com/theory-cloud/docquery/pkg/logger"
)

const (
	// DefaultRelationKey is the field Ref uses to find an existing related document
	DefaultRelationKey = "userId"

	// DefaultPopulateConcurrency bounds the number of in-flight population reads
	DefaultPopulateConcurrency = 4

	// PopulatedSuffix is appended to a populated path to form the output key
	PopulatedSuffix = "__populated"

	// RefSuffix is appended to a related collection name to form the link field
	RefSuffix = "Ref"
)

// Predicate is a filter evaluated locally after the fetch
type Predicate func(core.Document) bool

// Pagination is a 1-indexed page window
type Pagination struct {
	Page    int
	PerPage int
}

// Skip returns the number of rows before the page
func (p Pagination) Skip() int {
	return (p.Page - 1) * p.PerPage
}

// Limit returns the page size
func (p Pagination) Limit() int {
	return p.PerPage
}

// Builder accumulates a filtered, ordered, paginated fetch against one collection,
// optionally scoped to one document. A Builder is owned by a single goroutine.
type Builder struct {
	builderErr  error
	gateway     core.Gateway
	logger      *slog.Logger
	refCache    *lru.Cache[string, core.Document]
	pagination  *Pagination
	collection  string
	documentID  string
	relationKey string
	lastWritten string
	andGroup    []core.Filter
	orGroup     []core.Filter
	predicates  []Predicate
	populate    []string
	orderBy     []core.Ordering
	limit       int
	concurrency int
	strict      bool
	scoped      bool
}

// Option configures a Builder
type Option func(*Builder)

// WithLogger sets the logger used for population failures and query traces
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger.OrDefault(l)
	}
}

// WithPopulateConcurrency bounds concurrent population reads. 1 populates sequentially.
func WithPopulateConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithRelationKey changes the field Ref matches related documents on
func WithRelationKey(field string) Option {
	return func(b *Builder) {
		if field != "" {
			b.relationKey = field
		}
	}
}

// WithStrictGrouping combines the AND group and the OR group as
// and(andGroup, or(orGroup...)) instead of flattening both into one disjunction.
func WithStrictGrouping() Option {
	return func(b *Builder) {
		b.strict = true
	}
}

// WithReferenceCache keeps up to size populated documents across Get calls.
// Without it, reads are only de-duplicated within one Get.
func WithReferenceCache(size int) Option {
	return func(b *Builder) {
		if size <= 0 {
			return
		}
		cache, err := lru.New[string, core.Document](size)
		if err == nil {
			b.refCache = cache
		}
	}
}

// New creates a builder scoped to a collection
func New(gateway core.Gateway, collection string, opts ...Option) *Builder {
	b := &Builder{
		gateway:     gateway,
		collection:  collection,
		logger:      logger.Nop(),
		relationKey: DefaultRelationKey,
		concurrency: DefaultPopulateConcurrency,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewDocument creates a builder scoped to one document of a collection.
// An empty id makes every read and write fail with ErrMissingDocumentID.
func NewDocument(gateway core.Gateway, collection, id string, opts ...Option) *Builder {
	b := New(gateway, collection, opts...)
	b.documentID = id
	b.scoped = true
	return b
}

// Collection returns the collection the builder targets
func (b *Builder) Collection() string {
	return b.collection
}

// DocumentID returns the scoped document id, empty for collection builders
func (b *Builder) DocumentID() string {
	return b.documentID
}

// subBuilder creates the fresh builder handed to WhereGroup callbacks
func (b *Builder) subBuilder() *Builder {
	return &Builder{
		gateway:     b.gateway,
		collection:  b.collection,
		logger:      b.logger,
		relationKey: b.relationKey,
		concurrency: b.concurrency,
		strict:      b.strict,
	}
}

// recordBuilderError stores the first error encountered while building
func (b *Builder) recordBuilderError(err error) {
	if err != nil && b.builderErr == nil {
		b.builderErr = err
	}
}

// checkBuilderError returns any previously recorded builder error.
// A document builder without an id fails on every call, not only the first.
func (b *Builder) checkBuilderError() error {
	if b.builderErr != nil {
		return b.builderErr
	}
	if b.scoped && b.documentID == "" {
		return errors.NewQueryError("get", b.collection, errors.ErrMissingDocumentID)
	}
	return nil
}

// reset clears every per-execution setting
func (b *Builder) reset() {
	b.builderErr = nil
	b.andGroup = nil
	b.orGroup = nil
	b.predicates = nil
	b.populate = nil
	b.orderBy = nil
	b.pagination = nil
	b.limit = 0
}
