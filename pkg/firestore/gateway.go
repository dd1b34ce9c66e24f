// Package firestore implements the document gateway on Cloud Firestore.
//
// Stored references use Firestore's native *DocumentRef type and are exposed
// to callers as core.Reference values.
package firestore

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/theory-cloud/docquery/pkg/core"
	"github.com/theory-cloud/docquery/pkg/errors"
	"github.com/theory-cloud/docquery/pkg/logger"
)

// Config describes how to connect to Firestore
type Config struct {
	Logger          *slog.Logger
	ProjectID       string
	CredentialsFile string
}

// Gateway stores documents in Firestore collections
type Gateway struct {
	client *firestore.Client
	logger *slog.Logger
}

var _ core.Gateway = (*Gateway)(nil)

// Open creates a Firestore client for the project
func Open(ctx context.Context, cfg Config) (*Gateway, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return New(client, cfg.Logger), nil
}

// New wraps an existing client
func New(client *firestore.Client, log *slog.Logger) *Gateway {
	if log == nil {
		log = logger.Nop()
	}
	return &Gateway{client: client, logger: log}
}

// Close closes the client
func (g *Gateway) Close() error {
	return g.client.Close()
}

// QueryCollection runs the compiled query as one Firestore query
func (g *Gateway) QueryCollection(ctx context.Context, query *core.CompiledQuery) ([]core.Document, error) {
	q, err := g.buildQuery(query)
	if err != nil {
		return nil, err
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	docs := make([]core.Document, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, g.fromSnapshot(snap))
	}

	g.logger.DebugContext(ctx, "queried collection",
		slog.String("collection", query.Collection),
		slog.Int("documents", len(docs)),
	)
	return docs, nil
}

func (g *Gateway) buildQuery(query *core.CompiledQuery) (firestore.Query, error) {
	q := g.client.Collection(query.Collection).Query
	if query.Filter != nil {
		filter, err := g.translateFilter(query.Filter)
		if err != nil {
			return q, err
		}
		q = q.WhereEntity(filter)
	}
	for _, o := range query.OrderBy {
		dir := firestore.Asc
		if o.Direction == core.Descending {
			dir = firestore.Desc
		}
		q = q.OrderBy(o.Field, dir)
	}
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}
	return q, nil
}

// translateFilter maps a filter tree onto Firestore's composite filters
func (g *Gateway) translateFilter(f core.Filter) (firestore.EntityFilter, error) {
	switch node := f.(type) {
	case core.Clause:
		switch node.Op {
		case core.OpEqual, core.OpNotEqual, core.OpGreater, core.OpGreaterEqual, core.OpLess, core.OpLessEqual:
			return firestore.PropertyFilter{Path: node.Field, Operator: string(node.Op), Value: g.toFirestore(node.Value)}, nil
		case core.OpIn, core.OpArrayContainsAny:
			items := core.ToSlice(node.Value)
			if items == nil {
				return nil, fmt.Errorf("%w: %s expects a list", errors.ErrInvalidArguments, node.Op)
			}
			return firestore.PropertyFilter{Path: node.Field, Operator: string(node.Op), Value: g.toFirestore(items)}, nil
		default:
			return nil, fmt.Errorf("%w: %s", errors.ErrInvalidOperator, node.Op)
		}
	case core.And:
		filters, err := g.translateAll(node.Filters)
		if err != nil {
			return nil, err
		}
		return firestore.AndFilter{Filters: filters}, nil
	case core.Or:
		filters, err := g.translateAll(node.Filters)
		if err != nil {
			return nil, err
		}
		return firestore.OrFilter{Filters: filters}, nil
	default:
		return nil, fmt.Errorf("%w: filter node %T", errors.ErrUnsupportedType, f)
	}
}

func (g *Gateway) translateAll(children []core.Filter) ([]firestore.EntityFilter, error) {
	filters := make([]firestore.EntityFilter, 0, len(children))
	for _, child := range children {
		filter, err := g.translateFilter(child)
		if err != nil {
			return nil, err
		}
		filters = append(filters, filter)
	}
	return filters, nil
}

// ReadDocument fetches one document; NotFound reports absence
func (g *Gateway) ReadDocument(ctx context.Context, collection, id string) (core.Document, bool, error) {
	snap, err := g.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return g.fromSnapshot(snap), true, nil
}

// CreateDocument adds a document under a Firestore generated id
func (g *Gateway) CreateDocument(ctx context.Context, collection string, data map[string]any) (string, error) {
	ref, _, err := g.client.Collection(collection).Add(ctx, g.toFirestoreBody(data))
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

// UpdateDocument sets top-level fields on an existing document
func (g *Gateway) UpdateDocument(ctx context.Context, collection, id string, data map[string]any) error {
	updates := make([]firestore.Update, 0, len(data))
	for k, v := range data {
		if k == core.IdentityField {
			continue
		}
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: g.toFirestore(v)})
	}
	if len(updates) == 0 {
		_, found, err := g.ReadDocument(ctx, collection, id)
		if err == nil && !found {
			err = errors.ErrItemNotFound
		}
		return err
	}

	_, err := g.client.Collection(collection).Doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return errors.ErrItemNotFound
	}
	return err
}

// DeleteDocument removes an existing document
func (g *Gateway) DeleteDocument(ctx context.Context, collection, id string) error {
	_, err := g.client.Collection(collection).Doc(id).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return errors.ErrItemNotFound
	}
	return err
}

func (g *Gateway) fromSnapshot(snap *firestore.DocumentSnapshot) core.Document {
	data := snap.Data()
	doc := make(core.Document, len(data)+1)
	for k, v := range data {
		doc[k] = fromFirestore(v)
	}
	doc[core.IdentityField] = snap.Ref.ID
	return doc
}

func (g *Gateway) toFirestoreBody(data map[string]any) map[string]any {
	body := make(map[string]any, len(data))
	for k, v := range data {
		if k == core.IdentityField {
			continue
		}
		body[k] = g.toFirestore(v)
	}
	return body
}

// toFirestore replaces references with native document refs, recursively
func (g *Gateway) toFirestore(v any) any {
	switch val := v.(type) {
	case core.Reference:
		return g.client.Collection(val.Collection).Doc(val.ID)
	case *core.Reference:
		if val == nil {
			return nil
		}
		return g.toFirestore(*val)
	case core.Document:
		return g.toFirestore(map[string]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = g.toFirestore(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = g.toFirestore(item)
		}
		return out
	default:
		return v
	}
}

// fromFirestore replaces native document refs with references, recursively
func fromFirestore(v any) any {
	switch val := v.(type) {
	case *firestore.DocumentRef:
		if val == nil {
			return nil
		}
		ref := core.Reference{ID: val.ID}
		if val.Parent != nil {
			ref.Collection = val.Parent.ID
		}
		return ref
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = fromFirestore(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = fromFirestore(item)
		}
		return out
	default:
		return v
	}
}
